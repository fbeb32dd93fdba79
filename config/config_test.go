package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "ru", cfg.Session.Language1)
	assert.Equal(t, "en", cfg.Session.Language2)
	assert.Equal(t, 30, cfg.Session.MaxMessages)
	assert.True(t, cfg.Session.AutoDetectLanguage)
	assert.False(t, cfg.Session.EnableTextInput)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 300.0, cfg.Audio.EnergyThreshold)
	assert.Equal(t, 0.8, cfg.Audio.PauseThreshold)
	assert.Equal(t, "google", cfg.STT.Provider)
	assert.Equal(t, "elevenlabs", cfg.TTS.Provider)
	assert.Equal(t, DefaultElevenLabsModel, cfg.TTS.Model)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Session.Language1 = "es"
	cfg.Session.MaxMessages = 50
	cfg.TTS.AutoPlay = true
	cfg.TTS.ElevenLabsAPIKey = "sk_0123456789abcdef"
	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "es", reloaded.Session.Language1)
	assert.Equal(t, 50, reloaded.Session.MaxMessages)
	assert.True(t, reloaded.TTS.AutoPlay)
	assert.Equal(t, "sk_0123456789abcdef", reloaded.TTS.ElevenLabsAPIKey)
}

func TestDeprecatedModelMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tts:\n  model: eleven_multilingual_v1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultElevenLabsModel, cfg.TTS.Model)

	// The migration is written back so it does not repeat on every start.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "eleven_multilingual_v1")
	assert.Contains(t, string(raw), DefaultElevenLabsModel)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRANSVOICE_SERVER_PORT", "9999")
	t.Setenv("TRANSVOICE_STT_GOOGLE_API_KEY", "env-key-123")
	t.Setenv("TRANSVOICE_TTS_ELEVENLABS_API_KEY", "sk_env456")
	t.Setenv("TRANSVOICE_PHONE_AUTH_TOKEN", "env-token")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "env-key-123", cfg.STT.GoogleAPIKey)
	assert.Equal(t, "sk_env456", cfg.TTS.ElevenLabsAPIKey)
	assert.Equal(t, "env-token", cfg.Phone.AuthToken)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd**ghij", MaskSecret("abcdefghij"))
	assert.Equal(t, "***", MaskSecret("abc"))
	assert.Equal(t, "********", MaskSecret("12345678"))
}

func TestMaskedHidesSecrets(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	cfg.TTS.ElevenLabsAPIKey = "sk_0123456789abcdef"
	cfg.Phone.AuthToken = "secrettoken12345"

	out := cfg.Masked()
	assert.Equal(t, MaskSecret("sk_0123456789abcdef"), out["tts.elevenlabs_api_key"])
	assert.Equal(t, MaskSecret("secrettoken12345"), out["phone.auth_token"])
	for _, v := range out {
		if s, ok := v.(string); ok {
			assert.False(t, strings.Contains(s, "0123456789abcdef"), "raw secret leaked: %s", s)
		}
	}
	// Non-secret values stay readable.
	assert.Equal(t, "ru", out["session.language1"])
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, "ru-RU", SpeechCode("ru"))
	assert.Equal(t, "en-US", SpeechCode("unknown"))
	assert.True(t, IsSupported("de"))
	assert.False(t, IsSupported("jp"))
	assert.Equal(t, DefaultVoices["ru"], VoiceFor("ru", "fallback"))
	assert.Equal(t, "fallback", VoiceFor("jp", "fallback"))
}
