package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"transvoice/logger"
)

// DefaultElevenLabsModel replaces TTS models ElevenLabs retired from the
// free tier.
const DefaultElevenLabsModel = "eleven_turbo_v2"

// deprecatedTTSModels no longer work on the ElevenLabs free tier and are
// migrated to DefaultElevenLabsModel on load.
var deprecatedTTSModels = map[string]bool{
	"eleven_multilingual_v1": true,
	"eleven_monolingual_v1":  true,
}

// Config holds the full application configuration. It is loaded from
// config.yaml merged over defaults and written back with Save so settings
// survive restarts.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	Audio     AudioConfig     `mapstructure:"audio"`
	STT       STTConfig       `mapstructure:"stt"`
	Translate TranslateConfig `mapstructure:"translate"`
	TTS       TTSConfig       `mapstructure:"tts"`
	History   HistoryConfig   `mapstructure:"history"`
	Phone     PhoneConfig     `mapstructure:"phone"`
	LogLevel  string          `mapstructure:"log_level"`

	path string
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// SessionConfig holds the defaults applied to new translation sessions.
type SessionConfig struct {
	Language1          string `mapstructure:"language1"`
	Language2          string `mapstructure:"language2"`
	MaxMessages        int    `mapstructure:"max_messages"`
	AutoDetectLanguage bool   `mapstructure:"auto_detect_language"`
	EnableTextInput    bool   `mapstructure:"enable_text_input"`
}

// AudioConfig holds the utterance segmentation parameters.
type AudioConfig struct {
	SampleRate      int     `mapstructure:"sample_rate"`
	EnergyThreshold float64 `mapstructure:"energy_threshold"`
	DynamicEnergy   bool    `mapstructure:"dynamic_energy"`
	PauseThreshold  float64 `mapstructure:"pause_threshold"`
	ListenTimeout   float64 `mapstructure:"listen_timeout"`
	PhraseTimeLimit float64 `mapstructure:"phrase_time_limit"`
}

// STTConfig selects and configures the speech recognition provider.
type STTConfig struct {
	Provider     string `mapstructure:"provider"`
	GoogleAPIKey string `mapstructure:"google_api_key"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	WhisperModel string `mapstructure:"whisper_model"`
}

// TranslateConfig configures the translation service.
type TranslateConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// TTSConfig selects and configures the text-to-speech provider.
type TTSConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	AutoPlay          bool    `mapstructure:"auto_play"`
	Provider          string  `mapstructure:"provider"`
	VoiceID           string  `mapstructure:"voice_id"`
	Model             string  `mapstructure:"model"`
	Speed             float64 `mapstructure:"speed"`
	Volume            int     `mapstructure:"volume"`
	ElevenLabsAPIKey  string  `mapstructure:"elevenlabs_api_key"`
	GoogleCloudAPIKey string  `mapstructure:"google_cloud_api_key"`
	GoogleCloudVoice  string  `mapstructure:"google_cloud_voice"`
	OpenAIAPIKey      string  `mapstructure:"openai_api_key"`
	OpenAIVoice       string  `mapstructure:"openai_voice"`
}

// HistoryConfig configures dialogue persistence.
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// PhoneConfig configures the optional Twilio phone bridge.
type PhoneConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
	BaseURL    string `mapstructure:"base_url"`
	BaseWSURL  string `mapstructure:"base_ws_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "3000")

	v.SetDefault("session.language1", "ru")
	v.SetDefault("session.language2", "en")
	v.SetDefault("session.max_messages", 30)
	v.SetDefault("session.auto_detect_language", true)
	v.SetDefault("session.enable_text_input", false)

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.energy_threshold", 300)
	v.SetDefault("audio.dynamic_energy", true)
	v.SetDefault("audio.pause_threshold", 0.8)
	v.SetDefault("audio.listen_timeout", 10)
	v.SetDefault("audio.phrase_time_limit", 10)

	v.SetDefault("stt.provider", "google")
	v.SetDefault("stt.google_api_key", "")
	v.SetDefault("stt.openai_api_key", "")
	v.SetDefault("stt.whisper_model", "whisper-1")

	v.SetDefault("translate.timeout_seconds", 5)

	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.auto_play", false)
	v.SetDefault("tts.provider", "elevenlabs")
	v.SetDefault("tts.voice_id", "CwhRBWXzGAHq8TQ4Fs17")
	v.SetDefault("tts.model", DefaultElevenLabsModel)
	v.SetDefault("tts.speed", 1.0)
	v.SetDefault("tts.volume", 80)
	v.SetDefault("tts.elevenlabs_api_key", "")
	v.SetDefault("tts.google_cloud_api_key", "")
	v.SetDefault("tts.google_cloud_voice", "ru-RU-Standard-A")
	v.SetDefault("tts.openai_api_key", "")
	v.SetDefault("tts.openai_voice", "alloy")

	v.SetDefault("history.db_path", "history.db")

	// Empty defaults keep these keys visible to viper, so the
	// TRANSVOICE_* environment overrides reach Unmarshal.
	v.SetDefault("phone.enabled", false)
	v.SetDefault("phone.account_sid", "")
	v.SetDefault("phone.auth_token", "")
	v.SetDefault("phone.from_number", "")
	v.SetDefault("phone.base_url", "")
	v.SetDefault("phone.base_ws_url", "")

	v.SetDefault("log_level", "info")
}

// Load reads the configuration from path, merging saved values over
// defaults. A missing file is not an error: defaults are used and the file
// is created on the first Save. Deprecated ElevenLabs models are migrated
// and the migration is persisted immediately.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRANSVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, err
			}
		}
		logger.L.Info("config file not found, using defaults", "path", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.path = path

	if deprecatedTTSModels[cfg.TTS.Model] {
		logger.L.Warn("deprecated TTS model replaced",
			"old", cfg.TTS.Model, "new", DefaultElevenLabsModel)
		cfg.TTS.Model = DefaultElevenLabsModel
		if err := cfg.Save(); err != nil {
			logger.L.Warn("could not persist TTS model migration", "error", err)
		}
	}

	return &cfg, nil
}

// Save writes the current configuration back to the file it was loaded
// from, so settings changed at runtime survive restarts.
func (c *Config) Save() error {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, val := range c.asMap() {
		v.Set(key, val)
	}
	return v.WriteConfigAs(c.path)
}

// SetPath overrides the file Save writes to. Used by tests and by callers
// that load defaults without a file on disk.
func (c *Config) SetPath(path string) { c.path = path }

func (c *Config) asMap() map[string]any {
	return map[string]any{
		"server.host": c.Server.Host,
		"server.port": c.Server.Port,

		"session.language1":            c.Session.Language1,
		"session.language2":            c.Session.Language2,
		"session.max_messages":         c.Session.MaxMessages,
		"session.auto_detect_language": c.Session.AutoDetectLanguage,
		"session.enable_text_input":    c.Session.EnableTextInput,

		"audio.sample_rate":       c.Audio.SampleRate,
		"audio.energy_threshold":  c.Audio.EnergyThreshold,
		"audio.dynamic_energy":    c.Audio.DynamicEnergy,
		"audio.pause_threshold":   c.Audio.PauseThreshold,
		"audio.listen_timeout":    c.Audio.ListenTimeout,
		"audio.phrase_time_limit": c.Audio.PhraseTimeLimit,

		"stt.provider":       c.STT.Provider,
		"stt.google_api_key": c.STT.GoogleAPIKey,
		"stt.openai_api_key": c.STT.OpenAIAPIKey,
		"stt.whisper_model":  c.STT.WhisperModel,

		"translate.timeout_seconds": c.Translate.TimeoutSeconds,

		"tts.enabled":              c.TTS.Enabled,
		"tts.auto_play":            c.TTS.AutoPlay,
		"tts.provider":             c.TTS.Provider,
		"tts.voice_id":             c.TTS.VoiceID,
		"tts.model":                c.TTS.Model,
		"tts.speed":                c.TTS.Speed,
		"tts.volume":               c.TTS.Volume,
		"tts.elevenlabs_api_key":   c.TTS.ElevenLabsAPIKey,
		"tts.google_cloud_api_key": c.TTS.GoogleCloudAPIKey,
		"tts.google_cloud_voice":   c.TTS.GoogleCloudVoice,
		"tts.openai_api_key":       c.TTS.OpenAIAPIKey,
		"tts.openai_voice":         c.TTS.OpenAIVoice,

		"history.db_path": c.History.DBPath,

		"phone.enabled":     c.Phone.Enabled,
		"phone.account_sid": c.Phone.AccountSID,
		"phone.auth_token":  c.Phone.AuthToken,
		"phone.from_number": c.Phone.FromNumber,
		"phone.base_url":    c.Phone.BaseURL,
		"phone.base_ws_url": c.Phone.BaseWSURL,
	}
}

// secretKeys are never logged or returned in plain form by Masked.
var secretKeys = map[string]bool{
	"stt.google_api_key":       true,
	"stt.openai_api_key":       true,
	"tts.elevenlabs_api_key":   true,
	"tts.google_cloud_api_key": true,
	"tts.openai_api_key":       true,
	"phone.auth_token":         true,
}

// Masked returns the configuration as a flat map with secret values
// replaced by their masked form, suitable for logging and for the
// read-only config endpoint.
func (c *Config) Masked() map[string]any {
	out := c.asMap()
	for key := range secretKeys {
		if s, ok := out[key].(string); ok && s != "" {
			out[key] = MaskSecret(s)
		}
	}
	return out
}

// MaskSecret keeps the first and last four characters of a secret and
// stars the rest. Short secrets are fully starred.
func MaskSecret(s string) string {
	if len(s) > 8 {
		return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
	}
	return strings.Repeat("*", len(s))
}
