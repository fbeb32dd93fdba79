// Package tts provides text-to-speech providers behind a common Provider
// interface. The concrete provider is chosen by configuration, mirroring
// the stt package.
package tts

import (
	"context"

	"github.com/pkg/errors"

	"transvoice/config"
)

// Voice describes one synthesis voice a provider offers.
type Voice struct {
	ID          string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Provider synthesizes speech. Synthesize returns encoded audio (MP3 for
// every current provider); lang picks a default voice when voiceID is
// empty.
type Provider interface {
	Synthesize(ctx context.Context, text, lang, voiceID string) ([]byte, error)
	Voices(ctx context.Context) ([]Voice, error)
	Name() string
}

// APIError carries the upstream status so callers can map it to a
// user-facing message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// New builds the configured provider.
func New(cfg config.TTSConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "elevenlabs":
		return NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.Model, cfg.VoiceID, cfg.Speed), nil
	case "google_cloud":
		return NewGoogleCloud(cfg.GoogleCloudAPIKey, cfg.GoogleCloudVoice, cfg.Speed, cfg.Volume), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("tts: openai provider requires an API key")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIVoice, cfg.Speed), nil
	default:
		return nil, errors.Errorf("tts: unknown provider %q", cfg.Provider)
	}
}
