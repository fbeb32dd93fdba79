// Package stt provides speech-to-text providers behind a common
// Recognizer interface, selected by configuration.
package stt

import (
	"context"

	"github.com/pkg/errors"

	"transvoice/config"
)

// ErrNoSpeech is returned when the provider could not find speech in the
// audio. Callers treat it as "try another language", not a failure.
var ErrNoSpeech = errors.New("no speech recognized")

// Result is one recognition outcome.
type Result struct {
	Transcript string
	Confidence float64
}

// Recognizer transcribes one utterance of PCM16 mono audio. lang is a
// BCP-47 code such as "ru-RU".
type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte, sampleRate int, lang string) (Result, error)
	Name() string
}

// New builds the configured recognizer.
func New(cfg config.STTConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "", "google":
		return NewGoogleRecognizer(cfg.GoogleAPIKey), nil
	case "whisper":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("stt: whisper provider requires an OpenAI API key")
		}
		return NewWhisperRecognizer(cfg.OpenAIAPIKey, cfg.WhisperModel), nil
	default:
		return nil, errors.Errorf("stt: unknown provider %q", cfg.Provider)
	}
}
