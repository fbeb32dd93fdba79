package stt

import (
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"transvoice/audio"
)

// WhisperRecognizer transcribes audio through the OpenAI transcription
// API. It is the alternative to the default web-speech provider for users
// who already carry an OpenAI key.
type WhisperRecognizer struct {
	client *openai.Client
	model  string
}

// NewWhisperRecognizer creates the recognizer with the given model
// (defaults to whisper-1).
func NewWhisperRecognizer(apiKey, model string) *WhisperRecognizer {
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperRecognizer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (w *WhisperRecognizer) Name() string { return "whisper" }

// Recognize wraps the utterance in a WAV container and submits it. The
// API takes an ISO-639-1 language hint, so the BCP-47 code is trimmed.
func (w *WhisperRecognizer) Recognize(ctx context.Context, pcm []byte, sampleRate int, lang string) (Result, error) {
	wav := audio.EncodeWAV(pcm, sampleRate)

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
		Language: baseLanguage(lang),
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "stt: whisper transcription")
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Result{}, ErrNoSpeech
	}
	return Result{Transcript: text, Confidence: defaultConfidence}, nil
}

func baseLanguage(lang string) string {
	if i := strings.IndexByte(lang, '-'); i > 0 {
		return lang[:i]
	}
	return lang
}
