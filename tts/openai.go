package tts

import (
	"context"
	"io"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI synthesizes speech through the OpenAI audio API. Voice selection
// ignores the language: the API voices are multilingual.
type OpenAI struct {
	client *openai.Client
	voice  string
	speed  float64
}

// NewOpenAI creates the provider with one of the built-in voices
// (defaults to alloy).
func NewOpenAI(apiKey, voice string, speed float64) *OpenAI {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	if speed <= 0 {
		speed = 1.0
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		voice:  voice,
		speed:  speed,
	}
}

func (o *OpenAI) Name() string { return "openai" }

// Synthesize returns MP3 audio for the text.
func (o *OpenAI) Synthesize(ctx context.Context, text, lang, voiceID string) ([]byte, error) {
	voice := o.voice
	if voiceID != "" {
		voice = voiceID
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          o.speed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai tts: create speech")
	}
	defer resp.Close()
	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, errors.Wrap(err, "openai tts: read audio")
	}
	return audio, nil
}

// Voices returns the fixed set of voices the audio API supports.
func (o *OpenAI) Voices(ctx context.Context) ([]Voice, error) {
	names := []openai.SpeechVoice{
		openai.VoiceAlloy, openai.VoiceEcho, openai.VoiceFable,
		openai.VoiceOnyx, openai.VoiceNova, openai.VoiceShimmer,
	}
	voices := make([]Voice, 0, len(names))
	for _, n := range names {
		voices = append(voices, Voice{ID: string(n), Name: string(n), Description: "OpenAI built-in voice"})
	}
	return voices, nil
}
