package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"transvoice/config"
)

const elevenLabsEndpoint = "https://api.elevenlabs.io"

// ElevenLabs synthesizes speech through the ElevenLabs REST API.
type ElevenLabs struct {
	apiKey   string
	model    string
	voiceID  string
	speed    float64
	endpoint string
	client   *http.Client
}

// ElevenLabsOption configures an ElevenLabs provider.
type ElevenLabsOption func(*ElevenLabs)

// WithElevenLabsEndpoint overrides the API base URL. Used by tests.
func WithElevenLabsEndpoint(endpoint string) ElevenLabsOption {
	return func(e *ElevenLabs) { e.endpoint = strings.TrimRight(endpoint, "/") }
}

// NewElevenLabs creates the provider. Deprecated free-tier models are
// silently replaced by the current default model.
func NewElevenLabs(apiKey, model, voiceID string, speed float64, opts ...ElevenLabsOption) *ElevenLabs {
	if model == "" || model == "eleven_multilingual_v1" || model == "eleven_monolingual_v1" {
		model = config.DefaultElevenLabsModel
	}
	if speed <= 0 {
		speed = 1.0
	}
	e := &ElevenLabs{
		apiKey:   apiKey,
		model:    model,
		voiceID:  voiceID,
		speed:    speed,
		endpoint: elevenLabsEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

// Model returns the effective TTS model after deprecation migration.
func (e *ElevenLabs) Model() string { return e.model }

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Synthesize returns MP3 audio for the text. The voice falls back to the
// per-language default, then to the configured voice.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, lang, voiceID string) ([]byte, error) {
	key := strings.TrimSpace(e.apiKey)
	if key == "" {
		return nil, errors.New("elevenlabs: API key is not set")
	}
	if !strings.HasPrefix(key, "sk_") {
		return nil, errors.New(`elevenlabs: invalid key format (must start with "sk_")`)
	}
	if voiceID == "" {
		voiceID = config.VoiceFor(lang, e.voiceID)
	}

	payload, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: e.model,
		VoiceSettings: elevenLabsSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
			Speed:           e.speed,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs: marshal payload")
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.endpoint, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs: build request")
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", key)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs: read audio")
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs: empty response body")
	}
	return audio, nil
}

// statusError maps upstream status codes to the messages surfaced to the
// chat as status events.
func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &APIError{Status: resp.StatusCode, Message: "elevenlabs: invalid API key or retired model"}
	case http.StatusPaymentRequired:
		return &APIError{Status: resp.StatusCode, Message: "elevenlabs: free-tier character quota exhausted"}
	case http.StatusUnprocessableEntity:
		return &APIError{Status: resp.StatusCode, Message: "elevenlabs: request validation failed: " + readErrorDetail(resp.Body)}
	case http.StatusTooManyRequests:
		return &APIError{Status: resp.StatusCode, Message: "elevenlabs: rate limited, try again later"}
	default:
		detail := readErrorDetail(resp.Body)
		if detail == "" {
			detail = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: "elevenlabs: " + detail}
	}
}

// readErrorDetail digs the human message out of the error body, which is
// either {"detail":"..."} or {"detail":{"message":"..."}}.
func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var wrapper struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.Detail == nil {
		return strings.TrimSpace(string(raw))
	}
	var asString string
	if err := json.Unmarshal(wrapper.Detail, &asString); err == nil {
		return asString
	}
	var asObject struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(wrapper.Detail, &asObject); err == nil && asObject.Message != "" {
		return asObject.Message
	}
	return strings.TrimSpace(string(wrapper.Detail))
}

// Voices lists the voices available to the account.
func (e *ElevenLabs) Voices(ctx context.Context) ([]Voice, error) {
	key := strings.TrimSpace(e.apiKey)
	if key == "" {
		return nil, errors.New("elevenlabs: API key is not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/v1/voices", nil)
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs: build request")
	}
	req.Header.Set("xi-api-key", key)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var out struct {
		Voices []struct {
			VoiceID string            `json:"voice_id"`
			Name    string            `json:"name"`
			Labels  map[string]string `json:"labels"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "elevenlabs: decode voices")
	}
	voices := make([]Voice, 0, len(out.Voices))
	for _, v := range out.Voices {
		voices = append(voices, Voice{
			ID:          v.VoiceID,
			Name:        v.Name,
			Description: v.Labels["description"],
		})
	}
	return voices, nil
}
