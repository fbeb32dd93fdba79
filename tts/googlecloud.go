package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const googleCloudEndpoint = "https://texttospeech.googleapis.com"

// GoogleCloud synthesizes speech through the Google Cloud TTS REST API
// using an API key.
type GoogleCloud struct {
	apiKey       string
	defaultVoice string
	speed        float64
	volume       int
	endpoint     string
	client       *http.Client
}

// GoogleCloudOption configures a GoogleCloud provider.
type GoogleCloudOption func(*GoogleCloud)

// WithGoogleCloudEndpoint overrides the API base URL. Used by tests.
func WithGoogleCloudEndpoint(endpoint string) GoogleCloudOption {
	return func(g *GoogleCloud) { g.endpoint = strings.TrimRight(endpoint, "/") }
}

// NewGoogleCloud creates the provider. Volume is 0-100 and is converted
// to a dB gain around the 50 midpoint.
func NewGoogleCloud(apiKey, defaultVoice string, speed float64, volume int, opts ...GoogleCloudOption) *GoogleCloud {
	if defaultVoice == "" {
		defaultVoice = "ru-RU-Standard-A"
	}
	if speed <= 0 {
		speed = 1.0
	}
	if volume <= 0 {
		volume = 80
	}
	g := &GoogleCloud{
		apiKey:       apiKey,
		defaultVoice: defaultVoice,
		speed:        speed,
		volume:       volume,
		endpoint:     googleCloudEndpoint,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GoogleCloud) Name() string { return "google_cloud" }

type googleCloudRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
		VolumeGainDb  float64 `json:"volumeGainDb"`
	} `json:"audioConfig"`
}

// Synthesize returns MP3 audio. The language code is derived from the
// voice name ("ru-RU-Standard-A" -> "ru-RU").
func (g *GoogleCloud) Synthesize(ctx context.Context, text, lang, voiceID string) ([]byte, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return nil, errors.New("google_cloud: API key is not set")
	}
	voice := voiceID
	if voice == "" {
		voice = g.defaultVoice
	}

	var body googleCloudRequest
	body.Input.Text = text
	body.Voice.LanguageCode = languageCodeFromVoice(voice)
	body.Voice.Name = voice
	body.AudioConfig.AudioEncoding = "MP3"
	body.AudioConfig.SpeakingRate = g.speed
	body.AudioConfig.VolumeGainDb = float64(g.volume-50) * 0.5

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "google_cloud: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.endpoint+"/v1/text:synthesize?"+url.Values{"key": {g.apiKey}}.Encode(),
		bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "google_cloud: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "google_cloud: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.statusError(resp)
	}
	var out struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "google_cloud: decode response")
	}
	if out.AudioContent == "" {
		return nil, errors.New("google_cloud: empty audio content")
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, errors.Wrap(err, "google_cloud: decode audio")
	}
	return audio, nil
}

func (g *GoogleCloud) statusError(resp *http.Response) error {
	message := googleErrorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusForbidden:
		if strings.Contains(message, "not been used") || strings.Contains(message, "disabled") {
			return &APIError{Status: resp.StatusCode,
				Message: "google_cloud: the Text-to-Speech API is not enabled for this project"}
		}
		return &APIError{Status: resp.StatusCode, Message: "google_cloud: access denied: " + message}
	case http.StatusUnauthorized:
		return &APIError{Status: resp.StatusCode, Message: "google_cloud: invalid API key"}
	default:
		if message == "" {
			message = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: "google_cloud: " + message}
	}
}

func googleErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var out struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return out.Error.Message
}

// languageCodeFromVoice derives "ru-RU" from "ru-RU-Standard-A". Voices
// without a locale prefix fall back to en-US.
func languageCodeFromVoice(voice string) string {
	parts := strings.Split(voice, "-")
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}

// Voices lists available voices, normalized to the common shape.
func (g *GoogleCloud) Voices(ctx context.Context) ([]Voice, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return nil, errors.New("google_cloud: API key is not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.endpoint+"/v1/voices?"+url.Values{"key": {g.apiKey}}.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "google_cloud: build request")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "google_cloud: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.statusError(resp)
	}
	var out struct {
		Voices []struct {
			Name          string   `json:"name"`
			SSMLGender    string   `json:"ssmlGender"`
			LanguageCodes []string `json:"languageCodes"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "google_cloud: decode voices")
	}
	voices := make([]Voice, 0, len(out.Voices))
	for _, v := range out.Voices {
		voices = append(voices, Voice{
			ID:          v.Name,
			Name:        v.Name,
			Description: v.SSMLGender + " - " + strings.Join(v.LanguageCodes, ", "),
		})
	}
	return voices, nil
}
