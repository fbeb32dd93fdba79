package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transvoice/config"
	"transvoice/history"
	"transvoice/model"
	"transvoice/tts"
)

type fakeTranslator struct {
	fail bool
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if f.fail {
		return "", errors.New("upstream down")
	}
	return "[" + target + "] " + text, nil
}

type fakeTTS struct{}

func (f *fakeTTS) Synthesize(ctx context.Context, text, lang, voiceID string) ([]byte, error) {
	return []byte("mp3:" + text), nil
}

func (f *fakeTTS) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{{ID: "v1", Name: "Test"}}, nil
}

func (f *fakeTTS) Name() string { return "fake" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	cfg.History.DBPath = ""
	cfg.TTS.Enabled = false
	return cfg
}

func testServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithTranslator(&fakeTranslator{}), WithStore(history.NewStore(""))}, opts...)
	srv, err := New(cfg, opts...)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	srv := testServer(t, testConfig(t))
	resp := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestTranslateEndpoint(t *testing.T) {
	srv := testServer(t, testConfig(t))

	resp := doJSON(t, srv, http.MethodPost, "/translate",
		map[string]string{"text": "привет", "source": "ru", "target": "en"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "[en] привет", body["translated_text"])

	resp = doJSON(t, srv, http.MethodPost, "/translate",
		map[string]string{"text": "hi", "source": "en", "target": "jp"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, srv, http.MethodPost, "/translate",
		map[string]string{"source": "en", "target": "ru"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestTranslateEndpointUpstreamFailure(t *testing.T) {
	srv := testServer(t, testConfig(t), WithTranslator(&fakeTranslator{fail: true}))
	resp := doJSON(t, srv, http.MethodPost, "/translate",
		map[string]string{"text": "hi", "source": "en", "target": "ru"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()
}

func TestMessagesEndpoint(t *testing.T) {
	cfg := testConfig(t)
	srv := testServer(t, cfg)

	// Text input disabled by default.
	resp := doJSON(t, srv, http.MethodPost, "/messages",
		map[string]string{"session_id": "nope", "content": "hi"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	cfg.Session.EnableTextInput = true
	resp = doJSON(t, srv, http.MethodPost, "/messages",
		map[string]string{"session_id": "nope", "content": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSpeakAndVoices(t *testing.T) {
	srv := testServer(t, testConfig(t), WithTTS(&fakeTTS{}))

	resp := doJSON(t, srv, http.MethodPost, "/speak", map[string]string{"text": "hi", "language": "en"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	audio, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3:hi"), audio)

	resp = doJSON(t, srv, http.MethodGet, "/voices", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "fake", body["provider"])
}

func TestSpeakWithoutTTS(t *testing.T) {
	srv := testServer(t, testConfig(t))
	resp := doJSON(t, srv, http.MethodPost, "/speak", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestHistoryEndpoints(t *testing.T) {
	store := history.NewStore("")
	srv := testServer(t, testConfig(t), WithStore(store))

	store.Save(model.DialogueMessage{
		ID: "m1", SessionID: "s1", Speaker: model.SpeakerOne,
		Language: "ru", TargetLanguage: "en",
		OriginalText: "привет", TranslatedText: "hello",
		Timestamp: time.Now(), Confidence: 0.9,
	})

	resp := doJSON(t, srv, http.MethodGet, "/history/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Len(t, body["messages"], 1)

	resp = doJSON(t, srv, http.MethodGet, "/history/s1/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	transcript, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(transcript), "привет")

	resp = doJSON(t, srv, http.MethodGet, "/history/s1/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, srv, http.MethodDelete, "/history/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Empty(t, store.List("s1", 0))
}

func TestConfigEndpointMasksSecrets(t *testing.T) {
	cfg := testConfig(t)
	cfg.TTS.ElevenLabsAPIKey = "sk_0123456789abcdef"
	srv := testServer(t, cfg)

	resp := doJSON(t, srv, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk_0123456789abcdef")
	assert.Contains(t, string(raw), config.MaskSecret("sk_0123456789abcdef"))
}

func TestConfigUpdateConcurrentWithTraffic(t *testing.T) {
	cfg := testConfig(t)
	srv := testServer(t, cfg)

	// require must stay on the test goroutine, so the workers build their
	// requests by hand and only close what they get back.
	do := func(method, path string, body []byte) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if resp, err := srv.App().Test(req, 5000); err == nil {
			resp.Body.Close()
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		update := []byte(`{"enable_text_input":true,"pause_threshold":0.5}`)
		if i%2 == 0 {
			update = []byte(`{"enable_text_input":false,"pause_threshold":1.5}`)
		}
		wg.Add(1)
		go func(update []byte) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				do(http.MethodPut, "/config", update)
			}
		}(update)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				do(http.MethodPost, "/messages", []byte(`{"session_id":"nope","content":"hi"}`))
				do(http.MethodGet, "/config", nil)
			}
		}()
	}
	wg.Wait()
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://example.com/twiml", joinURL("https://example.com", "twiml"))
	assert.Equal(t, "https://example.com/twiml", joinURL("https://example.com/", "twiml"))
	assert.Equal(t, "wss://example.com/phone-stream", joinURL("wss://example.com/", "phone-stream"))
}

func TestConfigUpdatePersists(t *testing.T) {
	cfg := testConfig(t)
	srv := testServer(t, cfg)

	resp := doJSON(t, srv, http.MethodPut, "/config",
		map[string]any{"language1": "es", "tts_auto_play": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "es", cfg.Session.Language1)
	assert.True(t, cfg.TTS.AutoPlay)

	resp = doJSON(t, srv, http.MethodPut, "/config", map[string]any{"language1": "jp"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
