package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "audio/l16; rate=16000", r.Header.Get("Content-Type"))
		assert.Equal(t, "ru-RU", r.URL.Query().Get("lang"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		// The endpoint streams an empty placeholder line first.
		w.Write([]byte(`{"result":[]}` + "\n"))
		w.Write([]byte(`{"result":[{"alternative":[{"transcript":"привет мир","confidence":0.92}],"final":true}]}` + "\n"))
	}))
	defer srv.Close()

	g := NewGoogleRecognizer("test-key", WithGoogleEndpoint(srv.URL))
	res, err := g.Recognize(context.Background(), make([]byte, 320), 16000, "ru-RU")
	require.NoError(t, err)
	assert.Equal(t, "привет мир", res.Transcript)
	assert.Equal(t, 0.92, res.Confidence)
}

func TestGoogleRecognizeDefaultConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[{"alternative":[{"transcript":"hello"}],"final":true}]}` + "\n"))
	}))
	defer srv.Close()

	g := NewGoogleRecognizer("", WithGoogleEndpoint(srv.URL))
	res, err := g.Recognize(context.Background(), make([]byte, 320), 16000, "en-US")
	require.NoError(t, err)
	assert.Equal(t, defaultConfidence, res.Confidence)
}

func TestGoogleRecognizeNoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[]}` + "\n"))
	}))
	defer srv.Close()

	g := NewGoogleRecognizer("", WithGoogleEndpoint(srv.URL))
	_, err := g.Recognize(context.Background(), make([]byte, 320), 16000, "en-US")
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestGoogleRecognizeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGoogleRecognizer("", WithGoogleEndpoint(srv.URL))
	_, err := g.Recognize(context.Background(), make([]byte, 320), 16000, "en-US")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "403"))
}
