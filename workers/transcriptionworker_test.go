package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transvoice/audio"
	"transvoice/model"
	"transvoice/stt"
)

type fakeRecognizer struct {
	results map[string]stt.Result // keyed by BCP-47 language code
}

func (f *fakeRecognizer) Recognize(ctx context.Context, pcm []byte, sampleRate int, lang string) (stt.Result, error) {
	if r, ok := f.results[lang]; ok {
		return r, nil
	}
	return stt.Result{}, stt.ErrNoSpeech
}

func (f *fakeRecognizer) Name() string { return "fake" }

func startTranscription(t *testing.T, rec stt.Recognizer) (chan audio.Utterance, chan model.Transcript, chan model.ServerEvent, *TranscriptionWorker) {
	t.Helper()
	in := make(chan audio.Utterance, 1)
	out := make(chan model.Transcript, 1)
	events := make(chan model.ServerEvent, 8)
	w, err := NewTranscriptionWorker(rec, "ru", "en", true, in, out, events)
	require.NoError(t, err)
	w.Start()
	return in, out, events, w
}

func TestTranscriptionWorkerPrimaryLanguage(t *testing.T) {
	rec := &fakeRecognizer{results: map[string]stt.Result{
		"ru-RU": {Transcript: "привет мир", Confidence: 0.9},
	}}
	in, out, events, w := startTranscription(t, rec)
	defer w.Stop()

	in <- audio.Utterance{PCM: make([]byte, 320), SampleRate: 16000}

	ev := waitEvent(t, events)
	assert.Equal(t, model.EventStatus, ev.Event)
	assert.Equal(t, "recognizing", ev.Status)

	select {
	case tr := <-out:
		assert.Equal(t, "привет мир", tr.Text)
		assert.Equal(t, "ru", tr.Language)
		assert.Equal(t, 0.9, tr.Confidence)
	case <-time.After(time.Second):
		t.Fatal("no transcript produced")
	}
}

func TestTranscriptionWorkerFallsBackToSecondLanguage(t *testing.T) {
	rec := &fakeRecognizer{results: map[string]stt.Result{
		"en-US": {Transcript: "the weather is nice", Confidence: 0.85},
	}}
	in, out, events, w := startTranscription(t, rec)
	defer w.Stop()

	in <- audio.Utterance{PCM: make([]byte, 320), SampleRate: 16000}
	waitEvent(t, events) // recognizing

	select {
	case tr := <-out:
		assert.Equal(t, "the weather is nice", tr.Text)
		assert.Equal(t, "en", tr.Language)
	case <-time.After(time.Second):
		t.Fatal("no transcript produced")
	}
}

func TestTranscriptionWorkerNoSpeech(t *testing.T) {
	in, out, events, w := startTranscription(t, &fakeRecognizer{})
	defer w.Stop()

	in <- audio.Utterance{PCM: make([]byte, 320), SampleRate: 16000}

	waitEvent(t, events) // recognizing
	ev := waitEvent(t, events)
	assert.Equal(t, model.EventStatus, ev.Event)
	assert.Equal(t, "no speech recognized", ev.Status)

	select {
	case <-out:
		t.Fatal("no transcript expected for silent audio")
	case <-time.After(50 * time.Millisecond):
	}
}
