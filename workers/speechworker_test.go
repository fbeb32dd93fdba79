package workers

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transvoice/model"
	"transvoice/tts"
)

type fakeProvider struct {
	delays   map[string]time.Duration
	failText string
}

func (f *fakeProvider) Synthesize(ctx context.Context, text, lang, voiceID string) ([]byte, error) {
	if d := f.delays[text]; d > 0 {
		time.Sleep(d)
	}
	if text == f.failText {
		return nil, errors.New("synthesis exploded")
	}
	return []byte("mp3:" + text), nil
}

func (f *fakeProvider) Voices(ctx context.Context) ([]tts.Voice, error) { return nil, nil }
func (f *fakeProvider) Name() string                                   { return "fake" }

func TestSpeechWorkerEmitsInOrder(t *testing.T) {
	in := make(chan model.DialogueMessage, 2)
	events := make(chan model.ServerEvent, 8)

	w, err := NewSpeechWorker(&fakeProvider{
		delays: map[string]time.Duration{"slow": 100 * time.Millisecond},
	}, in, events)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	in <- model.DialogueMessage{ID: "1", TranslatedText: "slow", TargetLanguage: "en"}
	in <- model.DialogueMessage{ID: "2", TranslatedText: "fast", TargetLanguage: "ru"}

	// The second synthesis finishes first; delivery still follows message
	// order.
	ev := waitEvent(t, events)
	require.Equal(t, model.EventAudio, ev.Event)
	require.NotNil(t, ev.Audio)
	assert.Equal(t, "1", ev.Audio.MessageID)
	assert.Equal(t, "audio/mpeg", ev.Audio.MIME)
	audio, err := base64.StdEncoding.DecodeString(ev.Audio.Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3:slow"), audio)

	ev = waitEvent(t, events)
	require.Equal(t, model.EventAudio, ev.Event)
	assert.Equal(t, "2", ev.Audio.MessageID)
}

func TestSpeechWorkerFailureBecomesStatus(t *testing.T) {
	in := make(chan model.DialogueMessage, 1)
	events := make(chan model.ServerEvent, 8)

	w, err := NewSpeechWorker(&fakeProvider{failText: "boom"}, in, events)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	in <- model.DialogueMessage{ID: "1", TranslatedText: "boom"}

	ev := waitEvent(t, events)
	assert.Equal(t, model.EventStatus, ev.Event)
	assert.Contains(t, ev.Status, "synthesis exploded")
}

func TestSpeechWorkerRequiresProvider(t *testing.T) {
	_, err := NewSpeechWorker(nil, make(chan model.DialogueMessage), make(chan model.ServerEvent))
	assert.Error(t, err)
}
