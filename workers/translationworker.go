package workers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"transvoice/history"
	"transvoice/logger"
	"transvoice/model"
)

// Translator is the translation dependency of the worker.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// TranslationWorker routes transcripts between the session's two
// languages: speech in language1 is attributed to Speaker 1 and
// translated into language2, and vice versa. Every message is persisted
// and emitted even when translation fails.
type TranslationWorker struct {
	ctx    context.Context
	cancel context.CancelFunc

	translator Translator
	store      *history.Store
	In         <-chan model.Transcript
	Out        chan<- model.DialogueMessage
	Events     chan<- model.ServerEvent

	sessionID string
	lang1     string
	lang2     string
	timeout   time.Duration
}

// NewTranslationWorker validates the wiring and creates the worker. Out
// may be nil when no speech synthesis stage follows.
func NewTranslationWorker(translator Translator, store *history.Store, sessionID, lang1, lang2 string,
	timeout time.Duration, in <-chan model.Transcript, out chan<- model.DialogueMessage,
	events chan<- model.ServerEvent) (*TranslationWorker, error) {
	if translator == nil {
		return nil, errors.New("translator is required")
	}
	if store == nil {
		return nil, errors.New("history store is required")
	}
	if in == nil || events == nil {
		return nil, errors.New("translation worker channels are required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TranslationWorker{
		ctx:        ctx,
		cancel:     cancel,
		translator: translator,
		store:      store,
		In:         in,
		Out:        out,
		Events:     events,
		sessionID:  sessionID,
		lang1:      lang1,
		lang2:      lang2,
		timeout:    timeout,
	}, nil
}

// Start launches the processing loop.
func (w *TranslationWorker) Start() {
	go func() {
		for {
			select {
			case <-w.ctx.Done():
				return
			case t, ok := <-w.In:
				if !ok {
					return
				}
				w.process(t)
			}
		}
	}()
}

// Stop signals the processing loop to exit.
func (w *TranslationWorker) Stop() {
	w.cancel()
}

func (w *TranslationWorker) process(t model.Transcript) {
	speaker, target := w.route(t)

	msg := model.DialogueMessage{
		ID:             uuid.NewString(),
		SessionID:      w.sessionID,
		Speaker:        speaker,
		Language:       t.Language,
		TargetLanguage: target,
		OriginalText:   t.Text,
		Timestamp:      time.Now(),
		Confidence:     t.Confidence,
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	translated, err := w.translator.Translate(ctx, t.Text, t.Language, target)
	cancel()
	if err != nil {
		// The message is still recorded and shown with its original text.
		logger.L.Error("translation failed", "error", err, "session", w.sessionID)
		w.emit(model.ServerEvent{Event: model.EventError, Error: "translation failed"})
	} else {
		msg.TranslatedText = translated
	}

	w.store.Save(msg)

	w.emit(model.ServerEvent{Event: model.EventMessage, Message: &msg})
	if w.Out != nil && msg.TranslatedText != "" {
		select {
		case w.Out <- msg:
		case <-w.ctx.Done():
		}
	}
}

func (w *TranslationWorker) emit(ev model.ServerEvent) {
	select {
	case w.Events <- ev:
	case <-w.ctx.Done():
	}
}

// route attributes a transcript to a speaker side and picks the target
// language. Manual input may name its speaker explicitly.
func (w *TranslationWorker) route(t model.Transcript) (speaker, target string) {
	switch {
	case t.Speaker == model.SpeakerOne:
		return model.SpeakerOne, w.lang2
	case t.Speaker == model.SpeakerTwo:
		return model.SpeakerTwo, w.lang1
	case t.Language == w.lang2:
		return model.SpeakerTwo, w.lang1
	default:
		return model.SpeakerOne, w.lang2
	}
}
