package workers

import (
	"context"
	"encoding/base64"

	"github.com/pkg/errors"

	"transvoice/logger"
	"transvoice/model"
	"transvoice/queue"
	"transvoice/tts"
)

type synthJob struct {
	msg  model.DialogueMessage
	done chan synthResult
}

type synthResult struct {
	audio []byte
	err   error
}

// SpeechWorker synthesizes translated messages. Synthesis runs
// concurrently per message but audio events are emitted strictly in
// message order, through a FIFO of in-flight jobs.
type SpeechWorker struct {
	ctx    context.Context
	cancel context.CancelFunc

	provider tts.Provider
	In       <-chan model.DialogueMessage
	Events   chan<- model.ServerEvent

	pending *queue.Queue[*synthJob]
	notify  chan struct{}
}

// NewSpeechWorker validates the wiring and creates the worker.
func NewSpeechWorker(provider tts.Provider, in <-chan model.DialogueMessage, events chan<- model.ServerEvent) (*SpeechWorker, error) {
	if provider == nil {
		return nil, errors.New("tts provider is required")
	}
	if in == nil || events == nil {
		return nil, errors.New("speech worker channels are required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SpeechWorker{
		ctx:      ctx,
		cancel:   cancel,
		provider: provider,
		In:       in,
		Events:   events,
		pending:  queue.New[*synthJob](),
		notify:   make(chan struct{}, 1),
	}, nil
}

// Start launches the intake and emitter loops.
func (w *SpeechWorker) Start() {
	go w.intake()
	go w.emit()
}

// Stop signals both loops to exit.
func (w *SpeechWorker) Stop() {
	w.cancel()
}

func (w *SpeechWorker) intake() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg, ok := <-w.In:
			if !ok {
				return
			}
			job := &synthJob{msg: msg, done: make(chan synthResult, 1)}
			w.pending.Enqueue(job)
			select {
			case w.notify <- struct{}{}:
			default:
			}
			go w.synthesize(job)
		}
	}
}

func (w *SpeechWorker) synthesize(job *synthJob) {
	// The translation is spoken, so the voice follows the target language.
	audio, err := w.provider.Synthesize(w.ctx, job.msg.TranslatedText, job.msg.TargetLanguage, "")
	job.done <- synthResult{audio: audio, err: err}
}

func (w *SpeechWorker) emit() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.notify:
			for {
				job, ok := w.pending.Dequeue()
				if !ok {
					break
				}
				select {
				case <-w.ctx.Done():
					return
				case res := <-job.done:
					w.deliver(job.msg, res)
				}
			}
		}
	}
}

func (w *SpeechWorker) deliver(msg model.DialogueMessage, res synthResult) {
	if res.err != nil {
		// Synthesis failures degrade to silent messages, never end the
		// session.
		logger.L.Error("speech synthesis failed", "error", res.err, "provider", w.provider.Name())
		w.emitEvent(model.ServerEvent{Event: model.EventStatus, Status: res.err.Error()})
		return
	}
	w.emitEvent(model.ServerEvent{
		Event: model.EventAudio,
		Audio: &model.AudioPayload{
			MessageID: msg.ID,
			MIME:      "audio/mpeg",
			Payload:   base64.StdEncoding.EncodeToString(res.audio),
		},
	})
}

func (w *SpeechWorker) emitEvent(ev model.ServerEvent) {
	select {
	case w.Events <- ev:
	case <-w.ctx.Done():
	}
}
