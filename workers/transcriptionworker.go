// Package workers contains the pipeline stages of a translation session.
// Each worker owns a goroutine started by Start and stopped through its
// context; stages are wired with channels.
package workers

import (
	"context"

	"github.com/pkg/errors"

	"transvoice/audio"
	"transvoice/config"
	"transvoice/logger"
	"transvoice/model"
	"transvoice/stt"
	"transvoice/translate"
)

// TranscriptionWorker turns segmented utterances into transcripts. When
// auto-detection is on it resolves which of the session's two languages
// was spoken, trying the second language if the first hears nothing and
// correcting by text content afterwards.
type TranscriptionWorker struct {
	ctx    context.Context
	cancel context.CancelFunc

	recognizer stt.Recognizer
	In         <-chan audio.Utterance
	Out        chan<- model.Transcript
	Events     chan<- model.ServerEvent

	lang1      string
	lang2      string
	autoDetect bool
}

// NewTranscriptionWorker validates the wiring and creates the worker.
func NewTranscriptionWorker(recognizer stt.Recognizer, lang1, lang2 string, autoDetect bool,
	in <-chan audio.Utterance, out chan<- model.Transcript, events chan<- model.ServerEvent) (*TranscriptionWorker, error) {
	if recognizer == nil {
		return nil, errors.New("recognizer is required")
	}
	if in == nil || out == nil || events == nil {
		return nil, errors.New("transcription worker channels are required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TranscriptionWorker{
		ctx:        ctx,
		cancel:     cancel,
		recognizer: recognizer,
		In:         in,
		Out:        out,
		Events:     events,
		lang1:      lang1,
		lang2:      lang2,
		autoDetect: autoDetect,
	}, nil
}

// Start launches the processing loop.
func (w *TranscriptionWorker) Start() {
	go func() {
		for {
			select {
			case <-w.ctx.Done():
				return
			case utt, ok := <-w.In:
				if !ok {
					return
				}
				w.process(utt)
			}
		}
	}()
}

// Stop signals the processing loop to exit.
func (w *TranscriptionWorker) Stop() {
	w.cancel()
}

func (w *TranscriptionWorker) process(utt audio.Utterance) {
	w.emit(model.ServerEvent{Event: model.EventStatus, Status: "recognizing"})

	text, lang, confidence, err := w.recognize(utt)
	if err != nil {
		if errors.Is(err, stt.ErrNoSpeech) {
			w.emit(model.ServerEvent{Event: model.EventStatus, Status: "no speech recognized"})
			return
		}
		logger.L.Error("recognition failed", "error", err, "provider", w.recognizer.Name())
		w.emit(model.ServerEvent{Event: model.EventError, Error: "speech recognition failed"})
		return
	}

	select {
	case w.Out <- model.Transcript{Text: text, Language: lang, Confidence: confidence}:
	case <-w.ctx.Done():
	}
}

func (w *TranscriptionWorker) emit(ev model.ServerEvent) {
	select {
	case w.Events <- ev:
	case <-w.ctx.Done():
	}
}

// recognize tries the primary language first, falls back to the second
// language when nothing is heard, then lets the text heuristic pick the
// spoken language when it clearly matches one of the two.
func (w *TranscriptionWorker) recognize(utt audio.Utterance) (string, string, float64, error) {
	lang := w.lang1
	res, err := w.recognizer.Recognize(w.ctx, utt.PCM, utt.SampleRate, config.SpeechCode(lang))
	if errors.Is(err, stt.ErrNoSpeech) && w.lang2 != w.lang1 {
		lang = w.lang2
		res, err = w.recognizer.Recognize(w.ctx, utt.PCM, utt.SampleRate, config.SpeechCode(lang))
	}
	if err != nil {
		return "", "", 0, err
	}

	if w.autoDetect {
		if detected := translate.DetectLanguage(res.Transcript); detected == w.lang1 || detected == w.lang2 {
			lang = detected
		}
	}
	return res.Transcript, lang, res.Confidence, nil
}
