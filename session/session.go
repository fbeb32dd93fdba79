// Package session wires one websocket connection to the translation
// pipeline: audio frames are segmented into utterances, recognized,
// translated and answered with chat and audio events.
package session

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"transvoice/audio"
	"transvoice/config"
	"transvoice/history"
	"transvoice/logger"
	"transvoice/model"
	"transvoice/stt"
	"transvoice/translate"
	"transvoice/tts"
	"transvoice/workers"
)

// Deps are the shared services a session borrows from the server.
type Deps struct {
	Config     *config.Config
	Recognizer stt.Recognizer
	Translator workers.Translator
	TTS        tts.Provider // nil when synthesis is disabled
	Store      *history.Store
}

// Session is one live translation conversation bound to a websocket.
type Session struct {
	ID string

	deps Deps
	ws   *websocket.Conn

	lang1      string
	lang2      string
	sampleRate int

	seg           *audio.Segmenter
	transcription *workers.TranscriptionWorker
	translation   *workers.TranslationWorker
	speech        *workers.SpeechWorker

	transcripts chan model.Transcript
	messages    chan model.DialogueMessage
	events      chan model.ServerEvent

	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session for a connected websocket. The pipeline itself is
// built when the client sends its start event.
func New(ws *websocket.Conn, deps Deps) (*Session, error) {
	if ws == nil {
		return nil, errors.New("session: websocket connection is required")
	}
	if deps.Config == nil || deps.Recognizer == nil || deps.Translator == nil || deps.Store == nil {
		return nil, errors.New("session: missing dependencies")
	}
	return &Session{
		ID:          uuid.NewString(),
		deps:        deps,
		ws:          ws,
		transcripts: make(chan model.Transcript, 8),
		messages:    make(chan model.DialogueMessage, 8),
		events:      make(chan model.ServerEvent, 32),
		done:        make(chan struct{}),
	}, nil
}

// Run serves the connection until the client stops or disconnects. It
// owns the read side; a separate goroutine owns all websocket writes.
func (s *Session) Run() {
	defer s.Close()

	go s.writeLoop()

	for {
		_, raw, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.L.Info("websocket closed", "session", s.ID)
			} else {
				logger.L.Warn("websocket read error", "session", s.ID, "error", err)
			}
			return
		}

		var ev model.ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.emit(model.ServerEvent{Event: model.EventError, Error: "invalid event"})
			continue
		}

		switch ev.Event {
		case model.EventStart:
			if err := s.start(ev); err != nil {
				logger.L.Error("session start failed", "session", s.ID, "error", err)
				s.emit(model.ServerEvent{Event: model.EventError, Error: err.Error()})
				return
			}
		case model.EventMedia:
			s.media(ev)
		case model.EventText:
			s.text(ev)
		case model.EventStop:
			logger.L.Info("session stopped by client", "session", s.ID)
			return
		default:
			s.emit(model.ServerEvent{Event: model.EventError, Error: "unknown event: " + ev.Event})
		}
	}
}

// start builds and launches the pipeline with the requested languages.
func (s *Session) start(ev model.ClientEvent) error {
	if s.started.Load() {
		return errors.New("session already started")
	}
	cfg := s.deps.Config

	s.lang1 = pickLanguage(ev.Start.Language1, cfg.Session.Language1)
	s.lang2 = pickLanguage(ev.Start.Language2, cfg.Session.Language2)
	s.sampleRate = ev.Start.SampleRate
	if s.sampleRate <= 0 {
		s.sampleRate = cfg.Audio.SampleRate
	}

	s.seg = audio.NewSegmenter(audio.SegmenterConfig{
		SampleRate:      s.sampleRate,
		EnergyThreshold: cfg.Audio.EnergyThreshold,
		DynamicEnergy:   cfg.Audio.DynamicEnergy,
		PauseThreshold:  cfg.Audio.PauseThreshold,
		PhraseTimeLimit: cfg.Audio.PhraseTimeLimit,
	})

	utterances := make(chan audio.Utterance, 8)
	go s.pumpUtterances(utterances, time.Duration(cfg.Audio.ListenTimeout*float64(time.Second)))

	tw, err := workers.NewTranscriptionWorker(s.deps.Recognizer, s.lang1, s.lang2,
		cfg.Session.AutoDetectLanguage, utterances, s.transcripts, s.events)
	if err != nil {
		return err
	}

	var synthIn chan model.DialogueMessage
	if s.deps.TTS != nil && cfg.TTS.Enabled && cfg.TTS.AutoPlay {
		synthIn = s.messages
		sw, err := workers.NewSpeechWorker(s.deps.TTS, s.messages, s.events)
		if err != nil {
			return err
		}
		s.speech = sw
	}

	lw, err := workers.NewTranslationWorker(s.deps.Translator, s.deps.Store, s.ID, s.lang1, s.lang2,
		time.Duration(cfg.Translate.TimeoutSeconds)*time.Second, s.transcripts, synthIn, s.events)
	if err != nil {
		return err
	}

	s.transcription = tw
	s.translation = lw
	s.transcription.Start()
	s.translation.Start()
	if s.speech != nil {
		s.speech.Start()
	}
	s.started.Store(true)

	logger.L.Info("session started", "session", s.ID,
		"language1", s.lang1, "language2", s.lang2, "sample_rate", s.sampleRate)
	s.emit(model.ServerEvent{Event: model.EventStatus, Status: "session started: " + s.ID})
	return nil
}

func (s *Session) media(ev model.ClientEvent) {
	if !s.started.Load() {
		s.emit(model.ServerEvent{Event: model.EventError, Error: "session not started"})
		return
	}
	chunk, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
	if err != nil {
		s.emit(model.ServerEvent{Event: model.EventError, Error: "invalid media payload"})
		return
	}
	s.seg.Write(chunk)
}

func (s *Session) text(ev model.ClientEvent) {
	if !s.started.Load() {
		s.emit(model.ServerEvent{Event: model.EventError, Error: "session not started"})
		return
	}
	if !s.deps.Config.Session.EnableTextInput {
		s.emit(model.ServerEvent{Event: model.EventError, Error: "text input is disabled"})
		return
	}
	s.InjectText(ev.Text.Speaker, ev.Text.Content, ev.Text.Language)
}

// InjectText feeds manual text into the pipeline as if it were spoken.
// Unknown language falls back to content detection, then to language1.
func (s *Session) InjectText(speaker, content, lang string) {
	if content == "" {
		return
	}
	if lang == "" {
		lang = translate.DetectLanguage(content)
	}
	if lang != s.lang1 && lang != s.lang2 {
		lang = s.lang1
	}
	t := model.Transcript{
		Text:       content,
		Language:   lang,
		Confidence: 1.0,
		Manual:     true,
		Speaker:    speaker,
	}
	select {
	case s.transcripts <- t:
	case <-s.done:
	}
}

// Started reports whether the pipeline is running.
func (s *Session) Started() bool { return s.started.Load() }

// Languages returns the session's configured language pair.
func (s *Session) Languages() (string, string) { return s.lang1, s.lang2 }

// pumpUtterances forwards segmented utterances to the recognition stage
// and reports a quiet line when nothing is heard for the listen timeout.
func (s *Session) pumpUtterances(out chan<- audio.Utterance, listenTimeout time.Duration) {
	defer close(out)
	if listenTimeout <= 0 {
		listenTimeout = 10 * time.Second
	}
	timer := time.NewTimer(listenTimeout)
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case utt, ok := <-s.seg.Utterances:
			if !ok {
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(listenTimeout)
			select {
			case out <- utt:
			case <-s.done:
				return
			}
		case <-timer.C:
			s.emit(model.ServerEvent{Event: model.EventStatus, Status: "listening timeout, still waiting for speech"})
			timer.Reset(listenTimeout)
		}
	}
}

// writeLoop is the only goroutine writing to the websocket.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			if err := s.ws.WriteJSON(ev); err != nil {
				logger.L.Warn("websocket write error", "session", s.ID, "error", err)
				return
			}
		}
	}
}

func (s *Session) emit(ev model.ServerEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Close releases the pipeline and the connection. Safe to call more than
// once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.seg != nil {
			s.seg.Close()
		}
		if s.transcription != nil {
			s.transcription.Stop()
		}
		if s.translation != nil {
			s.translation.Stop()
		}
		if s.speech != nil {
			s.speech.Stop()
		}
		s.ws.Close()
		logger.L.Info("session closed", "session", s.ID)
	})
}

func pickLanguage(requested, fallback string) string {
	if requested != "" && config.IsSupported(requested) {
		return requested
	}
	return fallback
}
