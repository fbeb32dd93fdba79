// Package server exposes the translation pipeline over HTTP and
// websockets.
package server

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"transvoice/config"
	"transvoice/history"
	"transvoice/logger"
	"transvoice/session"
	"transvoice/stt"
	"transvoice/translate"
	"transvoice/tts"
	"transvoice/workers"
)

// Server owns the fiber app and the shared pipeline services.
type Server struct {
	cfg        *config.Config
	cfgMu      sync.RWMutex // guards cfg against runtime settings updates
	app        *fiber.App
	store      *history.Store
	registry   *session.Registry
	recognizer stt.Recognizer
	translator workers.Translator
	tts        tts.Provider
}

// snapshot returns a copy of the current configuration. Sessions keep the
// settings they started with while PUT /config mutates the original.
func (s *Server) snapshot() config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return *s.cfg
}

// Option replaces one of the server's services, mainly for tests.
type Option func(*Server)

// WithTranslator overrides the translation service.
func WithTranslator(t workers.Translator) Option {
	return func(s *Server) { s.translator = t }
}

// WithRecognizer overrides the speech recognizer.
func WithRecognizer(r stt.Recognizer) Option {
	return func(s *Server) { s.recognizer = r }
}

// WithTTS overrides the speech synthesis provider.
func WithTTS(p tts.Provider) Option {
	return func(s *Server) { s.tts = p }
}

// WithStore overrides the history store.
func WithStore(st *history.Store) Option {
	return func(s *Server) { s.store = st }
}

// New assembles the server from configuration. TTS setup failures are
// downgraded to a warning: the chat keeps working without audio.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		registry: session.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = history.NewStore(cfg.History.DBPath)
	}
	if s.translator == nil {
		s.translator = translate.New(time.Duration(cfg.Translate.TimeoutSeconds) * time.Second)
	}
	if s.recognizer == nil {
		rec, err := stt.New(cfg.STT)
		if err != nil {
			return nil, err
		}
		s.recognizer = rec
	}
	if s.tts == nil && cfg.TTS.Enabled {
		provider, err := tts.New(cfg.TTS)
		if err != nil {
			logger.L.Warn("TTS disabled", "error", err)
		} else {
			s.tts = provider
		}
	}

	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.routes()
	return s, nil
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving on the configured address.
func (s *Server) Listen() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	logger.L.Info("server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server and releases the history store.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": s.registry.Len()})
	})

	// Websocket chat session.
	s.app.Use("/session", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/session", websocket.New(s.handleSession))

	s.app.Post("/translate", s.handleTranslate)
	s.app.Post("/messages", s.handleMessage)
	s.app.Post("/speak", s.handleSpeak)
	s.app.Get("/voices", s.handleVoices)

	s.app.Get("/history/:sid", s.handleHistory)
	s.app.Get("/history/:sid/export", s.handleExport)
	s.app.Get("/history/:sid/stats", s.handleStats)
	s.app.Delete("/history/:sid", s.handleClear)

	s.app.Get("/config", s.handleGetConfig)
	s.app.Put("/config", s.handlePutConfig)

	if s.cfg.Phone.Enabled {
		s.phoneRoutes()
	}
}

func (s *Server) handleSession(ws *websocket.Conn) {
	cfg := s.snapshot()
	sess, err := session.New(ws, session.Deps{
		Config:     &cfg,
		Recognizer: s.recognizer,
		Translator: s.translator,
		TTS:        s.tts,
		Store:      s.store,
	})
	if err != nil {
		logger.L.Error("session setup failed", "error", err)
		ws.Close()
		return
	}
	s.registry.Add(sess)
	defer s.registry.Remove(sess.ID)
	sess.Run()
}
