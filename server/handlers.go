package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"transvoice/config"
)

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
	Source         string `json:"source"`
	Target         string `json:"target"`
}

// handleTranslate is the one-shot text translation endpoint.
func (s *Server) handleTranslate(c *fiber.Ctx) error {
	var req translateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`text` field is required"})
	}
	if !config.IsSupported(req.Source) || !config.IsSupported(req.Target) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported language"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), time.Duration(s.snapshot().Translate.TimeoutSeconds)*time.Second)
	defer cancel()
	translated, err := s.translator.Translate(ctx, req.Text, req.Source, req.Target)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "translation failed"})
	}
	return c.JSON(translateResponse{TranslatedText: translated, Source: req.Source, Target: req.Target})
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	Speaker   string `json:"speaker"`
	Content   string `json:"content"`
	Language  string `json:"language"`
}

// handleMessage injects manual text into a running session.
func (s *Server) handleMessage(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`content` field is required"})
	}
	if !s.snapshot().Session.EnableTextInput {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "text input is disabled"})
	}
	sess := s.registry.Get(req.SessionID)
	if sess == nil || !sess.Started() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	sess.InjectText(req.Speaker, req.Content, req.Language)
	return c.JSON(fiber.Map{"message": "accepted"})
}

type speakRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	VoiceID  string `json:"voice_id"`
}

// handleSpeak synthesizes arbitrary text on demand, backing per-message
// replay and the settings-dialog voice test.
func (s *Server) handleSpeak(c *fiber.Ctx) error {
	if s.tts == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "TTS is not configured"})
	}
	var req speakRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`text` field is required"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()
	audio, err := s.tts.Synthesize(ctx, req.Text, req.Language, req.VoiceID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	c.Type("mp3")
	return c.Send(audio)
}

// handleVoices lists the voices of the active TTS provider.
func (s *Server) handleVoices(c *fiber.Ctx) error {
	if s.tts == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "TTS is not configured"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()
	voices, err := s.tts.Voices(ctx)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"provider": s.tts.Name(), "voices": voices})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", s.snapshot().Session.MaxMessages)
	msgs := s.store.List(c.Params("sid"), limit)
	return c.JSON(fiber.Map{"session_id": c.Params("sid"), "messages": msgs})
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="dialogue.txt"`)
	c.Type("txt", "utf-8")
	return c.SendString(s.store.Export(c.Params("sid")))
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"session_id": c.Params("sid"), "stats": s.store.Stats(c.Params("sid"))})
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	s.store.Clear(c.Params("sid"))
	return c.JSON(fiber.Map{"message": "cleared"})
}

// handleGetConfig returns the configuration with secrets masked.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	cfg := s.snapshot()
	return c.JSON(cfg.Masked())
}

// configUpdate is the set of settings adjustable at runtime. Pointer
// fields distinguish "absent" from zero values.
type configUpdate struct {
	Language1          *string  `json:"language1"`
	Language2          *string  `json:"language2"`
	MaxMessages        *int     `json:"max_messages"`
	AutoDetectLanguage *bool    `json:"auto_detect_language"`
	EnableTextInput    *bool    `json:"enable_text_input"`
	EnergyThreshold    *float64 `json:"energy_threshold"`
	PauseThreshold     *float64 `json:"pause_threshold"`
	TTSEnabled         *bool    `json:"tts_enabled"`
	TTSAutoPlay        *bool    `json:"tts_auto_play"`
	TTSVoiceID         *string  `json:"tts_voice_id"`
	TTSSpeed           *float64 `json:"tts_speed"`
	TTSVolume          *int     `json:"tts_volume"`
}

// handlePutConfig applies runtime settings and persists them, so they
// survive restarts. New sessions pick the changes up; running sessions
// keep the settings they started with.
func (s *Server) handlePutConfig(c *fiber.Ctx) error {
	var upd configUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if upd.Language1 != nil && !config.IsSupported(*upd.Language1) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported language1"})
	}
	if upd.Language2 != nil && !config.IsSupported(*upd.Language2) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported language2"})
	}

	s.cfgMu.Lock()
	applyUpdate(s.cfg, upd)
	err := s.cfg.Save()
	masked := s.cfg.Masked()
	s.cfgMu.Unlock()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not persist settings"})
	}
	return c.JSON(masked)
}

func applyUpdate(cfg *config.Config, upd configUpdate) {
	if upd.Language1 != nil {
		cfg.Session.Language1 = *upd.Language1
	}
	if upd.Language2 != nil {
		cfg.Session.Language2 = *upd.Language2
	}
	if upd.MaxMessages != nil {
		cfg.Session.MaxMessages = *upd.MaxMessages
	}
	if upd.AutoDetectLanguage != nil {
		cfg.Session.AutoDetectLanguage = *upd.AutoDetectLanguage
	}
	if upd.EnableTextInput != nil {
		cfg.Session.EnableTextInput = *upd.EnableTextInput
	}
	if upd.EnergyThreshold != nil {
		cfg.Audio.EnergyThreshold = *upd.EnergyThreshold
	}
	if upd.PauseThreshold != nil {
		cfg.Audio.PauseThreshold = *upd.PauseThreshold
	}
	if upd.TTSEnabled != nil {
		cfg.TTS.Enabled = *upd.TTSEnabled
	}
	if upd.TTSAutoPlay != nil {
		cfg.TTS.AutoPlay = *upd.TTSAutoPlay
	}
	if upd.TTSVoiceID != nil {
		cfg.TTS.VoiceID = *upd.TTSVoiceID
	}
	if upd.TTSSpeed != nil {
		cfg.TTS.Speed = *upd.TTSSpeed
	}
	if upd.TTSVolume != nil {
		cfg.TTS.Volume = *upd.TTSVolume
	}
}
