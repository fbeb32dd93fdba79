package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"transvoice/audio"
	"transvoice/logger"
	"transvoice/model"
	"transvoice/workers"
)

const phoneSampleRate = 8000

// joinURL appends a path segment to a base URL whether or not the base
// carries a trailing slash.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}

type callRequest struct {
	To string `json:"to"`
}

type callResponse struct {
	SID     string `json:"sid,omitempty"`
	Message string `json:"message"`
}

// twilioEvent is the streaming frame Twilio sends on the media websocket.
type twilioEvent struct {
	Event string `json:"event"` // "start", "media", "stop"
	Media struct {
		Payload string `json:"payload"` // base64 mu-law audio
	} `json:"media"`
	Start struct {
		CallSid   string `json:"callSid"`
		StreamSid string `json:"streamSid"`
	} `json:"start"`
}

// phoneRoutes mounts the Twilio bridge: an outbound call whose far leg is
// streamed into the translation pipeline. The bridge listens only; the
// transcript lands in history under the call's session ID.
func (s *Server) phoneRoutes() {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: s.cfg.Phone.AccountSID,
		Password: s.cfg.Phone.AuthToken,
	})

	s.app.Post("/call", func(c *fiber.Ctx) error {
		var req callRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		if req.To == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`to` field is required"})
		}

		params := &openapi.CreateCallParams{}
		params.SetTo(req.To)
		params.SetFrom(s.cfg.Phone.FromNumber)
		params.SetUrl(joinURL(s.cfg.Phone.BaseURL, "twiml"))
		params.SetMethod("GET")

		resp, err := client.Api.CreateCall(params)
		if err != nil {
			logger.L.Error("twilio call failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create call"})
		}
		return c.JSON(callResponse{SID: *resp.Sid, Message: "call initiated"})
	})

	s.app.Get("/twiml", func(c *fiber.Ctx) error {
		callSid := c.Query("CallSid", "")
		if callSid == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "CallSid missing"})
		}
		xml := fmt.Sprintf(`
<Response>
  <Connect>
    <Stream url="%s?CallSid=%s"/>
  </Connect>
</Response>`, joinURL(s.cfg.Phone.BaseWSURL, "phone-stream"), callSid)
		c.Type("xml")
		return c.SendString(xml)
	})

	s.app.Use("/phone-stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/phone-stream", websocket.New(s.handlePhoneStream))
}

// handlePhoneStream feeds the call's mu-law audio through segmentation,
// recognition and translation. Events are logged rather than pushed back:
// the phone has no chat surface.
func (s *Server) handlePhoneStream(ws *websocket.Conn) {
	defer ws.Close()

	sessionID := "call-" + uuid.NewString()
	cfg := s.snapshot()

	seg := audio.NewSegmenter(audio.SegmenterConfig{
		SampleRate:      phoneSampleRate,
		EnergyThreshold: cfg.Audio.EnergyThreshold,
		DynamicEnergy:   cfg.Audio.DynamicEnergy,
		PauseThreshold:  cfg.Audio.PauseThreshold,
		PhraseTimeLimit: cfg.Audio.PhraseTimeLimit,
	})
	transcripts := make(chan model.Transcript, 8)
	events := make(chan model.ServerEvent, 32)

	tw, err := workers.NewTranscriptionWorker(s.recognizer, cfg.Session.Language1, cfg.Session.Language2,
		cfg.Session.AutoDetectLanguage, seg.Utterances, transcripts, events)
	if err != nil {
		logger.L.Error("phone bridge setup failed", "error", err)
		return
	}
	lw, err := workers.NewTranslationWorker(s.translator, s.store, sessionID,
		cfg.Session.Language1, cfg.Session.Language2,
		time.Duration(cfg.Translate.TimeoutSeconds)*time.Second, transcripts, nil, events)
	if err != nil {
		logger.L.Error("phone bridge setup failed", "error", err)
		return
	}

	tw.Start()
	lw.Start()
	done := make(chan struct{})
	defer func() {
		seg.Close()
		tw.Stop()
		lw.Stop()
		close(done)
	}()

	// Drain pipeline events into the log.
	go func() {
		for {
			select {
			case <-done:
				return
			case ev := <-events:
				switch ev.Event {
				case model.EventMessage:
					logger.L.Info("call message", "session", sessionID,
						"speaker", ev.Message.Speaker, "text", ev.Message.OriginalText,
						"translated", ev.Message.TranslatedText)
				case model.EventError:
					logger.L.Warn("call pipeline error", "session", sessionID, "error", ev.Error)
				}
			}
		}
	}()

	logger.L.Info("phone stream connected", "session", sessionID)

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			logger.L.Info("phone stream closed", "session", sessionID, "error", err)
			return
		}

		var ev twilioEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			logger.L.Warn("phone stream bad frame", "session", sessionID, "error", err)
			continue
		}

		switch ev.Event {
		case "start":
			logger.L.Info("phone stream started", "session", sessionID,
				"call_sid", ev.Start.CallSid, "stream_sid", ev.Start.StreamSid)
		case "media":
			ulaw, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				continue
			}
			seg.Write(audio.DecodeMuLaw(ulaw))
		case "stop":
			logger.L.Info("phone stream stopped", "session", sessionID)
			return
		}
	}
}
