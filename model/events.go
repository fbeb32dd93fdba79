package model

// Client-to-server event names.
const (
	EventStart = "start"
	EventMedia = "media"
	EventText  = "text"
	EventStop  = "stop"
)

// Server-to-client event names.
const (
	EventMessage = "message"
	EventStatus  = "status"
	EventError   = "error"
	EventAudio   = "audio"
)

// ClientEvent is the JSON frame a client sends over the session websocket.
// Media payloads carry base64 PCM16 little-endian mono audio.
type ClientEvent struct {
	Event string `json:"event"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
	Start struct {
		Language1  string `json:"language1"`
		Language2  string `json:"language2"`
		SampleRate int    `json:"sample_rate"`
	} `json:"start"`
	Text struct {
		Speaker  string `json:"speaker"`
		Content  string `json:"content"`
		Language string `json:"language"`
	} `json:"text"`
}

// ServerEvent is the JSON frame the server pushes to the client.
type ServerEvent struct {
	Event   string           `json:"event"`
	Message *DialogueMessage `json:"message,omitempty"`
	Status  string           `json:"status,omitempty"`
	Error   string           `json:"error,omitempty"`
	Audio   *AudioPayload    `json:"audio,omitempty"`
}

// AudioPayload carries synthesized speech for a message, base64-encoded.
type AudioPayload struct {
	MessageID string `json:"message_id"`
	MIME      string `json:"mime"`
	Payload   string `json:"payload"`
}
