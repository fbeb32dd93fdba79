package model

import "time"

// Speaker labels for the two sides of a conversation.
const (
	SpeakerOne = "Speaker 1"
	SpeakerTwo = "Speaker 2"
)

// DialogueMessage is a single entry of a translation session: what was
// said, in which language, and its translation into the other side's
// language.
type DialogueMessage struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Speaker        string    `json:"speaker"`
	Language       string    `json:"language"`
	TargetLanguage string    `json:"target_language"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	Timestamp      time.Time `json:"timestamp"`
	Confidence     float64   `json:"confidence"`
}

// Transcript is the output of speech recognition before translation.
type Transcript struct {
	Text       string
	Language   string
	Confidence float64
	Manual     bool   // came from text input, not the microphone
	Speaker    string // set for manual input, derived from language otherwise
}
