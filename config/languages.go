package config

// Language describes one of the supported conversation languages.
type Language struct {
	Code       string // translation code, e.g. "ru"
	SpeechCode string // BCP-47 recognition code, e.g. "ru-RU"
	Label      string
}

// Languages maps translation codes to the five supported languages.
var Languages = map[string]Language{
	"ru": {Code: "ru", SpeechCode: "ru-RU", Label: "RU"},
	"en": {Code: "en", SpeechCode: "en-US", Label: "EN"},
	"es": {Code: "es", SpeechCode: "es-ES", Label: "ES"},
	"fr": {Code: "fr", SpeechCode: "fr-FR", Label: "FR"},
	"de": {Code: "de", SpeechCode: "de-DE", Label: "DE"},
}

// DefaultVoices maps language codes to the ElevenLabs voice used when no
// voice is configured explicitly.
var DefaultVoices = map[string]string{
	"ru": "IKne3meq5aSn9XLyUdCD",
	"en": "CwhRBWXzGAHq8TQ4Fs17", // Roger
	"es": "MF3mGyEYCl7XYWbV9V6O",
	"fr": "N2lVS1w4EtoT3dr4eOWO",
	"de": "ThT5KcBeYPX3keUQqHPh",
}

// SpeechCode returns the BCP-47 recognition code for a translation code,
// falling back to en-US for unknown languages.
func SpeechCode(code string) string {
	if l, ok := Languages[code]; ok {
		return l.SpeechCode
	}
	return "en-US"
}

// VoiceFor returns the default voice ID for a language, or fallback when
// the language has no dedicated voice.
func VoiceFor(lang, fallback string) string {
	if v, ok := DefaultVoices[lang]; ok {
		return v
	}
	return fallback
}

// IsSupported reports whether a translation code is one of the supported
// languages.
func IsSupported(code string) bool {
	_, ok := Languages[code]
	return ok
}
