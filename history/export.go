package history

import (
	"fmt"
	"strings"
	"time"
)

// Export renders a session transcript as plain text, the format offered
// by the dialogue export download.
func (s *Store) Export(sessionID string) string {
	msgs := s.List(sessionID, 0)

	var b strings.Builder
	b.WriteString("Dialogue transcript\n")
	b.WriteString("Exported: " + time.Now().Format("2006-01-02 15:04:05") + "\n")
	b.WriteString(fmt.Sprintf("Messages: %d\n", len(msgs)))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, m := range msgs {
		b.WriteString(fmt.Sprintf("[%s] %s (%s, confidence %.0f%%)\n",
			m.Timestamp.Format("15:04:05"), m.Speaker, m.Language, m.Confidence*100))
		b.WriteString("  " + m.OriginalText + "\n")
		if m.TranslatedText != "" {
			b.WriteString(fmt.Sprintf("  -> (%s) %s\n", m.TargetLanguage, m.TranslatedText))
		}
		b.WriteString("\n")
	}
	return b.String()
}
