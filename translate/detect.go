package translate

import "strings"

var commonEnglishWords = []string{
	"the", "and", "you", "that", "was", "for", "are", "with", "this", "have",
}

// DetectLanguage guesses the language of a text from its content: Cyrillic
// characters mean Russian, common stopwords mean English, and accented
// character classes separate Spanish, French and German. Returns "" when
// nothing matches.
func DetectLanguage(text string) string {
	lower := strings.ToLower(text)

	if strings.ContainsAny(lower, "абвгдеёжзийклмнопрстуфхцчшщъыьэюя") {
		return "ru"
	}
	for _, w := range commonEnglishWords {
		if containsWord(lower, w) {
			return "en"
		}
	}
	if strings.ContainsAny(lower, "áéíóúñ") {
		return "es"
	}
	if strings.ContainsAny(lower, "àâçèêëîïôùûœ") {
		return "fr"
	}
	if strings.ContainsAny(lower, "äöüß") {
		return "de"
	}
	return ""
}

func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	}) {
		if f == word {
			return true
		}
	}
	return false
}
