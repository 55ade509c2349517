// Package language provides response-language detection for generated content.
package language

import "unicode"

// Detect returns "he" if the text contains Hebrew-script characters,
// otherwise "en". The pipeline derives this once from the topic and threads
// it through every generation call.
func Detect(text string) string {
	if IsHebrew(text) {
		return "he"
	}
	return "en"
}

// IsHebrew reports whether text contains any Hebrew-script character.
func IsHebrew(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Hebrew, r) {
			return true
		}
	}
	return false
}
