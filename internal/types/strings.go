package types

// TruncateRunes returns s cut to at most max runes. Counting runes instead
// of bytes keeps multi-byte text (Hebrew titles, for one) from being cut in
// half or split mid-character into invalid UTF-8.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
