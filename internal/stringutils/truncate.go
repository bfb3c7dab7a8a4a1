package stringutils

// Truncate cuts s to at most n runes. Error descriptions and thread titles
// are stored bounded; truncation must never split a multi-byte character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// KeyPreview returns a masked preview of an API key, showing only the last
// 4 characters.
func KeyPreview(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
