package wire

import "strconv"
import "strings"

// ParseEnhancedCode extracts a leading enhanced status code (RFC 3463,
// "X.Y.Z rest...") from a reply text line. It returns a zero class and the
// original text unchanged if the line doesn't start with one.
func ParseEnhancedCode(text string) (class, subject, detail int, rest string) {
	head, tail, found := strings.Cut(text, " ")
	if !found {
		head, tail = text, ""
	}

	segments := strings.Split(head, ".")
	if len(segments) != 3 {
		return 0, 0, 0, text
	}

	c, err1 := strconv.Atoi(segments[0])
	s, err2 := strconv.Atoi(segments[1])
	d, err3 := strconv.Atoi(segments[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, text
	}
	if c < 2 || c > 5 {
		return 0, 0, 0, text
	}

	return c, s, d, tail
}
