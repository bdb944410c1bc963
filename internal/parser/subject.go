package parser

import (
	"regexp"
	"strings"
)

var subjectRegexp = regexp.MustCompile(`(?i)^\s*\**\s*(?:(?:re|fw|fwd)\s*:)?\**\s*(.*)$`)

// NormalizeSubject strips one leading reply or forward marker ("Re:",
// "Fw:", "Fwd:") and decorative asterisks from a thread subject. Only the
// outermost marker is removed: "Re: Fwd: Hello" becomes "Fwd: Hello".
func NormalizeSubject(raw string) string {
	m := subjectRegexp.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return strings.TrimRight(m[1], " \t*")
}

// CleanSender removes brackets and quotes left around a stored sender
// value, e.g. "['Bob <bob@example.com>']".
func CleanSender(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '\'', '"':
			return -1
		}
		return r
	}, raw)
}
