package parser

import "strings"

// NormalizeLine strips leading whitespace and '>' quote markers from a raw
// line. It returns the remaining text and the number of '>' removed.
func NormalizeLine(raw string) (string, int) {
	depth := 0
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case '>':
			depth++
		case ' ', '\t', '\v', '\f', '\r', '\n':
		default:
			return raw[i:], depth
		}
		i++
	}
	return "", depth
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	raw := strings.Split(text, "\n")
	for len(raw) > 0 && raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}
	lines := make([]string, len(raw))
	for i, line := range raw {
		// quote depth is not used for segmentation
		lines[i], _ = NormalizeLine(line)
	}
	return lines
}

// cursor walks normalized lines with one line of lookahead.
type cursor struct {
	lines []string
	pos   int
}

func (c *cursor) next() (string, bool) {
	if c.pos >= len(c.lines) {
		return "", false
	}
	line := c.lines[c.pos]
	c.pos++
	return line, true
}

func (c *cursor) peek() (string, bool) {
	if c.pos >= len(c.lines) {
		return "", false
	}
	return c.lines[c.pos], true
}

func (c *cursor) skip() {
	if c.pos < len(c.lines) {
		c.pos++
	}
}
