package parser

import (
	"regexp"
	"strings"
)

// DefaultHeaderFields is the vocabulary of header names recognized inside
// quoted messages.
var DefaultHeaderFields = []string{
	"received", "from", "to", "cc", "bcc", "subject", "date", "sent",
	"x-mailer", "message-id", "content-type", "content-transfer-encoding",
	"x-reply-to", "x-accept-language", "x-mozilla-status", "x-mozilla-status2",
	"x-autoresponder-revision", "x-uidl", "organization", "mime-version",
	"reply-to",
}

var fieldSeparator = regexp.MustCompile(`[\s-]+`)

// HeaderMatcher recognizes lines that open a header field from a fixed
// vocabulary.
type HeaderMatcher struct {
	re *regexp.Regexp
}

// NewHeaderMatcher builds a matcher for the given field names. Hyphens in a
// name also match any run of whitespace or hyphens.
func NewHeaderMatcher(fields []string) *HeaderMatcher {
	seen := map[string]struct{}{}
	alternatives := make([]string, 0, len(fields))
	for _, field := range fields {
		field = canonicalField(field)
		if field == "" {
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		parts := strings.Split(field, "-")
		for i, part := range parts {
			parts[i] = regexp.QuoteMeta(part)
		}
		alternatives = append(alternatives, strings.Join(parts, `[\s-]+`))
	}
	pattern := `(?i)^\**\s*(` + strings.Join(alternatives, "|") + `):\s*\**\s*(.+)`
	return &HeaderMatcher{re: regexp.MustCompile(pattern)}
}

// Match reports whether line opens a header. The field name is returned in
// canonical form: lower case with separators collapsed to a single hyphen.
func (m *HeaderMatcher) Match(line string) (field, value string, ok bool) {
	groups := m.re.FindStringSubmatch(line)
	if groups == nil {
		return "", "", false
	}
	return canonicalField(groups[1]), strings.TrimSpace(groups[2]), true
}

// IsHeader reports whether line opens a header.
func (m *HeaderMatcher) IsHeader(line string) bool {
	return m.re.MatchString(line)
}

func canonicalField(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return fieldSeparator.ReplaceAllString(name, "-")
}
