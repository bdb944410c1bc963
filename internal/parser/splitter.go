package parser

import (
	"regexp"
	"strings"
)

var splitterPatterns = []string{
	`(?:-{5,})`,
	`(?:-*\s*(?:begin )?forwarded message:?\s*-*)`,
	`(?:-*\s*original message:?\s*-*)`,
	`(?:-*\s*on .* wrote:\s*-*)`,
}

var splitterRegexp = regexp.MustCompile(`(?i)^(` + strings.Join(splitterPatterns, "|") + `)\s*.*$`)

// IsSplitter reports whether line is a banner that introduces a quoted or
// forwarded message.
func IsSplitter(line string) bool {
	return splitterRegexp.MatchString(line)
}

var (
	weekdays = []string{
		"sun", "sunday", "mon", "monday", "tue", "tues", "tuesday", "wed",
		"weds", "wednesday", "thu", "thur", "thurs", "thursday", "fri",
		"friday", "sat", "saturday",
	}
	months = []string{
		"jan", "january", "feb", "february", "mar", "march", "apr", "april",
		"may", "jun", "june", "jul", "july", "aug", "august", "sep", "sept",
		"september", "oct", "october", "nov", "november", "dec", "december",
	}
)

var (
	wroteRegexp    = regexp.MustCompile(`(?i)^-*\s*on (.*) wrote:\s*-*`)
	datetimeRegexp = regexp.MustCompile(`(?i)^\s*(` + datetimePattern() + `),?\s*(.*)$`)
)

func datetimePattern() string {
	day := `(?:` + strings.Join(weekdays, "|") + `)?`
	month := `(?:` + strings.Join(months, "|") + `)`
	dayMonth := `(?:[0-9]{1,2},?\s+` + month + `\s*,?\s*[0-9]{0,4})`
	monthDay := `(?:` + month + `\s+[0-9]{1,2}\s*,?\s*[0-9]{0,4})`
	clock := `[0-1]?[0-9]:[0-9]{2}(?::[0-9]{2})?\s*(?:am|pm)?`
	return day + `,?\s*(?:` + dayMonth + `|` + monthDay + `)?,?\s+(?:at\s+)?(?:` + clock + `)?`
}

// ParseSplitter extracts the date and the sender from an "On <date>,
// <sender> wrote:" banner. ok is false when the banner has another shape,
// in which case date and sender are empty. When no date can be found the
// whole banner text is returned as the sender.
func ParseSplitter(banner string) (date, sender string, ok bool) {
	m := wroteRegexp.FindStringSubmatch(banner)
	if m == nil {
		return "", "", false
	}
	text := m[1]
	if dm := datetimeRegexp.FindStringSubmatch(text); dm != nil {
		date = trimBannerPart(dm[1])
		if date != "" {
			return date, trimBannerPart(dm[2]), true
		}
	}
	return "", trimBannerPart(text), true
}

func trimBannerPart(s string) string {
	return strings.Trim(s, " \t,")
}
