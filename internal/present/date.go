// Package present formats parsed conversation data for display.
package present

import (
	"net/mail"
	"strings"
	"time"
)

const prettyLayout = "January 2, 2006 at 3:04 PM"

// layouts written by common mail clients in reply banners and quoted
// headers, tried after RFC 5322.
var layouts = []string{
	"Mon, Jan 2, 2006 at 3:04 PM",
	"Mon, Jan 2, 2006 at 15:04",
	"Monday, January 2, 2006 3:04 PM",
	"Monday, January 2, 2006 at 3:04 PM",
	"Monday, January 2, 2006, 3:04 PM",
	"Mon, Jan 2, 2006, 3:04 PM",
	"Jan 2, 2006, 3:04 PM",
	"Jan 2, 2006 at 3:04 PM",
	"January 2, 2006 3:04:05 PM MST",
	"January 2, 2006 3:04 PM",
	"2 January 2006 15:04:05",
	"2 Jan 2006 15:04",
	"Mon, 2 Jan 2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC3339,
}

// PrettyDate renders the free-form sent text of a message as
// "January 2, 2006 at 3:04 PM". Text that matches no known layout is
// returned unchanged.
func PrettyDate(sent string) string {
	t, ok := ParseDate(sent)
	if !ok {
		return sent
	}
	return t.Format(prettyLayout)
}

// ParseDate tries RFC 5322 first and then the client layouts.
func ParseDate(sent string) (time.Time, bool) {
	value := strings.Join(strings.Fields(sent), " ")
	if value == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t, true
	}
	value = strings.NewReplacer(" am", " AM", " pm", " PM").Replace(value)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
