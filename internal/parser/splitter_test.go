package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSplitter(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"-----", true},
		{"-----Original Message-----", true},
		{"---------- Forwarded message ----------", true},
		{"Begin forwarded message:", true},
		{"Forwarded message:", true},
		{"Original Message", true},
		{"On Tue, Jan 3, 2012 at 10:00 AM, Bob <bob@x.com> wrote:", true},
		{"-- on monday bob wrote: --", true},
		{" On Tuesday, Bob wrote:", true},
		{"----", false},
		{"On Tuesday,", false},
		{"Bob wrote:", false},
		{"Hello there", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSplitter(tt.line), "IsSplitter(%q)", tt.line)
	}
}

func TestParseSplitter(t *testing.T) {
	tests := []struct {
		name   string
		banner string
		date   string
		sender string
		ok     bool
	}{
		{
			name:   "month day year time",
			banner: "On Jan 3, 2012, 10:00 AM, Bob <bob@x.com> wrote:",
			date:   "Jan 3, 2012, 10:00 AM",
			sender: "Bob <bob@x.com>",
			ok:     true,
		},
		{
			name:   "gmail style",
			banner: "On Tue, Jan 3, 2012 at 10:00 AM, Bob <bob@x.com> wrote:",
			date:   "Tue, Jan 3, 2012 at 10:00 AM",
			sender: "Bob <bob@x.com>",
			ok:     true,
		},
		{
			name:   "full weekday",
			banner: "On Tuesday, Jan 3, 2012, 10:00 AM, Bob wrote:",
			date:   "Tuesday, Jan 3, 2012, 10:00 AM",
			sender: "Bob",
			ok:     true,
		},
		{
			name:   "day month year",
			banner: "On 3 March 2012 14:05:33, alice@x.com wrote:",
			date:   "3 March 2012 14:05:33",
			sender: "alice@x.com",
			ok:     true,
		},
		{
			name:   "dashes",
			banner: "--- On Thurs, Feb 9, 2012 at 9:15 pm Carol wrote: ---",
			date:   "Thurs, Feb 9, 2012 at 9:15 pm",
			sender: "Carol",
			ok:     true,
		},
		{
			name:   "no date",
			banner: "On Bob wrote:",
			date:   "",
			sender: "Bob",
			ok:     true,
		},
		{
			name:   "not a wrote banner",
			banner: "-----Original Message-----",
			ok:     false,
		},
		{
			name:   "empty",
			banner: "",
			ok:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, sender, ok := ParseSplitter(tt.banner)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.date, date)
			assert.Equal(t, tt.sender, sender)
		})
	}
}
