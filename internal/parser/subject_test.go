package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Re: Project Update", "Project Update"},
		{"**Fwd: Hi**", "Hi"},
		{"RE:Hi", "Hi"},
		{"fw : notes", "notes"},
		{"  Re: spaced  ", "spaced"},
		{"Re: Fwd: Hello", "Fwd: Hello"},
		{"Rejected offer", "Rejected offer"},
		{"Hello", "Hello"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSubject(tt.raw), "NormalizeSubject(%q)", tt.raw)
	}
}

func TestCleanSender(t *testing.T) {
	assert.Equal(t, "Bob <bob@x.com>", CleanSender(`['Bob <bob@x.com>']`))
	assert.Equal(t, "alice@x.com", CleanSender(`"alice@x.com"`))
	assert.Equal(t, "plain@x.com", CleanSender("plain@x.com"))
}
