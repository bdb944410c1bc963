package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n")
}

func TestReadThread_SinglePart(t *testing.T) {
	raw := crlf(
		"From: Alice <alice@x.com>",
		"To: threads@localhost",
		"Subject: Fwd: lunch",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"---------- Forwarded message ---------",
		"From: Bob <bob@x.com>",
		"",
		"Lunch?",
	)

	thread, err := ReadThread(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "Fwd: lunch", thread.Subject)
	assert.Equal(t, "Alice <alice@x.com>", thread.Sender)
	assert.Contains(t, thread.Plain, "From: Bob <bob@x.com>")
	assert.Contains(t, thread.Plain, "Lunch?")
	assert.Equal(t, []byte(raw), thread.Raw)
}

func TestReadThread_MultipartKeepsPlainText(t *testing.T) {
	raw := crlf(
		"From: alice@x.com",
		"Subject: hello",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain body",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html body</p>",
		"--b1--",
		"",
	)

	thread, err := ReadThread(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Contains(t, thread.Plain, "plain body")
	assert.NotContains(t, thread.Plain, "html body")
}

func TestReadThread_DecodesCharset(t *testing.T) {
	raw := crlf(
		"From: alice@x.com",
		"Subject: =?ISO-8859-1?Q?caf=E9?=",
		"Content-Type: text/plain; charset=iso-8859-1",
		"",
		"un caf\xe9",
	)

	thread, err := ReadThread(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "café", thread.Subject)
	assert.Equal(t, "un café", thread.Plain)
}

func TestReadThread_NoText(t *testing.T) {
	raw := crlf(
		"From: alice@x.com",
		"Subject: html only",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>hi</p>",
	)

	thread, err := ReadThread(strings.NewReader(raw))
	assert.ErrorIs(t, err, ErrNoText)
	assert.Equal(t, "html only", thread.Subject)
}
