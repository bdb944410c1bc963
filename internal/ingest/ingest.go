// Package ingest turns a forwarded email into the inputs of a conversation.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrNoText is returned when a message has no text/plain content.
var ErrNoText = errors.New("message has no text body")

func init() {
	message.CharsetReader = charsetReader
}

// Thread is a forwarded email reduced to what the parser needs.
type Thread struct {
	Subject string
	// Sender is the raw From header value of the forwarded email.
	Sender string
	Plain  string
	Raw    []byte
}

// ReadThread reads one RFC 5322 message. The text of every text/plain part
// is joined with newlines; HTML parts and attachments are ignored.
func ReadThread(r io.Reader) (Thread, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Thread{}, fmt.Errorf("read message: %w", err)
	}
	thread := Thread{Raw: raw}

	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return thread, fmt.Errorf("parse message: %w", err)
	}
	defer reader.Close()

	if subject, err := reader.Header.Subject(); err == nil {
		thread.Subject = subject
	} else {
		thread.Subject = reader.Header.Get("Subject")
	}
	thread.Sender = strings.TrimSpace(reader.Header.Get("From"))

	var texts []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return thread, fmt.Errorf("read message part: %w", err)
		}
		if part == nil {
			continue
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := header.ContentType()
		if mediaType != "" && !strings.HasPrefix(mediaType, "text/plain") {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return thread, fmt.Errorf("read text part: %w", err)
		}
		texts = append(texts, string(body))
	}

	thread.Plain = strings.Join(texts, "\n")
	if strings.TrimSpace(thread.Plain) == "" {
		return thread, ErrNoText
	}
	return thread, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "us-ascii", "utf-8":
		return input, nil
	}
	enc, _ := ianaindex.MIME.Encoding(charset)
	if enc == nil {
		enc, _ = ianaindex.IANA.Encoding(charset)
	}
	if enc == nil {
		return nil, fmt.Errorf("unknown charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}
