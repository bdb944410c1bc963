package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.io/infrasutra/threadparse/internal/store"
)

// TokenIssuer signs access links for a conversation.
type TokenIssuer interface {
	Issue(conversationID string, now time.Time) (string, error)
}

// SendFunc delivers a message through an SMTP relay. It matches
// smtp.SendMail.
type SendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

type MailerConfig struct {
	RelayAddr string
	Username  string
	Password  string
	From      string
	PublicURL string
}

// Mailer emails the sender of a conversation a link to the parsed result.
type Mailer struct {
	cfg    MailerConfig
	tokens TokenIssuer
	send   SendFunc
	logger *slog.Logger
	now    func() time.Time
}

func NewMailer(cfg MailerConfig, tokens TokenIssuer, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		tokens: tokens,
		send:   smtp.SendMail,
		logger: logger,
		now:    time.Now,
	}
}

func (m *Mailer) ConversationReady(_ context.Context, conversation store.Conversation) error {
	recipient, err := mail.ParseAddress(conversation.Sender)
	if err != nil {
		return fmt.Errorf("parse recipient %q: %w", conversation.Sender, err)
	}

	now := m.now()
	token, err := m.tokens.Issue(conversation.ID, now)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	link := fmt.Sprintf("%s/api/conversations/%s?token=%s", m.cfg.PublicURL, url.PathEscape(conversation.ID), url.QueryEscape(token))

	raw, err := m.buildMessage(recipient, conversation, link, now)
	if err != nil {
		return err
	}

	var auth sasl.Client
	if m.cfg.Username != "" {
		auth = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}
	if err := m.send(m.cfg.RelayAddr, auth, m.cfg.From, []string{recipient.Address}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("send ready mail: %w", err)
	}
	m.logger.Info("ready mail sent", "conversation", conversation.ID, "to", recipient.Address)
	return nil
}

func (m *Mailer) buildMessage(to *mail.Address, conversation store.Conversation, link string, now time.Time) ([]byte, error) {
	if strings.TrimSpace(m.cfg.From) == "" {
		return nil, errors.New("notify from address is required")
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: m.cfg.From}})
	h.SetAddressList("To", []*mail.Address{to})
	subject := "Your conversation is ready"
	if conversation.Subject != "" {
		subject += ": " + conversation.Subject
	}
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var body strings.Builder
	body.WriteString("Your conversation has been split into individual messages.\r\n\r\n")
	body.WriteString(link + "\r\n\r\n")
	if !conversation.ExpiresAt.IsZero() {
		body.WriteString("The link expires on " + conversation.ExpiresAt.UTC().Format(time.RFC1123) + ".\r\n")
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create ready mail: %w", err)
	}
	if _, err := io.WriteString(w, body.String()); err != nil {
		return nil, fmt.Errorf("write ready mail: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close ready mail: %w", err)
	}
	return buf.Bytes(), nil
}
