// Package smtpserver accepts forwarded email threads over SMTP and queues
// them for parsing.
package smtpserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.io/infrasutra/threadparse/internal/ingest"
	"github.io/infrasutra/threadparse/internal/metrics"
	"github.io/infrasutra/threadparse/internal/store"
	"github.io/infrasutra/threadparse/internal/worker"
)

const (
	defaultDomain = "threadparse"
)

var errNoText = &smtp.SMTPError{
	Code:         554,
	EnhancedCode: smtp.EnhancedCode{5, 6, 0},
	Message:      "Message has no plain text body",
}

var errUnreadable = &smtp.SMTPError{
	Code:         554,
	EnhancedCode: smtp.EnhancedCode{5, 6, 0},
	Message:      "Message could not be parsed",
}

type AuthConfig struct {
	Enabled  bool
	Username string
	Password string
}

// Conversations stores received threads.
type Conversations interface {
	CreateConversation(ctx context.Context, c store.Conversation) error
}

// Dispatcher queues parse jobs.
type Dispatcher interface {
	Enqueue(ctx context.Context, job worker.Job) error
}

type Server struct {
	smtp   *smtp.Server
	logger *slog.Logger
}

func New(conversations Conversations, dispatcher Dispatcher, m *metrics.Metrics, logger *slog.Logger, addr string, authCfg AuthConfig) *Server {
	backend := &backend{
		conversations: conversations,
		dispatcher:    dispatcher,
		metrics:       m,
		logger:        logger,
		authEnabled:   authCfg.Enabled,
		authUsername:  authCfg.Username,
		authPassword:  authCfg.Password,
		now:           time.Now,
	}
	server := smtp.NewServer(backend)
	server.Addr = addr
	server.Domain = defaultDomain
	server.AllowInsecureAuth = true
	server.ReadTimeout = 15 * time.Second
	server.WriteTimeout = 15 * time.Second
	server.MaxRecipients = 100
	server.MaxMessageBytes = 25 << 20

	return &Server{smtp: server, logger: logger}
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("smtp server listening", "addr", s.smtp.Addr)
	return s.smtp.ListenAndServe()
}

func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("smtp server listening", "addr", l.Addr().String())
	return s.smtp.Serve(l)
}

func (s *Server) Close() error {
	return s.smtp.Close()
}

type backend struct {
	conversations Conversations
	dispatcher    Dispatcher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	authEnabled   bool
	authUsername  string
	authPassword  string
	now           func() time.Time
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend       *backend
	from          string
	authenticated bool
}

func (s *session) AuthMechanisms() []string {
	if s.backend.authEnabled {
		return []string{sasl.Plain}
	}
	return nil
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if !s.backend.authEnabled {
		return nil, errors.New("authentication not enabled")
	}
	if mech != sasl.Plain {
		return nil, errors.New("unsupported authentication mechanism")
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username == s.backend.authUsername && password == s.backend.authPassword {
			s.authenticated = true
			return nil
		}
		return errors.New("invalid credentials")
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.authEnabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = strings.TrimSpace(from)
	return nil
}

func (s *session) Rcpt(_ string, _ *smtp.RcptOptions) error {
	if s.backend.authEnabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	return nil
}

// Data stores the forwarded thread and queues a parse job that notifies
// the sender once the conversation is ready.
func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	thread, err := ingest.ReadThread(bytes.NewReader(data))
	if errors.Is(err, ingest.ErrNoText) {
		s.backend.logger.Warn("reject smtp message", "from", s.from, "error", err)
		return errNoText
	}
	if err != nil {
		s.backend.logger.Warn("parse smtp message", "from", s.from, "error", err)
		return errUnreadable
	}

	sender := thread.Sender
	if sender == "" {
		sender = s.from
	}
	conversation := store.Conversation{
		ID:        uuid.NewString(),
		Subject:   thread.Subject,
		Sender:    sender,
		Plain:     thread.Plain,
		Raw:       thread.Raw,
		Source:    store.SourceSMTP,
		CreatedAt: s.backend.now(),
	}

	ctx := context.Background()
	if err := s.backend.conversations.CreateConversation(ctx, conversation); err != nil {
		s.backend.logger.Error("store smtp conversation", "error", err)
		return err
	}
	s.backend.metrics.ConversationsReceived.WithLabelValues(store.SourceSMTP).Inc()

	job := worker.Job{ConversationID: conversation.ID, Notify: true}
	if err := s.backend.dispatcher.Enqueue(ctx, job); err != nil {
		// The conversation stays pending and is picked up on the next start.
		s.backend.logger.Warn("enqueue smtp conversation", "conversation", conversation.ID, "error", err)
	}
	s.backend.logger.Info("smtp conversation received", "conversation", conversation.ID, "from", sender)
	return nil
}

func (s *session) Reset() {
	s.from = ""
}

func (s *session) Logout() error {
	return nil
}
