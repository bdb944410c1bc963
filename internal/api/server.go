package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.io/infrasutra/threadparse/internal/auth"
	"github.io/infrasutra/threadparse/internal/metrics"
	"github.io/infrasutra/threadparse/internal/notify"
	"github.io/infrasutra/threadparse/internal/pagination"
	"github.io/infrasutra/threadparse/internal/parser"
	"github.io/infrasutra/threadparse/internal/present"
	"github.io/infrasutra/threadparse/internal/sse"
	"github.io/infrasutra/threadparse/internal/store"
	"github.io/infrasutra/threadparse/internal/worker"
)

const maxBodyBytes = 25 << 20

// Store is the persistence used by the HTTP API.
type Store interface {
	Ping(ctx context.Context) error
	CreateConversation(ctx context.Context, c store.Conversation) error
	GetConversation(ctx context.Context, id string) (store.Conversation, error)
	ListMessages(ctx context.Context, conversationID, order string, offset, limit int32) ([]store.Message, int32, error)
	DeleteConversation(ctx context.Context, id string) (bool, error)
}

type Dispatcher interface {
	Enqueue(ctx context.Context, job worker.Job) error
}

type Server struct {
	store      Store
	dispatcher Dispatcher
	auth       *auth.Manager
	hub        *sse.Hub
	metrics    *metrics.Metrics
	parser     *parser.Parser
	logger     *slog.Logger
	mux        *http.ServeMux
	now        func() time.Time
	keepAlive  time.Duration
}

func NewServer(st Store, dispatcher Dispatcher, authManager *auth.Manager, hub *sse.Hub, m *metrics.Metrics, logger *slog.Logger) *Server {
	server := &Server{
		store:      st,
		dispatcher: dispatcher,
		auth:       authManager,
		hub:        hub,
		metrics:    m,
		parser:     parser.New(),
		logger:     logger,
		now:        time.Now,
		keepAlive:  20 * time.Second,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/conversations", server.handleConversations)
	mux.HandleFunc("/api/conversations/", server.handleConversation)
	mux.HandleFunc("/api/parse", server.handleParse)
	server.mux = mux
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") {
		s.mux.ServeHTTP(w, r)
		return
	}
	switch path {
	case "/health":
		s.handleHealth(w, r)
	case "/ready":
		s.handleReady(w, r)
	case "/metrics":
		s.metrics.Handler().ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleConversations accepts a thread for background parsing and returns
// the conversation ID with an access token for it.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var payload createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}

	now := s.now()
	conversation := store.Conversation{
		ID:        uuid.NewString(),
		Subject:   payload.Subject,
		Sender:    payload.Sender,
		Plain:     payload.Text,
		Source:    store.SourceAPI,
		CreatedAt: now,
	}
	token, err := s.auth.Issue(conversation.ID, now)
	if err != nil {
		http.Error(w, "unable to issue token", http.StatusInternalServerError)
		return
	}
	if err := s.store.CreateConversation(r.Context(), conversation); err != nil {
		s.logger.Error("create conversation", "error", err)
		http.Error(w, "unable to save conversation", http.StatusInternalServerError)
		return
	}
	s.metrics.ConversationsReceived.WithLabelValues(store.SourceAPI).Inc()

	if err := s.dispatcher.Enqueue(r.Context(), worker.Job{ConversationID: conversation.ID}); err != nil {
		s.logger.Warn("enqueue conversation", "conversation", conversation.ID, "error", err)
		if _, delErr := s.store.DeleteConversation(context.WithoutCancel(r.Context()), conversation.ID); delErr != nil {
			s.logger.Error("discard unqueued conversation", "conversation", conversation.ID, "error", delErr)
		}
		http.Error(w, "parse queue unavailable", http.StatusServiceUnavailable)
		return
	}
	s.respondJSON(w, http.StatusAccepted, createResponse{ID: conversation.ID, Token: token})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	if err := s.authorize(r, id); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleConversationDetail(w, r, id)
		case http.MethodDelete:
			s.handleConversationDelete(w, r, id)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "reparse" {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleReparse(w, r, id)
		return
	}

	if len(parts) == 2 && parts[1] == "stream" {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleStream(w, r, id)
		return
	}

	http.NotFound(w, r)
}

func (s *Server) handleConversationDetail(w http.ResponseWriter, r *http.Request, id string) {
	conversation, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "unable to load conversation")
		return
	}

	page := pagination.FromQuery(r.URL.Query())
	detail := conversationDetail{
		ID:        conversation.ID,
		Subject:   conversation.Subject,
		Sender:    conversation.Sender,
		Source:    conversation.Source,
		Parsed:    conversation.Parsed,
		CreatedAt: conversation.CreatedAt.UTC().Format(time.RFC3339),
		Messages:  []messageView{},
		Page:      page.Page,
		Limit:     page.Limit,
		Sort:      page.Sort,
	}
	if !conversation.ExpiresAt.IsZero() {
		detail.ExpiresAt = conversation.ExpiresAt.UTC().Format(time.RFC3339)
	}

	if conversation.Parsed {
		messages, total, err := s.store.ListMessages(r.Context(), id, page.Sort, page.Offset, page.Limit)
		if err != nil {
			s.respondStoreError(w, err, "unable to list messages")
			return
		}
		for _, m := range messages {
			detail.Messages = append(detail.Messages, toMessageView(m))
		}
		detail.Total = total
		detail.HasNext = pagination.HasNext(page.Offset, page.Limit, total)
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request, id string) {
	deleted, err := s.store.DeleteConversation(r.Context(), id)
	if err != nil {
		http.Error(w, "unable to delete", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReparse(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := s.store.GetConversation(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "unable to load conversation")
		return
	}
	if err := s.dispatcher.Enqueue(r.Context(), worker.Job{ConversationID: id}); err != nil {
		s.logger.Warn("enqueue reparse", "conversation", id, "error", err)
		http.Error(w, "parse queue unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleStream sends a "ready" event once the conversation is parsed,
// immediately when it already is.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	conversation, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "unable to load conversation")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if conversation.Parsed {
		payload, err := notify.ReadyEvent(conversation)
		if err == nil {
			_, _ = w.Write(payload)
		}
		flusher.Flush()
		return
	}
	_, _ = w.Write([]byte(": waiting\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(payload)
			flusher.Flush()
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}

// handleParse runs the parser synchronously and stores nothing.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var payload parseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	started := time.Now()
	result := s.parser.ParseConversation(payload.Subject, payload.Text)
	s.metrics.ParseDuration.Observe(time.Since(started).Seconds())

	response := parseResponse{Subject: result.Subject, Messages: make([]parsedView, 0, len(result.Messages))}
	for _, m := range result.Messages {
		headers := m.Headers
		if headers == nil {
			headers = map[string]string{}
		}
		response.Messages = append(response.Messages, parsedView{
			Body:       m.Body,
			Sent:       m.Sent,
			PrettySent: present.PrettyDate(m.Sent),
			Sender:     m.Sender,
			Headers:    headers,
			Splitter:   m.Splitter,
		})
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) authorize(r *http.Request, id string) error {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
	}
	return s.auth.Authorize(token, id, s.now())
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.logger.Error(message, "error", err)
	http.Error(w, message, http.StatusInternalServerError)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondText(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check", "error", err)
		s.respondText(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	s.respondText(w, http.StatusOK, "ready")
}

func (s *Server) respondText(w http.ResponseWriter, status int, payload string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

type createRequest struct {
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Text    string `json:"text"`
}

type createResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type parseRequest struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type parseResponse struct {
	Subject  string       `json:"subject"`
	Messages []parsedView `json:"messages"`
}

type parsedView struct {
	Body       string            `json:"body"`
	Sent       string            `json:"sent"`
	PrettySent string            `json:"prettySent"`
	Sender     string            `json:"sender"`
	Headers    map[string]string `json:"headers"`
	Splitter   string            `json:"splitter,omitempty"`
}

type conversationDetail struct {
	ID        string        `json:"id"`
	Subject   string        `json:"subject"`
	Sender    string        `json:"sender"`
	Source    string        `json:"source"`
	Parsed    bool          `json:"parsed"`
	CreatedAt string        `json:"createdAt"`
	ExpiresAt string        `json:"expiresAt,omitempty"`
	Messages  []messageView `json:"messages"`
	Page      int32         `json:"page"`
	Limit     int32         `json:"limit"`
	Sort      string        `json:"sort"`
	Total     int32         `json:"total"`
	HasNext   bool          `json:"hasNext"`
}

type messageView struct {
	Position   int               `json:"position"`
	Body       string            `json:"body"`
	Sent       string            `json:"sent"`
	PrettySent string            `json:"prettySent"`
	Sender     string            `json:"sender"`
	Headers    map[string]string `json:"headers"`
}

func toMessageView(m store.Message) messageView {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Field] = h.Value
	}
	return messageView{
		Position:   m.Position,
		Body:       m.Body,
		Sent:       m.Sent,
		PrettySent: present.PrettyDate(m.Sent),
		Sender:     m.Sender,
		Headers:    headers,
	}
}
