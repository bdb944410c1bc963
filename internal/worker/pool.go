// Package worker runs parse jobs in the background. A job loads one stored
// conversation, splits it into messages and writes the result back in a
// single transaction. Jobs are delivered at least once: a failed job is
// retried, which is safe because parsing is deterministic and the write
// replaces any earlier result.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.io/infrasutra/threadparse/internal/metrics"
	"github.io/infrasutra/threadparse/internal/notify"
	"github.io/infrasutra/threadparse/internal/parser"
	"github.io/infrasutra/threadparse/internal/store"
)

var (
	ErrQueueFull = errors.New("parse queue is full")
	ErrStopped   = errors.New("worker pool stopped")
)

type Job struct {
	ConversationID string
	Notify         bool
	Attempt        int
}

// Store is the persistence a parse job needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (store.Conversation, error)
	SaveParsed(ctx context.Context, id string, parsed store.ParsedConversation, expiresAt time.Time) error
}

type Config struct {
	Workers      int
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
	Expiry       time.Duration
}

type Pool struct {
	cfg      Config
	store    Store
	parser   *parser.Parser
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	queue   chan Job
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

func New(cfg Config, st Store, notifier notify.Notifier, m *metrics.Metrics, logger *slog.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 24 * time.Hour
	}
	return &Pool{
		cfg:      cfg,
		store:    st,
		parser:   parser.New(),
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		queue:    make(chan Job, cfg.QueueSize),
	}
}

// Start launches the workers. They run until Stop is called or ctx ends.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-p.queue:
					p.run(ctx, job)
				}
			}
		}()
	}
	p.logger.Info("parse workers started", "workers", p.cfg.Workers, "queue", p.cfg.QueueSize)
}

// Stop cancels the workers and waits for running jobs to return. Queued
// jobs that were not picked up are dropped; their conversations stay
// unparsed and are resumed on the next start.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Enqueue adds a job without blocking.
func (p *Pool) Enqueue(_ context.Context, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	err := p.Process(ctx, job)
	if err == nil {
		p.metrics.ParseJobs.WithLabelValues("ok").Inc()
		return
	}
	if ctx.Err() != nil {
		return
	}

	job.Attempt++
	if job.Attempt >= p.cfg.MaxAttempts {
		p.metrics.ParseJobs.WithLabelValues("failed").Inc()
		p.logger.Error("parse conversation", "conversation", job.ConversationID, "attempts", job.Attempt, "error", err)
		return
	}

	p.metrics.ParseJobs.WithLabelValues("retry").Inc()
	delay := time.Duration(job.Attempt) * p.cfg.RetryBackoff
	p.logger.Warn("parse conversation, retrying", "conversation", job.ConversationID, "attempt", job.Attempt, "delay", delay, "error", err)
	time.AfterFunc(delay, func() {
		if err := p.Enqueue(ctx, job); err != nil && !errors.Is(err, ErrStopped) {
			p.logger.Error("requeue parse job", "conversation", job.ConversationID, "error", err)
		}
	})
}

// Process parses one conversation and stores the result. It can be called
// directly, without starting the pool.
func (p *Pool) Process(ctx context.Context, job Job) error {
	conversation, err := p.store.GetConversation(ctx, job.ConversationID)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", job.ConversationID, err)
	}

	started := time.Now()
	result := p.parser.ParseConversation(conversation.Subject, conversation.Plain)
	p.metrics.ParseDuration.Observe(time.Since(started).Seconds())

	parsed := store.ParsedConversation{
		Subject:  result.Subject,
		Sender:   parser.CleanSender(conversation.Sender),
		Messages: toStoreMessages(result.Messages),
	}
	expiresAt := p.now().Add(p.cfg.Expiry)
	if err := p.store.SaveParsed(ctx, conversation.ID, parsed, expiresAt); err != nil {
		return fmt.Errorf("save conversation %s: %w", conversation.ID, err)
	}
	p.metrics.MessagesExtracted.Add(float64(len(parsed.Messages)))
	p.logger.Info("conversation parsed", "conversation", conversation.ID, "messages", len(parsed.Messages))

	if job.Notify && p.notifier != nil {
		conversation.Subject = parsed.Subject
		conversation.Sender = parsed.Sender
		conversation.Parsed = true
		conversation.ExpiresAt = expiresAt
		if err := p.notifier.ConversationReady(ctx, conversation); err != nil {
			p.metrics.Notifications.WithLabelValues("failed").Inc()
			p.logger.Warn("notify conversation ready", "conversation", conversation.ID, "error", err)
		} else {
			p.metrics.Notifications.WithLabelValues("ok").Inc()
		}
	}
	return nil
}

func toStoreMessages(messages []parser.Message) []store.Message {
	result := make([]store.Message, 0, len(messages))
	for _, m := range messages {
		fields := make([]string, 0, len(m.Headers))
		for field := range m.Headers {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		headers := make([]store.Header, 0, len(fields))
		for _, field := range fields {
			headers = append(headers, store.Header{Field: field, Value: m.Headers[field]})
		}
		result = append(result, store.Message{
			Body:    m.Body,
			Sent:    m.Sent,
			Sender:  m.Sender,
			Headers: headers,
		})
	}
	return result
}
