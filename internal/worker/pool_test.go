package worker

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/threadparse/internal/metrics"
	"github.io/infrasutra/threadparse/internal/notify"
	"github.io/infrasutra/threadparse/internal/store"
)

const thread = `Sounds good.

On Mon, Jan 2, 2012 at 9:00 AM, Carol <carol@x.com> wrote:
> Lunch at noon?
`

type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]store.Conversation
	saved         map[string]store.ParsedConversation
	expires       map[string]time.Time
	saveCalls     int
	failSaves     int
}

func newFakeStore(conversations ...store.Conversation) *fakeStore {
	f := &fakeStore{
		conversations: map[string]store.Conversation{},
		saved:         map[string]store.ParsedConversation{},
		expires:       map[string]time.Time{},
	}
	for _, c := range conversations {
		f.conversations[c.ID] = c
	}
	return f
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return store.Conversation{}, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) SaveParsed(_ context.Context, id string, parsed store.ParsedConversation, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.failSaves > 0 {
		f.failSaves--
		return errors.New("database is locked")
	}
	f.saved[id] = parsed
	f.expires[id] = expiresAt
	return nil
}

func (f *fakeStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type recordingNotifier struct {
	mu    sync.Mutex
	ready []store.Conversation
	err   error
}

func (r *recordingNotifier) ConversationReady(_ context.Context, c store.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = append(r.ready, c)
	return r.err
}

func newTestPool(st Store, n *recordingNotifier, cfg Config) (*Pool, *metrics.Metrics) {
	m := metrics.New()
	var notifier notify.Notifier
	if n != nil {
		notifier = n
	}
	p := New(cfg, st, notifier, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p, m
}

func TestProcess(t *testing.T) {
	st := newFakeStore(store.Conversation{ID: "c1", Subject: "Re: lunch", Sender: "['bob@x.com']", Plain: thread})
	n := &recordingNotifier{}
	p, m := newTestPool(st, n, Config{Expiry: 24 * time.Hour})

	require.NoError(t, p.Process(context.Background(), Job{ConversationID: "c1", Notify: true}))

	parsed := st.saved["c1"]
	assert.Equal(t, "lunch", parsed.Subject)
	assert.Equal(t, "bob@x.com", parsed.Sender)
	require.Len(t, parsed.Messages, 2)
	assert.Equal(t, "Lunch at noon?", parsed.Messages[0].Body)
	assert.Equal(t, "Carol <carol@x.com>", parsed.Messages[0].Sender)
	assert.Equal(t, "Mon, Jan 2, 2012 at 9:00 AM", parsed.Messages[0].Sent)
	assert.Equal(t, "Sounds good.", parsed.Messages[1].Body)
	assert.Equal(t, time.Unix(1700000000, 0).Add(24*time.Hour), st.expires["c1"])
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesExtracted))

	require.Len(t, n.ready, 1)
	assert.Equal(t, "lunch", n.ready[0].Subject)
	assert.True(t, n.ready[0].Parsed)
}

func TestProcess_HeadersSorted(t *testing.T) {
	st := newFakeStore(store.Conversation{ID: "c1", Plain: "To: a@x.com\nFrom: b@x.com\nDate: today\n\nbody"})
	p, _ := newTestPool(st, nil, Config{})

	require.NoError(t, p.Process(context.Background(), Job{ConversationID: "c1"}))

	headers := st.saved["c1"].Messages[0].Headers
	require.Len(t, headers, 3)
	assert.Equal(t, []string{"date", "from", "to"}, []string{headers[0].Field, headers[1].Field, headers[2].Field})
}

func TestProcess_Idempotent(t *testing.T) {
	st := newFakeStore(store.Conversation{ID: "c1", Subject: "Fwd: x", Plain: thread})
	p, _ := newTestPool(st, nil, Config{})

	require.NoError(t, p.Process(context.Background(), Job{ConversationID: "c1"}))
	first := st.saved["c1"]
	require.NoError(t, p.Process(context.Background(), Job{ConversationID: "c1"}))

	assert.Equal(t, first, st.saved["c1"])
}

func TestProcess_NotifierFailureIsNotFatal(t *testing.T) {
	st := newFakeStore(store.Conversation{ID: "c1", Plain: "hi"})
	n := &recordingNotifier{err: errors.New("smtp down")}
	p, m := newTestPool(st, n, Config{})

	require.NoError(t, p.Process(context.Background(), Job{ConversationID: "c1", Notify: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("failed")))
	assert.Equal(t, 1, st.savedCount())
}

func TestProcess_MissingConversation(t *testing.T) {
	p, _ := newTestPool(newFakeStore(), nil, Config{})

	err := p.Process(context.Background(), Job{ConversationID: "nope"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPool_RetriesFailedJobs(t *testing.T) {
	st := newFakeStore(store.Conversation{ID: "c1", Plain: "hi"})
	st.failSaves = 2
	p, m := newTestPool(st, nil, Config{Workers: 2, QueueSize: 4, MaxAttempts: 3, RetryBackoff: time.Millisecond})
	p.Start(context.Background())
	defer p.Stop()

	require.NoError(t, p.Enqueue(context.Background(), Job{ConversationID: "c1"}))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ParseJobs.WithLabelValues("ok")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ParseJobs.WithLabelValues("retry")))
	assert.Equal(t, 1, st.savedCount())
}

func TestPool_GivesUpAfterMaxAttempts(t *testing.T) {
	st := newFakeStore(store.Conversation{ID: "c1", Plain: "hi"})
	st.failSaves = 10
	p, m := newTestPool(st, nil, Config{MaxAttempts: 2, RetryBackoff: time.Millisecond})
	p.Start(context.Background())
	defer p.Stop()

	require.NoError(t, p.Enqueue(context.Background(), Job{ConversationID: "c1"}))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ParseJobs.WithLabelValues("failed")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, st.savedCount())
}

func TestPool_EnqueueLimits(t *testing.T) {
	p, _ := newTestPool(newFakeStore(), nil, Config{QueueSize: 1})

	require.NoError(t, p.Enqueue(context.Background(), Job{ConversationID: "a"}))
	assert.ErrorIs(t, p.Enqueue(context.Background(), Job{ConversationID: "b"}), ErrQueueFull)

	p.Stop()
	assert.ErrorIs(t, p.Enqueue(context.Background(), Job{ConversationID: "c"}), ErrStopped)
}
