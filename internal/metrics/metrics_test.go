package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ConversationsReceived.WithLabelValues("smtp").Inc()
	m.MessagesExtracted.Add(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `threadparse_conversations_received_total{source="smtp"} 1`)
	assert.Contains(t, rec.Body.String(), "threadparse_messages_extracted_total 3")
}

func TestMetrics_Independent(t *testing.T) {
	a := New()
	b := New()
	a.ConversationsPurged.Add(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.ConversationsPurged))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ConversationsPurged))
}
