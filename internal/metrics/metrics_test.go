package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordImageAttempt(t *testing.T) {
	before := testutil.ToFloat64(imageAttempts.WithLabelValues("imagen", "failure"))
	RecordImageAttempt("imagen", false, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(imageAttempts.WithLabelValues("imagen", "failure")))
}

func TestRecordMailboxOutcome(t *testing.T) {
	okBefore := testutil.ToFloat64(mailboxOps.WithLabelValues("send", "ok"))
	errBefore := testutil.ToFloat64(mailboxOps.WithLabelValues("send", "error"))

	RecordMailbox("send", nil)
	RecordMailbox("send", errors.New("down"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(mailboxOps.WithLabelValues("send", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(mailboxOps.WithLabelValues("send", "error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordGreeting(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jingle_gift_greeting_generations_total")
}
