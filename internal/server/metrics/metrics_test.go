package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExecute_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordExecute("register", nil, 5*time.Millisecond)
	c.RecordExecute("register", nil, 5*time.Millisecond)
	c.RecordExecute("register", errors.New("x"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.executes.WithLabelValues("register", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executes.WithLabelValues("register", OutcomeError)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.executeLatency))
}

func TestSetRegisteredUsers(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.SetRegisteredUsers(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(c.registeredUsers))
}

func TestRouter_ServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordExecute("session_start", nil, time.Millisecond)
	h := Router(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Result().Body)
	assert.True(t, strings.Contains(string(body), "userledger_execute_total"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/metrics", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestNop(t *testing.T) {
	r := Nop()
	r.RecordExecute("x", nil, 0)
	r.SetRegisteredUsers(1)
}
