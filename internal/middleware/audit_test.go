package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutofino/gateway/internal/audit"
)

// recordingSink captures inserted entries.
type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingSink) InsertRequestLog(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingSink) snapshot() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Entry(nil), r.entries...)
}

func auditRequest(t *testing.T, sink audit.Sink, method, target string, headers map[string]string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := Audit(sink, "/login", time.Second)(okHandler(nil))(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// waitFor polls until the condition holds or the deadline passes. The
// insert is fire-and-forget, so tests have to wait for the goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAudit_RecordsLoginPageVisit(t *testing.T) {
	sink := &recordingSink{}
	auditRequest(t, sink, http.MethodGet, "/login", map[string]string{
		"X-Forwarded-For": "1.2.3.4",
		"User-Agent":      "kid-browser/1.0",
	})

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })

	e := sink.snapshot()[0]
	if e.ClientIP != "1.2.3.4" || e.Method != http.MethodGet || e.UserAgent != "kid-browser/1.0" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestAudit_IgnoresOtherRequests(t *testing.T) {
	sink := &recordingSink{}

	auditRequest(t, sink, http.MethodPost, "/login", nil)
	auditRequest(t, sink, http.MethodGet, "/chat", nil)
	auditRequest(t, sink, http.MethodGet, "/", nil)

	// Give any stray goroutine a moment to misbehave.
	time.Sleep(50 * time.Millisecond)
	if got := len(sink.snapshot()); got != 0 {
		t.Errorf("expected no audit entries, got %d", got)
	}
}
