package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutofino/gateway/internal/apperror"
	"github.com/tutofino/gateway/internal/csrf"
)

func newCSRFContext(method string, header map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// assertForbidden checks that err is the CSRF policy rejection.
func assertForbidden(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected CSRF rejection, got nil")
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", appErr.Code)
	}
}

func TestCSRF_SafeMethodIssuesToken(t *testing.T) {
	store := csrf.NewMemoryStore(15 * time.Minute)
	c, rec := newCSRFContext(http.MethodGet, nil)

	called := false
	if err := CSRF(store)(okHandler(&called))(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !called {
		t.Fatal("GET should pass without a token")
	}
	issued := rec.Header().Get(CSRFHeader)
	if len(issued) != 64 {
		t.Errorf("expected a fresh 64-char token on the response, got %q", issued)
	}
	if !store.Validate(c.Request().Context(), issued) {
		t.Error("issued token should validate once")
	}
}

func TestCSRF_MutatingMethodRequiresToken(t *testing.T) {
	store := csrf.NewMemoryStore(15 * time.Minute)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			c, rec := newCSRFContext(method, nil)
			called := false
			err := CSRF(store)(okHandler(&called))(c)
			assertForbidden(t, err)
			if called {
				t.Error("handler must not run on CSRF rejection")
			}
			if rec.Header().Get(CSRFHeader) != "" {
				t.Error("no token should be issued on a rejected request")
			}
		})
	}
}

func TestCSRF_ValidTokenAccepted(t *testing.T) {
	store := csrf.NewMemoryStore(15 * time.Minute)
	token, err := store.Issue(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, rec := newCSRFContext(http.MethodPost, map[string]string{CSRFHeader: token})
	called := false
	if err := CSRF(store)(okHandler(&called))(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("valid token should pass")
	}

	// The response carries the next token, which is not the consumed one.
	next := rec.Header().Get(CSRFHeader)
	if next == "" || next == token {
		t.Errorf("expected a fresh token on the response, got %q", next)
	}
}

func TestCSRF_ReplayedTokenRejected(t *testing.T) {
	store := csrf.NewMemoryStore(15 * time.Minute)
	token, err := store.Issue(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, _ := newCSRFContext(http.MethodPost, map[string]string{CSRFHeader: token})
	if err := CSRF(store)(okHandler(nil))(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c2, _ := newCSRFContext(http.MethodPost, map[string]string{CSRFHeader: token})
	assertForbidden(t, CSRF(store)(okHandler(nil))(c2))
}
