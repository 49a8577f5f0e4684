package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tutofino/gateway/internal/config"
)

// newTestApp wires a full gateway around a fake identity provider. The
// provider authenticates bearer token "admin-tok" as an admin-less user
// (roles come from the DB, which is absent here, so every user resolves
// to no role).
func newTestApp(t *testing.T) *App {
	t.Helper()

	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/user":
			if r.Header.Get("Authorization") == "Bearer user-tok" {
				json.NewEncoder(w).Encode(map[string]string{"id": "user-1"})
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		case "/auth/v1/token":
			if r.URL.Query().Get("grant_type") != "pkce" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["auth_code"] == "good-code" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(idp.Close)

	cfg := &config.Config{
		Env:     "development",
		Port:    0,
		BaseURL: "http://localhost:8080",
		Gateway: config.GatewayConfig{
			AllowedOrigins:         []string{"http://localhost:3000"},
			CSRFTokenTTL:           15 * time.Minute,
			RateLimitWindow:        time.Minute,
			RateLimitMax:           100,
			RateLimitStrategy:      config.StrategyFixedWindow,
			StoreBackend:           config.BackendMemory,
			EnforceProtectedRoutes: true,
			UpstreamTimeout:        time.Second,
			Routes: config.RouteConfig{
				Protected:    []string{"/admin", "/profile", "/chat"},
				AuthEntry:    []string{"/login", "/register", "/forgot-password"},
				Admin:        []string{"/admin"},
				LoginPath:    "/login",
				AdminLanding: "/admin/user",
				UserLanding:  "/chat",
				RootPath:     "/",
			},
		},
		Identity: config.IdentityConfig{
			BaseURL:      idp.URL,
			APIKey:       "anon-key",
			AccessCookie: "sb-access-token",
			Timeout:      time.Second,
		},
	}

	a := New(cfg, nil, nil)
	a.RegisterRoutes()
	return a
}

func do(a *App, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestPipeline_PublicPageServed(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, http.MethodGet, "/", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-CSRF-Token") == "" {
		t.Error("every page response should carry the next CSRF token")
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected a request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on the response")
	}
}

func TestPipeline_PreflightShortCircuit(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, http.MethodOptions, "/chat", map[string]string{
		"Origin": "http://localhost:3000",
	})

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("expected CORS headers on preflight")
	}
	if rec.Header().Get("X-CSRF-Token") != "" {
		t.Error("preflight must not trigger CSRF issuance")
	}
}

func TestPipeline_CSRFRejectionIsPlainText403(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, http.MethodPost, "/logout", nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec.Body.String() != "Invalid CSRF Token" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestPipeline_CSRFTokenRoundTrip(t *testing.T) {
	a := newTestApp(t)

	// A GET hands out a token...
	first := do(a, http.MethodGet, "/", nil)
	token := first.Header().Get("X-CSRF-Token")
	if token == "" {
		t.Fatal("expected a token on the GET response")
	}

	// ...which clears exactly one POST.
	rec := do(a, http.MethodPost, "/logout", map[string]string{"X-CSRF-Token": token})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected logout redirect, got %d", rec.Code)
	}

	rec = do(a, http.MethodPost, "/logout", map[string]string{"X-CSRF-Token": token})
	if rec.Code != http.StatusForbidden {
		t.Errorf("replayed token should be rejected, got %d", rec.Code)
	}
}

func TestPipeline_RateLimit429(t *testing.T) {
	a := newTestApp(t)
	a.Config.Gateway.RateLimitMax = 3

	// Rebuild with the tighter limit.
	a = func() *App {
		na := New(a.Config, nil, nil)
		na.RegisterRoutes()
		return na
	}()

	headers := map[string]string{"X-Forwarded-For": "1.2.3.4"}
	for i := 0; i < 3; i++ {
		if rec := do(a, http.MethodGet, "/", headers); rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i+1, rec.Code)
		}
	}

	rec := do(a, http.MethodGet, "/", headers)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After: 60, got %q", rec.Header().Get("Retry-After"))
	}

	// Another client is unaffected.
	rec = do(a, http.MethodGet, "/", map[string]string{"X-Forwarded-For": "5.6.7.8"})
	if rec.Code != http.StatusOK {
		t.Errorf("other client should pass, got %d", rec.Code)
	}
}

func TestPipeline_ProtectedRedirectsAnonymous(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, http.MethodGet, "/chat", nil)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login?redirectedFrom=%2Fchat" {
		t.Errorf("unexpected redirect %q", got)
	}
}

func TestPipeline_AuthenticatedUserReachesChat(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, http.MethodGet, "/chat", map[string]string{
		"Authorization": "Bearer user-tok",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPipeline_AuthenticatedUserBouncedOffLogin(t *testing.T) {
	a := newTestApp(t)
	rec := do(a, http.MethodGet, "/login", map[string]string{
		"Authorization": "Bearer user-tok",
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/chat" {
		t.Errorf("expected redirect to /chat, got %q", got)
	}
}

func TestPipeline_AdminAreaClosedWithoutRole(t *testing.T) {
	// No database is wired, so even an authenticated user has no role
	// and the admin area stays shut.
	a := newTestApp(t)
	rec := do(a, http.MethodGet, "/admin/user", map[string]string{
		"Authorization": "Bearer user-tok",
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/" {
		t.Errorf("expected redirect to root, got %q", got)
	}
}

func TestPipeline_AuthCodeExchange(t *testing.T) {
	a := newTestApp(t)

	rec := do(a, http.MethodGet, "/login?code=good-code", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login?verified=true" {
		t.Errorf("expected verified marker, got %q", got)
	}

	rec = do(a, http.MethodGet, "/login?code=bad-code", nil)
	if got := rec.Header().Get("Location"); got != "/login?error=verification-failed" {
		t.Errorf("expected failure marker, got %q", got)
	}
}

func TestPipeline_IdentityOutageFailsClosed(t *testing.T) {
	a := newTestApp(t)
	// Point the resolver at a dead endpoint by shutting the fake down is
	// covered in the session tests; here the stale token path suffices:
	// the provider 401s and the gateway treats the caller as anonymous.
	rec := do(a, http.MethodGet, "/chat", map[string]string{
		"Authorization": "Bearer expired-tok",
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect for unauthenticated caller, got %d", rec.Code)
	}
}
