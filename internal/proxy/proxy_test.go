package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/wso2/open-auth-bouncer/internal/bouncer"
	"github.com/wso2/open-auth-bouncer/internal/config"
	"github.com/wso2/open-auth-bouncer/internal/metrics"
	"github.com/wso2/open-auth-bouncer/internal/session"
)

type nopOAuth struct{}

func (nopOAuth) AuthCodeURL(state string) string {
	return "https://id.example.com/oauth/authorize?state=" + state
}

func (nopOAuth) Exchange(context.Context, string) (*oauth2.Token, error) {
	return nil, errors.New("not used")
}

func (nopOAuth) Identity(context.Context, *oauth2.Token) (*session.Identity, error) {
	return nil, errors.New("not used")
}

// echoUpstream answers with the path, query and headers it received
func echoUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"path":    r.URL.Path,
			"query":   r.URL.RawQuery,
			"host":    r.Host,
			"headers": r.Header,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type echoed struct {
	Path    string      `json:"path"`
	Query   string      `json:"query"`
	Headers http.Header `json:"headers"`
}

type fixture struct {
	handler http.Handler
	manager *session.Manager
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	manager := session.NewManager(session.NewMemoryStore(), session.ManagerOptions{
		CookieName: "bouncer_session",
		Secret:     "test-secret",
		TTL:        time.Hour,
	})
	rec := metrics.New()
	b, err := bouncer.New(bouncer.OptionsFromConfig(cfg), manager, nopOAuth{}, rec)
	if err != nil {
		t.Fatalf("Failed to create bouncer: %v", err)
	}
	handler, err := NewRouter(cfg, b, rec)
	if err != nil {
		t.Fatalf("Failed to create router: %v", err)
	}
	return &fixture{handler: handler, manager: manager}
}

// login stores an authenticated session and returns its cookie
func (f *fixture) login(t *testing.T, id session.Identity) *http.Cookie {
	t.Helper()
	sess := session.New("sid-1")
	if err := sess.Authenticate(id, "access-123"); err != nil {
		t.Fatalf("Failed to authenticate session: %v", err)
	}
	rec := httptest.NewRecorder()
	if err := f.manager.Save(context.Background(), rec, sess); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Expected one session cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func testConfig(upstream string) *config.Config {
	return &config.Config{
		UpstreamURL:    upstream,
		TimeoutSeconds: 5,
		IgnoredRoutes:  []string{"/health"},
		Provider:       config.ProviderConfig{Name: "heroku", ServerURL: "https://id.example.com"},
		Authorization:  config.AuthorizationConfig{Mode: config.AllowAllMode},
		Metrics:        config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func decodeEcho(t *testing.T, body io.Reader) echoed {
	t.Helper()
	var e echoed
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		t.Fatalf("Failed to decode upstream echo: %v", err)
	}
	return e
}

func TestForwardsIdentityHeaders(t *testing.T) {
	upstream := echoUpstream(t)

	tests := []struct {
		name          string
		forwardToken  bool
		expectedToken string
	}{
		{name: "Without access token", forwardToken: false, expectedToken: ""},
		{name: "With access token", forwardToken: true, expectedToken: "access-123"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(upstream.URL + "/app")
			cfg.ForwardAccessToken = tc.forwardToken
			f := newFixture(t, cfg)
			cookie := f.login(t, session.Identity{Email: "user@heroku.com", Name: "Test User", ID: "42"})

			req := httptest.NewRequest(http.MethodGet, "/hello-world?tab=1", nil)
			req.AddCookie(cookie)
			req.Header.Set("X-Bouncer-Email", "attacker@example.com")
			rr := httptest.NewRecorder()
			f.handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
			}
			e := decodeEcho(t, rr.Body)
			if e.Path != "/app/hello-world" {
				t.Errorf("Expected path /app/hello-world, got %s", e.Path)
			}
			if e.Query != "tab=1" {
				t.Errorf("Expected query tab=1, got %s", e.Query)
			}
			if got := e.Headers.Values("X-Bouncer-Email"); len(got) != 1 || got[0] != "user@heroku.com" {
				t.Errorf("Expected X-Bouncer-Email user@heroku.com only, got %v", got)
			}
			if got := e.Headers.Get("X-Bouncer-Name"); got != "Test User" {
				t.Errorf("Expected X-Bouncer-Name Test User, got %s", got)
			}
			if got := e.Headers.Get("X-Bouncer-User-Id"); got != "42" {
				t.Errorf("Expected X-Bouncer-User-Id 42, got %s", got)
			}
			if got := e.Headers.Get("X-Bouncer-Token"); got != tc.expectedToken {
				t.Errorf("Expected X-Bouncer-Token %q, got %q", tc.expectedToken, got)
			}
		})
	}
}

func TestIgnoredRouteStripsSpoofedIdentity(t *testing.T) {
	upstream := echoUpstream(t)
	f := newFixture(t, testConfig(upstream.URL))

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	req.Header.Set("X-Bouncer-Email", "attacker@example.com")
	req.Header.Set("Proxy-Connection", "keep-alive")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected ignored route to reach upstream, got %d", rr.Code)
	}
	e := decodeEcho(t, rr.Body)
	if got := e.Headers.Get("X-Bouncer-Email"); got != "" {
		t.Errorf("Expected spoofed identity header stripped, got %s", got)
	}
	if got := e.Headers.Get("Proxy-Connection"); got != "" {
		t.Errorf("Expected hop-by-hop header stripped, got %s", got)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Errorf("Expected no session cookie on ignored route")
	}
}

func TestDotSegmentsCannotEscapeIgnoredRoute(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer upstream.Close()

	cfg := testConfig(upstream.URL)
	cfg.IgnoredRoutes = []string{"/assets/*"}
	f := newFixture(t, cfg)

	for _, target := range []string{"/assets/../admin", "/assets/%2e%2e/admin", "/assets/%2E%2E/admin"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Accept", "application/json")
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rr.Code)
		}
	}
	if hits != 0 {
		t.Errorf("Expected upstream not to be called, got %d hits", hits)
	}
}

func TestForwardsCleanedPath(t *testing.T) {
	upstream := echoUpstream(t)
	f := newFixture(t, testConfig(upstream.URL+"/app"))
	cookie := f.login(t, session.Identity{Email: "user@heroku.com"})

	req := httptest.NewRequest(http.MethodGet, "/docs/%2e%2e/hello-world", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if e := decodeEcho(t, rr.Body); e.Path != "/app/hello-world" {
		t.Errorf("Expected path /app/hello-world, got %s", e.Path)
	}
}

func TestUnauthenticatedNeverReachesUpstream(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer upstream.Close()
	f := newFixture(t, testConfig(upstream.URL))

	req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rr.Code)
	}
	if hits != 0 {
		t.Errorf("Expected upstream not to be called, got %d hits", hits)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/auth/heroku" {
		t.Errorf("Expected redirect to /auth/heroku, got %d %s", rr.Code, rr.Header().Get("Location"))
	}
}

func TestLoginRouteIsMounted(t *testing.T) {
	f := newFixture(t, testConfig("http://localhost:3000"))

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/heroku", nil))
	if rr.Code != http.StatusFound {
		t.Fatalf("Expected 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, "https://id.example.com/oauth/authorize?state=") {
		t.Errorf("Expected redirect to the provider, got %s", loc)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	upstream := echoUpstream(t)
	f := newFixture(t, testConfig(upstream.URL))

	// One gated request so the decision counter has a sample
	f.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 from metrics, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `outcome="unauthenticated"`) {
		t.Errorf("Expected unauthenticated decision in metrics output")
	}
}

func TestBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	f := newFixture(t, testConfig(addr))
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rr.Code)
	}
}

func TestNewRouterRejectsInvalidUpstream(t *testing.T) {
	tests := []struct {
		name     string
		upstream string
	}{
		{name: "Missing scheme", upstream: "localhost:3000/app"},
		{name: "Unparseable", upstream: "http://[::1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(tc.upstream)
			manager := session.NewManager(session.NewMemoryStore(), session.ManagerOptions{CookieName: "s", Secret: "x", TTL: time.Hour})
			b, err := bouncer.New(bouncer.OptionsFromConfig(cfg), manager, nopOAuth{}, nil)
			if err != nil {
				t.Fatalf("Failed to create bouncer: %v", err)
			}
			if _, err := NewRouter(cfg, b, nil); err == nil {
				t.Errorf("Expected error for upstream %q", tc.upstream)
			}
		})
	}
}

func TestIsStreamRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	if isStreamRequest(req) {
		t.Errorf("Expected plain request not to be a stream")
	}
	req.Header.Set("Accept", "text/event-stream")
	if !isStreamRequest(req) {
		t.Errorf("Expected event-stream request to be a stream")
	}
}
