package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	authcore "github.com/ledgerkeep/authcore"
	"github.com/ledgerkeep/authcore/apierror"
	"github.com/ledgerkeep/authcore/secret"
)

type memorySecretStore struct {
	mu    sync.Mutex
	value []byte
	saved time.Time
}

func (s *memorySecretStore) Get(ctx context.Context) ([]byte, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return nil, time.Time{}, secret.ErrNotFound
	}
	out := make([]byte, len(s.value))
	copy(out, s.value)
	return out, s.saved, nil
}

func (s *memorySecretStore) PutIfAbsent(ctx context.Context, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value != nil {
		return nil
	}
	s.value = append([]byte(nil), value...)
	s.saved = time.Now()
	return nil
}

func (s *memorySecretStore) Replace(ctx context.Context, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = append([]byte(nil), value...)
	s.saved = time.Now()
	return nil
}

type staticPrincipals struct{}

func (staticPrincipals) GetPrincipal(_ context.Context, id string) (*authcore.Principal, error) {
	if id != "u1" {
		return nil, authcore.ErrPrincipalNotFound
	}
	return &authcore.Principal{ID: "u1", Role: "member", Active: true}, nil
}

func newMiddlewareEngine(t *testing.T, mutate func(*authcore.Config)) *authcore.Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authcore.DefaultConfig()
	cfg.RateLimit.Breaker.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithSecretStore(&memorySecretStore{}).
		WithPrincipalProvider(staticPrincipals{}).
		WithErrorSink(apierror.NoOpSink{}).
		WithLogger(zerolog.Nop()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func decodeEnvelope(t *testing.T, body string) (code, message string) {
	t.Helper()

	var payload struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if payload.Success {
		t.Fatal("error envelope must carry success=false")
	}
	return payload.Error.Code, payload.Error.Message
}

func TestGuardMissingToken(t *testing.T) {
	engine := newMiddlewareEngine(t, nil)

	var hit bool
	handler := Guard(engine)(okHandler(&hit))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	if hit {
		t.Fatal("handler must not run without a token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	code, _ := decodeEnvelope(t, rec.Body.String())
	if code != string(apierror.CodeInvalidToken) {
		t.Fatalf("code = %q, want %q", code, apierror.CodeInvalidToken)
	}
}

func TestGuardInvalidAndValidTokensShareEnvelopeShape(t *testing.T) {
	engine := newMiddlewareEngine(t, nil)

	var hit bool
	handler := Guard(engine)(okHandler(&hit))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", rec.Code)
	}
	garbageCode, garbageMsg := decodeEnvelope(t, rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	token, err := engine.IssueToken(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	flipped := byte('A')
	if token[len(token)-1] == 'A' {
		flipped = 'B'
	}
	req.Header.Set("Authorization", "Bearer "+token[:len(token)-1]+string(flipped))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered token status = %d, want 401", rec.Code)
	}
	tamperedCode, tamperedMsg := decodeEnvelope(t, rec.Body.String())

	if garbageCode != tamperedCode || garbageMsg != tamperedMsg {
		t.Fatalf("rejection envelopes differ: (%q,%q) vs (%q,%q)",
			garbageCode, garbageMsg, tamperedCode, tamperedMsg)
	}
	if hit {
		t.Fatal("handler must not run on rejected tokens")
	}
}

func TestGuardInjectsAuthResult(t *testing.T) {
	engine := newMiddlewareEngine(t, nil)

	token, err := engine.IssueToken(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	var got *authcore.AuthResult
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok {
			t.Fatal("auth result missing from context")
		}
		got = res
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.PrincipalID != "u1" || got.Role != "member" {
		t.Fatalf("auth result = %+v", got)
	}
}

func TestRateLimitHeadersAndRejection(t *testing.T) {
	engine := newMiddlewareEngine(t, func(cfg *authcore.Config) {
		cfg.RateLimit.API = authcore.WindowConfig{MaxAttempts: 2, Window: time.Minute}
	})

	var hit bool
	handler := WithRequestContext(RateLimit(engine)(okHandler(&hit)))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api", nil)
		req.RemoteAddr = "10.0.0.9:4410"
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
		if limit := rec.Header().Get("X-RateLimit-Limit"); limit != "2" {
			t.Fatalf("request %d X-RateLimit-Limit = %q, want 2", i+1, limit)
		}
		wantRemaining := strconv.Itoa(2 - (i + 1))
		if rem := rec.Header().Get("X-RateLimit-Remaining"); rem != wantRemaining {
			t.Fatalf("request %d X-RateLimit-Remaining = %q, want %s", i+1, rem, wantRemaining)
		}
	}

	hit = false
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.RemoteAddr = "10.0.0.9:4410"
	handler.ServeHTTP(rec, req)

	if hit {
		t.Fatal("handler must not run over budget")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	retry := rec.Header().Get("Retry-After")
	secs, err := strconv.Atoi(retry)
	if err != nil || secs < 1 || secs > 60 {
		t.Fatalf("Retry-After = %q, want 1..60 seconds", retry)
	}
	code, _ := decodeEnvelope(t, rec.Body.String())
	if code != string(apierror.CodeRateLimited) {
		t.Fatalf("code = %q, want %q", code, apierror.CodeRateLimited)
	}
}

func TestRateLimitSeparatesForwardedClients(t *testing.T) {
	engine := newMiddlewareEngine(t, func(cfg *authcore.Config) {
		cfg.RateLimit.API = authcore.WindowConfig{MaxAttempts: 1, Window: time.Minute}
	})

	var hit bool
	handler := WithRequestContext(RateLimit(engine)(okHandler(&hit)))

	send := func(forwarded string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api", nil)
		req.RemoteAddr = "172.16.0.1:8080"
		req.Header.Set("X-Forwarded-For", forwarded)
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("198.51.100.7"); code != http.StatusOK {
		t.Fatalf("first client status = %d, want 200", code)
	}
	if code := send("198.51.100.7"); code != http.StatusTooManyRequests {
		t.Fatalf("repeat client status = %d, want 429", code)
	}
	if code := send("198.51.100.8"); code != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", code)
	}
}

func TestBackendOutageAnswersDatabaseError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authcore.DefaultConfig()
	cfg.RateLimit.Breaker.Enabled = false

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithSecretStore(&memorySecretStore{}).
		WithPrincipalProvider(staticPrincipals{}).
		WithErrorSink(apierror.NoOpSink{}).
		WithLogger(zerolog.Nop()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	mr.Close()

	var hit bool
	rec := httptest.NewRecorder()
	RateLimit(engine)(okHandler(&hit)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("rate limit status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if code, _ := decodeEnvelope(t, rec.Body.String()); code != string(apierror.CodeDatabase) {
		t.Fatalf("rate limit code = %q, want %q", code, apierror.CodeDatabase)
	}
	if hit {
		t.Fatal("handler must not run while the limiter backend is down")
	}

	req := httptest.NewRequest(http.MethodPost, "/expenses", nil)
	req.Header.Set(CSRFHeader, "0123456789abcdef0123456789abcdef")
	rec = httptest.NewRecorder()
	CSRF(engine, func(*http.Request) string { return "sess-1" })(okHandler(&hit)).ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("csrf status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if code, _ := decodeEnvelope(t, rec.Body.String()); code != string(apierror.CodeDatabase) {
		t.Fatalf("csrf code = %q, want %q", code, apierror.CodeDatabase)
	}
	if hit {
		t.Fatal("handler must not run while the token store is down")
	}
}

func TestSmoothShedsBurst(t *testing.T) {
	engine := newMiddlewareEngine(t, nil)

	var hits int
	handler := Smooth(engine, 1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))

	var throttled int
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
		if rec.Code == http.StatusTooManyRequests {
			throttled++
			if retry := rec.Header().Get("Retry-After"); retry != "1" {
				t.Fatalf("Retry-After = %q, want 1", retry)
			}
		}
	}

	if hits < 2 {
		t.Fatalf("hits = %d, want at least the burst of 2", hits)
	}
	if throttled == 0 {
		t.Fatal("expected the in-process bucket to shed part of the burst")
	}
}

func TestCSRFSafeMethodsPass(t *testing.T) {
	engine := newMiddlewareEngine(t, nil)

	var hit bool
	handler := CSRF(engine, func(*http.Request) string { return "sess-1" })(okHandler(&hit))

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		hit = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, "/form", nil))
		if !hit || rec.Code != http.StatusOK {
			t.Fatalf("%s: hit=%v status=%d, want pass-through", method, hit, rec.Code)
		}
	}
}

func TestCSRFSessionTokenConsumedOnce(t *testing.T) {
	engine := newMiddlewareEngine(t, nil)

	token, err := engine.IssueCSRF(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("IssueCSRF: %v", err)
	}

	var hit bool
	handler := CSRF(engine, func(*http.Request) string { return "sess-1" })(okHandler(&hit))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transfer", nil)
	req.Header.Set(CSRFHeader, token)
	handler.ServeHTTP(rec, req)

	if !hit || rec.Code != http.StatusOK {
		t.Fatalf("first use: hit=%v status=%d, want accepted", hit, rec.Code)
	}

	hit = false
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/transfer", nil)
	req.Header.Set(CSRFHeader, token)
	handler.ServeHTTP(rec, req)

	if hit {
		t.Fatal("replayed token must not reach the handler")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("replay status = %d, want 403", rec.Code)
	}
	code, _ := decodeEnvelope(t, rec.Body.String())
	if code != string(apierror.CodeCSRFInvalid) {
		t.Fatalf("code = %q, want %q", code, apierror.CodeCSRFInvalid)
	}
}

func TestCSRFMissingTokenRequired(t *testing.T) {
	engine := newMiddlewareEngine(t, nil)

	var hit bool
	handler := CSRF(engine, func(*http.Request) string { return "sess-1" })(okHandler(&hit))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transfer", nil))

	if hit {
		t.Fatal("handler must not run without a token")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	code, _ := decodeEnvelope(t, rec.Body.String())
	if code != string(apierror.CodeCSRFRequired) {
		t.Fatalf("code = %q, want %q", code, apierror.CodeCSRFRequired)
	}
}

func TestCSRFFormFieldFallback(t *testing.T) {
	engine := newMiddlewareEngine(t, nil)

	token, err := engine.IssueCSRF(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("IssueCSRF: %v", err)
	}

	var hit bool
	handler := CSRF(engine, func(*http.Request) string { return "sess-1" })(okHandler(&hit))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transfer", strings.NewReader("csrf_token="+token))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	handler.ServeHTTP(rec, req)

	if !hit || rec.Code != http.StatusOK {
		t.Fatalf("form token: hit=%v status=%d, want accepted", hit, rec.Code)
	}
}

func TestCSRFDoubleSubmitFallback(t *testing.T) {
	engine := newMiddlewareEngine(t, nil)

	var hit bool
	handler := CSRF(engine, func(*http.Request) string { return "" })(okHandler(&hit))

	value := "dbl-submit-value-0123456789abcdef"

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transfer", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: value})
	req.Header.Set(CSRFHeader, value)
	handler.ServeHTTP(rec, req)

	if !hit || rec.Code != http.StatusOK {
		t.Fatalf("matching pair: hit=%v status=%d, want accepted", hit, rec.Code)
	}

	hit = false
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/transfer", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: value})
	req.Header.Set(CSRFHeader, value+"-tampered")
	handler.ServeHTTP(rec, req)

	if hit {
		t.Fatal("mismatched pair must not reach the handler")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mismatch status = %d, want 403", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	var hit bool
	handler := SecurityHeaders(okHandler(&hit))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !hit {
		t.Fatal("handler must run")
	}
	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	}
	for name, value := range want {
		if got := rec.Header().Get(name); got != value {
			t.Fatalf("%s = %q, want %q", name, got, value)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5511"
	if got := ClientIP(req); got != "192.0.2.10" {
		t.Fatalf("ClientIP = %q, want 192.0.2.10", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.4, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.4" {
		t.Fatalf("forwarded ClientIP = %q, want 203.0.113.4", got)
	}
}
