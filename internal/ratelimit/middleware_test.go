package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type stubLimiter struct {
	decision Decision
	err      error
	keys     []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func serve(t *testing.T, limiter Allower, keyFn KeyFunc, header string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/api/orders", Middleware(limiter, keyFn, slog.New(slog.NewTextHandler(io.Discard, nil))), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.RemoteAddr = "203.0.113.7:41000"
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		limiter     *stubLimiter
		wantStatus  int
		wantRetry   string
		wantLimitHd string
	}{
		{
			name:        "allowed",
			limiter:     &stubLimiter{decision: Decision{Allowed: true, Limit: 10, Remaining: 9}},
			wantStatus:  http.StatusCreated,
			wantLimitHd: "10",
		},
		{
			name:        "rejected",
			limiter:     &stubLimiter{decision: Decision{Limit: 10, RetryAfter: 1500 * time.Millisecond}},
			wantStatus:  http.StatusTooManyRequests,
			wantRetry:   "2",
			wantLimitHd: "10",
		},
		{
			name:       "limiter down fails open",
			limiter:    &stubLimiter{err: errors.New("connection refused")},
			wantStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.limiter, ByClientIP, "")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
			if got := rec.Header().Get("X-RateLimit-Limit"); got != tt.wantLimitHd {
				t.Errorf("X-RateLimit-Limit = %q, want %q", got, tt.wantLimitHd)
			}
			if len(tt.limiter.keys) != 1 || tt.limiter.keys[0] != "ip:203.0.113.7" {
				t.Errorf("keys = %v, want [ip:203.0.113.7]", tt.limiter.keys)
			}
		})
	}
}

func TestByCredential(t *testing.T) {
	limiter := &stubLimiter{decision: Decision{Allowed: true, Limit: 1}}

	serve(t, limiter, ByCredential, "Bearer sk_abc")
	serve(t, limiter, ByCredential, "")

	if len(limiter.keys) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(limiter.keys))
	}
	if limiter.keys[0][:4] != "key:" || len(limiter.keys[0]) != 20 {
		t.Errorf("credential key = %q", limiter.keys[0])
	}
	if limiter.keys[1] != "ip:203.0.113.7" {
		t.Errorf("anonymous key = %q", limiter.keys[1])
	}
}
