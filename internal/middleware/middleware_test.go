package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposal-review/internal/config"
	"proposal-review/internal/memstore"
	"proposal-review/internal/middleware"
	"proposal-review/internal/models"
	"proposal-review/internal/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	helper := testutil.NewAuthHelper()
	mw := middleware.NewAuthMiddleware(helper.Service)
	reviewer := testutil.NewReviewer()

	var gotID uuid.UUID
	var gotEmail string
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = middleware.GetUserID(r)
		gotEmail, _ = middleware.GetUserEmail(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		helper.AddAuthHeader(t, req, reviewer)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, reviewer.ID, gotID)
		assert.Equal(t, reviewer.Email, gotEmail)
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRequireRole(t *testing.T) {
	store := memstore.New()
	admin := testutil.CreateReviewer(t, store, testutil.AsAdmin())
	reviewer := testutil.CreateReviewer(t, store)
	suspendedAdmin := testutil.CreateReviewer(t, store, testutil.AsAdmin(), testutil.WithStatus(models.ReviewerStatusSuspended))

	handler := middleware.NewRBACMiddleware(store).RequireRole(models.RoleAdmin)(okHandler())

	tests := []struct {
		name string
		id   uuid.UUID
		want int
	}{
		{"admin", admin.ID, http.StatusOK},
		{"reviewer", reviewer.ID, http.StatusForbidden},
		{"suspended admin", suspendedAdmin.ID, http.StatusForbidden},
		{"unknown", uuid.New(), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(middleware.WithUser(req.Context(), tt.id, "", models.RoleAdmin))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

type auditEntry struct {
	actorID  *uuid.UUID
	action   string
	resource string
	details  string
	ip       string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (f *fakeAudit) Log(_ context.Context, actorID *uuid.UUID, action, resource, details, ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{actorID, action, resource, details, ip})
}

func TestAuditMiddleware(t *testing.T) {
	audit := &fakeAudit{}
	mw := middleware.NewAuditMiddleware(audit)
	actor := uuid.New()

	succeed := mw.Log("reviewer.suspend", "reviewer")(okHandler())
	fail := mw.Log("reviewer.suspend", "reviewer")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusConflict)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reviewers/x/suspend", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req = req.WithContext(middleware.WithUser(req.Context(), actor, "a@example.com", models.RoleAdmin))

	succeed.ServeHTTP(httptest.NewRecorder(), req)
	fail.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, audit.entries, 1)
	e := audit.entries[0]
	require.NotNil(t, e.actorID)
	assert.Equal(t, actor, *e.actorID)
	assert.Equal(t, "reviewer.suspend", e.action)
	assert.Equal(t, "reviewer", e.resource)
	assert.Equal(t, "POST /api/v1/admin/reviewers/x/suspend -> 200", e.details)
	assert.Equal(t, "203.0.113.7", e.ip)
}

func TestCORS(t *testing.T) {
	cfg := &config.CORSConfig{
		AllowedOrigins:   []string{"https://app.example"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	}
	handler := middleware.NewCORSMiddleware(cfg).Handler(okHandler())

	t.Run("allowed origin preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimiter(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:  true,
		Requests: 2,
		Duration: time.Hour,
		Burst:    2,
	})
	t.Cleanup(rl.Stop)
	handler := rl.Limit(okHandler())

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("192.0.2.1"))
	assert.Equal(t, http.StatusOK, do("192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("192.0.2.1"))
	assert.Equal(t, http.StatusOK, do("192.0.2.2"), "limits are per client")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: false, Requests: 1, Duration: time.Hour})
	handler := rl.Limit(okHandler())

	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	handler := middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
