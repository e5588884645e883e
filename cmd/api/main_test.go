package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposal-review/internal/auth"
	"proposal-review/internal/config"
	"proposal-review/internal/models"
	"proposal-review/internal/testutil"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Store:  config.StoreConfig{Driver: config.StoreDriverMemory},
		Events: config.EventsConfig{Driver: config.EventsDriverLog},
		JWT:    config.JWTConfig{Secret: testutil.TestJWTSecret, Expiration: time.Hour, Issuer: "proposal-review-test"},
		App:    config.AppConfig{Name: "proposal-review", Version: "test"},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "PATCH"},
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Assignment: config.AssignmentConfig{
			ReviewTarget:     3,
			PeerReviewTarget: 2,
			RetryBudget:      3,
			ExpiryWindow:     14 * 24 * time.Hour,
			BalanceCacheTTL:  time.Second,
			LeaderboardLimit: 10,
		},
	}
}

func newTestApp(t *testing.T) (*app, http.Handler) {
	t.Helper()
	a, err := newApp(memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	handler, rl := a.routes()
	t.Cleanup(rl.Stop)
	return a, handler
}

func TestHealthAndMetrics(t *testing.T) {
	_, handler := newTestApp(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"test"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRoutesRequireAuthentication(t *testing.T) {
	_, handler := newTestApp(t)

	for _, path := range []string{"/api/v1/assignments", "/api/v1/admin/reviewers", "/api/v1/reviewers/me"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestEndToEndAssignmentThroughRouter(t *testing.T) {
	a, handler := newTestApp(t)
	helper := testutil.NewAuthHelper()

	admin := testutil.CreateReviewer(t, a.store, testutil.AsAdmin())
	author := testutil.CreateReviewer(t, a.store)
	reviewer := testutil.CreateReviewer(t, a.store)

	send := func(method, path string, as *models.Reviewer, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		helper.AddAuthHeader(t, req, as)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/api/v1/admin/proposals", admin, map[string]any{
		"author_id": author.ID,
		"title":     "Seagrass survey",
		"tags":      []string{"oceans"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(http.MethodPost, "/api/v1/assignments/request", reviewer, map[string]string{"kind": "review"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var assignment models.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assignment))

	rec = send(http.MethodPost, "/api/v1/assignments/"+assignment.ID.String()+"/complete", reviewer, map[string]int{"quality": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(http.MethodGet, "/api/v1/reputation/me", reviewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":30`)

	rec = send(http.MethodPost, "/api/v1/admin/assignments/reclaim", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reclaimed":0`)

	logs, err := a.audit.List(t.Context(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("STORE_DRIVER", "memory")
	id := uuid.New()

	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", id.String(), "--role", "admin", "--email", "ops@example.com", "--log-level", "error"})
	require.NoError(t, cmd.Execute())

	claims, err := auth.NewService(&config.JWTConfig{Secret: "cli-secret", Expiration: time.Hour}).
		ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenCommandRejectsUnknownRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("STORE_DRIVER", "memory")

	cmd := rootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", uuid.NewString(), "--role", "owner"})
	assert.Error(t, cmd.Execute())
}

func TestReclaimCommandWithMemoryStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("STORE_DRIVER", "memory")

	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"reclaim", "--log-level", "error"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "reclaimed=0\n", out.String())
}

func TestKeygenCommandWithoutConfiguration(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	out := filepath.Join(t.TempDir(), "jwt.pem")

	cmd := rootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"keygen", "--out", out})
	require.NoError(t, cmd.Execute())

	key, err := os.ReadFile(out)
	require.NoError(t, err)
	svc := auth.NewService(&config.JWTConfig{Secret: string(key), Expiration: time.Hour})
	token, err := svc.GenerateToken(uuid.New(), "", models.RoleReviewer)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.NoError(t, err)
}
