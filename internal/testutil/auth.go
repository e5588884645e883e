package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proposal-review/internal/auth"
	"proposal-review/internal/config"
	"proposal-review/internal/models"
)

// TestJWTSecret signs every token minted by AuthHelper
const TestJWTSecret = "test-secret-key-for-testing-only"

// AuthHelper provides JWT token generation for tests
type AuthHelper struct {
	Service *auth.Service
}

// NewAuthHelper creates a new auth helper
func NewAuthHelper() *AuthHelper {
	return &AuthHelper{
		Service: auth.NewService(&config.JWTConfig{
			Secret:     TestJWTSecret,
			Expiration: time.Hour,
			Issuer:     "proposal-review-test",
		}),
	}
}

// AddAuthHeader adds a bearer token for the reviewer to the request
func (h *AuthHelper) AddAuthHeader(t *testing.T, req *http.Request, reviewer *models.Reviewer) {
	t.Helper()

	token, err := h.Service.GenerateToken(reviewer.ID, reviewer.Email, reviewer.Role)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
}

// TestResponse holds response data for assertions
type TestResponse struct {
	*httptest.ResponseRecorder
}

// NewTestResponse creates a new test response recorder
func NewTestResponse() *TestResponse {
	return &TestResponse{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// AssertStatus asserts the HTTP status code
func (r *TestResponse) AssertStatus(t *testing.T, expected int) {
	t.Helper()

	if r.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, r.Code, r.Body.String())
	}
}
