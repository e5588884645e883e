package email

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposal-review/internal/config"
	"proposal-review/internal/models"
)

func newTestService(enabled bool) *Service {
	return NewService(&config.EmailConfig{
		Enabled:  enabled,
		SMTPHost: "127.0.0.1",
		SMTPPort: "1",
		SMTPFrom: "noreply@review.example",
		AppURL:   "https://review.example",
	})
}

func TestRenderDeclinedRequest(t *testing.T) {
	reason := "pool is <empty>"
	reviewer := &models.Reviewer{ID: uuid.New(), Email: "r@example.com", DisplayName: "Rae"}
	req := &models.AssignmentRequest{ID: uuid.New(), Status: models.RequestDeclined, DeclinedReason: &reason}

	subject, body, err := newTestService(true).renderRequestResolved(reviewer, req)
	require.NoError(t, err)

	assert.Equal(t, "Your assignment request was declined", subject)
	assert.Contains(t, body, "Hello Rae")
	assert.Contains(t, body, "pool is &lt;empty&gt;")
	assert.Contains(t, body, "https://review.example/assignments")
}

func TestRenderFulfilledRequestFallsBackToEmail(t *testing.T) {
	note := "two proposals added"
	reviewer := &models.Reviewer{ID: uuid.New(), Email: "r@example.com"}
	req := &models.AssignmentRequest{ID: uuid.New(), Status: models.RequestFulfilled, AdminNote: &note}

	_, body, err := newTestService(true).renderRequestResolved(reviewer, req)
	require.NoError(t, err)

	assert.Contains(t, body, "Hello r@example.com")
	assert.Contains(t, body, note)
	assert.NotContains(t, body, "Reason:")
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(newTestService(true).buildMessage("r@example.com", "Hi", "<p>x</p>"))
	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "From: noreply@review.example")
	assert.Contains(t, head, "To: r@example.com")
	assert.Contains(t, head, "Content-Type: text/html; charset=UTF-8")
	assert.Equal(t, "<p>x</p>", body)
}

func TestNotifyDisabled(t *testing.T) {
	reviewer := &models.Reviewer{ID: uuid.New(), Email: "r@example.com"}
	req := &models.AssignmentRequest{ID: uuid.New(), Status: models.RequestFulfilled}
	assert.NoError(t, newTestService(false).NotifyRequestResolved(context.Background(), reviewer, req))
}

func TestNotifyUnreachableServer(t *testing.T) {
	reviewer := &models.Reviewer{ID: uuid.New(), Email: "r@example.com"}
	req := &models.AssignmentRequest{ID: uuid.New(), Status: models.RequestFulfilled}
	err := newTestService(true).NotifyRequestResolved(context.Background(), reviewer, req)
	assert.ErrorContains(t, err, "failed to connect to SMTP server")
}
