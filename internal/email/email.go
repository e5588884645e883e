package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"proposal-review/internal/config"
	"proposal-review/internal/models"
)

// Service handles email operations
type Service struct {
	config *config.EmailConfig
}

// NewService creates a new email service
func NewService(cfg *config.EmailConfig) *Service {
	return &Service{
		config: cfg,
	}
}

var requestResolvedTemplate = template.Must(template.New("request_resolved").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Assignment Request {{.StatusLabel}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: {{.Color}};">Your request for more work was {{.StatusLabel}}</h2>
        <p>Hello {{.Name}},</p>
        {{if .Fulfilled}}
        <p>An administrator has handed out new work in response to your request. Your new assignments are waiting in your queue.</p>
        {{else}}
        <p>An administrator declined your request for more work.</p>
        <div style="background-color: #fff3e0; border-left: 4px solid #ff9800; padding: 15px; margin: 20px 0;">
            <p style="margin: 5px 0;"><strong>Reason:</strong> {{.Reason}}</p>
        </div>
        {{end}}
        {{if .Note}}<p><strong>Note from the admin:</strong> {{.Note}}</p>{{end}}
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.URL}}" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open your assignments</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>
`))

type requestResolvedData struct {
	Name        string
	StatusLabel string
	Color       string
	Fulfilled   bool
	Reason      string
	Note        string
	URL         string
}

// NotifyRequestResolved tells the requester an admin fulfilled or declined
// their assignment request
func (s *Service) NotifyRequestResolved(ctx context.Context, reviewer *models.Reviewer, req *models.AssignmentRequest) error {
	if !s.config.Enabled {
		slog.Debug("Email disabled, skipping request notification", "request_id", req.ID)
		return nil
	}

	subject, body, err := s.renderRequestResolved(reviewer, req)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, reviewer.Email, subject, body)
}

func (s *Service) renderRequestResolved(reviewer *models.Reviewer, req *models.AssignmentRequest) (string, string, error) {
	data := requestResolvedData{
		Name:        reviewer.DisplayName,
		StatusLabel: string(req.Status),
		Color:       "#4caf50",
		Fulfilled:   req.Status == models.RequestFulfilled,
		URL:         s.config.AppURL + "/assignments",
	}
	if data.Name == "" {
		data.Name = reviewer.Email
	}
	if !data.Fulfilled {
		data.Color = "#e53935"
	}
	if req.DeclinedReason != nil {
		data.Reason = *req.DeclinedReason
	}
	if req.AdminNote != nil {
		data.Note = *req.AdminNote
	}

	var body bytes.Buffer
	if err := requestResolvedTemplate.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render email: %w", err)
	}
	subject := fmt.Sprintf("Your assignment request was %s", req.Status)
	return subject, body.String(), nil
}

// buildMessage assembles headers and HTML body
func (s *Service) buildMessage(to, subject, body string) []byte {
	var message bytes.Buffer
	for _, h := range [][2]string{
		{"From", s.config.SMTPFrom},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	} {
		fmt.Fprintf(&message, "%s: %s\r\n", h[0], h[1])
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.Bytes()
}

// sendEmail sends an email using SMTP
func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	message := s.buildMessage(to, subject, body)

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	slog.Debug("Attempting to connect to SMTP server", "address", addr)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		slog.Error("Failed to connect to SMTP server", "address", addr, "error", err)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil {
			slog.Debug("Failed to close SMTP connection", "error", err)
		}
	}(conn)

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		if err := client.Close(); err != nil {
			slog.Debug("Failed to close SMTP client", "error", err)
		}
	}(client)

	// Development relays (e.g. Mailpit) accept mail without auth
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		_ = client.Auth(auth)
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	if _, err := wc.Write(message); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := closeData(wc); err != nil {
		return err
	}

	slog.Info("Email sent successfully", "to", to, "subject", subject)
	return nil
}

func closeData(wc io.WriteCloser) error {
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return nil
}
