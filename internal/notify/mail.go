// Package notify sends email notifications about project activity.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"

	"github.com/rs/zerolog"

	"github.com/kidandcat/sprintboard/internal/config"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// NewMailer picks SMTP when enabled, Resend when a key is set and
// otherwise a mailer that only logs.
func NewMailer(ecfg config.EmailConfig, logger zerolog.Logger) Mailer {
	switch {
	case ecfg.SMTPEnabled:
		return smtpMailer{cfg: ecfg}
	case ecfg.ResendAPIKey != "":
		return &ResendMailer{From: ecfg.FromEmail, APIKey: ecfg.ResendAPIKey, Endpoint: resendEndpoint, HTTP: http.DefaultClient}
	}
	return logMailer{logger: logger}
}

const resendEndpoint = "https://api.resend.com/emails"

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type ResendMailer struct {
	From     string
	APIKey   string
	Endpoint string
	HTTP     *http.Client
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(resendRequest{
		From:    m.From,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}
	return nil
}

type smtpMailer struct {
	cfg config.EmailConfig
}

func (m smtpMailer) Send(_ context.Context, to, subject, html string) error {
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort

	msg := "From: " + m.cfg.FromEmail + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		html

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.SMTPUser, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type logMailer struct {
	logger zerolog.Logger
}

func (m logMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.Info().Str("to", to).Str("subject", subject).Msg("email not configured, skipping send")
	return nil
}
