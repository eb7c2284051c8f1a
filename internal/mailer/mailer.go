// Package mailer is the outbound email boundary for digest delivery.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Mailer delivers one rendered digest email
type Mailer interface {
	Send(ctx context.Context, toAddress, subject, htmlBody string) error
}

// BrevoMailer sends transactional email through the Brevo API
type BrevoMailer struct {
	apiKey      string
	senderEmail string
	senderName  string
	httpClient  *http.Client
}

// NewBrevoMailer builds the Brevo transport. senderEmail must be a
// verified sender in the Brevo account.
func NewBrevoMailer(apiKey, senderEmail, senderName string) *BrevoMailer {
	return &BrevoMailer{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type brevoRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoRequest struct {
	Sender      brevoRecipient   `json:"sender"`
	To          []brevoRecipient `json:"to"`
	Subject     string           `json:"subject"`
	HTMLContent string           `json:"htmlContent"`
}

// Send posts the email to the Brevo transactional endpoint
func (m *BrevoMailer) Send(ctx context.Context, toAddress, subject, htmlBody string) error {
	if m.apiKey == "" || m.senderEmail == "" {
		return fmt.Errorf("email transport is not configured")
	}

	payload := brevoRequest{
		Sender:      brevoRecipient{Email: m.senderEmail, Name: m.senderName},
		To:          []brevoRecipient{{Email: toAddress}},
		Subject:     subject,
		HTMLContent: htmlBody,
	}

	reqJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.brevo.com/v3/smtp/email", bytes.NewBuffer(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email send failed (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
