package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream,omitempty"`
}

type postmarkError struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// ResetLink is the address a password-reset email points to.
func (c *Client) ResetLink(token string) string {
	return fmt.Sprintf("%s/#/reset/%s", c.baseURL, token)
}

// SendPasswordReset emails a reset link that stays valid for ttl.
func (c *Client) SendPasswordReset(ctx context.Context, toEmail, name, token string, ttl time.Duration) error {
	link := c.ResetLink(token)
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	minutes := int(ttl.Minutes())

	textBody := fmt.Sprintf(
		"%s,\n\nSomeone asked to reset your ClassPoints password. Open the link below to choose a new one:\n\n%s\n\nThis link expires in %d minutes. If you did not ask for this, ignore this email.",
		greeting, link, minutes,
	)
	htmlBody := fmt.Sprintf(
		`<p>%s,</p><p>Someone asked to reset your ClassPoints password.</p><p><a href="%s">Choose a new password</a></p><p>This link expires in %d minutes. If you did not ask for this, ignore this email.</p>`,
		greeting, link, minutes,
	)

	return c.send(ctx, postmarkEmail{
		From:          c.fromEmail,
		To:            toEmail,
		Subject:       "Reset your ClassPoints password",
		HtmlBody:      htmlBody,
		TextBody:      textBody,
		MessageStream: "outbound",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var pe postmarkError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &pe) == nil && pe.Message != "" {
			return fmt.Errorf("postmark API error: status %d: %s (code %d)", resp.StatusCode, pe.Message, pe.ErrorCode)
		}
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
