// Package webhook delivers notifications to an external HTTP endpoint.
// Chrono Hub tenants register a webhook URL and receive performance
// notifications (achievements, rank changes, streaks) as signed JSON
// POST requests, typically forwarded to Slack or an in-house bot.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/notification"
	"github.com/chrono-hub/chrono-performance-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the webhook client.
type ClientConfig struct {
	// URL is the endpoint notifications are POSTed to.
	URL string

	// Secret signs each request body with HMAC-SHA256 when non-empty.
	// The signature is sent in the X-Chrono-Signature header.
	Secret string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RetryAttempts is the number of retry attempts for failed requests.
	RetryAttempts int

	// RetryDelay is the initial delay between retries.
	RetryDelay time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:           url,
		Timeout:       10 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// payload is the JSON body POSTed to the webhook endpoint.
// Exactly one of the typed payload fields is set, matching Type.
type payload struct {
	ID          string                           `json:"id"`
	Type        string                           `json:"type"`
	RecipientID string                           `json:"recipient_id"`
	Message     string                           `json:"message"`
	Achievement *notification.AchievementPayload `json:"achievement,omitempty"`
	RankChange  *notification.RankChangePayload  `json:"rank_change,omitempty"`
	Streak      *notification.StreakPayload      `json:"streak,omitempty"`
	CreatedAt   time.Time                        `json:"created_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements notification.Dispatcher over HTTP.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	logger     *slog.Logger
}

// NewClient creates a webhook client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retrier: retry.New(
			retry.WithMaxAttempts(config.RetryAttempts+1),
			retry.WithInitialDelay(config.RetryDelay),
			retry.WithRetryIf(isRetryable),
		),
		logger: logger.With(slog.String("component", "webhook_dispatcher")),
	}, nil
}

// Dispatch POSTs the notification to the configured endpoint.
// Server errors (5xx) and transport failures are retried with backoff,
// client errors (4xx) fail immediately.
func (c *Client) Dispatch(ctx context.Context, n *notification.Notification) error {
	if n == nil {
		return errors.New("notification cannot be nil")
	}

	body, err := json.Marshal(payload{
		ID:          string(n.ID),
		Type:        string(n.Type),
		RecipientID: string(n.RecipientID),
		Message:     n.Message,
		Achievement: n.Achievement,
		RankChange:  n.RankChange,
		Streak:      n.Streak,
		CreatedAt:   n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.post(ctx, body)
	})
	if err != nil {
		c.logger.WarnContext(ctx, "webhook delivery failed",
			"notification_id", string(n.ID),
			"type", string(n.Type),
			"error", err,
		)
		return fmt.Errorf("webhook delivery: %w", err)
	}

	c.logger.DebugContext(ctx, "webhook delivered",
		"notification_id", string(n.ID),
		"type", string(n.Type),
	)
	return nil
}

// post performs a single delivery attempt.
func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chrono-performance-hub/1.0")
	if c.config.Secret != "" {
		req.Header.Set("X-Chrono-Signature", sign(c.config.Secret, body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return &DeliveryError{StatusCode: resp.StatusCode}
}

// sign computes the hex-encoded HMAC-SHA256 of the body.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryError represents a non-2xx response from the endpoint.
type DeliveryError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook endpoint returned status %d", e.StatusCode)
}

// isRetryable reports whether a delivery attempt is worth repeating.
// 4xx responses indicate a misconfigured endpoint and never recover
// on retry; everything else is treated as transient.
func isRetryable(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.StatusCode >= 500 || de.StatusCode == http.StatusTooManyRequests
	}
	return true
}
