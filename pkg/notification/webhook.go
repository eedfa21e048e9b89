package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/code-100-precent/LingChat/pkg/circuitbreaker"
	"github.com/goccy/go-json"
)

// WebhookConfig targets a chat robot webhook. When Secret is set requests
// are signed with HMAC-SHA256 over "timestamp\nsecret".
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
	// Retry governs transient failures, nil sends once
	Retry *circuitbreaker.RetryConfig
	// Breaker stops posting to a webhook that keeps failing
	Breaker *circuitbreaker.CircuitBreaker
}

// WebhookStatusError is a non-200 answer from the webhook
type WebhookStatusError struct {
	StatusCode int
}

func (e *WebhookStatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.StatusCode)
}

// retryableWebhookError leaves client errors alone
func retryableWebhookError(err error) bool {
	var status *WebhookStatusError
	if errors.As(err, &status) {
		return status.StatusCode >= 500 || status.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// WebhookForwarder posts displayed notifications to a robot webhook as
// markdown messages
type WebhookForwarder struct {
	config WebhookConfig
	client *http.Client
	now    func() time.Time
}

// NewWebhookForwarder creates a forwarder
func NewWebhookForwarder(config WebhookConfig) *WebhookForwarder {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &WebhookForwarder{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		now:    time.Now,
	}
}

// Forward sends opts to the webhook through the configured breaker
func (w *WebhookForwarder) Forward(ctx context.Context, opts Options) error {
	if w.config.URL == "" {
		return ErrNotificationNotConfigured
	}
	send := func(ctx context.Context) error { return w.send(ctx, opts) }
	if w.config.Retry == nil && w.config.Breaker == nil {
		return send(ctx)
	}

	retry := circuitbreaker.DefaultRetryConfig()
	retry.MaxAttempts = 1
	if w.config.Retry != nil {
		c := *w.config.Retry
		retry = &c
	}
	if retry.Retryable == nil {
		retry.Retryable = retryableWebhookError
	}
	return circuitbreaker.RetryWithCircuitBreaker(ctx, w.config.Breaker, retry, send)
}

func (w *WebhookForwarder) send(ctx context.Context, opts Options) error {
	target, err := w.signedURL()
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": opts.Title,
			"text":  fmt.Sprintf("#### %s\n%s", opts.Title, opts.Body),
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &WebhookStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (w *WebhookForwarder) signedURL() (string, error) {
	if w.config.Secret == "" {
		return w.config.URL, nil
	}
	u, err := url.Parse(w.config.URL)
	if err != nil {
		return "", fmt.Errorf("invalid webhook url: %w", err)
	}
	timestamp := w.now().UnixMilli()
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(timestamp, 10))
	q.Set("sign", w.sign(timestamp))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sign computes the robot signature for timestamp
func (w *WebhookForwarder) sign(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, w.config.Secret)
	h := hmac.New(sha256.New, []byte(w.config.Secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
