package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"focusd/internal/config"
	"focusd/internal/types"
)

// WebhookClient mirrors notifications to an external HTTP endpoint (e.g. a
// desktop overlay helper). Posts are HMAC-SHA256 signed and wrapped in a
// circuit breaker so a dead endpoint stops costing a connection attempt per
// notification.
type WebhookClient struct {
	url     string
	secret  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewWebhookClient creates a WebhookClient from config. Returns nil when no
// webhook URL is configured; callers treat a nil client as channel disabled.
func NewWebhookClient(cfg config.NotifyConfig) *WebhookClient {
	if cfg.WebhookURL == "" {
		return nil
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "notify-webhook",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &WebhookClient{
		url:     cfg.WebhookURL,
		secret:  cfg.WebhookSecret,
		client:  &http.Client{Timeout: cfg.WebhookTimeout},
		breaker: cb,
	}
}

// Post delivers one signed notification envelope. No retries: notifications
// are advisory and stale ones are worthless.
func (c *WebhookClient) Post(ctx context.Context, event string, data any) error {
	body, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	_, err = c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		ts := strconv.FormatInt(time.Now().UTC().Unix(), 10)
		req.Header.Set("X-Focusd-Timestamp", ts)
		if c.secret != "" {
			req.Header.Set("X-Focusd-Signature", sign(c.secret, ts, body))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamWebhook, "webhook delivery failed", err)
	}
	return nil
}

// sign computes the hex HMAC-SHA256 of "timestamp.body". The timestamp is
// bound into the signature so a captured payload cannot be replayed later.
func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
