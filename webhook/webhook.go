// Package webhook notifies an HTTP endpoint when a run finishes.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Event types.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// SignatureHeader carries the HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Fundscrape-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string      `json:"type"`
	RunID     string      `json:"run_id"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Notifier posts events to one endpoint.
type Notifier struct {
	client *resty.Client
	url    string
	secret string
}

// New returns a Notifier for url. Transport errors, 5xx and 429 are
// retried up to 3 times with backoff between 1s and 30s.
func New(url, secret string) *Notifier {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetHeader("User-Agent", "fundscrape-webhook/1.0")
	client.SetRetryCount(3)
	client.SetRetryWaitTime(time.Second)
	client.SetRetryMaxWaitTime(30 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
	})
	return &Notifier{client: client, url: url, secret: secret}
}

// Deliver sends event. The body is signed with HMAC-SHA256 if a secret is
// configured: X-Fundscrape-Signature: sha256=<hex>.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if n.secret != "" {
		req.SetHeader(SignatureHeader, "sha256="+Sign(n.secret, body))
	}

	res, err := req.Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("webhook: endpoint returned status %d", res.StatusCode())
	}
	slog.Info("webhook_delivered",
		"url", n.url,
		"event", event.Type,
		"run_id", event.RunID,
		"attempts", res.Request.Attempt,
	)
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
