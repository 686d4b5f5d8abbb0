package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/djlord-it/eventcron/internal/circuitbreaker"
	"github.com/djlord-it/eventcron/internal/domain"
)

const defaultTimeout = 10 * time.Second

// MetricsSink records delivery outcomes. All methods must be
// non-blocking and fire-and-forget.
type MetricsSink interface {
	NotifyAttemptCompleted(statusClass string, duration time.Duration)
	NotifySkipped(reason string)
}

// payload is the wire format posted to the webhook endpoint.
type payload struct {
	UserID string                  `json:"user_id"`
	Type   domain.NotificationType `json:"type"`
	Data   any                     `json:"data"`
	SentAt string                  `json:"sent_at"`
}

// WebhookNotifier posts notifications to a single configured endpoint,
// signing each body with HMAC-SHA256. Delivery is single-attempt:
// notifications are best-effort side effects and the callers never
// block on delivery outcomes.
type WebhookNotifier struct {
	url     string
	secret  string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.Breaker
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

func NewWebhookNotifier(url, secret string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WebhookNotifier{
		url:     url,
		secret:  secret,
		timeout: timeout,
		client:  &http.Client{},
		clock:   time.Now,
	}
}

// WithBreaker guards the endpoint with a circuit breaker. While the
// circuit is open, Notify drops notifications instead of sending.
func (n *WebhookNotifier) WithBreaker(b *circuitbreaker.Breaker) *WebhookNotifier {
	n.breaker = b
	return n
}

// WithMetrics attaches a metrics sink to the notifier.
func (n *WebhookNotifier) WithMetrics(sink MetricsSink) *WebhookNotifier {
	n.metrics = sink
	return n
}

// Notify posts the notification. Headers: X-EventCron-Type,
// X-EventCron-Signature (hex HMAC-SHA256 of the body).
func (n *WebhookNotifier) Notify(ctx context.Context, userID string, notification domain.Notification) error {
	if n.breaker != nil {
		if err := n.breaker.Allow(n.url); err != nil {
			if errors.Is(err, circuitbreaker.ErrOpen) {
				log.Printf("notify: user=%s dropped, circuit open", userID)
				if n.metrics != nil {
					n.metrics.NotifySkipped("circuit_open")
				}
				return nil
			}
			return err
		}
	}

	start := n.clock()

	body, err := json.Marshal(payload{
		UserID: userID,
		Type:   notification.Type,
		Data:   notification.Data,
		SentAt: start.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-EventCron-Type", string(notification.Type))
	httpReq.Header.Set("X-EventCron-Signature", computeSignature(n.secret, body))

	resp, err := n.client.Do(httpReq)
	duration := n.clock().Sub(start)
	if err != nil {
		n.recordFailure("error", duration)
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.recordFailure(statusClass(resp.StatusCode), duration)
		return fmt.Errorf("send: unexpected status %d", resp.StatusCode)
	}

	if n.breaker != nil {
		n.breaker.RecordSuccess(n.url)
	}
	if n.metrics != nil {
		n.metrics.NotifyAttemptCompleted("2xx", duration)
	}
	return nil
}

func (n *WebhookNotifier) recordFailure(class string, duration time.Duration) {
	if n.breaker != nil {
		n.breaker.RecordFailure(n.url)
	}
	if n.metrics != nil {
		n.metrics.NotifyAttemptCompleted(class, duration)
	}
}

// statusClass maps a non-2xx HTTP status to a bounded metrics label.
func statusClass(code int) string {
	switch {
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "other"
	}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for receivers to verify incoming notifications.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
