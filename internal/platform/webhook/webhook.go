// Package webhook delivers domain events to a partner HTTP endpoint, such as
// a district hospital's intake system, signed with HMAC-SHA256.
package webhook

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
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itsaddyon/MediBridge/internal/platform/events"
)

const (
	HeaderSignature = "X-MediBridge-Signature"
	HeaderDelivery  = "X-MediBridge-Delivery"
	HeaderEvent     = "X-MediBridge-Event"
	HeaderTimestamp = "X-MediBridge-Timestamp"
)

// SignPayload returns the hex encoded HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature as sent in HeaderSignature, with or
// without its "sha256=" prefix.
func VerifySignature(payload []byte, secret, signature string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")
	return hmac.Equal([]byte(SignPayload(payload, secret)), []byte(signature))
}

type Option func(*Publisher)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Publisher) { p.client = c }
}

// WithRetryDelays sets the pause before each retry; its length is the number
// of retries.
func WithRetryDelays(delays ...time.Duration) Option {
	return func(p *Publisher) { p.retryDelays = delays }
}

// Publisher POSTs each event as JSON to one URL. Network errors and 5xx
// responses are retried; 4xx responses are not.
type Publisher struct {
	url         string
	secret      string
	client      *http.Client
	retryDelays []time.Duration
}

func NewPublisher(rawURL, secret string, opts ...Option) (*Publisher, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	p := &Publisher{
		url:         rawURL,
		secret:      secret,
		client:      &http.Client{Timeout: 5 * time.Second},
		retryDelays: []time.Duration{200 * time.Millisecond, time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("webhook url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("webhook url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url has no host")
	}
	return nil
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	deliveryID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= len(p.retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook delivery %s: %w", deliveryID, ctx.Err())
			case <-time.After(p.retryDelays[attempt-1]):
			}
		}

		retry, err := p.deliver(ctx, deliveryID, event.Type, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return fmt.Errorf("webhook delivery %s: %w", deliveryID, lastErr)
}

// deliver makes one attempt and reports whether a failure is worth retrying.
func (p *Publisher) deliver(ctx context.Context, deliveryID, eventType string, payload []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderDelivery, deliveryID)
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderTimestamp, time.Now().UTC().Format(time.RFC3339))
	if p.secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+SignPayload(payload, p.secret))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
}
