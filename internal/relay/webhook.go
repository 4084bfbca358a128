package relay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"remindline/internal/domain"
)

const defaultWebhookTimeout = 5 * time.Second

// WebhookSink posts each event as JSON. When a secret is set the body is signed
// with HMAC-SHA256 in X-Remindline-Signature.
type WebhookSink struct {
	name   string
	URL    string
	Secret string
	Client *http.Client
}

func NewWebhookSink(name, url, secret string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	if strings.TrimSpace(name) == "" {
		name = "webhook:" + url
	}
	return &WebhookSink{name: name, URL: url, Secret: secret, Client: &http.Client{Timeout: timeout}}
}

func (w *WebhookSink) Name() string { return w.name }

func (w *WebhookSink) Publish(ctx context.Context, events []domain.TaskEvent) (int, error) {
	for i, ev := range events {
		if err := w.post(ctx, NewEnvelope(ev)); err != nil {
			return i, fmt.Errorf("deliver event %d: %w", ev.ID, err)
		}
	}
	return len(events), nil
}

func (w *WebhookSink) post(ctx context.Context, env Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Remindline-Event", env.Kind)
	req.Header.Set("X-Remindline-Delivery", fmt.Sprintf("%d", env.ID))
	if strings.TrimSpace(w.Secret) != "" {
		req.Header.Set("X-Remindline-Signature", "sha256="+Sign(w.Secret, data))
	}
	res, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (w *WebhookSink) Close() error { return nil }

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
