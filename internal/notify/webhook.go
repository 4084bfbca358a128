package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier posts messages as JSON to a chat gateway. The gateway answers
// with {"message_id": "..."}.
type WebhookNotifier struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Timeout time.Duration
}

type gatewayRequest struct {
	Recipient Recipient `json:"recipient"`
	Message   Message   `json:"message"`
	Handle    Handle    `json:"handle,omitempty"`
}

type gatewayResponse struct {
	MessageID string `json:"message_id"`
}

func NewWebhookNotifier(baseURL, token string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, to Recipient, msg Message) (Handle, error) {
	return w.post(ctx, "/messages", gatewayRequest{Recipient: to, Message: msg})
}

func (w *WebhookNotifier) EditOrAppend(ctx context.Context, to Recipient, h Handle, msg Message) (Handle, error) {
	if h == "" {
		return w.Send(ctx, to, msg)
	}
	out, err := w.post(ctx, "/messages/edit", gatewayRequest{Recipient: to, Message: msg, Handle: h})
	if err == nil {
		return out, nil
	}
	// The gateway refuses edits of old or deleted messages; append instead.
	var de *DeliveryError
	if errors.As(err, &de) && (de.Status == http.StatusNotFound || de.Status == http.StatusConflict) {
		return w.Send(ctx, to, msg)
	}
	return "", err
}

func (w *WebhookNotifier) post(ctx context.Context, path string, body gatewayRequest) (Handle, error) {
	fail := func(status int, err error) (Handle, error) {
		return "", &DeliveryError{Recipient: body.Recipient.UserID, Status: status, Err: err}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fail(0, err)
	}
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fail(resp.StatusCode, fmt.Errorf("gateway: %s", strings.TrimSpace(string(snippet))))
	}
	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return fail(resp.StatusCode, fmt.Errorf("decode gateway response: %w", err))
	}
	return Handle(out.MessageID), nil
}
