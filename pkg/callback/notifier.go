// Package callback delivers upload status to the webhook a meeting
// registered in its metadata.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Status values sent in the payload.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 30 * time.Second

// DeliveryError reports a callback that could not be delivered.
type DeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("callback %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("callback %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Notifier posts JSON status payloads to callback URLs.
type Notifier struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewNotifier builds a Notifier. A nil client gets a traced client with
// timeout. Redirects are never followed; a 3xx is a delivery failure.
func NewNotifier(httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *Notifier {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	} else {
		c := *httpClient
		httpClient = &c
	}
	httpClient.CheckRedirect = noRedirect
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{httpClient: httpClient, logger: logger}
}

// Payload builds the callback body from data. The status and meetingId
// fields are always set from the arguments, even if data carries them.
func Payload(status, meetingID string, data map[string]any) map[string]any {
	body := make(map[string]any, len(data)+2)
	for k, v := range data {
		body[k] = v
	}
	body["status"] = status
	body["meetingId"] = meetingID
	return body
}

// Notify makes one delivery attempt and reports whether a request was
// sent. An empty url is a no-op. Delivery failures are logged and dropped.
func (n *Notifier) Notify(ctx context.Context, url, status, meetingID string, data map[string]any) bool {
	if url == "" {
		n.logger.Debug("no callback url configured", zap.String("meeting_id", meetingID))
		return false
	}

	if err := n.Deliver(ctx, url, Payload(status, meetingID, data)); err != nil {
		n.logger.Warn("callback failed",
			zap.String("meeting_id", meetingID),
			zap.String("status", status),
			zap.Error(err),
		)
		return true
	}

	n.logger.Info("callback delivered", zap.String("meeting_id", meetingID), zap.String("status", status))
	return true
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Deliver posts payload to url and returns a *DeliveryError on any failure.
func (n *Notifier) Deliver(ctx context.Context, url string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{URL: url, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}
