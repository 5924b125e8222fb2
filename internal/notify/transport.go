package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SmsTransport delivers one text message to a phone number.
type SmsTransport interface {
	Send(ctx context.Context, destination, body string) error
}

// HTTPSMSTransport posts messages to an SMS gateway's JSON endpoint.
type HTTPSMSTransport struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPSMSTransport returns a transport posting to gatewayURL with
// the given API key in the Authorization header.
func NewHTTPSMSTransport(gatewayURL, apiKey string, timeout time.Duration) *HTTPSMSTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSMSTransport{
		url:    gatewayURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (t *HTTPSMSTransport) Send(ctx context.Context, destination, body string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      destination,
		"message": body,
	})
	if err != nil {
		return fmt.Errorf("notify: could not marshal SMS payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: could not build SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: SMS gateway request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: SMS gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// NopTransport drops messages. Used when no gateway is configured.
type NopTransport struct{}

func (NopTransport) Send(context.Context, string, string) error { return nil }
