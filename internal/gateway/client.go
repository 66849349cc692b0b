// Package gateway talks to the external SMS provider. The provider
// only transmits and receives texts; everything about dedup and
// conversation ownership happens upstream of this package.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"smsportal/internal/config"
)

// Error carries the gateway's HTTP status and response body so send
// failures can surface the provider's own message to the caller.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	http     *http.Client
	baseURL  string
	deviceID string
	apiKey   string
	log      *zap.SugaredLogger
}

func NewClient(cfg config.Gateway, log *zap.SugaredLogger) *Client {
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout()},
		baseURL:  cfg.BaseURL,
		deviceID: cfg.DeviceID,
		apiKey:   cfg.APIKey,
		log:      log,
	}
}

// SendSMS submits one outbound text. Transient failures (transport
// errors, 5xx) are retried briefly; anything still failing after that
// is returned to the caller. The returned id is the gateway-assigned
// message id, or "" when the response carries none.
func (c *Client) SendSMS(ctx context.Context, recipient, body string) (string, error) {
	url := fmt.Sprintf("%s/gateway/devices/%s/send-sms", c.baseURL, c.deviceID)
	payload, err := json.Marshal(map[string]any{
		"recipients": []string{recipient},
		"message":    body,
	})
	if err != nil {
		return "", err
	}

	var respBody []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		respBody, _ = io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			return &Error{StatusCode: resp.StatusCode, Body: string(respBody)}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(&Error{StatusCode: resp.StatusCode, Body: string(respBody)})
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}

	var respData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &respData); err != nil {
		// delivery was accepted; an unreadable body only costs the id
		c.log.Debugw("unparseable send response", "err", err)
		return "", nil
	}
	return respData.ID, nil
}

// FetchReceived pulls the received-only endpoint.
func (c *Client) FetchReceived(ctx context.Context) ([]RawMessage, error) {
	return c.fetch(ctx, "get-received-sms")
}

// FetchAll pulls the general messages endpoint, which usually mixes
// sent and received records.
func (c *Client) FetchAll(ctx context.Context) ([]RawMessage, error) {
	return c.fetch(ctx, "messages")
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]RawMessage, error) {
	url := fmt.Sprintf("%s/gateway/devices/%s/%s", c.baseURL, c.deviceID, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return Parse(body)
}
