package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smsportal/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(config.Gateway{
		BaseURL:        srv.URL,
		DeviceID:       "dev-1",
		APIKey:         "key-1",
		TimeoutSeconds: 5,
	}, zap.NewNop().Sugar())
	return c, srv
}

func TestSendSMS(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "gw-55"})
	}))

	id, err := c.SendSMS(context.Background(), "+5551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "gw-55", id)
	assert.Equal(t, "/gateway/devices/dev-1/send-sms", gotPath)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "hello", gotBody["message"])
	assert.Equal(t, []any{"+5551234567"}, gotBody["recipients"])
}

func TestSendSMSWithoutResponseID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	id, err := c.SendSMS(context.Background(), "+5551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestSendSMSClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad api key"}`))
	}))

	_, err := c.SendSMS(context.Background(), "+5551234567", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad api key")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSendSMSRetriesServerError(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "after-retry"})
	}))

	id, err := c.SendSMS(context.Background(), "+5551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "after-retry", id)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchReceived(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gateway/devices/dev-1/get-received-sms", r.URL.Path)
		_, _ = w.Write([]byte(`{"messages":[{"from":"111","message":"a"}]}`))
	}))

	msgs, err := c.FetchReceived(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "111", msgs[0].Sender())
}

func TestFetchErrors(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	_, err := c.FetchAll(context.Background())
	require.Error(t, err)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.StatusCode)

	c2, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	_, err = c2.FetchReceived(context.Background())
	require.Error(t, err, "malformed payloads abort only this fetch")
}
