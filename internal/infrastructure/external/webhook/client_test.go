package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/notification"
)

func testNotification(t *testing.T) *notification.Notification {
	t.Helper()
	n, err := notification.NewAchievementNotification(
		"n1", "u1",
		notification.AchievementPayload{
			AchievementType: "tasks_10",
			Title:           "Getting Started",
			Description:     "Complete 10 tasks",
		},
	)
	require.NoError(t, err)
	return n
}

func newTestClient(t *testing.T, url string, mutate func(*ClientConfig)) *Client {
	t.Helper()
	config := DefaultClientConfig(url)
	config.RetryAttempts = 2
	config.RetryDelay = time.Millisecond
	if mutate != nil {
		mutate(&config)
	}
	c, err := NewClient(config)
	require.NoError(t, err)
	return c
}

func TestDispatchSendsPayload(t *testing.T) {
	var received payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	err := c.Dispatch(context.Background(), testNotification(t))
	require.NoError(t, err)

	assert.Equal(t, "n1", received.ID)
	assert.Equal(t, "achievement", received.Type)
	assert.Equal(t, "u1", received.RecipientID)
	require.NotNil(t, received.Achievement)
	assert.Equal(t, "tasks_10", received.Achievement.AchievementType)
	assert.Nil(t, received.RankChange)
}

func TestDispatchSignsBody(t *testing.T) {
	const secret = "s3cret"
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Chrono-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *ClientConfig) { cfg.Secret = secret })
	require.NoError(t, c.Dispatch(context.Background(), testNotification(t)))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestDispatchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	err := c.Dispatch(context.Background(), testNotification(t))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	err := c.Dispatch(context.Background(), testNotification(t))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusNotFound, de.StatusCode)
}

func TestDispatchRejectsNil(t *testing.T) {
	c := newTestClient(t, "http://localhost:1", nil)
	require.Error(t, c.Dispatch(context.Background(), nil))
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
}
