package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	httpclient "push-relay/internal/common/http"
	"push-relay/internal/common/logger"
	"push-relay/internal/devices"
	"push-relay/internal/models"
	"push-relay/internal/push"
	"push-relay/internal/storage"
	"push-relay/internal/webhooks"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway records every gateway call.
type fakeGateway struct {
	mu         sync.Mutex
	sent       []*push.Message
	multicast  [][]string
	subscribed [][]string
	failTokens map[string]bool
	err        error
}

func (g *fakeGateway) Send(ctx context.Context, msg *push.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.sent = append(g.sent, msg)
	return fmt.Sprintf("msg-%d", len(g.sent)), nil
}

func (g *fakeGateway) SendMulticast(ctx context.Context, tokens []string, msg *push.Message) (*models.BatchResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.multicast = append(g.multicast, tokens)

	resp := &models.BatchResponse{}
	for i, tok := range tokens {
		if g.failTokens[tok] {
			resp.Responses = append(resp.Responses, models.SendResponse{Token: tok, Error: "invalid registration"})
			continue
		}
		resp.Responses = append(resp.Responses, models.SendResponse{Token: tok, Success: true, MessageID: fmt.Sprintf("multi-%d", i)})
	}
	return resp, nil
}

func (g *fakeGateway) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*models.TopicManagementResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.subscribed = append(g.subscribed, tokens)
	return &models.TopicManagementResponse{SuccessCount: len(tokens)}, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent) + len(g.multicast) + len(g.subscribed)
}

type fixture struct {
	app      *fiber.App
	store    *storage.MemoryStore
	gateway  *fakeGateway
	notifier *webhooks.Notifier
	clock    *clock.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	log := logger.NewTestLogger(t)

	deviceRegistry := devices.NewRegistry(store, clk, log)
	webhookRegistry := webhooks.NewRegistry(store, clk, log)
	gateway := &fakeGateway{}
	dispatcher := push.NewDispatcher(gateway, log, time.Second)
	notifier := webhooks.NewNotifier(webhookRegistry, httpclient.NewClient(2*time.Second, "push-relay-test"), clk, log, 2*time.Second)
	t.Cleanup(notifier.Wait)

	h := NewHandler(deviceRegistry, webhookRegistry, dispatcher, notifier, clk, log)
	app := NewServer(h, nil, log, Options{AppName: "push-relay-test", MetricsPath: "/metrics"})

	return &fixture{app: app, store: store, gateway: gateway, notifier: notifier, clock: clk}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (f *fixture) registerDevice(t *testing.T, userID, token string) {
	t.Helper()
	status, _ := f.do(t, http.MethodPost, "/register-device", map[string]string{"userId": userID, "deviceToken": token})
	require.Equal(t, http.StatusOK, status)
}

func TestRegisterDevice_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing token", body: map[string]string{"userId": "user-1"}},
		{name: "missing user", body: map[string]string{"deviceToken": "tok"}},
		{name: "empty token", body: map[string]string{"userId": "user-1", "deviceToken": ""}},
		{name: "blank token", body: map[string]string{"userId": "user-1", "deviceToken": "   "}},
		{name: "empty body", body: ""},
		{name: "malformed json", body: `{"userId":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			status, body := f.do(t, http.MethodPost, "/register-device", tt.body)

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "VALIDATION_ERROR", body["code"])
			assert.Equal(t, 0, f.store.Len(devices.Collection))
		})
	}
}

func TestRegisterDevice_ReRegistrationUsesNewestToken(t *testing.T) {
	f := newFixture(t)
	f.registerDevice(t, "user-1", "old-token")
	f.registerDevice(t, "user-1", "new-token")

	status, body := f.do(t, http.MethodPost, "/send-notification", map[string]string{
		"userId": "user-1", "phoneNumber": "+15550001", "message": "hi",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "msg-1", body["messageId"])

	require.Len(t, f.gateway.sent, 1)
	assert.Equal(t, "new-token", f.gateway.sent[0].Token)
	assert.Equal(t, 1, f.store.Len(devices.Collection))
}

func TestSend_UnregisteredUser(t *testing.T) {
	for _, path := range []string{"/send-sms", "/send-notification"} {
		t.Run(path, func(t *testing.T) {
			f := newFixture(t)
			status, body := f.do(t, http.MethodPost, path, map[string]string{
				"userId": "ghost", "phoneNumber": "+15550001", "message": "hi",
			})

			assert.Equal(t, http.StatusNotFound, status)
			assert.Equal(t, "NOT_FOUND", body["code"])
			assert.Equal(t, 0, f.gateway.calls())
		})
	}
}

func TestSendSMS(t *testing.T) {
	f := newFixture(t)
	f.registerDevice(t, "user-1", "tok-1")

	status, body := f.do(t, http.MethodPost, "/send-sms", map[string]string{
		"userId": "user-1", "phoneNumber": "+15550001", "message": "your code is 1234",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "msg-1", body["messageId"])
	assert.Equal(t, "user-1", body["userId"])

	require.Len(t, f.gateway.sent, 1)
	msg := f.gateway.sent[0]
	assert.Equal(t, "tok-1", msg.Token)
	assert.Equal(t, push.PriorityHigh, msg.Priority)
	assert.Equal(t, "send_sms", msg.Data["action"])
	assert.Equal(t, "+15550001", msg.Data["phoneNumber"])
	assert.Equal(t, "your code is 1234", msg.Data["message"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", msg.Data["timestamp"])
	assert.NotEmpty(t, msg.Data["requestId"])
	assert.Equal(t, body["requestId"], msg.Data["requestId"])
}

func TestSendSMS_GatewayErrorPassesThrough(t *testing.T) {
	f := newFixture(t)
	f.registerDevice(t, "user-1", "tok-1")
	f.gateway.err = errors.New("Requested entity was not found.")

	status, body := f.do(t, http.MethodPost, "/send-sms", map[string]string{
		"userId": "user-1", "phoneNumber": "+15550001", "message": "hi",
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "GATEWAY_ERROR", body["code"])
	assert.Equal(t, "Requested entity was not found.", body["error"])
}

func TestSendNotificationMultiple(t *testing.T) {
	t.Run("skips unregistered users", func(t *testing.T) {
		f := newFixture(t)
		f.registerDevice(t, "user-a", "tok-a")

		status, body := f.do(t, http.MethodPost, "/send-notification-multiple", map[string]interface{}{
			"userIds": []string{"user-a", "user-b"}, "phoneNumber": "+15550001", "message": "hi",
		})
		require.Equal(t, http.StatusOK, status)

		require.Len(t, f.gateway.multicast, 1)
		assert.Equal(t, []string{"tok-a"}, f.gateway.multicast[0])

		assert.Equal(t, float64(1), body["successCount"])
		assert.Equal(t, float64(0), body["failureCount"])
		responses := body["responses"].([]interface{})
		require.Len(t, responses, 1)
		assert.Equal(t, "tok-a", responses[0].(map[string]interface{})["token"])
	})

	t.Run("outcomes follow token order", func(t *testing.T) {
		f := newFixture(t)
		f.registerDevice(t, "user-a", "tok-a")
		f.registerDevice(t, "user-b", "tok-b")
		f.registerDevice(t, "user-c", "tok-c")
		f.gateway.failTokens = map[string]bool{"tok-b": true}

		status, body := f.do(t, http.MethodPost, "/send-notification-multiple", map[string]interface{}{
			"userIds": []string{"user-c", "user-b", "user-a"}, "phoneNumber": "+15550001", "message": "hi",
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(2), body["successCount"])
		assert.Equal(t, float64(1), body["failureCount"])

		responses := body["responses"].([]interface{})
		require.Len(t, responses, 3)
		order := make([]string, 0, 3)
		for _, r := range responses {
			order = append(order, r.(map[string]interface{})["token"].(string))
		}
		assert.Equal(t, []string{"tok-c", "tok-b", "tok-a"}, order)
		assert.Equal(t, false, responses[1].(map[string]interface{})["success"])
	})

	t.Run("no registered users", func(t *testing.T) {
		f := newFixture(t)
		status, body := f.do(t, http.MethodPost, "/send-notification-multiple", map[string]interface{}{
			"userIds": []string{"ghost", "phantom"}, "phoneNumber": "+15550001", "message": "hi",
		})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", body["code"])
		assert.Equal(t, 0, f.gateway.calls())
	})

	t.Run("empty user list", func(t *testing.T) {
		f := newFixture(t)
		status, _ := f.do(t, http.MethodPost, "/send-notification-multiple", map[string]interface{}{
			"userIds": []string{}, "phoneNumber": "+15550001", "message": "hi",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, 0, f.gateway.calls())
	})
}

func TestSendToTopic(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/send-to-topic", map[string]string{
		"topic": "alerts", "phoneNumber": "+15550001", "message": "hi",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "msg-1", body["messageId"])
	require.Len(t, f.gateway.sent, 1)
	assert.Equal(t, "alerts", f.gateway.sent[0].Topic)
	assert.Equal(t, "notification", f.gateway.sent[0].Data["action"])

	status, _ = f.do(t, http.MethodPost, "/send-to-topic", map[string]string{"phoneNumber": "+1", "message": "hi"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSubscribeToTopic(t *testing.T) {
	f := newFixture(t)
	f.registerDevice(t, "user-a", "tok-a")

	status, body := f.do(t, http.MethodPost, "/subscribe-to-topic", map[string]interface{}{
		"userIds": []string{"user-a", "ghost"}, "topic": "alerts",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["successCount"])
	assert.Equal(t, float64(0), body["failureCount"])
	assert.NotNil(t, body["errors"])
	assert.Equal(t, [][]string{{"tok-a"}}, f.gateway.subscribed)

	status, _ = f.do(t, http.MethodPost, "/subscribe-to-topic", map[string]interface{}{
		"userIds": []string{"ghost"}, "topic": "alerts",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUnregisterDevice(t *testing.T) {
	f := newFixture(t)
	f.registerDevice(t, "user-1", "tok-1")

	status, _ := f.do(t, http.MethodPost, "/unregister-device", map[string]string{"userId": "user-1"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, f.store.Len(devices.Collection))

	status, _ = f.do(t, http.MethodPost, "/unregister-device", map[string]string{"userId": "user-1"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodPost, "/unregister-device", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRegisterWebhook(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
	}{
		{
			name:       "valid",
			body:       map[string]interface{}{"userId": "user-1", "webhookUrl": "https://hooks.example.com/sms", "events": []string{"sms:sent"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed url",
			body:       map[string]interface{}{"userId": "user-1", "webhookUrl": "not-a-url", "events": []string{"sms:sent"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing url",
			body:       map[string]interface{}{"userId": "user-1", "events": []string{"sms:sent"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no events",
			body:       map[string]interface{}{"userId": "user-1", "webhookUrl": "https://hooks.example.com/sms", "events": []string{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "events not an array",
			body:       map[string]interface{}{"userId": "user-1", "webhookUrl": "https://hooks.example.com/sms", "events": "sms:sent"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			status, body := f.do(t, http.MethodPost, "/register-webhook", tt.body)
			assert.Equal(t, tt.wantStatus, status)

			if tt.wantStatus == http.StatusOK {
				assert.NotEmpty(t, body["webhookId"])
				assert.Equal(t, 1, f.store.Len(webhooks.Collection))
			} else {
				assert.Equal(t, 0, f.store.Len(webhooks.Collection))
			}
		})
	}
}

func TestListAndUnregisterWebhooks(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/register-webhook", map[string]interface{}{
		"userId": "user-1", "webhookUrl": "https://a.example.com", "events": []string{"sms:sent"},
	})
	require.Equal(t, http.StatusOK, status)
	webhookID := body["webhookId"].(string)

	_, _ = f.do(t, http.MethodPost, "/register-webhook", map[string]interface{}{
		"userId": "user-1", "webhookUrl": "https://b.example.com", "events": []string{"sms:received"},
	})

	status, body = f.do(t, http.MethodGet, "/webhooks/user-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["webhooks"], 2)

	status, _ = f.do(t, http.MethodPost, "/unregister-webhook", map[string]string{"webhookId": webhookID})
	assert.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodPost, "/unregister-webhook", map[string]string{"webhookId": webhookID})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])

	status, _ = f.do(t, http.MethodPost, "/unregister-webhook", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodGet, "/webhooks/nobody", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["count"])
}

func validLog(eventType string) map[string]string {
	return map[string]string{
		"userId":    "user-1",
		"id":        "log-1",
		"recipient": "+15550001",
		"message":   "hello",
		"status":    "delivered",
		"type":      eventType,
	}
}

func TestSendWebhookLogs_Validation(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/send-webhook-logs", validLog("sms:failed"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "sms:sent")

	missing := validLog(models.EventSMSSent)
	delete(missing, "recipient")
	status, _ = f.do(t, http.MethodPost, "/send-webhook-logs", missing)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSendWebhookLogs_NoWebhooksStillAccepted(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/send-webhook-logs", validLog(models.EventSMSSent))
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["queued"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "log-1", data["id"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", data["timestamp"])
}

func TestSendWebhookLogs_DeliversToSubscribedWebhookOnly(t *testing.T) {
	var (
		mu   sync.Mutex
		hits = map[string][]string{}
	)
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload models.WebhookPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		hits[r.URL.Path] = append(hits[r.URL.Path], r.Header.Get(webhooks.HeaderWebhookID))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	f := newFixture(t)
	status, body := f.do(t, http.MethodPost, "/register-webhook", map[string]interface{}{
		"userId": "user-1", "webhookUrl": sink.URL + "/sent", "events": []string{"sms:sent"},
	})
	require.Equal(t, http.StatusOK, status)
	sentID := body["webhookId"].(string)

	status, _ = f.do(t, http.MethodPost, "/register-webhook", map[string]interface{}{
		"userId": "user-1", "webhookUrl": sink.URL + "/received", "events": []string{"sms:received"},
	})
	require.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodPost, "/send-webhook-logs", validLog(models.EventSMSSent))
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, float64(1), body["queued"])

	f.notifier.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{sentID}, hits["/sent"])
	assert.Empty(t, hits["/received"])
}

func TestSendWebhookLogs_FailingWebhookStillAccepted(t *testing.T) {
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer sink.Close()

	f := newFixture(t)
	status, _ := f.do(t, http.MethodPost, "/register-webhook", map[string]interface{}{
		"userId": "user-1", "webhookUrl": sink.URL, "events": []string{"sms:received"},
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodPost, "/send-webhook-logs", validLog(models.EventSMSReceived))
	assert.Equal(t, http.StatusAccepted, status)
	f.notifier.Wait()
}

func TestPaddedUserIDMatchesOnEveryPath(t *testing.T) {
	var hits atomic.Int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	f := newFixture(t)
	f.registerDevice(t, " user-1 ", "tok-1")

	status, body := f.do(t, http.MethodPost, "/send-sms", map[string]string{
		"userId": " user-1 ", "phoneNumber": "+15550001", "message": "hi",
	})
	require.Equal(t, http.StatusOK, status, body)
	require.Len(t, f.gateway.sent, 1)
	assert.Equal(t, "tok-1", f.gateway.sent[0].Token)

	status, body = f.do(t, http.MethodPost, "/send-notification-multiple", map[string]interface{}{
		"userIds": []string{" user-1 "}, "phoneNumber": "+15550001", "message": "hi",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(1), body["successCount"])

	status, _ = f.do(t, http.MethodPost, "/register-webhook", map[string]interface{}{
		"userId": " user-2 ", "webhookUrl": sink.URL, "events": []string{"sms:sent"},
	})
	require.Equal(t, http.StatusOK, status)

	padded := validLog(models.EventSMSSent)
	padded["userId"] = " user-2 "
	status, body = f.do(t, http.MethodPost, "/send-webhook-logs", padded)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, float64(1), body["queued"])

	f.notifier.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", body["timestamp"])

	f.clock.Add(time.Minute)
	_, body = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, "2024-05-01T12:01:00.000Z", body["timestamp"])
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
}
