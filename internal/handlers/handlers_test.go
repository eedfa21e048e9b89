package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/code-100-precent/LingChat/pkg/dispatcher"
	"github.com/code-100-precent/LingChat/pkg/notification"
	"github.com/code-100-precent/LingChat/pkg/realtime"
	"github.com/code-100-precent/LingChat/pkg/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnection struct {
	mu         sync.Mutex
	connected  bool
	reconnects int
	emitted    []string
	latest     *realtime.InboundEvent
}

func (f *fakeConnection) Diagnostics() realtime.Diagnostics {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := realtime.StateDisconnected
	if f.connected {
		state = realtime.StateConnected
	}
	return realtime.Diagnostics{ManagerID: "m-1", Endpoint: "ws://chat.test/ws", Scope: "global", State: state}
}

func (f *fakeConnection) ForceReconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
}

func (f *fakeConnection) Emit(event string, payload interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return false
	}
	f.emitted = append(f.emitted, event)
	return true
}

func (f *fakeConnection) LatestEvent() (realtime.InboundEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return realtime.InboundEvent{}, false
	}
	return *f.latest, true
}

type fixture struct {
	router     *gin.Engine
	conn       *fakeConnection
	service    *notification.Service
	visibility *notification.VisibilityState
	dispatcher *dispatcher.Dispatcher
	out        *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	out := &bytes.Buffer{}
	visibility := notification.NewVisibilityState(true)
	settings := notification.NewSettingsManager(notification.NewMemoryStore())
	service := notification.NewService(
		notification.NewTerminalCapability(out, notification.ContextPrompt),
		settings, visibility,
		notification.WithConfirmDelay(time.Hour),
		notification.WithAutoDismiss(time.Hour),
	)
	t.Cleanup(service.Close)

	conn := &fakeConnection{}
	d := dispatcher.New(nil, service, dispatcher.StaticSession("me"), nil)

	sched := scheduler.NewScheduler()
	require.NoError(t, sched.AddTask(&scheduler.Task{
		ID: "ping", Name: "heartbeat", Schedule: "@every 30s",
		Run: func(context.Context) error { return nil },
	}))

	h := NewHandlers(Deps{
		Connection:    conn,
		Notifications: service,
		Visibility:    visibility,
		Dispatcher:    d,
		Scheduler:     sched,
	})
	r := gin.New()
	h.Register(r)
	return &fixture{router: r, conn: conn, service: service, visibility: visibility, dispatcher: d, out: out}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (f *fixture) grant(t *testing.T) {
	t.Helper()
	w, _ := f.do(t, http.MethodPost, "/api/notifications/permission", `{"answer":"granted"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, f.service.Ready())
}

func message(id, conversation, sender string) *realtime.InboundEvent {
	return &realtime.InboundEvent{
		ID: id, ConversationID: conversation, SenderID: sender, SenderName: "bob",
		Content: "hello", ReceivedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDiagnostics(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.Active().Set("c9")

	w, env := f.do(t, http.MethodGet, "/api/diagnostics", "")
	require.Equal(t, http.StatusOK, w.Code)

	var view DiagnosticsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.NotNil(t, view.Connection)
	assert.Equal(t, "ws://chat.test/ws", view.Connection.Endpoint)
	assert.Equal(t, realtime.StateDisconnected, view.Connection.State)
	require.NotNil(t, view.Notifications)
	assert.True(t, view.Notifications.Supported)
	assert.Equal(t, notification.PermissionDefault, view.Notifications.Permission)
	assert.Equal(t, "c9", view.ActiveConversation)
	assert.True(t, view.Hidden)
	require.Len(t, view.Tasks, 1)
	assert.Equal(t, "ping", view.Tasks[0].ID)
	assert.Nil(t, view.User)
}

func TestReconnect(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, http.MethodPost, "/api/reconnect", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, f.conn.reconnects)
}

func TestEmit(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/emit", `{"event":"typing","data":{"conversationId":"c1"}}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	f.conn.connected = true
	w, _ = f.do(t, http.MethodPost, "/api/emit", `{"event":"typing","data":{"conversationId":"c1"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"typing"}, f.conn.emitted)

	w, _ = f.do(t, http.MethodPost, "/api/emit", `{"event":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodPost, "/api/emit", `{"event":"state_change"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodPost, "/api/emit", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestEvent(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, http.MethodGet, "/api/events/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.conn.latest = message("m1", "c1", "u2")
	w, env := f.do(t, http.MethodGet, "/api/events/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var event realtime.InboundEvent
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Equal(t, "m1", event.ID)
}

func TestActiveConversation(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPut, "/api/active-conversation", `{"conversationId":"c1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.dispatcher.Active().Is("c1"))

	w, _ = f.do(t, http.MethodPut, "/api/active-conversation", `{"conversationId":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, f.dispatcher.Active().Is("c1"))

	w, _ = f.do(t, http.MethodDelete, "/api/active-conversation", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := f.dispatcher.Active().Get()
	assert.False(t, ok)
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPut, "/api/visibility", `{"hidden":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.visibility.Hidden())

	w, _ = f.do(t, http.MethodPut, "/api/visibility", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, f.visibility.Hidden())
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	var settings notification.Settings
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.Equal(t, notification.DefaultSettings(), settings)

	// partial bodies keep the fields they omit
	w, env = f.do(t, http.MethodPut, "/api/settings", `{"sound":false,"quietHours":{"enabled":true,"start":"23:00","end":"07:00"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.False(t, settings.Sound)
	assert.True(t, settings.Enabled)
	assert.Equal(t, "23:00", settings.QuietHours.Start)
	assert.False(t, f.service.Settings().Get().Sound)

	w, _ = f.do(t, http.MethodPut, "/api/settings", `{"quietHours":{"enabled":true,"start":"25:00","end":"07:00"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "23:00", f.service.Settings().Get().QuietHours.Start)

	w, _ = f.do(t, http.MethodPost, "/api/settings/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, notification.DefaultSettings(), f.service.Settings().Get())
}

func TestPermission(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/notifications/permission", `{"answer":"later"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, notification.PermissionDefault, f.service.Permission())

	w, env := f.do(t, http.MethodPost, "/api/notifications/permission", `{"answer":"denied"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"permission":"denied"`)

	// denied is final, the prompt is not shown again
	w, env = f.do(t, http.MethodPost, "/api/notifications/permission", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"permission":"denied"`)
	assert.False(t, f.service.Ready())
}

func TestNotificationClickFlow(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, dispatcher.OutcomeNotReady, f.dispatcher.Dispatch(message("m1", "c1", "u2")))

	f.grant(t)
	assert.Equal(t, dispatcher.OutcomeShown, f.dispatcher.Dispatch(message("m2", "c1", "u2")))
	assert.Contains(t, f.out.String(), "New message from bob")

	w, _ := f.do(t, http.MethodPost, "/api/notifications/click", `{"tag":"conversation-c404"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = f.do(t, http.MethodPost, "/api/notifications/click", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := f.do(t, http.MethodPost, "/api/notifications/click", `{"tag":"conversation-c1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"conversationId":"c1"`)

	_, env = f.do(t, http.MethodGet, "/api/diagnostics", "")
	var view DiagnosticsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.NotNil(t, view.Notifications.LastClicked)
	assert.Equal(t, "m2", view.Notifications.LastClicked.ID)
	require.NotNil(t, view.Dispatcher)
	assert.Equal(t, int64(1), view.Dispatcher.Outcomes[dispatcher.OutcomeShown])
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.grant(t)
	f.dispatcher.Dispatch(message("m1", "c1", "u2"))

	w, _ := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "lingchat_dispatcher_messages_total")
	assert.Contains(t, body, "lingchat_notification_results_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestDocsMatchRoutes(t *testing.T) {
	f := newFixture(t)
	registered := make(map[string]bool)
	for _, r := range f.router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	h := NewHandlers(Deps{})
	docs := h.GetDocs()
	for _, d := range docs {
		assert.True(t, registered[d.Method+" "+d.Path], "%s %s not registered", d.Method, d.Path)
	}
	assert.Len(t, docs, len(registered))
}
