package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/code-100-precent/LingChat/pkg/eventbus"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConnectError is the payload of EventConnectError
type ConnectError struct {
	Error   string `json:"error"`
	Timeout bool   `json:"timeout"`
}

// DisconnectInfo is the payload of EventDisconnect
type DisconnectInfo struct {
	Reason    string `json:"reason"`
	Requested bool   `json:"requested"`
}

// ReconnectScheduled is the payload of EventReconnectScheduled
type ReconnectScheduled struct {
	Attempt int           `json:"attempt"`
	Delay   time.Duration `json:"delay"`
	Forced  bool          `json:"forced"`
}

// ReconnectFailed is the payload of EventReconnectFailed
type ReconnectFailed struct {
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError"`
}

// Manager owns one logical real-time connection. It holds at most one live
// socket, reconnects with linear backoff after unexpected drops and reports
// everything through observable state and its event bus; no method returns
// a transport error to the caller.
type Manager struct {
	config *Config
	dialer Dialer
	bus    *eventbus.Bus
	id     string
	scope  string
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       ConnectionState
	lastError   string
	conn        Conn
	connID      string
	connDone    chan struct{}
	generation  uint64
	backoff     *Backoff
	latest      *InboundEvent
	timer       *time.Timer
	timerSeq    uint64
	timerDue    time.Time
	userClosed  bool
	closed      bool
	connectedAt time.Time
	lastEventAt time.Time
	opened      int64
	closedCount int64
}

// NewManager creates a manager. A nil dialer uses gorilla/websocket.
func NewManager(config *Config, dialer Dialer) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if dialer == nil {
		dialer = NewWebSocketDialer(config)
	}
	ctx, cancel := context.WithCancel(context.Background())
	scope := "global"
	if config.ConversationID != "" {
		scope = "conversation:" + config.ConversationID
	}
	m := &Manager{
		config:  config,
		dialer:  dialer,
		bus:     eventbus.New(ctx, config.EventQueueSize),
		id:      uuid.New().String(),
		scope:   scope,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateDisconnected,
		backoff: NewBackoff(config.BaseInterval, config.MaxAttempts),
	}
	connectionStateGauge.WithLabelValues(scope).Set(float64(StateDisconnected))
	return m
}

// Connect opens the connection and waits for the handshake, bounded by
// HandshakeTimeout. It is a no-op while connected or connecting. Failures
// move the manager to StateError and schedule a reconnect.
func (m *Manager) Connect(ctx context.Context) {
	m.connect(ctx, 0, false)
}

// connect is Connect for callers and for the reconnect timer. A timer only
// proceeds when it is still the current one and no user disconnect came in
// since it was armed, checked in the same critical section that moves the
// state to connecting.
func (m *Manager) connect(ctx context.Context, timerSeq uint64, fromTimer bool) {
	m.mu.Lock()
	if fromTimer && (timerSeq != m.timerSeq || m.userClosed) {
		m.mu.Unlock()
		return
	}
	if m.closed || m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	m.userClosed = false
	m.cancelTimerLocked()
	m.generation++
	gen := m.generation
	m.setStateLocked(StateConnecting, "")
	m.mu.Unlock()

	timeout := m.config.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout * time.Millisecond
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := m.dialer.Dial(dialCtx, m.config.URL, m.header())

	m.mu.Lock()
	if gen != m.generation || m.closed {
		// Disconnected or superseded while the handshake was in flight
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		timedOut := errors.Is(dialCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
		msg := err.Error()
		if timedOut {
			msg = ErrHandshakeTimeout
		}
		logrus.Warnf("realtime connect failed: %s, scope: %s", msg, m.scope)
		m.generation++
		m.setStateLocked(StateError, msg)
		m.publish(EventConnectError, ConnectError{Error: msg, Timeout: timedOut})
		m.scheduleReconnectLocked(msg)
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.connID = uuid.New().String()
	m.connDone = make(chan struct{})
	m.opened++
	m.connectedAt = time.Now()
	m.backoff.Reset()
	m.setStateLocked(StateConnected, "")
	connID, done := m.connID, m.connDone
	m.publish(EventConnect, connID)
	m.mu.Unlock()

	logrus.Infof("realtime connected: %s, scope: %s", connID, m.scope)
	if m.config.ConversationID != "" {
		m.write(conn, EmitJoinConversation, conversationPayload(m.config.ConversationID))
	}

	go m.readLoop(conn, gen)
	if m.config.PingInterval > 0 {
		go m.pingLoop(conn, done)
	}
}

// Disconnect tears down the connection and cancels any pending reconnect.
// It never triggers a reconnect and is idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	teardown := m.disconnectLocked("client disconnect")
	m.mu.Unlock()
	teardown()
}

// ForceReconnect resets the attempt counter, drops the current connection
// and reconnects after ForceReconnectDelay, bypassing backoff.
func (m *Manager) ForceReconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.backoff.Reset()
	teardown := m.disconnectLocked("forced reconnect")
	m.userClosed = false
	m.startTimerLocked(m.config.ForceReconnectDelay)
	m.publish(EventReconnectScheduled, ReconnectScheduled{Delay: m.config.ForceReconnectDelay, Forced: true})
	m.mu.Unlock()

	teardown()
	logrus.Infof("realtime forced reconnect in %s, scope: %s", m.config.ForceReconnectDelay, m.scope)
}

// Emit sends a named event when connected. Otherwise it logs and drops the
// event; callers must not assume delivery.
func (m *Manager) Emit(event string, payload interface{}) bool {
	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		logrus.Warnf("realtime emit %s dropped: %s, scope: %s", event, ErrNotConnected, m.scope)
		emitDroppedTotal.WithLabelValues(event).Inc()
		return false
	}
	return m.write(conn, event, payload)
}

// Close disconnects for good and stops the event bus
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	teardown := m.disconnectLocked("manager closed")
	m.closed = true
	m.mu.Unlock()
	teardown()

	m.bus.Close()
	m.cancel()
}

// State returns the current connection state
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the most recent failure message, cleared on connect
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// Attempts returns the current reconnect attempt count
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backoff.Attempt().Count
}

// LatestEvent returns the most recent inbound message. Events are replaced,
// never queued; subscribe to EventNewMessage to observe every one.
func (m *Manager) LatestEvent() (InboundEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return InboundEvent{}, false
	}
	return *m.latest, true
}

// Subscribe registers a handler on the manager's event bus
func (m *Manager) Subscribe(name eventbus.EventName, handler eventbus.Handler) eventbus.SubscriptionID {
	return m.bus.Subscribe(name, handler)
}

// Unsubscribe removes a handler registered with Subscribe
func (m *Manager) Unsubscribe(id eventbus.SubscriptionID) {
	m.bus.Unsubscribe(id)
}

// Scope is "global" or "conversation:<id>"
func (m *Manager) Scope() string {
	return m.scope
}

func (m *Manager) header() http.Header {
	header := http.Header{}
	if m.config.Token != "" {
		header.Set("Authorization", "Bearer "+m.config.Token)
	}
	return header
}

func (m *Manager) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleDrop(gen, err)
			return
		}
		m.handleFrame(gen, data)
	}
}

func (m *Manager) pingLoop(conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				// The read loop observes the broken connection
				logrus.Debugf("realtime ping failed: %v, scope: %s", err, m.scope)
				return
			}
		}
	}
}

func (m *Manager) handleDrop(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.generation {
		// Already torn down by Disconnect or a newer connect
		m.mu.Unlock()
		return
	}

	reason, clean := closeReason(err)
	if clean {
		logrus.Infof("realtime connection closed by server: %s, scope: %s", reason, m.scope)
	} else {
		logrus.Warnf("realtime connection lost: %s, scope: %s", reason, m.scope)
	}

	m.generation++
	dropped := m.detachConnLocked()
	next := StateError
	if clean {
		next = StateDisconnected
	}
	m.setStateLocked(next, reason)
	m.publish(EventDisconnect, DisconnectInfo{Reason: reason})
	m.scheduleReconnectLocked(reason)
	m.mu.Unlock()

	if dropped != nil {
		_ = dropped.Close()
	}
}

func (m *Manager) handleFrame(gen uint64, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		logrus.Warnf("realtime invalid frame ignored, scope: %s", m.scope)
		return
	}
	inboundEventsTotal.WithLabelValues(frame.Event).Inc()

	name := eventbus.EventName(frame.Event)
	switch {
	case name == EventNewMessage:
		var payload MessagePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			logrus.Warnf("realtime invalid newMessage payload: %v, scope: %s", err, m.scope)
			return
		}
		now := time.Now()
		event := payload.ToInboundEvent(now)
		if m.config.ConversationID != "" && event.ConversationID != m.config.ConversationID {
			logrus.Debugf("realtime message for conversation %s filtered, scope: %s", event.ConversationID, m.scope)
			return
		}

		m.mu.Lock()
		if gen != m.generation {
			m.mu.Unlock()
			return
		}
		m.latest = &event
		m.lastEventAt = now
		m.publish(EventNewMessage, event)
		m.mu.Unlock()

	case IsReservedEvent(frame.Event):
		logrus.Warnf("realtime reserved event %s from server ignored, scope: %s", frame.Event, m.scope)

	default:
		m.mu.Lock()
		if gen == m.generation {
			m.lastEventAt = time.Now()
			m.publish(name, RawEvent{Event: frame.Event, Data: frame.Data})
		}
		m.mu.Unlock()
	}
}

// disconnectLocked moves to StateDisconnected and detaches the socket. The
// returned teardown sends the leave frame and closes the socket; callers run
// it after releasing m.mu.
func (m *Manager) disconnectLocked(reason string) (teardown func()) {
	m.userClosed = true
	m.cancelTimerLocked()
	m.generation++
	conn := m.detachConnLocked()
	if m.state != StateDisconnected || conn != nil {
		m.setStateLocked(StateDisconnected, "")
		m.publish(EventDisconnect, DisconnectInfo{Reason: reason, Requested: true})
		logrus.Infof("realtime disconnected: %s, scope: %s", reason, m.scope)
	}
	if conn == nil {
		return func() {}
	}
	return func() {
		if m.config.ConversationID != "" {
			m.write(conn, EmitLeaveConversation, conversationPayload(m.config.ConversationID))
		}
		_ = conn.Close()
	}
}

// detachConnLocked forgets the live socket and returns it for closing
// outside the lock
func (m *Manager) detachConnLocked() Conn {
	if m.conn == nil {
		return nil
	}
	if m.connDone != nil {
		close(m.connDone)
		m.connDone = nil
	}
	conn := m.conn
	m.conn = nil
	m.connID = ""
	m.connectedAt = time.Time{}
	m.closedCount++
	return conn
}

func (m *Manager) scheduleReconnectLocked(reason string) {
	if m.userClosed || m.closed {
		return
	}
	delay, ok := m.backoff.Next(reason)
	if !ok {
		attempt := m.backoff.Attempt()
		logrus.Errorf("realtime giving up after %d reconnect attempts: %s, scope: %s", attempt.Count, reason, m.scope)
		m.setStateLocked(StateError, ErrMaxAttemptsReached)
		m.publish(EventReconnectFailed, ReconnectFailed{Attempts: attempt.Count, LastError: reason})
		return
	}
	attempt := m.backoff.Attempt().Count
	reconnectAttemptsTotal.WithLabelValues(m.scope).Inc()
	m.startTimerLocked(delay)
	m.publish(EventReconnectScheduled, ReconnectScheduled{Attempt: attempt, Delay: delay})
	logrus.Infof("realtime reconnect %d/%d in %s, scope: %s", attempt, m.config.MaxAttempts, delay, m.scope)
}

// startTimerLocked replaces any pending reconnect timer
func (m *Manager) startTimerLocked(delay time.Duration) {
	m.cancelTimerLocked()
	seq := m.timerSeq
	m.timerDue = time.Now().Add(delay)
	m.timer = time.AfterFunc(delay, func() { m.fireReconnect(seq) })
}

func (m *Manager) cancelTimerLocked() {
	// Bumping the sequence also neutralizes a timer that already fired and
	// is waiting for the lock.
	m.timerSeq++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerDue = time.Time{}
}

func (m *Manager) fireReconnect(seq uint64) {
	m.connect(m.ctx, seq, true)
}

func (m *Manager) setStateLocked(next ConnectionState, errMsg string) {
	prev := m.state
	switch {
	case next == StateConnected:
		m.lastError = ""
	case errMsg != "":
		m.lastError = errMsg
	}
	if prev == next {
		return
	}
	m.state = next
	connectionStateGauge.WithLabelValues(m.scope).Set(float64(next))
	m.publish(EventStateChange, StateChange{From: prev, To: next, Error: errMsg})
}

func (m *Manager) publish(name eventbus.EventName, payload interface{}) {
	m.bus.Publish(&eventbus.Event{Name: name, Source: m.id, Payload: payload})
}

func (m *Manager) write(conn Conn, event string, payload interface{}) bool {
	data, err := encodeFrame(event, payload)
	if err != nil {
		logrus.Errorf("realtime emit %s failed: %v, scope: %s", event, err, m.scope)
		emitDroppedTotal.WithLabelValues(event).Inc()
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		logrus.Warnf("realtime emit %s write error: %v, scope: %s", event, err, m.scope)
		emitDroppedTotal.WithLabelValues(event).Inc()
		return false
	}
	return true
}

func conversationPayload(conversationID string) map[string]string {
	return map[string]string{"conversationId": conversationID}
}
