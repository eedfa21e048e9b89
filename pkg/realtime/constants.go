package realtime

import "github.com/code-100-precent/LingChat/pkg/eventbus"

// Inbound and lifecycle event names
const (
	EventConnect            eventbus.EventName = "connect"
	EventDisconnect         eventbus.EventName = "disconnect"
	EventConnectError       eventbus.EventName = "connect_error"
	EventNewMessage         eventbus.EventName = "newMessage"
	EventStateChange        eventbus.EventName = "state_change"
	EventReconnectScheduled eventbus.EventName = "reconnect_scheduled"
	EventReconnectFailed    eventbus.EventName = "reconnect_failed"
)

// IsReservedEvent reports whether name is a lifecycle event owned by the
// manager. Peers and callers cannot send these.
func IsReservedEvent(name string) bool {
	switch eventbus.EventName(name) {
	case EventConnect, EventDisconnect, EventConnectError, EventStateChange,
		EventReconnectScheduled, EventReconnectFailed:
		return true
	}
	return false
}

// Outbound event names
const (
	EmitJoinConversation  = "joinConversation"
	EmitLeaveConversation = "leaveConversation"
	EmitPing              = "ping"
)

const (
	// Default configuration values
	DefaultBaseInterval        = 1000 // ms
	DefaultMaxAttempts         = 5
	DefaultHandshakeTimeout    = 10000 // ms
	DefaultForceReconnectDelay = 100   // ms
	DefaultPingInterval        = 25000 // ms
	DefaultReadTimeout         = 60000 // ms
	DefaultWriteTimeout        = 10000 // ms
	DefaultReadBufferSize      = 1024
	DefaultWriteBufferSize     = 1024
	DefaultMaxMessageSize      = 64 * 1024
	DefaultEventQueueSize      = 256

	// Environment variable configuration keys
	EnvRealtimeURL                 = "REALTIME_URL"
	EnvRealtimeToken               = "REALTIME_TOKEN"
	EnvRealtimeConversationID      = "REALTIME_CONVERSATION_ID"
	EnvRealtimeBaseInterval        = "REALTIME_BASE_INTERVAL"
	EnvRealtimeMaxAttempts         = "REALTIME_MAX_ATTEMPTS"
	EnvRealtimeHandshakeTimeout    = "REALTIME_HANDSHAKE_TIMEOUT"
	EnvRealtimeForceReconnectDelay = "REALTIME_FORCE_RECONNECT_DELAY"
	EnvRealtimePingInterval        = "REALTIME_PING_INTERVAL"
	EnvRealtimeReadTimeout         = "REALTIME_READ_TIMEOUT"
	EnvRealtimeWriteTimeout        = "REALTIME_WRITE_TIMEOUT"
	EnvRealtimeMaxMessageSize      = "REALTIME_MAX_MESSAGE_SIZE"
	EnvRealtimeEnableCompression   = "REALTIME_ENABLE_COMPRESSION"

	// Error messages surfaced through LastError
	ErrMaxAttemptsReached = "max reconnect attempts reached"
	ErrHandshakeTimeout   = "handshake timeout"
	ErrNotConnected       = "not connected"
	ErrConnectionLost     = "connection lost"
)
