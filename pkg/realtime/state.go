package realtime

// ConnectionState is the lifecycle state of a Manager
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets states appear by name in JSON diagnostics
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateChange is the payload of EventStateChange
type StateChange struct {
	From  ConnectionState `json:"from"`
	To    ConnectionState `json:"to"`
	Error string          `json:"error,omitempty"`
}
