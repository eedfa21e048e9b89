package realtime

import "time"

// Diagnostics is a point-in-time snapshot of a manager for inspection
type Diagnostics struct {
	ManagerID        string          `json:"managerId"`
	ConnectionID     string          `json:"connectionId,omitempty"`
	Endpoint         string          `json:"endpoint"`
	Scope            string          `json:"scope"`
	State            ConnectionState `json:"state"`
	Attempts         int             `json:"attempts"`
	MaxAttempts      int             `json:"maxAttempts"`
	LastError        string          `json:"lastError,omitempty"`
	ConnectedSince   *time.Time      `json:"connectedSince,omitempty"`
	LastEventAt      *time.Time      `json:"lastEventAt,omitempty"`
	SocketsOpened    int64           `json:"socketsOpened"`
	SocketsClosed    int64           `json:"socketsClosed"`
	LiveSockets      int64           `json:"liveSockets"`
	ReconnectPending bool            `json:"reconnectPending"`
	ReconnectDueIn   time.Duration   `json:"reconnectDueIn,omitempty"`
	HasLatestEvent   bool            `json:"hasLatestEvent"`
}

// Diagnostics returns structured introspection data
func (m *Manager) Diagnostics() Diagnostics {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := Diagnostics{
		ManagerID:        m.id,
		ConnectionID:     m.connID,
		Endpoint:         m.config.URL,
		Scope:            m.scope,
		State:            m.state,
		Attempts:         m.backoff.Attempt().Count,
		MaxAttempts:      m.config.MaxAttempts,
		LastError:        m.lastError,
		SocketsOpened:    m.opened,
		SocketsClosed:    m.closedCount,
		LiveSockets:      m.opened - m.closedCount,
		ReconnectPending: m.timer != nil,
		HasLatestEvent:   m.latest != nil,
	}
	if !m.connectedAt.IsZero() {
		t := m.connectedAt
		d.ConnectedSince = &t
	}
	if !m.lastEventAt.IsZero() {
		t := m.lastEventAt
		d.LastEventAt = &t
	}
	if m.timer != nil {
		if due := time.Until(m.timerDue); due > 0 {
			d.ReconnectDueIn = due
		}
	}
	return d
}
