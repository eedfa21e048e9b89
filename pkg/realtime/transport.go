package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live transport-level connection
type Conn interface {
	// ReadMessage blocks for the next text frame
	ReadMessage() ([]byte, error)
	// WriteMessage sends one text frame; safe for concurrent use
	WriteMessage(data []byte) error
	// Ping sends a keepalive control frame
	Ping() error
	// Close tears the connection down; safe to call more than once
	Close() error
}

// Dialer opens transport connections. Dial must honor ctx for the handshake.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebSocketDialer dials the event stream over gorilla/websocket
type WebSocketDialer struct {
	config *Config
	dialer *websocket.Dialer
}

// NewWebSocketDialer creates a dialer based on configuration
func NewWebSocketDialer(cfg *Config) *WebSocketDialer {
	return &WebSocketDialer{
		config: cfg,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
		},
	}
}

// Dial performs the handshake
func (d *WebSocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	wc := &wsConn{
		conn:         conn,
		readTimeout:  d.config.ReadTimeout,
		writeTimeout: d.config.WriteTimeout,
	}
	if d.config.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(d.config.MaxMessageSize))
	}
	wc.refreshReadDeadline()
	conn.SetPongHandler(func(string) error {
		wc.refreshReadDeadline()
		return nil
	})
	return wc, nil
}

type wsConn struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

func (c *wsConn) refreshReadDeadline() {
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		c.refreshReadDeadline()
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	deadline := time.Now().Add(c.writeTimeout)
	if c.writeTimeout <= 0 {
		deadline = time.Now().Add(DefaultWriteTimeout * time.Millisecond)
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// closeReason turns a read error into the reason string surfaced by
// EventDisconnect, and reports whether the peer closed cleanly.
func closeReason(err error) (reason string, clean bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		reason = ce.Text
		if reason == "" {
			reason = fmt.Sprintf("closed with code %d", ce.Code)
		}
		clean = ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
		return reason, clean
	}
	if err == nil {
		return ErrConnectionLost, false
	}
	return err.Error(), false
}
