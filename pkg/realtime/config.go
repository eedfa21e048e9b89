package realtime

import (
	"fmt"
	"net/url"
	"time"

	"github.com/code-100-precent/LingChat/pkg/utils"
)

// Config is the connection manager configuration
type Config struct {
	// Event stream endpoint (ws:// or wss://)
	URL string
	// Bearer token sent with the handshake
	Token string
	// When set the manager is scoped to one conversation
	ConversationID string
	// Linear backoff base: the n-th retry waits BaseInterval*n
	BaseInterval time.Duration
	// Retries after which the manager gives up until ForceReconnect
	MaxAttempts int
	// Upper bound on the transport handshake
	HandshakeTimeout time.Duration
	// Fixed delay used by ForceReconnect, bypassing backoff
	ForceReconnectDelay time.Duration
	// Control-frame keepalive period, zero disables it
	PingInterval time.Duration
	// Read deadline, refreshed on every frame and pong
	ReadTimeout time.Duration
	// Write deadline per frame
	WriteTimeout time.Duration
	// Transport buffer sizes
	ReadBufferSize  int
	WriteBufferSize int
	// Largest inbound frame accepted
	MaxMessageSize int
	// Negotiate permessage-deflate
	EnableCompression bool
	// Capacity of the manager's event bus queue
	EventQueueSize int
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		URL:                 "ws://localhost:4000/ws",
		BaseInterval:        DefaultBaseInterval * time.Millisecond,
		MaxAttempts:         DefaultMaxAttempts,
		HandshakeTimeout:    DefaultHandshakeTimeout * time.Millisecond,
		ForceReconnectDelay: DefaultForceReconnectDelay * time.Millisecond,
		PingInterval:        DefaultPingInterval * time.Millisecond,
		ReadTimeout:         DefaultReadTimeout * time.Millisecond,
		WriteTimeout:        DefaultWriteTimeout * time.Millisecond,
		ReadBufferSize:      DefaultReadBufferSize,
		WriteBufferSize:     DefaultWriteBufferSize,
		MaxMessageSize:      DefaultMaxMessageSize,
		EnableCompression:   false,
		EventQueueSize:      DefaultEventQueueSize,
	}
}

// LoadConfigFromEnv loads configuration from environment variables on top of
// the defaults. Durations accept "2s" style strings or bare milliseconds.
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if u := utils.GetEnv(EnvRealtimeURL); u != "" {
		config.URL = u
	}

	config.Token = utils.GetEnv(EnvRealtimeToken)
	config.ConversationID = utils.GetEnv(EnvRealtimeConversationID)

	if d := utils.GetDurationEnv(EnvRealtimeBaseInterval); d > 0 {
		config.BaseInterval = d
	}

	if n := utils.GetIntEnv(EnvRealtimeMaxAttempts); n > 0 {
		config.MaxAttempts = int(n)
	}

	if d := utils.GetDurationEnv(EnvRealtimeHandshakeTimeout); d > 0 {
		config.HandshakeTimeout = d
	}

	if d := utils.GetDurationEnv(EnvRealtimeForceReconnectDelay); d > 0 {
		config.ForceReconnectDelay = d
	}

	if d := utils.GetDurationEnv(EnvRealtimePingInterval); d > 0 {
		config.PingInterval = d
	}

	if d := utils.GetDurationEnv(EnvRealtimeReadTimeout); d > 0 {
		config.ReadTimeout = d
	}

	if d := utils.GetDurationEnv(EnvRealtimeWriteTimeout); d > 0 {
		config.WriteTimeout = d
	}

	if n := utils.GetIntEnv(EnvRealtimeMaxMessageSize); n > 0 {
		config.MaxMessageSize = int(n)
	}

	if v := utils.GetEnv(EnvRealtimeEnableCompression); v != "" {
		config.EnableCompression = utils.GetBoolEnv(EnvRealtimeEnableCompression)
	}

	return config
}

// ValidateConfig validates configuration
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	u, err := url.Parse(config.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", config.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme)
	}

	if config.BaseInterval <= 0 {
		return fmt.Errorf("base interval must be greater than 0")
	}

	if config.MaxAttempts < 0 {
		return fmt.Errorf("max attempts cannot be negative")
	}

	if config.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be greater than 0")
	}

	if config.ForceReconnectDelay < 0 {
		return fmt.Errorf("force reconnect delay cannot be negative")
	}

	if config.ReadBufferSize <= 0 || config.WriteBufferSize <= 0 {
		return fmt.Errorf("read/write buffer size must be greater than 0")
	}

	if config.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be greater than 0")
	}

	// Pings must land before the read deadline expires
	if config.PingInterval > 0 && config.ReadTimeout > 0 && config.PingInterval >= config.ReadTimeout {
		return fmt.Errorf("ping interval must be less than read timeout")
	}

	return nil
}

// GetConfigSummary gets configuration summary
func GetConfigSummary(config *Config) map[string]interface{} {
	return map[string]interface{}{
		"url":                   config.URL,
		"has_token":             config.Token != "",
		"conversation_id":       config.ConversationID,
		"base_interval":         config.BaseInterval.String(),
		"max_attempts":          config.MaxAttempts,
		"handshake_timeout":     config.HandshakeTimeout.String(),
		"force_reconnect_delay": config.ForceReconnectDelay.String(),
		"ping_interval":         config.PingInterval.String(),
		"read_timeout":          config.ReadTimeout.String(),
		"write_timeout":         config.WriteTimeout.String(),
		"max_message_size":      config.MaxMessageSize,
		"enable_compression":    config.EnableCompression,
	}
}

// CloneConfig clones configuration
func CloneConfig(config *Config) *Config {
	if config == nil {
		return nil
	}
	clone := *config
	return &clone
}

// Scoped returns a copy of config bound to one conversation
func (c *Config) Scoped(conversationID string) *Config {
	clone := CloneConfig(c)
	clone.ConversationID = conversationID
	return clone
}
