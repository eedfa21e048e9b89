package circuitbreaker

import (
	"errors"
	"time"
)

// State represents the state of a circuit breaker
type State int32

const (
	// StateClosed lets every call through
	StateClosed State = iota
	// StateOpen fails calls immediately until Timeout has passed
	StateOpen
	// StateHalfOpen lets MaxRequests trial calls through
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config represents the configuration for a circuit breaker
type Config struct {
	// Name identifies the breaker in logs
	Name string
	// MaxFailures consecutive failures open the circuit (default: 5)
	MaxFailures int64
	// Timeout is how long the circuit stays open (default: 60s)
	Timeout time.Duration
	// MaxRequests trial calls are allowed while half-open (default: 1)
	MaxRequests int64
	// SuccessThreshold trial successes close the circuit (default: 1)
	SuccessThreshold int64
	// OnStateChange is called outside the lock after every transition
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a default configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		MaxRequests:      1,
		SuccessThreshold: 1,
	}
}

// Counts are reset on every state change
type Counts struct {
	Requests             int64 `json:"requests"`
	TotalSuccesses       int64 `json:"totalSuccesses"`
	TotalFailures        int64 `json:"totalFailures"`
	ConsecutiveSuccesses int64 `json:"consecutiveSuccesses"`
	ConsecutiveFailures  int64 `json:"consecutiveFailures"`
}

// Stats is a snapshot for diagnostics
type Stats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Generation      uint64    `json:"generation"`
	LastStateChange time.Time `json:"lastStateChange"`
	Counts          Counts    `json:"counts"`
}

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when too many requests are made in half-open state
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)
