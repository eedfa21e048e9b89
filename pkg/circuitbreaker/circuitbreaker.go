package circuitbreaker

import (
	"context"
	"sync"
	"time"
)

// CircuitBreaker stops calling a failing collaborator for a while
type CircuitBreaker struct {
	config *Config
	now    func() time.Time

	mu         sync.Mutex
	state      State
	counts     Counts
	lastState  time.Time
	generation uint64
	inFlight   int64
}

// New creates a new circuit breaker with the given configuration
func New(config *Config) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig("default")
	}
	c := *config
	if c.MaxRequests <= 0 {
		c.MaxRequests = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	return &CircuitBreaker{config: &c, now: time.Now, state: StateClosed, lastState: time.Now()}
}

// Name returns the name of the circuit breaker
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// State returns the current state, moving open to half-open once the
// timeout has passed
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	from, to := cb.refreshLocked()
	state := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
	return state
}

// Execute runs fn unless the circuit is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.afterRequest(err == nil)
	return err
}

// Reset closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.setStateLocked(StateClosed)
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}

// Stats returns statistics about the circuit breaker
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	from, to := cb.refreshLocked()
	s := Stats{
		Name:            cb.config.Name,
		State:           cb.state.String(),
		Generation:      cb.generation,
		LastStateChange: cb.lastState,
		Counts:          cb.counts,
	}
	cb.mu.Unlock()
	cb.notify(from, to)
	return s
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	from, to := cb.refreshLocked()
	var err error
	switch cb.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.config.MaxRequests {
			err = ErrTooManyRequests
		}
	}
	if err == nil {
		cb.inFlight++
	}
	cb.mu.Unlock()
	cb.notify(from, to)
	return err
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mu.Lock()
	if cb.inFlight > 0 {
		cb.inFlight--
	}
	from := cb.state
	cb.counts.Requests++
	if success {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.setStateLocked(StateClosed)
		}
	} else {
		cb.counts.TotalFailures++
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		// any failed trial reopens the circuit
		if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.config.MaxFailures {
			cb.setStateLocked(StateOpen)
		}
	}
	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
}

func (cb *CircuitBreaker) refreshLocked() (from, to State) {
	from = cb.state
	if cb.state == StateOpen && cb.now().Sub(cb.lastState) >= cb.config.Timeout {
		cb.setStateLocked(StateHalfOpen)
	}
	return from, cb.state
}

func (cb *CircuitBreaker) setStateLocked(next State) {
	if cb.state == next {
		return
	}
	cb.state = next
	cb.lastState = cb.now()
	cb.generation++
	cb.counts = Counts{}
	cb.inFlight = 0
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
