package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/code-100-precent/LingChat/pkg/eventbus"
	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/code-100-precent/LingChat/pkg/notification"
	"github.com/code-100-precent/LingChat/pkg/realtime"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Outcome is what the dispatcher did with one inbound message
type Outcome string

const (
	OutcomeNotReady  Outcome = "not_ready"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSelf      Outcome = "self"
	OutcomeActive    Outcome = "active"
	OutcomeBlocked   Outcome = "blocked" // Policy or display refused
	OutcomeShown     Outcome = "shown"
)

// Source is the event stream the dispatcher listens to
type Source interface {
	Subscribe(name eventbus.EventName, handler eventbus.Handler) eventbus.SubscriptionID
	Unsubscribe(id eventbus.SubscriptionID)
}

// Notifier displays notifications
type Notifier interface {
	Ready() bool
	Show(msg notification.Message, forceShow bool) bool
}

// Session identifies the authenticated user
type Session interface {
	UserID() (string, bool)
}

// StaticSession is a Session with a fixed user
type StaticSession string

func (s StaticSession) UserID() (string, bool) {
	return string(s), s != ""
}

// Stats counts outcomes since start
type Stats struct {
	Outcomes  map[Outcome]int64 `json:"outcomes"`
	Processed int               `json:"processed"`
	Last      Outcome           `json:"last,omitempty"`
}

// Dispatcher turns inbound messages into notifications, enforcing the
// session rules the notification policy does not know about
type Dispatcher struct {
	source    Source
	notifier  Notifier
	session   Session
	active    *ActiveConversation
	processed *cache.Cache

	mu       sync.Mutex
	subID    eventbus.SubscriptionID
	started  bool
	outcomes map[Outcome]int64
	last     Outcome
}

// New creates a dispatcher. Nothing is received until Start.
func New(source Source, notifier Notifier, session Session, active *ActiveConversation) *Dispatcher {
	if active == nil {
		active = NewActiveConversation()
	}
	return &Dispatcher{
		source:    source,
		notifier:  notifier,
		session:   session,
		active:    active,
		processed: cache.New(cache.NoExpiration, 0),
		outcomes:  make(map[Outcome]int64),
	}
}

// Active returns the active conversation holder
func (d *Dispatcher) Active() *ActiveConversation {
	return d.active
}

// Start subscribes to new messages
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.source == nil {
		return
	}
	d.subID = d.source.Subscribe(realtime.EventNewMessage, d.onEvent)
	d.started = true
}

// Stop unsubscribes; processed keys are kept for the session
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return
	}
	d.source.Unsubscribe(d.subID)
	d.started = false
}

func (d *Dispatcher) onEvent(ctx context.Context, event *eventbus.Event) error {
	switch payload := event.Payload.(type) {
	case realtime.InboundEvent:
		d.Dispatch(&payload)
	case *realtime.InboundEvent:
		d.Dispatch(payload)
	default:
		return fmt.Errorf("unexpected %s payload %T", event.Name, event.Payload)
	}
	return nil
}

// Dispatch runs the gates for one event, in order, stopping at the first
// that applies
func (d *Dispatcher) Dispatch(event *realtime.InboundEvent) Outcome {
	outcome := d.dispatch(event)
	d.record(outcome)
	if event != nil {
		logger.Debug("inbound message dispatched",
			zap.String("messageId", event.ID),
			zap.String("conversationId", event.ConversationID),
			zap.String("outcome", string(outcome)))
	}
	return outcome
}

func (d *Dispatcher) dispatch(event *realtime.InboundEvent) Outcome {
	userID, authenticated := "", false
	if d.session != nil {
		userID, authenticated = d.session.UserID()
	}
	if d.source == nil || d.notifier == nil || event == nil || !authenticated || !d.notifier.Ready() {
		return OutcomeNotReady
	}

	key := DedupKey(event)
	if _, seen := d.processed.Get(key); seen {
		return OutcomeDuplicate
	}

	if event.SenderID == userID {
		return OutcomeSelf
	}

	if d.active.Is(event.ConversationID) {
		d.markProcessed(key)
		return OutcomeActive
	}

	if !d.markProcessed(key) {
		return OutcomeDuplicate
	}
	if d.notifier.Show(toMessage(event), false) {
		return OutcomeShown
	}
	return OutcomeBlocked
}

// markProcessed reports false when key was already there
func (d *Dispatcher) markProcessed(key string) bool {
	return d.processed.Add(key, struct{}{}, cache.NoExpiration) == nil
}

func (d *Dispatcher) record(outcome Outcome) {
	dispatchedTotal.WithLabelValues(string(outcome)).Inc()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes[outcome]++
	d.last = outcome
}

// Stats returns a copy of the outcome counters
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	outcomes := make(map[Outcome]int64, len(d.outcomes))
	for k, v := range d.outcomes {
		outcomes[k] = v
	}
	return Stats{Outcomes: outcomes, Processed: d.processed.ItemCount(), Last: d.last}
}

// DedupKey identifies one delivery of one message
func DedupKey(event *realtime.InboundEvent) string {
	return fmt.Sprintf("%s:%d", event.ID, event.ReceivedAt.UnixMilli())
}

func toMessage(event *realtime.InboundEvent) notification.Message {
	return notification.Message{
		ID:             event.ID,
		ConversationID: event.ConversationID,
		SenderID:       event.SenderID,
		SenderName:     event.SenderName,
		Content:        event.Content,
		ReceivedAt:     event.ReceivedAt,
	}
}
