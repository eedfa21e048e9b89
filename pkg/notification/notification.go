package notification

import (
	"context"
	"sync/atomic"
	"time"
)

// Permission is the user's answer to the notification prompt
type Permission string

const (
	PermissionDefault Permission = "default" // Not asked yet
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Message is the candidate for a notification
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Content        string    `json:"content"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// Options are the display parameters of one notification
type Options struct {
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	Icon   string  `json:"icon,omitempty"`
	Tag    string  `json:"tag"`
	Silent bool    `json:"silent"`
	Data   Message `json:"data"`
}

// Handle is a displayed notification
type Handle interface {
	// Close dismisses the notification; safe to call more than once
	Close() error
	// OnClick registers the callback run when the user clicks it
	OnClick(fn func())
}

// Capability is the platform notification primitive
type Capability interface {
	// Supported is queried once when the service starts
	Supported() bool
	Permission() Permission
	// RequestPermission prompts the user and returns the answer
	RequestPermission(ctx context.Context) (Permission, error)
	Show(opts Options) (Handle, error)
}

// Visibility reports whether the application is backgrounded
type Visibility interface {
	Hidden() bool
}

// Focuser brings the application to the foreground
type Focuser interface {
	Focus()
}

// FocusFunc adapts a function to Focuser
type FocusFunc func()

func (f FocusFunc) Focus() { f() }

// SoundPlayer plays the notification sound
type SoundPlayer interface {
	Play() error
}

// Forwarder mirrors displayed notifications to another channel
type Forwarder interface {
	Forward(ctx context.Context, opts Options) error
}

// VisibilityState is a Visibility set from outside, e.g. by the control API
type VisibilityState struct {
	hidden atomic.Bool
}

// NewVisibilityState creates a visibility flag
func NewVisibilityState(hidden bool) *VisibilityState {
	v := &VisibilityState{}
	v.hidden.Store(hidden)
	return v
}

func (v *VisibilityState) Hidden() bool {
	return v.hidden.Load()
}

// SetHidden records a foreground/background transition
func (v *VisibilityState) SetHidden(hidden bool) {
	v.hidden.Store(hidden)
}
