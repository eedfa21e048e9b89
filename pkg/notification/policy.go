package notification

import (
	"fmt"
	"time"
)

const (
	// PreviewPlaceholder replaces the body when previews are off
	PreviewPlaceholder = "You have a new message"
	tagPrefix          = "conversation-"
)

// Policy decides whether a notification may be shown and how it looks.
// It performs no I/O.
type Policy struct {
	supported  bool
	permission func() Permission
	settings   func() Settings
	visibility Visibility
	icon       string
	now        func() time.Time
}

// NewPolicy creates a policy. supported is the capability query resolved
// once by the caller.
func NewPolicy(supported bool, permission func() Permission, settings func() Settings, visibility Visibility, icon string) *Policy {
	return &Policy{
		supported:  supported,
		permission: permission,
		settings:   settings,
		visibility: visibility,
		icon:       icon,
		now:        time.Now,
	}
}

// Check returns nil when a notification may be shown, otherwise the first
// failed condition. forceShow skips only the visibility condition.
func (p *Policy) Check(forceShow bool) error {
	if !p.supported {
		return ErrUnsupported
	}
	if p.permission() != PermissionGranted {
		return ErrPermissionNotGranted
	}
	s := p.settings()
	if !s.Enabled {
		return ErrDisabled
	}
	if !s.Desktop {
		return ErrDesktopDisabled
	}
	if s.QuietHours.Active(p.now()) {
		return ErrQuietHours
	}
	if !forceShow && p.visibility != nil && !p.visibility.Hidden() {
		return ErrWindowVisible
	}
	return nil
}

// CanShow is Check as a boolean
func (p *Policy) CanShow(forceShow bool) bool {
	return p.Check(forceShow) == nil
}

// Build constructs the display parameters for msg
func (p *Policy) Build(msg Message) Options {
	s := p.settings()

	title := "New message"
	if msg.SenderName != "" {
		title = fmt.Sprintf("New message from %s", msg.SenderName)
	}
	body := PreviewPlaceholder
	if s.ShowPreview && msg.Content != "" {
		body = msg.Content
	}

	return Options{
		Title:  title,
		Body:   body,
		Icon:   p.icon,
		Tag:    ConversationTag(msg.ConversationID),
		Silent: !s.Sound,
		Data:   msg,
	}
}

// ConversationTag is the coalescing tag shared by one conversation
func ConversationTag(conversationID string) string {
	return tagPrefix + conversationID
}
