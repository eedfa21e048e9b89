package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/code-100-precent/LingChat/pkg/utils"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// AutoDismissAfter closes every notification this long after display
	AutoDismissAfter = 5 * time.Second
	// PermissionConfirmDelay keeps the confirmation clear of the prompt itself
	PermissionConfirmDelay = 300 * time.Millisecond
	// PermissionConfirmTag is the tag of the one-time confirmation
	PermissionConfirmTag = "notification-permission"

	defaultMaxOpen      = 32
	defaultForwardLimit = 10 * time.Second
)

// ClickListener receives the message behind a clicked notification
type ClickListener func(msg Message)

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithFocuser sets what brings the application forward on click
func WithFocuser(f Focuser) ServiceOption {
	return func(s *Service) { s.focuser = f }
}

// WithSound sets the sound side channel
func WithSound(p SoundPlayer) ServiceOption {
	return func(s *Service) { s.sound = p }
}

// WithSoundLimit caps how often the sound may play
func WithSoundLimit(every time.Duration, burst int) ServiceOption {
	return func(s *Service) { s.soundLimiter = rate.NewLimiter(rate.Every(every), burst) }
}

// WithIcon sets the icon of every notification
func WithIcon(icon string) ServiceOption {
	return func(s *Service) { s.icon = icon }
}

// WithAutoDismiss overrides AutoDismissAfter
func WithAutoDismiss(d time.Duration) ServiceOption {
	return func(s *Service) { s.dismissAfter = d }
}

// WithConfirmDelay overrides PermissionConfirmDelay
func WithConfirmDelay(d time.Duration) ServiceOption {
	return func(s *Service) { s.confirmDelay = d }
}

// WithForwarders mirrors displayed notifications to other channels
func WithForwarders(fw ...Forwarder) ServiceOption {
	return func(s *Service) { s.forwarders = append(s.forwarders, fw...) }
}

// WithMaxOpen bounds the open notifications tracked for coalescing
func WithMaxOpen(n int) ServiceOption {
	return func(s *Service) { s.maxOpen = n }
}

type openNotification struct {
	handle Handle
	opts   Options
}

// ServiceDiagnostics is a snapshot of the service for inspection
type ServiceDiagnostics struct {
	Supported   bool       `json:"supported"`
	Permission  Permission `json:"permission"`
	Ready       bool       `json:"ready"`
	Open        []string   `json:"open"`
	LastClicked *Message   `json:"lastClicked,omitempty"`
	Settings    Settings   `json:"settings"`
}

// Service displays notifications through a Capability under a Policy
type Service struct {
	capability   Capability
	settings     *SettingsManager
	visibility   Visibility
	policy       *Policy
	supported    bool
	focuser      Focuser
	sound        SoundPlayer
	soundLimiter *rate.Limiter
	forwarders   []Forwarder
	icon         string
	dismissAfter time.Duration
	confirmDelay time.Duration
	maxOpen      int

	mu          sync.Mutex
	permission  Permission
	open        *lru.Cache[string, *openNotification]
	listeners   map[int]ClickListener
	nextID      int
	lastClicked *Message
	closed      bool

	requestMu sync.Mutex
}

// NewService creates a notification service. The capability is queried
// once here for support and the initial permission.
func NewService(capability Capability, settings *SettingsManager, visibility Visibility, opts ...ServiceOption) *Service {
	if settings == nil {
		settings = NewSettingsManager(nil)
	}
	if visibility == nil {
		visibility = NewVisibilityState(true)
	}
	s := &Service{
		capability:   capability,
		settings:     settings,
		visibility:   visibility,
		soundLimiter: rate.NewLimiter(rate.Every(time.Second), 3),
		dismissAfter: AutoDismissAfter,
		confirmDelay: PermissionConfirmDelay,
		maxOpen:      defaultMaxOpen,
		listeners:    make(map[int]ClickListener),
		permission:   PermissionDefault,
	}
	for _, opt := range opts {
		opt(s)
	}

	if capability != nil {
		s.supported = capability.Supported()
	}
	if s.supported {
		s.permission = capability.Permission()
	}

	open, err := lru.NewWithEvict[string, *openNotification](s.maxOpen, func(tag string, n *openNotification) {
		_ = n.handle.Close()
	})
	if err != nil {
		open, _ = lru.NewWithEvict[string, *openNotification](defaultMaxOpen, func(tag string, n *openNotification) {
			_ = n.handle.Close()
		})
	}
	s.open = open
	s.policy = NewPolicy(s.supported, s.Permission, settings.Get, visibility, s.icon)
	return s
}

// Policy exposes the decision engine
func (s *Service) Policy() *Policy {
	return s.policy
}

// Settings exposes the settings manager
func (s *Service) Settings() *SettingsManager {
	return s.settings
}

// Supported reports the capability query made at startup
func (s *Service) Supported() bool {
	return s.supported
}

// Permission returns the locally tracked permission
func (s *Service) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// Ready reports whether the service can display anything at all
func (s *Service) Ready() bool {
	return s.supported && s.Permission() == PermissionGranted
}

// CanShow evaluates the policy for the current context
func (s *Service) CanShow(forceShow bool) bool {
	return s.policy.CanShow(forceShow)
}

// Show displays msg when the policy allows it. Display failures are logged
// and reported as false.
func (s *Service) Show(msg Message, forceShow bool) bool {
	if err := s.policy.Check(forceShow); err != nil {
		notificationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		logger.Debug("notification suppressed",
			zap.String("messageId", msg.ID),
			zap.String("conversationId", msg.ConversationID),
			zap.String("reason", err.Error()))
		return false
	}

	opts := s.policy.Build(msg)
	if !s.display(opts) {
		return false
	}
	if !opts.Silent {
		s.playSound()
	}
	s.forward(opts)
	return true
}

// RequestPermission prompts once when permission was never answered and
// returns the resulting permission. A transition to granted shows a
// one-time confirmation after a short delay.
func (s *Service) RequestPermission(ctx context.Context) Permission {
	s.requestMu.Lock()
	defer s.requestMu.Unlock()

	prev := s.Permission()
	if !s.supported || prev != PermissionDefault {
		return prev
	}

	next, err := s.capability.RequestPermission(ctx)
	if err != nil {
		logger.Warn("notification permission request failed", zap.Error(err))
		return prev
	}

	s.mu.Lock()
	s.permission = next
	s.mu.Unlock()
	logger.Info("notification permission answered", zap.String("permission", string(next)))

	if next == PermissionGranted {
		time.AfterFunc(s.confirmDelay, s.showConfirmation)
	}
	return next
}

// OnClick registers a click listener and returns its remover
func (s *Service) OnClick(fn ClickListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Click acts as a user click on the open notification with tag
func (s *Service) Click(tag string) bool {
	s.mu.Lock()
	n, ok := s.open.Peek(tag)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.handleClick(tag, n)
	return true
}

// LastClicked returns the message behind the most recent click
func (s *Service) LastClicked() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastClicked == nil {
		return Message{}, false
	}
	return *s.lastClicked, true
}

// Diagnostics returns structured introspection data
func (s *Service) Diagnostics() ServiceDiagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := ServiceDiagnostics{
		Supported:  s.supported,
		Permission: s.permission,
		Ready:      s.supported && s.permission == PermissionGranted,
		Open:       s.open.Keys(),
		Settings:   s.settings.Get(),
	}
	if s.lastClicked != nil {
		m := *s.lastClicked
		d.LastClicked = &m
	}
	return d
}

// Close dismisses every open notification
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.open.Purge()
}

func (s *Service) display(opts Options) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	var handle Handle
	err := utils.SafeCall(func() error {
		h, err := s.capability.Show(opts)
		if err != nil {
			return err
		}
		if h == nil {
			return errors.New("capability returned no handle")
		}
		handle = h
		return nil
	}, func(error) {})
	if err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		logger.Warn("show notification failed", zap.String("tag", opts.Tag), zap.Error(err))
		return false
	}

	// Same tag replaces the previous notification instead of stacking
	if prev, ok := s.open.Peek(opts.Tag); ok {
		_ = prev.handle.Close()
	}
	n := &openNotification{handle: handle, opts: opts}
	s.open.Add(opts.Tag, n)
	handle.OnClick(func() { s.handleClick(opts.Tag, n) })
	time.AfterFunc(s.dismissAfter, func() { s.dismiss(opts.Tag, n) })

	notificationsTotal.WithLabelValues("shown").Inc()
	logger.Debug("notification shown", zap.String("tag", opts.Tag), zap.String("title", opts.Title))
	return true
}

func (s *Service) dismiss(tag string, n *openNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.open.Peek(tag); ok && cur == n {
		s.open.Remove(tag)
		return
	}
	_ = n.handle.Close()
}

func (s *Service) handleClick(tag string, n *openNotification) {
	if s.focuser != nil {
		_ = utils.SafeCall(func() error {
			s.focuser.Focus()
			return nil
		}, nil)
	}
	s.dismiss(tag, n)
	if tag == PermissionConfirmTag {
		// not backed by a message, nothing to open
		return
	}

	msg := n.opts.Data
	s.mu.Lock()
	s.lastClicked = &msg
	listeners := make([]ClickListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn := fn
		_ = utils.SafeCall(func() error {
			fn(msg)
			return nil
		}, nil)
	}
}

func (s *Service) playSound() {
	if s.sound == nil || !s.soundLimiter.Allow() {
		return
	}
	err := utils.SafeCall(s.sound.Play, func(error) {})
	if err != nil {
		logger.Debug("notification sound failed", zap.Error(err))
	}
}

func (s *Service) forward(opts Options) {
	for _, fw := range s.forwarders {
		go func(fw Forwarder) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultForwardLimit)
			defer cancel()
			if err := fw.Forward(ctx, opts); err != nil {
				logger.Warn("forward notification failed", zap.String("tag", opts.Tag), zap.Error(err))
			}
		}(fw)
	}
}

func (s *Service) showConfirmation() {
	if s.Permission() != PermissionGranted {
		return
	}
	s.display(Options{
		Title:  "Notifications enabled",
		Body:   "You will be notified about new messages.",
		Icon:   s.icon,
		Tag:    PermissionConfirmTag,
		Silent: true,
	})
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrPermissionNotGranted):
		return "permission"
	case errors.Is(err, ErrDisabled), errors.Is(err, ErrDesktopDisabled):
		return "disabled"
	case errors.Is(err, ErrQuietHours):
		return "quiet_hours"
	case errors.Is(err, ErrWindowVisible):
		return "visible"
	default:
		return "suppressed"
	}
}
