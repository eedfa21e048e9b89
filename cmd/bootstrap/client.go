package bootstrap

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/code-100-precent/LingChat/internal/handlers"
	"github.com/code-100-precent/LingChat/pkg/circuitbreaker"
	"github.com/code-100-precent/LingChat/pkg/config"
	"github.com/code-100-precent/LingChat/pkg/dispatcher"
	"github.com/code-100-precent/LingChat/pkg/graphql"
	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/code-100-precent/LingChat/pkg/notification"
	"github.com/code-100-precent/LingChat/pkg/realtime"
	"github.com/code-100-precent/LingChat/pkg/scheduler"
	"go.uber.org/zap"
)

const sessionRefreshTimeout = 10 * time.Second

// Options controls client assembly
type Options struct {
	// Output receives terminal notifications and the bell, nil disables both
	Output io.Writer
	// Dialer overrides the gorilla/websocket transport
	Dialer realtime.Dialer
	// SeedSettings writes default settings when the settings file is missing
	SeedSettings bool
}

// Client is the assembled chat client: one connection manager, one
// notification service and one dispatcher, plus the control handlers
type Client struct {
	Config        *config.Config
	Manager       *realtime.Manager
	GraphQL       *graphql.Client
	Session       *graphql.Session
	Store         *notification.FileStore
	Settings      *notification.SettingsManager
	Visibility    *notification.VisibilityState
	Notifications *notification.Service
	Dispatcher    *dispatcher.Dispatcher
	Scheduler     *scheduler.Scheduler
	Handlers      *handlers.Handlers

	// WebhookBreaker is nil when no webhook is configured
	WebhookBreaker *circuitbreaker.CircuitBreaker

	removeClick func()
}

// SetupClient unified entry: settings store -> notification service ->
// connection manager -> session -> dispatcher -> scheduled tasks
func SetupClient(cfg *config.Config, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}

	// 1) Settings
	store := notification.NewFileStore(cfg.Notification.SettingsPath)
	if opts.SeedSettings {
		if err := SeedSettings(store); err != nil {
			logger.Warn("seed notification settings failed", zap.Error(err))
		}
	}
	settings := notification.NewSettingsManager(store)

	// 2) Notification service
	visibility := notification.NewVisibilityState(cfg.Notification.StartHidden)
	var capability notification.Capability
	if opts.Output != nil {
		capability = notification.NewTerminalCapability(opts.Output, notification.ContextPrompt)
	}

	c := &Client{
		Config:     cfg,
		Store:      store,
		Settings:   settings,
		Visibility: visibility,
		Scheduler:  scheduler.NewScheduler(),
	}
	active := dispatcher.NewActiveConversation()

	serviceOpts := []notification.ServiceOption{
		notification.WithIcon(cfg.Notification.Icon),
		notification.WithFocuser(notification.FocusFunc(func() { visibility.SetHidden(false) })),
	}
	if cfg.Notification.AutoDismiss > 0 {
		serviceOpts = append(serviceOpts, notification.WithAutoDismiss(cfg.Notification.AutoDismiss))
	}
	if cfg.Notification.Bell && opts.Output != nil {
		serviceOpts = append(serviceOpts, notification.WithSound(notification.NewBellPlayer(opts.Output)))
	}
	if cfg.Notification.SoundEvery > 0 {
		serviceOpts = append(serviceOpts, notification.WithSoundLimit(cfg.Notification.SoundEvery, 1))
	}
	if cfg.Notification.WebhookURL != "" {
		breaker := circuitbreaker.DefaultConfig("webhook")
		breaker.MaxFailures = 3
		breaker.OnStateChange = func(name string, from, to circuitbreaker.State) {
			logger.Warn("forwarder circuit changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		}
		c.WebhookBreaker = circuitbreaker.New(breaker)
		serviceOpts = append(serviceOpts, notification.WithForwarders(notification.NewWebhookForwarder(notification.WebhookConfig{
			URL:     cfg.Notification.WebhookURL,
			Secret:  cfg.Notification.WebhookSecret,
			Retry:   circuitbreaker.DefaultRetryConfig(),
			Breaker: c.WebhookBreaker,
		})))
	}
	c.Notifications = notification.NewService(capability, settings, visibility, serviceOpts...)

	// Clicking a notification opens its conversation
	c.removeClick = c.Notifications.OnClick(openConversation(active))

	// 3) Connection manager
	c.Manager = realtime.NewManager(realtime.CloneConfig(cfg.Realtime), opts.Dialer)

	// 4) Session
	var session dispatcher.Session
	if cfg.UserID != "" {
		session = dispatcher.StaticSession(cfg.UserID)
	} else if cfg.GraphQLEndpoint != "" {
		c.GraphQL = graphql.NewClient(cfg.GraphQLEndpoint, cfg.GraphQLToken, cfg.GraphQLTimeout)
		c.Session = graphql.NewSession(c.GraphQL)
		session = c.Session
	}

	// 5) Dispatcher
	c.Dispatcher = dispatcher.New(c.Manager, c.Notifications, session, active)

	// 6) Tasks
	if err := c.registerTasks(); err != nil {
		c.Close()
		return nil, err
	}

	c.Handlers = handlers.NewHandlers(handlers.Deps{
		Connection:    c.Manager,
		Notifications: c.Notifications,
		Visibility:    visibility,
		Dispatcher:    c.Dispatcher,
		Scheduler:     c.Scheduler,
		Session:       c.Session,
	})

	logger.Info("client bootstrap complete",
		zap.String("endpoint", cfg.Realtime.URL),
		zap.Bool("notificationsSupported", c.Notifications.Supported()),
		zap.String("permission", string(c.Notifications.Permission())))
	return c, nil
}

func (c *Client) registerTasks() error {
	if c.Config.PingSchedule != "" {
		if err := c.Scheduler.AddTask(&scheduler.Task{
			ID:       "ping",
			Name:     "application heartbeat",
			Schedule: c.Config.PingSchedule,
			Run:      c.ping,
		}); err != nil {
			return err
		}
	}
	if c.Config.DiagnosticsSchedule != "" {
		if err := c.Scheduler.AddTask(&scheduler.Task{
			ID:       "diagnostics",
			Name:     "diagnostics log",
			Schedule: c.Config.DiagnosticsSchedule,
			Run:      c.logDiagnostics,
		}); err != nil {
			return err
		}
	}
	if c.Session != nil {
		if err := c.Scheduler.AddTask(&scheduler.Task{
			ID:       "session",
			Name:     "session refresh",
			Schedule: "@every 1m",
			Run:      c.refreshSessionIfMissing,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Start resolves the session, begins dispatching and connects. A failed
// connect is retried by the manager.
func (c *Client) Start(ctx context.Context) {
	if c.Session != nil {
		refreshCtx, cancel := context.WithTimeout(ctx, sessionRefreshTimeout)
		if _, err := c.Session.Refresh(refreshCtx); err != nil {
			logger.Warn("session refresh failed, own messages cannot be recognized yet", zap.Error(err))
		}
		cancel()
	}
	if c.Config.Notification.AutoGrant {
		c.Notifications.RequestPermission(notification.WithPromptAnswer(ctx, notification.PermissionGranted))
	}

	c.Dispatcher.Start()
	c.Scheduler.Start()
	c.Manager.Connect(ctx)
}

// WatchSettings applies external edits of the settings file until ctx is done
func (c *Client) WatchSettings(ctx context.Context) error {
	return c.Store.Watch(ctx, c.Settings.Apply, func(err error) {
		logger.Warn("reload notification settings failed", zap.Error(err))
	})
}

// Close stops everything SetupClient started
func (c *Client) Close() {
	if c.removeClick != nil {
		c.removeClick()
	}
	c.Scheduler.Stop()
	if c.Dispatcher != nil {
		c.Dispatcher.Stop()
	}
	if c.Manager != nil {
		c.Manager.Close()
	}
	if c.Notifications != nil {
		c.Notifications.Close()
	}
	logger.Info("client stopped")
}

func (c *Client) ping(context.Context) error {
	if c.Manager.State() != realtime.StateConnected {
		return nil
	}
	if !c.Manager.Emit(realtime.EmitPing, nil) {
		return errors.New(realtime.ErrNotConnected)
	}
	return nil
}

func (c *Client) logDiagnostics(context.Context) error {
	d := c.Manager.Diagnostics()
	stats := c.Dispatcher.Stats()
	logger.Info("client diagnostics",
		zap.String("state", d.State.String()),
		zap.Int("attempts", d.Attempts),
		zap.String("lastError", d.LastError),
		zap.Int64("liveSockets", d.LiveSockets),
		zap.Bool("reconnectPending", d.ReconnectPending),
		zap.Int("processed", stats.Processed),
		zap.Any("outcomes", stats.Outcomes),
		zap.String("permission", string(c.Notifications.Permission())))
	if c.WebhookBreaker != nil {
		wb := c.WebhookBreaker.Stats()
		logger.Info("webhook forwarder",
			zap.String("state", wb.State),
			zap.Int64("consecutiveFailures", wb.Counts.ConsecutiveFailures))
	}
	return nil
}

func (c *Client) refreshSessionIfMissing(ctx context.Context) error {
	if c.Session.User() != nil {
		return nil
	}
	_, err := c.Session.Refresh(ctx)
	return err
}

// openConversation makes a clicked notification's conversation the active
// one. Clicks without a conversation leave the active one untouched.
func openConversation(active *dispatcher.ActiveConversation) notification.ClickListener {
	return func(msg notification.Message) {
		if msg.ConversationID == "" {
			return
		}
		active.Set(msg.ConversationID)
	}
}
