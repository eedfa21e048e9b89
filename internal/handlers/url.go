package handlers

import (
	"github.com/code-100-precent/LingChat/pkg/config"
	"github.com/code-100-precent/LingChat/pkg/dispatcher"
	"github.com/code-100-precent/LingChat/pkg/graphql"
	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/code-100-precent/LingChat/pkg/middleware"
	"github.com/code-100-precent/LingChat/pkg/notification"
	"github.com/code-100-precent/LingChat/pkg/realtime"
	"github.com/code-100-precent/LingChat/pkg/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultAPIPrefix     = "/api"
	defaultMonitorPrefix = "/metrics"
)

// Connection is the part of the connection manager the control API drives
type Connection interface {
	Diagnostics() realtime.Diagnostics
	ForceReconnect()
	Emit(event string, payload interface{}) bool
	LatestEvent() (realtime.InboundEvent, bool)
}

// Deps are the long-lived components behind the control API
type Deps struct {
	Connection    Connection
	Notifications *notification.Service
	Visibility    *notification.VisibilityState
	Dispatcher    *dispatcher.Dispatcher
	Scheduler     *scheduler.Scheduler
	// Optional, diagnostics omit the user without it
	Session *graphql.Session
	// Optional, NewMetricsRegistry is used when nil
	Registry *prometheus.Registry
}

type Handlers struct {
	conn          Connection
	notifications *notification.Service
	visibility    *notification.VisibilityState
	dispatcher    *dispatcher.Dispatcher
	scheduler     *scheduler.Scheduler
	session       *graphql.Session
	registry      *prometheus.Registry
}

func NewHandlers(deps Deps) *Handlers {
	registry := deps.Registry
	if registry == nil {
		registry = NewMetricsRegistry()
	}
	visibility := deps.Visibility
	if visibility == nil {
		visibility = notification.NewVisibilityState(true)
	}
	return &Handlers{
		conn:          deps.Connection,
		notifications: deps.Notifications,
		visibility:    visibility,
		dispatcher:    deps.Dispatcher,
		scheduler:     deps.Scheduler,
		session:       deps.Session,
		registry:      registry,
	}
}

// NewMetricsRegistry registers every package's collectors plus the Go
// runtime and process collectors
func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	groups := [][]prometheus.Collector{
		realtime.Collectors(),
		notification.Collectors(),
		dispatcher.Collectors(),
		middleware.RateLimiterCollectors(),
	}
	for _, group := range groups {
		for _, c := range group {
			if err := registry.Register(c); err != nil {
				logger.Warn("register collector failed", zap.Error(err))
			}
		}
	}
	return registry
}

// Registry exposes the metrics registry
func (h *Handlers) Registry() *prometheus.Registry {
	return h.registry
}

func prefixes() (api, monitor string) {
	api, monitor = defaultAPIPrefix, defaultMonitorPrefix
	if config.GlobalConfig != nil {
		if config.GlobalConfig.APIPrefix != "" {
			api = config.GlobalConfig.APIPrefix
		}
		if config.GlobalConfig.MonitorPrefix != "" {
			monitor = config.GlobalConfig.MonitorPrefix
		}
	}
	return api, monitor
}

func (h *Handlers) Register(engine *gin.Engine) {
	apiPrefix, monitorPrefix := prefixes()

	engine.GET(monitorPrefix, gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		Registry: h.registry,
	})))

	r := engine.Group(apiPrefix)
	r.GET("/docs", h.handleDocs)
	r.GET("/diagnostics", h.handleDiagnostics)
	r.POST("/reconnect", h.handleReconnect)
	r.POST("/emit", h.handleEmit)
	r.GET("/events/latest", h.handleLatestEvent)

	r.PUT("/active-conversation", h.handleSetActiveConversation)
	r.DELETE("/active-conversation", h.handleClearActiveConversation)
	r.PUT("/visibility", h.handleSetVisibility)

	r.GET("/settings", h.handleGetSettings)
	r.PUT("/settings", h.handleUpdateSettings)
	r.POST("/settings/reset", h.handleResetSettings)

	r.POST("/notifications/permission", h.handleRequestPermission)
	r.POST("/notifications/click", h.handleClick)

	logger.Info("control routes registered",
		zap.String("apiPrefix", apiPrefix),
		zap.String("monitorPrefix", monitorPrefix))
}
