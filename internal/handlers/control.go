package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/code-100-precent/LingChat/pkg/dispatcher"
	"github.com/code-100-precent/LingChat/pkg/graphql"
	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/code-100-precent/LingChat/pkg/notification"
	"github.com/code-100-precent/LingChat/pkg/realtime"
	"github.com/code-100-precent/LingChat/pkg/scheduler"
	"github.com/code-100-precent/LingChat/pkg/utils/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errConversationRequired = errors.New("conversationId is required")
	errHiddenRequired       = errors.New("hidden is required")
	errEventRequired        = errors.New("event is required")
	errReservedEvent        = errors.New("lifecycle events cannot be emitted")
	errAnswerInvalid        = errors.New("answer must be granted or denied")
	errTagRequired          = errors.New("tag is required")
)

// DiagnosticsView is the body of GET /diagnostics
type DiagnosticsView struct {
	Connection         *realtime.Diagnostics            `json:"connection,omitempty"`
	Notifications      *notification.ServiceDiagnostics `json:"notifications,omitempty"`
	Dispatcher         *dispatcher.Stats                `json:"dispatcher,omitempty"`
	ActiveConversation string                           `json:"activeConversation,omitempty"`
	Hidden             bool                             `json:"hidden"`
	User               *graphql.User                    `json:"user,omitempty"`
	Tasks              []scheduler.TaskStatus           `json:"tasks,omitempty"`
}

// Diagnostics collects every component's snapshot
func (h *Handlers) Diagnostics() DiagnosticsView {
	view := DiagnosticsView{Hidden: h.visibility.Hidden()}
	if h.conn != nil {
		d := h.conn.Diagnostics()
		view.Connection = &d
	}
	if h.notifications != nil {
		d := h.notifications.Diagnostics()
		view.Notifications = &d
	}
	if h.dispatcher != nil {
		stats := h.dispatcher.Stats()
		view.Dispatcher = &stats
		view.ActiveConversation, _ = h.dispatcher.Active().Get()
	}
	if h.session != nil {
		view.User = h.session.User()
	}
	if h.scheduler != nil {
		view.Tasks = h.scheduler.Status()
	}
	return view
}

func (h *Handlers) handleDiagnostics(c *gin.Context) {
	response.Success(c, "ok", h.Diagnostics())
}

func (h *Handlers) handleReconnect(c *gin.Context) {
	if h.conn == nil {
		response.AbortWithStatus(c, http.StatusServiceUnavailable)
		return
	}
	h.conn.ForceReconnect()
	logger.Info("reconnect requested", zap.String("ip", c.ClientIP()))
	response.Result(c, http.StatusAccepted, http.StatusAccepted, "reconnect scheduled", nil)
}

type emitRequest struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func (h *Handlers) handleEmit(c *gin.Context) {
	var req emitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	req.Event = strings.TrimSpace(req.Event)
	if req.Event == "" {
		response.BadRequest(c, errEventRequired)
		return
	}
	if realtime.IsReservedEvent(req.Event) {
		response.BadRequest(c, errReservedEvent)
		return
	}
	if h.conn == nil || !h.conn.Emit(req.Event, req.Data) {
		response.Result(c, http.StatusConflict, http.StatusConflict, "not connected", nil)
		return
	}
	response.Success(c, "sent", nil)
}

func (h *Handlers) handleLatestEvent(c *gin.Context) {
	if h.conn != nil {
		if event, ok := h.conn.LatestEvent(); ok {
			response.Success(c, "ok", event)
			return
		}
	}
	response.Result(c, http.StatusNotFound, http.StatusNotFound, "no event received yet", nil)
}

type activeConversationRequest struct {
	ConversationID string `json:"conversationId"`
}

func (h *Handlers) handleSetActiveConversation(c *gin.Context) {
	var req activeConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		response.BadRequest(c, errConversationRequired)
		return
	}
	h.dispatcher.Active().Set(id)
	response.Success(c, "ok", gin.H{"conversationId": id})
}

func (h *Handlers) handleClearActiveConversation(c *gin.Context) {
	h.dispatcher.Active().Clear()
	response.Success(c, "ok", nil)
}

type visibilityRequest struct {
	Hidden *bool `json:"hidden"`
}

func (h *Handlers) handleSetVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	if req.Hidden == nil {
		response.BadRequest(c, errHiddenRequired)
		return
	}
	h.visibility.SetHidden(*req.Hidden)
	response.Success(c, "ok", gin.H{"hidden": *req.Hidden})
}

func (h *Handlers) handleGetSettings(c *gin.Context) {
	response.Success(c, "ok", h.notifications.Settings().Get())
}

func (h *Handlers) handleUpdateSettings(c *gin.Context) {
	settings := h.notifications.Settings().Get()
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.BadRequest(c, err)
		return
	}
	if err := h.notifications.Settings().Update(settings); err != nil {
		response.BadRequest(c, err)
		return
	}
	response.Success(c, "ok", h.notifications.Settings().Get())
}

func (h *Handlers) handleResetSettings(c *gin.Context) {
	response.Success(c, "ok", h.notifications.Settings().Reset())
}

type permissionRequest struct {
	Answer notification.Permission `json:"answer"`
}

func (h *Handlers) handleRequestPermission(c *gin.Context) {
	req := permissionRequest{Answer: notification.PermissionGranted}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
	}
	if req.Answer != notification.PermissionGranted && req.Answer != notification.PermissionDenied {
		response.BadRequest(c, errAnswerInvalid)
		return
	}

	ctx := notification.WithPromptAnswer(c.Request.Context(), req.Answer)
	permission := h.notifications.RequestPermission(ctx)
	response.Success(c, "ok", gin.H{
		"permission": permission,
		"ready":      h.notifications.Ready(),
	})
}

type clickRequest struct {
	Tag string `json:"tag"`
}

func (h *Handlers) handleClick(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	if req.Tag == "" {
		response.BadRequest(c, errTagRequired)
		return
	}
	if !h.notifications.Click(req.Tag) {
		response.Result(c, http.StatusNotFound, http.StatusNotFound, "no open notification with this tag", nil)
		return
	}
	msg, _ := h.notifications.LastClicked()
	response.Success(c, "ok", gin.H{"conversationId": msg.ConversationID, "messageId": msg.ID})
}
