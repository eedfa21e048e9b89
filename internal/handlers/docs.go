package handlers

import (
	"net/http"

	"github.com/code-100-precent/LingChat/pkg/utils/response"
	"github.com/gin-gonic/gin"
)

// RouteDoc describes one control endpoint
type RouteDoc struct {
	Group  string `json:"group"`
	Path   string `json:"path"`
	Method string `json:"method"`
	Desc   string `json:"desc"`
}

func (h *Handlers) GetDocs() []RouteDoc {
	api, monitor := prefixes()
	return []RouteDoc{
		{Group: "Connection", Path: api + "/diagnostics", Method: http.MethodGet,
			Desc: "Connection, notification, dispatcher and task state"},
		{Group: "Connection", Path: api + "/reconnect", Method: http.MethodPost,
			Desc: "Retry now: resets the attempt counter and reconnects after a short fixed delay"},
		{Group: "Connection", Path: api + "/emit", Method: http.MethodPost,
			Desc: "Send `{event, data}` on the live connection, 409 when not connected"},
		{Group: "Connection", Path: api + "/events/latest", Method: http.MethodGet,
			Desc: "Most recent inbound message, 404 before the first one"},
		{Group: "Session", Path: api + "/active-conversation", Method: http.MethodPut,
			Desc: "Mark `{conversationId}` as open, its messages are not notified"},
		{Group: "Session", Path: api + "/active-conversation", Method: http.MethodDelete,
			Desc: "No conversation is open"},
		{Group: "Session", Path: api + "/visibility", Method: http.MethodPut,
			Desc: "Report `{hidden}`, notifications are shown only while hidden unless forced"},
		{Group: "Settings", Path: api + "/settings", Method: http.MethodGet,
			Desc: "Current notification settings"},
		{Group: "Settings", Path: api + "/settings", Method: http.MethodPut,
			Desc: "Replace the notification settings, persisted to the settings file"},
		{Group: "Settings", Path: api + "/settings/reset", Method: http.MethodPost,
			Desc: "Restore default notification settings"},
		{Group: "Notifications", Path: api + "/notifications/permission", Method: http.MethodPost,
			Desc: "Answer the permission prompt with `{answer: granted|denied}`, asked once"},
		{Group: "Notifications", Path: api + "/notifications/click", Method: http.MethodPost,
			Desc: "Click the open notification with `{tag}`"},
		{Group: "Monitoring", Path: monitor, Method: http.MethodGet,
			Desc: "Prometheus metrics"},
		{Group: "Monitoring", Path: api + "/docs", Method: http.MethodGet,
			Desc: "This list"},
	}
}

func (h *Handlers) handleDocs(c *gin.Context) {
	response.Success(c, "ok", h.GetDocs())
}
