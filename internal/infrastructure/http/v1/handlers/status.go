package handlers

import (
	"github.com/gin-gonic/gin"

	"acmesync/internal/status"
)

// StatusHandler exposes the node status snapshot.
type StatusHandler struct {
	*BaseHandler
	reporter *status.Reporter
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(base *BaseHandler, reporter *status.Reporter) *StatusHandler {
	return &StatusHandler{
		BaseHandler: base,
		reporter:    reporter,
	}
}

// Get handles GET /status
func (h *StatusHandler) Get(c *gin.Context) {
	report, err := h.reporter.Report(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}
