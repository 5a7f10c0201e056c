package handlers

import (
	"github.com/gin-gonic/gin"

	"acmesync/internal/core/apperror"
	"acmesync/internal/infrastructure/http/v1/dto"
	"acmesync/internal/replication"
)

// ReplicaHandler handles the node-to-node event endpoint. Token checking
// happens in middleware; by the time a request gets here it is a trusted
// peer.
type ReplicaHandler struct {
	*BaseHandler
	receiver *replication.Receiver
}

// NewReplicaHandler creates a new replica handler.
func NewReplicaHandler(base *BaseHandler, receiver *replication.Receiver) *ReplicaHandler {
	return &ReplicaHandler{
		BaseHandler: base,
		receiver:    receiver,
	}
}

// ReceiveEvent handles POST /replica/event
func (h *ReplicaHandler) ReceiveEvent(c *gin.Context) {
	ctx := c.Request.Context()

	var ev replication.Event
	if !h.BindJSON(c, &ev) {
		return
	}
	if ev.EventID == "" || ev.Type == "" {
		h.Error(c, apperror.NewValidation("event_id and event_type are required"))
		return
	}

	outcome, err := h.receiver.Receive(ctx, ev)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReceiveOutcome(ev.EventID, outcome))
}

// RegisterRoutes registers replica routes.
func (h *ReplicaHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/event", h.ReceiveEvent)
}
