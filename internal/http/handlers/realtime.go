package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oakmind/oakmind-backend/internal/http/response"
	"github.com/oakmind/oakmind-backend/internal/requestdata"
	"github.com/oakmind/oakmind-backend/internal/sse"
)

type RealtimeHandler struct {
	hub *sse.Hub
}

func NewRealtimeHandler(hub *sse.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// SSEStream subscribes the requester to their own channel, plus any extra
// channels from the `channels` query param (the ops channel among them).
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.RequesterID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	client := h.hub.NewClient()
	h.hub.Register(client, rd.RequesterID.String())
	for _, ch := range strings.Split(c.Query("channels"), ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			h.hub.Register(client, ch)
		}
	}

	h.hub.Serve(c.Writer, c.Request, client)
}
