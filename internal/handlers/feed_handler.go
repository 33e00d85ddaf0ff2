package handlers

import (
	"log"
	"net/http"

	"github.com/facility_triage/internal/feed"
	"github.com/facility_triage/internal/lifecycle"
	"github.com/facility_triage/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// FeedHandler upgrades dashboard connections onto the change feed.
type FeedHandler struct {
	hub      *feed.Hub
	upgrader websocket.Upgrader
}

// NewFeedHandler creates a FeedHandler. allowedOrigins empty means any origin.
func NewFeedHandler(hub *feed.Hub, allowedOrigins []string) *FeedHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &FeedHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

// ServeFeed godoc
// @Summary Live complaint feed
// @Description Websocket stream of complaint events for triage dashboards. Privileged roles only. Pass the token as access_token when headers cannot be set.
// @Tags Feed
// @Param access_token query string false "JWT for browsers"
// @Success 101 "Switching protocols"
// @Failure 401 {object} utils.APIErrorResponse
// @Failure 403 {object} utils.APIErrorResponse
// @Router /feed [get]
// @Security BearerAuth
func (h *FeedHandler) ServeFeed(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if !lifecycle.IsPrivileged(actor.Role) {
		utils.RespondForbiddenError(c, "The live feed is available to triage staff only", nil)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WARN: feed upgrade for %s failed: %v", actor.ID, err)
		return
	}
	feed.NewClient(actor.ID, h.hub, conn).Run()
}
