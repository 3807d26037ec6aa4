package http

import (
	"context"
	"net/http"
	"time"

	"github.com/edustream/liveclass/internal/adapters/signal"
	"github.com/edustream/liveclass/internal/app/orch"
	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const healthTimeout = 2 * time.Second

type handlers struct {
	ctx    context.Context
	orch   *orch.Orchestrator
	signal *signal.SignalWSController
	ice    webrtc.Configuration
	health func(context.Context) error
}

func roomParam(c *gin.Context) (domain.RoomID, bool) {
	id, err := domain.ParseRoomID(c.Param("room_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}

func (h *handlers) wsSignal(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	user, ok := CurrentUser(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	log.Info().Str("module", "adapters.http").Str("user_id", string(user.ID)).
		Str("room_id", string(roomID)).Msg("ws signal endpoint hit")
	h.signal.HandleSignal(h.ctx, c, user, roomID)
}

func (h *handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ice.ICEServers})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *handlers) roomMembers(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	room, ok := h.orch.Rooms.Get(roomID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "members": room.MembersSnapshot()})
}

func (h *handlers) endRoom(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	n := h.orch.EvictRoom(roomID)
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": n})
}

func (h *handlers) kickMember(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	sid := core.SessionID(c.Param("sid"))
	sess, ok := h.orch.Registry.GetSession(sid)
	if !ok || sess.Meta().Room != roomID {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	if !h.orch.Kick(sid) {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) healthz(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := h.health(ctx); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.orch.Registry.Len()})
}
