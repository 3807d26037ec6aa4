package http

import (
	"context"
	"net/http"
	"time"

	"github.com/edustream/liveclass/internal/adapters/signal"
	"github.com/edustream/liveclass/internal/app/orch"
	"github.com/edustream/liveclass/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const sessionName = "EduStreamSession"

type Deps struct {
	Orch   *orch.Orchestrator
	Signal *signal.SignalWSController
	Auth   *Authenticator
	ICE    webrtc.Configuration
	// Health reports backing store readiness; nil means always ready.
	Health func(context.Context) error
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieOpts := sessions.Options{
		Path:     "/",
		MaxAge:   int(maxSessionAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Mode == "release",
		SameSite: http.SameSiteStrictMode,
	}
	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(cookieOpts)
	r.Use(sessions.Sessions(sessionName, store))
	deps.Auth.cookie = cookieOpts

	h := &handlers{ctx: ctx, orch: deps.Orch, signal: deps.Signal, ice: deps.ICE, health: deps.Health}

	r.GET("/healthz", h.healthz)

	authed := r.Group("/", deps.Auth.Middleware())
	authed.GET("/ws/signal/:room_id", deps.Auth.RequireOriginForCookie(), h.wsSignal)

	api := authed.Group("/api")
	api.GET("/ice-servers", h.iceServers)

	admin := api.Group("/rooms", RequireAdmin())
	admin.GET("", h.listRooms)
	admin.GET("/:room_id/members", h.roomMembers)
	admin.DELETE("/:room_id", h.endRoom)
	admin.DELETE("/:room_id/members/:sid", h.kickMember)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
