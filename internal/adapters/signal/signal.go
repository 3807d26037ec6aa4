package signal

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/edustream/liveclass/internal/app/orch"
	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultSendBuffer = 64
	writeWait         = 5 * time.Second
)

type Options struct {
	SendBuffer int
	ReadLimit  int64
	PingPeriod time.Duration
	// AllowedOrigins restricts the Origin header; empty allows any origin.
	AllowedOrigins []string
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *RoomRateLimiter
	opts    Options
	up      websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, limiter *RoomRateLimiter, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	ctl := &SignalWSController{Orch: o, Limiter: limiter, opts: opts}
	ctl.up = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     ctl.checkOrigin,
	}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	if len(ctl.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(ctl.opts.AllowedOrigins, r.Header.Get("Origin"))
}

// WsSignalConn is the outbound side of one WebSocket. Frames are queued and
// written by writePump; Close stops the queue and lets the pump flush it.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// HandleSignal upgrades the request and runs the session of user in room
// until either side closes.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, user *domain.User, roomID domain.RoomID) {
	sid := core.NewSessionID()
	logger := log.With().Str("module", "signal").Str("sid", string(sid)).
		Str("user_id", string(user.ID)).Str("room_id", string(roomID)).Logger()
	logger.Info().Msg("new WS connection")

	ws, err := ctl.up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	sess := core.NewMemberSession(sid, domain.NewMember(user, roomID), conn)
	ctx, cancel := context.WithCancel(ctx)

	if err := ctl.Orch.Admit(ctx, sess, cancel); err != nil {
		cancel()
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "access denied")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = ws.Close()
		logger.Info().Err(err).Msg("connection rejected")
		return
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sess, conn)
}
