package signal

import (
	"context"
	"errors"
	"time"

	"github.com/edustream/liveclass/internal/app/orch"
	"github.com/edustream/liveclass/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	var ping <-chan time.Time
	if ctl.opts.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.opts.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			c.writeClose(websocket.CloseGoingAway, "")
			return
		case data, ok := <-c.send:
			if !ok {
				// Queue closed after everything in it was written.
				c.writeClose(websocket.CloseNormalClosure, "")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (c *WsSignalConn) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sess core.MemberSession, c *WsSignalConn) {
	sid := sess.ID()
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.Disconnect(sess)
		c.Close()
		cancel()
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(sid)
		}
	}()

	if ctl.opts.PingPeriod > 0 {
		pongWait := ctl.opts.PingPeriod * 10 / 9
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("rate limited, message dropped")
			continue
		}
		if err := ctl.Orch.Dispatch(sess, data); err != nil {
			logDispatchError(sid, err)
		}
	}
}

func logDispatchError(sid core.SessionID, err error) {
	ev := log.Debug()
	switch {
	case errors.Is(err, orch.ErrUnauthorizedAction), errors.Is(err, orch.ErrNotMember):
		ev = log.Warn()
	case errors.Is(err, orch.ErrMalformedMessage), errors.Is(err, orch.ErrTargetNotFound):
	}
	ev.Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("message dropped")
}
