package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edustream/liveclass/internal/app"
	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/rs/zerolog/log"
)

const attendanceTimeout = 3 * time.Second

var ErrInvalidState = errors.New("invalid session state")

// Orchestrator drives sessions through admission, routing and teardown.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Access   app.AccessGate
	Policy   app.Policy
	// Attendance is optional.
	Attendance core.AttendanceRecorder
}

// Admit authorizes sess and, on success, registers it in its room and
// announces it to the peers already there. On denial the session is closed
// without any side effect on the room.
func (o *Orchestrator) Admit(ctx context.Context, sess core.MemberSession, cancel context.CancelFunc) error {
	sid := sess.ID()
	if !sess.BeginAuthorize() {
		return fmt.Errorf("admit %s in state %s: %w", sid, sess.State(), ErrInvalidState)
	}
	user := *sess.Meta().User
	roomID := sess.Meta().Room

	if err := o.Access.Check(ctx, user, roomID); err != nil {
		sess.Reject()
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("user_id", string(user.ID)).
			Str("room_id", string(roomID)).Msg("join rejected")
		return err
	}
	if !sess.MarkJoined() {
		return fmt.Errorf("join %s in state %s: %w", sid, sess.State(), ErrInvalidState)
	}

	// Attendance is opened before the session becomes reachable, so a forced
	// close can only ever record the departure after it.
	o.attend(user, roomID, true)

	res := o.Rooms.Join(roomID, sess, userJoinedFrame(user))
	o.Registry.Bind(sess, cancel)
	// A forced close that ran before Bind could not unbind us.
	if sess.State() != core.StateJoined {
		o.Registry.Unbind(sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room_id", string(roomID)).
			Msg("closed while joining")
		return nil
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user_id", string(user.ID)).
		Str("role", user.Role.String()).Str("room_id", string(roomID)).Int("notified", res.SendTo).Msg("joined")

	o.handleDropped(roomID, res)
	return nil
}

// Disconnect is the voluntary leave path. It is safe to call any number of
// times and from any goroutine; only the first call after Joined has effect.
func (o *Orchestrator) Disconnect(sess core.MemberSession) {
	if !sess.BeginClose() {
		return
	}
	sid := sess.ID()
	user := *sess.Meta().User
	roomID := sess.Meta().Room

	res, removed := o.Rooms.Leave(roomID, sid, userLeftFrame(user.ID))
	o.Registry.Unbind(sid)
	sess.MarkClosed()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room_id", string(roomID)).
		Bool("removed", removed).Int("notified", res.SendTo).Msg("left")

	if removed {
		o.handleDropped(roomID, res)
	}
	o.attend(user, roomID, false)
}

// Kick removes a session from its room, announcing it like a voluntary
// leave, and closes its connection.
func (o *Orchestrator) Kick(sid core.SessionID) bool {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return false
	}
	o.Registry.Cancel(sid)
	o.Disconnect(sess)
	sess.Signal().Close()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("kicked")
	return true
}

// EvictRoom sends session-ended to every member, empties the room and
// closes all member connections. It returns the number of evicted sessions.
func (o *Orchestrator) EvictRoom(roomID domain.RoomID) int {
	evicted := o.Rooms.End(roomID, controlFrame(TypeSessionEnded))
	for _, sess := range evicted {
		o.forceClose(sess)
	}
	log.Info().Str("module", "orch").Str("room_id", string(roomID)).Int("evicted", len(evicted)).Msg("room evicted")
	return len(evicted)
}

// forceClose tears down a session that has already been removed from its
// room. Queued frames are still flushed by the transport.
func (o *Orchestrator) forceClose(sess core.MemberSession) {
	if !sess.BeginClose() {
		return
	}
	o.Registry.Unbind(sess.ID())
	sess.MarkClosed()
	sess.Signal().Close()
	o.attend(*sess.Meta().User, sess.Meta().Room, false)
}

func (o *Orchestrator) handleDropped(roomID domain.RoomID, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(roomID, slow) {
		case app.KickMember:
			o.Kick(slow.ID())
		case app.DropFrame, app.NoAction:
		}
	}
}

func (o *Orchestrator) attend(user domain.User, roomID domain.RoomID, joined bool) {
	if o.Attendance == nil || user.Role != domain.RoleStudent {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), attendanceTimeout)
	defer cancel()

	var err error
	if joined {
		err = o.Attendance.Joined(ctx, user, roomID)
	} else {
		err = o.Attendance.Left(ctx, user, roomID)
	}
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("user_id", string(user.ID)).
			Str("room_id", string(roomID)).Bool("joined", joined).Msg("attendance")
	}
}
