package orch

import (
	"errors"
	"fmt"

	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotMember          = errors.New("sender is not a room member")
	ErrUnauthorizedAction = errors.New("unauthorized action")
	ErrTargetNotFound     = errors.New("target not found")
)

// Dispatch routes one inbound frame from sess. The returned error is for
// logging only and is never reported back to the sender.
func (o *Orchestrator) Dispatch(sess core.MemberSession, data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		return err
	}
	if msg.Type == TypePing {
		return sess.Signal().TrySend(controlFrame(TypePong))
	}

	roomID := sess.Meta().Room
	if sess.State() != core.StateJoined {
		return fmt.Errorf("%s from %s: %w", msg.Type, sess.ID(), ErrNotMember)
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return fmt.Errorf("%s from %s: %w", msg.Type, sess.ID(), ErrNotMember)
	}
	if _, ok := room.Member(sess.ID()); !ok {
		return fmt.Errorf("%s from %s: %w", msg.Type, sess.ID(), ErrNotMember)
	}

	switch msg.Type {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		// Decode guarantees an answer carries a target.
		return o.relay(sess, msg)
	case TypeEndSession:
		return o.endSession(sess)
	default:
		return fmt.Errorf("%w: unexpected type %q", ErrMalformedMessage, msg.Type)
	}
}

// relay unicasts to target when set and otherwise broadcasts to everyone
// but the sender.
func (o *Orchestrator) relay(sess core.MemberSession, msg *Inbound) error {
	target := msg.TargetID
	roomID := sess.Meta().Room
	frame, err := relayFrame(msg, sess.Meta().User.ID)
	if err != nil {
		return err
	}

	if target == "" {
		res := o.Rooms.Broadcast(roomID, frame, sess.ID())
		o.handleDropped(roomID, res)
		log.Debug().Str("module", "orch.router").Str("sid", string(sess.ID())).Str("type", string(msg.Type)).
			Int("sent_to", res.SendTo).Msg("broadcast")
		return nil
	}

	res, found := o.Rooms.Unicast(roomID, domain.UserID(target), frame)
	if !found {
		return fmt.Errorf("%s to %s: %w", msg.Type, target, ErrTargetNotFound)
	}
	o.handleDropped(roomID, res)
	log.Debug().Str("module", "orch.router").Str("sid", string(sess.ID())).Str("type", string(msg.Type)).
		Str("target_id", string(target)).Msg("unicast")
	return nil
}

func (o *Orchestrator) endSession(sess core.MemberSession) error {
	if !sess.Meta().IsTeacher() {
		return fmt.Errorf("end-session by %s: %w", sess.Meta().User.Role, ErrUnauthorizedAction)
	}
	log.Info().Str("module", "orch.router").Str("sid", string(sess.ID())).
		Str("room_id", string(sess.Meta().Room)).Msg("session ended by teacher")
	o.EvictRoom(sess.Meta().Room)
	return nil
}
