package core

import (
	"sync/atomic"

	"github.com/edustream/liveclass/internal/domain"
)

// memberSession implements MemberSession by pairing meta + transport.
type memberSession struct {
	id    SessionID
	meta  *domain.Member
	conn  SignalConnection
	state atomic.Int32
}

func NewMemberSession(id SessionID, meta *domain.Member, conn SignalConnection) MemberSession {
	return &memberSession{id: id, meta: meta, conn: conn}
}

func (m *memberSession) ID() SessionID            { return m.id }
func (m *memberSession) Meta() *domain.Member     { return m.meta }
func (m *memberSession) Signal() SignalConnection { return m.conn }
func (m *memberSession) State() SessionState      { return SessionState(m.state.Load()) }

func (m *memberSession) move(from, to SessionState) bool {
	return m.state.CompareAndSwap(int32(from), int32(to))
}

func (m *memberSession) BeginAuthorize() bool { return m.move(StateConnecting, StateAuthorizing) }
func (m *memberSession) MarkJoined() bool     { return m.move(StateAuthorizing, StateJoined) }
func (m *memberSession) Reject() bool         { return m.move(StateAuthorizing, StateClosed) }
func (m *memberSession) BeginClose() bool     { return m.move(StateJoined, StateClosing) }
func (m *memberSession) MarkClosed() bool     { return m.move(StateClosing, StateClosed) }
