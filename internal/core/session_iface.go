package core

import (
	"github.com/edustream/liveclass/internal/domain"
	"github.com/google/uuid"
)

type SessionID string

func NewSessionID() SessionID { return SessionID(uuid.NewString()) }

func (s SessionID) String() string { return string(s) }

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthorizing
	StateJoined
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateJoined:
		return "joined"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
//
// Transition methods report whether this call performed the transition, so
// concurrent callers agree on a single winner.
type MemberSession interface {
	ID() SessionID
	Meta() *domain.Member
	Signal() SignalConnection
	State() SessionState

	// BeginAuthorize moves Connecting -> Authorizing.
	BeginAuthorize() bool
	// MarkJoined moves Authorizing -> Joined.
	MarkJoined() bool
	// Reject moves Authorizing -> Closed without ever joining.
	Reject() bool
	// BeginClose moves Joined -> Closing. Only the winner deregisters.
	BeginClose() bool
	// MarkClosed moves Closing -> Closed.
	MarkClosed() bool
}
