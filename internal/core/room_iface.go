package core

import (
	"github.com/edustream/liveclass/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	SID      SessionID     `json:"sid"`
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Role     domain.Role   `json:"role"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Member(sid SessionID) (MemberSession, bool)

	// Join adds ms and sends announce to every other member. It returns
	// false when the room has been retired and must not be used anymore.
	Join(ms MemberSession, announce Frame) (PublishResult, bool)
	// Leave removes sid and sends announce to the remaining members. The
	// bool reports whether sid was a member.
	Leave(sid SessionID, announce Frame) (PublishResult, bool)
	Broadcast(exclude SessionID, data Frame) PublishResult
	// Unicast delivers to members owned by target; false if there are none.
	Unicast(target domain.UserID, data Frame) (PublishResult, bool)
	// End delivers data to every member, empties and retires the room.
	End(data Frame) []MemberSession
	// Retire marks an empty room as dead. Non-empty rooms are left alone.
	Retire() bool
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// RoomManager is the registry of live rooms keyed by meeting id. Rooms
// exist only while they have members.
type RoomManager interface {
	Join(room domain.RoomID, ms MemberSession, announce Frame) PublishResult
	Leave(room domain.RoomID, sid SessionID, announce Frame) (PublishResult, bool)
	Broadcast(room domain.RoomID, data Frame, exclude SessionID) PublishResult
	Unicast(room domain.RoomID, target domain.UserID, data Frame) (PublishResult, bool)
	End(room domain.RoomID, data Frame) []MemberSession

	Get(room domain.RoomID) (RoomService, bool)
	List() []RoomInfo
}
