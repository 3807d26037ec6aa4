package app

import (
	"fmt"

	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose outbound queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member core.MemberSession) BackpressureAction
}

// DropPolicy loses the frame for that member only and keeps it in the room.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomID, core.MemberSession) BackpressureAction {
	return DropFrame
}

// KickPolicy removes slow members from the room.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.RoomID, core.MemberSession) BackpressureAction {
	return KickMember
}

func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "drop":
		return DropPolicy{}, nil
	case "kick":
		return KickPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
