package domain

import (
	"errors"
	"regexp"
)

// RoomID is the meeting identifier minted when a class is scheduled.
type RoomID string

var ErrInvalidRoomID = errors.New("invalid room id")

// meeting_room_id is "room_" + a uuid, so hyphens are allowed.
var roomIDPattern = regexp.MustCompile(`^[\w-]{1,100}$`)

func ParseRoomID(s string) (RoomID, error) {
	if !roomIDPattern.MatchString(s) {
		return "", ErrInvalidRoomID
	}
	return RoomID(s), nil
}

func (id RoomID) String() string { return string(id) }
