package domain

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User *User
	Room RoomID
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, room RoomID) *Member {
	return &Member{User: user, Room: room}
}

func (m *Member) IsTeacher() bool { return m.User.Role == RoleTeacher }
