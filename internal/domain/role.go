package domain

type Role int

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleTeacher
	RoleAdmin
)

func ParseRole(s string) Role {
	switch s {
	case "student":
		return RoleStudent
	case "teacher":
		return RoleTeacher
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTeacher:
		return "teacher"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}
