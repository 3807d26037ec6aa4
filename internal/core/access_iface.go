package core

import (
	"context"
	"errors"

	"github.com/edustream/liveclass/internal/domain"
)

//go:generate mockgen -source=access_iface.go -destination=mocks/mock_access.go -package=mocks

var (
	ErrAccessDenied = errors.New("access denied")
	ErrUnknownUser  = errors.New("unknown user")
)

// Authorizer decides whether user may enter room. It must not have side
// effects; callers treat any error as a denial.
type Authorizer interface {
	Authorize(ctx context.Context, user domain.User, room domain.RoomID) (bool, error)
}

// IdentityStore resolves display attributes for an authenticated user id.
type IdentityStore interface {
	Identity(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// AttendanceRecorder keeps class attendance for students.
type AttendanceRecorder interface {
	Joined(ctx context.Context, user domain.User, room domain.RoomID) error
	Left(ctx context.Context, user domain.User, room domain.RoomID) error
}
