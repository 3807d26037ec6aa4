package app

import (
	"context"
	"fmt"
	"time"

	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/rs/zerolog/log"
)

const defaultAuthorizeTimeout = 5 * time.Second

// AccessGate wraps an Authorizer so that every failure denies access.
type AccessGate struct {
	Authorizer core.Authorizer
	Timeout    time.Duration
}

// Check returns nil when user may join room, otherwise an error wrapping
// core.ErrAccessDenied.
func (g AccessGate) Check(ctx context.Context, user domain.User, room domain.RoomID) error {
	switch user.Role {
	case domain.RoleStudent, domain.RoleTeacher, domain.RoleAdmin:
	case domain.RoleUnknown:
		return fmt.Errorf("role %s: %w", user.Role, core.ErrAccessDenied)
	default:
		return fmt.Errorf("role %d: %w", int(user.Role), core.ErrAccessDenied)
	}
	if g.Authorizer == nil {
		return fmt.Errorf("no authorizer: %w", core.ErrAccessDenied)
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = defaultAuthorizeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := g.Authorizer.Authorize(ctx, user, room)
	if err != nil {
		log.Error().Err(err).Str("module", "app.access").Str("user_id", string(user.ID)).
			Str("room_id", string(room)).Msg("authorize failed, denying")
		return fmt.Errorf("authorize: %v: %w", err, core.ErrAccessDenied)
	}
	if !ok {
		return core.ErrAccessDenied
	}
	return nil
}
