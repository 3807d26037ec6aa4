// Package postgres reads identities and class access from the main
// application database and writes class attendance.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.Authorizer         = (*Store)(nil)
	_ core.IdentityStore      = (*Store)(nil)
	_ core.AttendanceRecorder = (*Store)(nil)
)

func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	log.Info().Str("module", "store.postgres").Int32("max_conns", pool.Config().MaxConns).Msg("connected")
	return &Store{pool: pool}, nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// users.id is a bigint; anything else cannot name a user.
func userKey(id domain.UserID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user id %q: %w", id, core.ErrUnknownUser)
	}
	return n, nil
}

const identitySQL = `
SELECT username, first_name, last_name, role
FROM users
WHERE id = $1 AND is_active`

func (s *Store) Identity(ctx context.Context, id domain.UserID) (*domain.User, error) {
	key, err := userKey(id)
	if err != nil {
		return nil, err
	}
	var username, first, last, role string
	err = s.pool.QueryRow(ctx, identitySQL, key).Scan(&username, &first, &last, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("identity %s: %w", id, core.ErrUnknownUser)
	}
	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", id, err)
	}
	return domain.NewUser(id, domain.DisplayName(first, last, username), domain.ParseRole(role))
}

const teacherAccessSQL = `
SELECT EXISTS (
	SELECT 1 FROM class_schedules
	WHERE meeting_room_id = $1 AND teacher_id = $2
)`

// The first schedule with the room decides, as rooms are minted per class.
const studentAccessSQL = `
WITH sched AS (
	SELECT course_id FROM class_schedules
	WHERE meeting_room_id = $1
	ORDER BY created_at
	LIMIT 1
)
SELECT EXISTS (
	SELECT 1 FROM sched
	WHERE EXISTS (
		SELECT 1 FROM enrollments e
		WHERE e.course_id = sched.course_id AND e.student_id = $2
			AND e.payment_status = 'completed'
	) OR EXISTS (
		SELECT 1 FROM course_subscriptions cs
		WHERE cs.course_id = sched.course_id AND cs.student_id = $2
			AND cs.payment_status = 'completed' AND cs.is_active
	)
)`

func (s *Store) Authorize(ctx context.Context, user domain.User, room domain.RoomID) (bool, error) {
	var query string
	switch user.Role {
	case domain.RoleAdmin:
		return true, nil
	case domain.RoleTeacher:
		query = teacherAccessSQL
	case domain.RoleStudent:
		query = studentAccessSQL
	default:
		return false, nil
	}
	key, err := userKey(user.ID)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := s.pool.QueryRow(ctx, query, string(room), key).Scan(&ok); err != nil {
		return false, fmt.Errorf("authorize %s in %s: %w", user.ID, room, err)
	}
	return ok, nil
}
