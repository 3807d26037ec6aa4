package postgres

import (
	"context"
	"fmt"

	"github.com/edustream/liveclass/internal/domain"
)

const attendanceJoinSQL = `
INSERT INTO class_attendances (class_schedule_id, student_id, joined_at, duration_minutes)
SELECT id, $2, now(), 0 FROM class_schedules
WHERE meeting_room_id = $1
ORDER BY created_at
LIMIT 1
ON CONFLICT (class_schedule_id, student_id) DO NOTHING`

const attendanceLeaveSQL = `
UPDATE class_attendances a
SET left_at = now(),
	duration_minutes = floor(extract(epoch FROM now() - a.joined_at) / 60)::int
FROM class_schedules s
WHERE a.class_schedule_id = s.id AND s.meeting_room_id = $1 AND a.student_id = $2`

// Joined inserts the attendance row on first entry; later entries keep it.
func (s *Store) Joined(ctx context.Context, user domain.User, room domain.RoomID) error {
	key, err := userKey(user.ID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, attendanceJoinSQL, string(room), key); err != nil {
		return fmt.Errorf("attendance join %s in %s: %w", user.ID, room, err)
	}
	return nil
}

func (s *Store) Left(ctx context.Context, user domain.User, room domain.RoomID) error {
	key, err := userKey(user.ID)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, attendanceLeaveSQL, string(room), key)
	if err != nil {
		return fmt.Errorf("attendance leave %s in %s: %w", user.ID, room, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attendance leave %s in %s: no joined row", user.ID, room)
	}
	return nil
}
