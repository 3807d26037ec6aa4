package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Temporary tables live on one connection, so the pool is capped at one.
const fixtureSQL = `
CREATE TEMP TABLE users (
	id bigint PRIMARY KEY, username text NOT NULL, first_name text NOT NULL DEFAULT '',
	last_name text NOT NULL DEFAULT '', role text NOT NULL, is_active boolean NOT NULL DEFAULT true);
CREATE TEMP TABLE class_schedules (
	id uuid PRIMARY KEY, course_id bigint NOT NULL, teacher_id bigint NOT NULL,
	meeting_room_id text NOT NULL, created_at timestamptz NOT NULL DEFAULT now());
CREATE TEMP TABLE enrollments (
	student_id bigint NOT NULL, course_id bigint NOT NULL, payment_status text NOT NULL);
CREATE TEMP TABLE course_subscriptions (
	student_id bigint NOT NULL, course_id bigint NOT NULL, payment_status text NOT NULL,
	is_active boolean NOT NULL);
CREATE TEMP TABLE class_attendances (
	class_schedule_id uuid NOT NULL, student_id bigint NOT NULL, joined_at timestamptz NOT NULL,
	left_at timestamptz, duration_minutes int NOT NULL DEFAULT 0,
	UNIQUE (class_schedule_id, student_id));

INSERT INTO users (id, username, first_name, last_name, role, is_active) VALUES
	(1, 'root', '', '', 'admin', true),
	(2, 'tmason', 'Tara', 'Mason', 'teacher', true),
	(3, 'sli', '', '', 'student', true),
	(4, 'pending', '', '', 'student', true),
	(5, 'subscriber', '', '', 'student', true),
	(6, 'lapsed', '', '', 'student', true),
	(7, 'gone', '', '', 'student', false);
INSERT INTO class_schedules (id, course_id, teacher_id, meeting_room_id) VALUES
	('c0a8f7e2-0000-4000-8000-000000000001', 101, 2, 'room_a');
INSERT INTO enrollments VALUES (3, 101, 'completed'), (4, 101, 'pending');
INSERT INTO course_subscriptions VALUES (5, 101, 'completed', true), (6, 101, 'completed', false);
`

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		t.Fatal(err)
	}
	cfg.MaxConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, fixtureSQL); err != nil {
		t.Fatal(err)
	}
	return New(pool)
}

func TestAuthorize(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		user domain.User
		room domain.RoomID
		want bool
	}{
		{"admin", domain.User{ID: "1", Role: domain.RoleAdmin}, "room_x", true},
		{"owning teacher", domain.User{ID: "2", Role: domain.RoleTeacher}, "room_a", true},
		{"teacher elsewhere", domain.User{ID: "2", Role: domain.RoleTeacher}, "room_x", false},
		{"enrolled", domain.User{ID: "3", Role: domain.RoleStudent}, "room_a", true},
		{"pending", domain.User{ID: "4", Role: domain.RoleStudent}, "room_a", false},
		{"subscribed", domain.User{ID: "5", Role: domain.RoleStudent}, "room_a", true},
		{"inactive subscription", domain.User{ID: "6", Role: domain.RoleStudent}, "room_a", false},
		{"no schedule", domain.User{ID: "3", Role: domain.RoleStudent}, "room_x", false},
		{"unknown role", domain.User{ID: "3"}, "room_a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Authorize(ctx, tt.user, tt.room)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("Authorize = %v, want %v", got, tt.want)
			}
		})
	}

	_, err := s.Authorize(ctx, domain.User{ID: "abc", Role: domain.RoleStudent}, "room_a")
	if !errors.Is(err, core.ErrUnknownUser) {
		t.Fatalf("non-numeric id: err = %v", err)
	}
}

func TestIdentity(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	u, err := s.Identity(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "Tara Mason" || u.Role != domain.RoleTeacher {
		t.Fatalf("user = %+v", u)
	}
	u, err = s.Identity(ctx, "3")
	if err != nil || u.Username != "sli" {
		t.Fatalf("user = %+v, err = %v", u, err)
	}
	for _, id := range []domain.UserID{"7", "99"} {
		if _, err := s.Identity(ctx, id); !errors.Is(err, core.ErrUnknownUser) {
			t.Fatalf("id %s: err = %v", id, err)
		}
	}
}

func TestAttendance(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	student := domain.User{ID: "3", Role: domain.RoleStudent}

	if err := s.Left(ctx, student, "room_a"); err == nil {
		t.Fatal("leave before join accepted")
	}
	for range 2 {
		if err := s.Joined(ctx, student, "room_a"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Left(ctx, student, "room_a"); err != nil {
		t.Fatal(err)
	}

	var rows int
	var leftSet bool
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), bool_and(left_at IS NOT NULL) FROM class_attendances WHERE student_id = 3`).
		Scan(&rows, &leftSet)
	if err != nil {
		t.Fatal(err)
	}
	if rows != 1 || !leftSet {
		t.Fatalf("rows=%d leftSet=%v", rows, leftSet)
	}
}
