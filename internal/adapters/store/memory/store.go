// Package memory is an in-process store for development and tests. It
// applies the same access rules as the postgres store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edustream/liveclass/internal/config"
	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/rs/zerolog/log"
)

const statusCompleted = "completed"

type schedule struct {
	id      string
	course  string
	teacher domain.UserID
}

type access struct {
	student domain.UserID
	course  string
}

type attendanceKey struct {
	schedule string
	student  domain.UserID
}

type Attendance struct {
	JoinedAt        time.Time
	LeftAt          time.Time
	DurationMinutes int
}

type Store struct {
	mu          sync.RWMutex
	users       map[domain.UserID]domain.User
	schedules   map[domain.RoomID]schedule
	enrolled    map[access]bool
	subscribed  map[access]bool
	attendances map[attendanceKey]*Attendance

	now func() time.Time
}

var (
	_ core.Authorizer         = (*Store)(nil)
	_ core.IdentityStore      = (*Store)(nil)
	_ core.AttendanceRecorder = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:       make(map[domain.UserID]domain.User),
		schedules:   make(map[domain.RoomID]schedule),
		enrolled:    make(map[access]bool),
		subscribed:  make(map[access]bool),
		attendances: make(map[attendanceKey]*Attendance),
		now:         time.Now,
	}
}

// FromSeed builds a store from config fixtures.
func FromSeed(seed config.Seed) (*Store, error) {
	s := New()
	for _, u := range seed.Users {
		user, err := domain.NewUser(domain.UserID(u.ID), domain.DisplayName(u.FirstName, u.LastName, u.Username), domain.ParseRole(u.Role))
		if err != nil {
			return nil, fmt.Errorf("seed user %q: %w", u.ID, err)
		}
		s.AddUser(*user)
	}
	for _, sc := range seed.Schedules {
		room, err := domain.ParseRoomID(sc.Room)
		if err != nil {
			return nil, fmt.Errorf("seed schedule %q: %w", sc.ID, err)
		}
		s.AddSchedule(sc.ID, room, sc.Course, domain.UserID(sc.Teacher))
	}
	for _, e := range seed.Enrollments {
		s.AddEnrollment(domain.UserID(e.Student), e.Course, e.Status)
	}
	for _, sub := range seed.Subscriptions {
		active := sub.Active == nil || *sub.Active
		s.AddSubscription(domain.UserID(sub.Student), sub.Course, sub.Status, active)
	}
	log.Info().Str("module", "store.memory").Int("users", len(seed.Users)).
		Int("schedules", len(seed.Schedules)).Msg("seeded")
	return s, nil
}

func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) AddSchedule(id string, room domain.RoomID, course string, teacher domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[room] = schedule{id: id, course: course, teacher: teacher}
}

// AddEnrollment records an enrollment; only completed ones grant access.
func (s *Store) AddEnrollment(student domain.UserID, course, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrolled[access{student, course}] = status == statusCompleted
}

func (s *Store) AddSubscription(student domain.UserID, course, status string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed[access{student, course}] = status == statusCompleted && active
}

func (s *Store) Identity(_ context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("identity %s: %w", id, core.ErrUnknownUser)
	}
	return &u, nil
}

func (s *Store) Authorize(_ context.Context, user domain.User, room domain.RoomID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch user.Role {
	case domain.RoleAdmin:
		return true, nil
	case domain.RoleTeacher:
		sc, ok := s.schedules[room]
		return ok && sc.teacher == user.ID, nil
	case domain.RoleStudent:
		sc, ok := s.schedules[room]
		if !ok {
			return false, nil
		}
		key := access{user.ID, sc.course}
		return s.enrolled[key] || s.subscribed[key], nil
	default:
		return false, nil
	}
}

func (s *Store) Joined(_ context.Context, user domain.User, room domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[room]
	if !ok {
		return fmt.Errorf("attendance for room %s: no schedule", room)
	}
	key := attendanceKey{sc.id, user.ID}
	if _, ok := s.attendances[key]; !ok {
		s.attendances[key] = &Attendance{JoinedAt: s.now()}
	}
	return nil
}

func (s *Store) Left(_ context.Context, user domain.User, room domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[room]
	if !ok {
		return fmt.Errorf("attendance for room %s: no schedule", room)
	}
	a, ok := s.attendances[attendanceKey{sc.id, user.ID}]
	if !ok {
		return fmt.Errorf("attendance for %s in %s: not joined", user.ID, room)
	}
	a.LeftAt = s.now()
	a.DurationMinutes = int(a.LeftAt.Sub(a.JoinedAt) / time.Minute)
	return nil
}

// Attendance returns a copy of the attendance row of student in room.
func (s *Store) Attendance(room domain.RoomID, student domain.UserID) (Attendance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[room]
	if !ok {
		return Attendance{}, false
	}
	a, ok := s.attendances[attendanceKey{sc.id, student}]
	if !ok {
		return Attendance{}, false
	}
	return *a, true
}
