package core

import (
	"sync"

	"github.com/edustream/liveclass/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
//
// Membership changes take the write lock and fan-out takes the read lock.
// Sends are non-blocking enqueues, so a broadcast never observes a member
// that has already left and never stalls a join or leave on the network.
type roomImpl struct {
	id      domain.RoomID
	mu      sync.RWMutex
	bySID   map[SessionID]MemberSession
	retired bool
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:    id,
		bySID: make(map[SessionID]MemberSession),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Member(sid SessionID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.bySID[sid]
	return ms, ok
}

func (r *roomImpl) Join(ms MemberSession, announce Frame) (PublishResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return PublishResult{}, false
	}
	sid := ms.ID()
	if _, ok := r.bySID[sid]; ok {
		return PublishResult{}, true
	}
	r.bySID[sid] = ms
	log.Info().Str("module", "core.room").Str("room_id", string(r.id)).Str("sid", string(sid)).
		Str("user_id", string(ms.Meta().User.ID)).Int("members", len(r.bySID)).Msg("member added")
	if announce == nil {
		return PublishResult{}, true
	}
	return r.fanOut(sid, announce), true
}

func (r *roomImpl) Leave(sid SessionID, announce Frame) (PublishResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return PublishResult{}, false
	}
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("room_id", string(r.id)).Str("sid", string(sid)).
		Int("members", len(r.bySID)).Msg("member removed")
	if announce == nil {
		return PublishResult{}, true
	}
	return r.fanOut(sid, announce), true
}

func (r *roomImpl) Broadcast(exclude SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := r.fanOut(exclude, data)
	log.Debug().Str("module", "core.room").Str("room_id", string(r.id)).Str("from", string(exclude)).
		Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) Unicast(target domain.UserID, data Frame) (PublishResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	found := false
	for _, m := range r.bySID {
		if m.Meta().User.ID != target {
			continue
		}
		found = true
		deliver(m, data, &res)
	}
	return res, found
}

func (r *roomImpl) End(data Frame) []MemberSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MemberSession, 0, len(r.bySID))
	res := PublishResult{}
	for sid, m := range r.bySID {
		deliver(m, data, &res)
		out = append(out, m)
		delete(r.bySID, sid)
	}
	r.retired = true
	log.Info().Str("module", "core.room").Str("room_id", string(r.id)).
		Int("evicted", len(out)).Int("dropped", len(res.Dropped)).Msg("room ended")
	return out
}

func (r *roomImpl) Retire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bySID) > 0 {
		return false
	}
	r.retired = true
	return true
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for sid, ms := range r.bySID {
		u := ms.Meta().User
		out = append(out, MemberDTO{SID: sid, ID: u.ID, Username: u.Username, Role: u.Role})
	}
	return out
}

// fanOut must be called with r.mu held.
func (r *roomImpl) fanOut(exclude SessionID, data Frame) PublishResult {
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == exclude {
			continue
		}
		deliver(m, data, &res)
	}
	return res
}

func deliver(m MemberSession, data Frame, res *PublishResult) {
	if err := m.Signal().TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "core.room").Str("sid", string(m.ID())).Msg("delivery failed")
		res.Dropped = append(res.Dropped, m)
		return
	}
	res.SendTo++
}
