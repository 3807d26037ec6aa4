package app

import (
	"sync"

	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl is a sparse map of live rooms: a room is created by its
// first join and dropped as soon as it is empty.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) getOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(id)
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room_id", string(id)).Msg("room opened")
	return room
}

// drop removes room from the map unless it has already been replaced.
func (f *RoomManagerImpl) drop(id domain.RoomID, room core.RoomService) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.rooms[id]; ok && cur == room {
		delete(f.rooms, id)
		log.Info().Str("module", "app.rooms").Str("room_id", string(id)).Msg("room closed")
	}
}

func (f *RoomManagerImpl) Join(id domain.RoomID, ms core.MemberSession, announce core.Frame) core.PublishResult {
	for {
		room := f.getOrCreate(id)
		if res, ok := room.Join(ms, announce); ok {
			return res
		}
		// Lost the race with the last leaver; the room is retired.
		f.drop(id, room)
	}
}

func (f *RoomManagerImpl) Leave(id domain.RoomID, sid core.SessionID, announce core.Frame) (core.PublishResult, bool) {
	room, ok := f.Get(id)
	if !ok {
		return core.PublishResult{}, false
	}
	res, removed := room.Leave(sid, announce)
	if removed && room.Retire() {
		f.drop(id, room)
	}
	return res, removed
}

func (f *RoomManagerImpl) Broadcast(id domain.RoomID, data core.Frame, exclude core.SessionID) core.PublishResult {
	room, ok := f.Get(id)
	if !ok {
		return core.PublishResult{}
	}
	return room.Broadcast(exclude, data)
}

func (f *RoomManagerImpl) Unicast(id domain.RoomID, target domain.UserID, data core.Frame) (core.PublishResult, bool) {
	room, ok := f.Get(id)
	if !ok {
		return core.PublishResult{}, false
	}
	return room.Unicast(target, data)
}

func (f *RoomManagerImpl) End(id domain.RoomID, data core.Frame) []core.MemberSession {
	room, ok := f.Get(id)
	if !ok {
		return nil
	}
	evicted := room.End(data)
	f.drop(id, room)
	return evicted
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}
