// Package hub 管理每個會議室目前註冊的連線，並負責廣播。
package hub

import (
	"sync"
)

// Member 是一條已註冊的連線
type Member interface {
	ID() string
	// Send 不可阻塞，緩衝已滿時回傳 false
	Send(message []byte) bool
	Close()
}

// Entry 是快照中的一筆資料，ParticipantID 為空代表尚未 join
type Entry struct {
	Member        Member
	ParticipantID string
}

type roomMembers struct {
	members      map[string]Member // connID -> member
	participants map[string]string // connID -> participantID
	bindings     map[string]string // participantID -> connID
}

func newRoomMembers() *roomMembers {
	return &roomMembers{
		members:      make(map[string]Member),
		participants: make(map[string]string),
		bindings:     make(map[string]string),
	}
}

// Registry 是 Room -> {連線} 的對應表，讀多寫少
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomMembers
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomMembers)}
}

// Register 將連線加入房間的廣播群組
func (r *Registry) Register(roomID string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = newRoomMembers()
		r.rooms[roomID] = room
	}
	room.members[m.ID()] = m
}

// Deregister 移除連線，重複呼叫是安全的
func (r *Registry) Deregister(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if pid, ok := room.participants[connID]; ok {
		if room.bindings[pid] == connID {
			delete(room.bindings, pid)
		}
		delete(room.participants, connID)
	}
	delete(room.members, connID)

	// 房間空了就刪除
	if len(room.members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Bind 將與會者綁定到連線，覆蓋先前的綁定，回傳被取代的連線 ID
func (r *Registry) Bind(roomID, connID, participantID string) (replaced string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return ""
	}
	if _, ok := room.members[connID]; !ok {
		return ""
	}

	if prev, ok := room.participants[connID]; ok && prev != participantID && room.bindings[prev] == connID {
		delete(room.bindings, prev)
	}
	if old, ok := room.bindings[participantID]; ok && old != connID {
		delete(room.participants, old)
		replaced = old
	}
	room.bindings[participantID] = connID
	room.participants[connID] = participantID
	return replaced
}

// Unbind 解除連線的與會者綁定，連線仍保持註冊
func (r *Registry) Unbind(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if pid, ok := room.participants[connID]; ok {
		if room.bindings[pid] == connID {
			delete(room.bindings, pid)
		}
		delete(room.participants, connID)
	}
}

// BoundTo 回傳連線目前綁定的與會者
func (r *Registry) BoundTo(roomID, connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return "", false
	}
	pid, ok := room.participants[connID]
	return pid, ok
}

// Snapshot 複製房間目前的成員，之後的迭代不需持有鎖
func (r *Registry) Snapshot(roomID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	entries := make([]Entry, 0, len(room.members))
	for id, m := range room.members {
		entries = append(entries, Entry{Member: m, ParticipantID: room.participants[id]})
	}
	return entries
}

// Count 回傳房間內的連線數
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if room, ok := r.rooms[roomID]; ok {
		return len(room.members)
	}
	return 0
}

// Deliver 依信封的條件處理本機成員，回傳受影響的連線數量
func (r *Registry) Deliver(env Envelope) int {
	delivered := 0
	for _, e := range r.Snapshot(env.RoomID) {
		if !env.accepts(e) {
			continue
		}
		switch env.Action {
		case ActionRelease:
			r.Unbind(env.RoomID, e.Member.ID())
			delivered++
			continue
		case ActionClose:
			r.Deregister(env.RoomID, e.Member.ID())
			e.Member.Close()
			delivered++
			continue
		}
		if e.Member.Send(env.Payload) {
			delivered++
			continue
		}
		// 客戶端消息隊列已滿，關閉連接
		r.Deregister(env.RoomID, e.Member.ID())
		e.Member.Close()
	}
	return delivered
}
