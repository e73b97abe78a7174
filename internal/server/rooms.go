package server

import "sync"

// Session is one live connection that can be a member of rooms.
type Session interface {
	Id() string
	Queue(msg *ServerMessage) bool
}

// RoomRegistry tracks which sessions are joined to which conversation.
// Implementations must not block on I/O.
type RoomRegistry interface {
	Join(conversationId string, s Session)
	Leave(conversationId string, s Session)
	// LeaveAll removes s from every room and returns the rooms it was in.
	LeaveAll(s Session) []string
	Members(conversationId string) []Session
	IsMember(conversationId string, s Session) bool
}

// memoryRooms is the process-local RoomRegistry.
type memoryRooms struct {
	mu           sync.RWMutex
	rooms        map[string]map[string]Session  // conversationId -> sessionId -> session
	sessionRooms map[string]map[string]struct{} // sessionId -> conversationIds
}

func NewMemoryRooms() RoomRegistry {
	return &memoryRooms{
		rooms:        make(map[string]map[string]Session),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

func (m *memoryRooms) Join(conversationId string, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.rooms[conversationId]
	if room == nil {
		room = make(map[string]Session)
		m.rooms[conversationId] = room
	}
	room[s.Id()] = s

	memberships := m.sessionRooms[s.Id()]
	if memberships == nil {
		memberships = make(map[string]struct{})
		m.sessionRooms[s.Id()] = memberships
	}
	memberships[conversationId] = struct{}{}
}

func (m *memoryRooms) Leave(conversationId string, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leaveLocked(conversationId, s.Id())
}

func (m *memoryRooms) leaveLocked(conversationId, sessionId string) {
	if room, ok := m.rooms[conversationId]; ok {
		delete(room, sessionId)
		if len(room) == 0 {
			delete(m.rooms, conversationId)
		}
	}

	if memberships, ok := m.sessionRooms[sessionId]; ok {
		delete(memberships, conversationId)
		if len(memberships) == 0 {
			delete(m.sessionRooms, sessionId)
		}
	}
}

func (m *memoryRooms) LeaveAll(s Session) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var left []string
	for conversationId := range m.sessionRooms[s.Id()] {
		left = append(left, conversationId)
	}
	for _, conversationId := range left {
		m.leaveLocked(conversationId, s.Id())
	}

	return left
}

func (m *memoryRooms) Members(conversationId string) []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room := m.rooms[conversationId]
	members := make([]Session, 0, len(room))
	for _, s := range room {
		members = append(members, s)
	}

	return members
}

func (m *memoryRooms) IsMember(conversationId string, s Session) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.rooms[conversationId][s.Id()]
	return ok
}
