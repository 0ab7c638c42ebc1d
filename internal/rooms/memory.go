package rooms

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrUnknownRoom = errors.New("unknown room")

// Memory is an in-process implementation of API used for local mode and
// tests. It tracks rooms, default visibility, per-participant overrides,
// moderation capability, and posted notices. Safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	rooms      map[string]RoomRef            // roomID → ref
	topics     map[string]string             // roomID → topic
	hidden     map[string]bool               // roomID → default hidden
	overrides  map[string]map[string]bool    // roomID → participantID → allow
	moderators map[string]map[string]bool    // communityID → participantID
	notices    map[string][]Notice           // roomID → notices in post order
	voice      map[string][]RoomRef          // communityID → voice rooms
}

var _ API = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		rooms:      make(map[string]RoomRef),
		topics:     make(map[string]string),
		hidden:     make(map[string]bool),
		overrides:  make(map[string]map[string]bool),
		moderators: make(map[string]map[string]bool),
		notices:    make(map[string][]Notice),
		voice:      make(map[string][]RoomRef),
	}
}

// AddVoiceRoom registers a voice room so ListVoiceRooms can return it.
// Returns the ref for convenience.
func (m *Memory) AddVoiceRoom(communityID, name string) RoomRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := RoomRef{ID: uuid.NewString(), Name: name, CommunityID: communityID}
	m.voice[communityID] = append(m.voice[communityID], ref)
	return ref
}

// SetModerator marks participantID as holding the moderation capability in
// communityID.
func (m *Memory) SetModerator(communityID, participantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moderators[communityID] == nil {
		m.moderators[communityID] = make(map[string]bool)
	}
	m.moderators[communityID][participantID] = true
}

func (m *Memory) CreateTextRoom(ctx context.Context, communityID, name string) (RoomRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := RoomRef{ID: uuid.NewString(), Name: name, CommunityID: communityID}
	m.rooms[ref.ID] = ref
	return ref, nil
}

func (m *Memory) SetRoomTopic(ctx context.Context, roomID, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return ErrUnknownRoom
	}
	m.topics[roomID] = topic
	return nil
}

func (m *Memory) SetDefaultVisibility(ctx context.Context, roomID string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return ErrUnknownRoom
	}
	m.hidden[roomID] = hidden
	return nil
}

func (m *Memory) SetParticipantVisibility(ctx context.Context, roomID, participantID string, allow bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overrides[roomID] == nil {
		m.overrides[roomID] = make(map[string]bool)
	}
	m.overrides[roomID][participantID] = allow
	return nil
}

func (m *Memory) PostNotice(ctx context.Context, roomID string, n Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices[roomID] = append(m.notices[roomID], n)
	return nil
}

func (m *Memory) HasModerationCapability(ctx context.Context, participantID, communityID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moderators[communityID][participantID], nil
}

func (m *Memory) ListVoiceRooms(ctx context.Context, communityID string) ([]RoomRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RoomRef, len(m.voice[communityID]))
	copy(out, m.voice[communityID])
	return out, nil
}

// CanRead reports the effective visibility of roomID for participantID:
// an explicit override wins, otherwise the room's default applies.
func (m *Memory) CanRead(roomID, participantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if allow, ok := m.overrides[roomID][participantID]; ok {
		return allow
	}
	return !m.hidden[roomID]
}

// Notices returns a snapshot of the notices posted to roomID in order.
func (m *Memory) Notices(roomID string) []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notice, len(m.notices[roomID]))
	copy(out, m.notices[roomID])
	return out
}

// Topic returns the current topic of roomID.
func (m *Memory) Topic(roomID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topics[roomID]
}

// DefaultHidden reports whether roomID is hidden by default.
func (m *Memory) DefaultHidden(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hidden[roomID]
}

// TextRooms returns a snapshot of all created text rooms.
func (m *Memory) TextRooms() []RoomRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RoomRef, 0, len(m.rooms))
	for _, ref := range m.rooms {
		out = append(out, ref)
	}
	return out
}
