package rooms

import "context"

// RoomRef identifies a room in the community space. IDs are opaque strings
// allocated by the room-management service; names are display-only and never
// authoritative.
type RoomRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CommunityID string `json:"community_id"`
}

// NoticeKind distinguishes join and leave notices so downstream renderers can
// style them differently.
type NoticeKind string

const (
	NoticeJoin  NoticeKind = "join"
	NoticeLeave NoticeKind = "leave"
)

// Notice is a message posted to a text room when a participant's voice
// presence changes.
type Notice struct {
	Kind          NoticeKind `json:"kind"`
	ParticipantID string     `json:"participant_id"`
	Text          string     `json:"text"`
}

// API is the room-management contract this service consumes. Permission state
// lives entirely on the other side of this interface; this service only
// records links and issues grant/revoke instructions through it.
type API interface {
	// CreateTextRoom creates a new text room in communityID and returns its ref.
	// The service always allocates a fresh id; name collisions are acceptable.
	CreateTextRoom(ctx context.Context, communityID, name string) (RoomRef, error)

	// SetRoomTopic sets the display topic of roomID.
	SetRoomTopic(ctx context.Context, roomID, topic string) error

	// SetDefaultVisibility hides (or unhides) roomID from all participants by
	// default. Explicit per-participant grants override this.
	SetDefaultVisibility(ctx context.Context, roomID string, hidden bool) error

	// SetParticipantVisibility grants or revokes participantID's read access
	// on roomID.
	SetParticipantVisibility(ctx context.Context, roomID, participantID string, allow bool) error

	// PostNotice posts a join/leave notice to roomID.
	PostNotice(ctx context.Context, roomID string, n Notice) error

	// HasModerationCapability reports whether participantID holds the
	// manage-messages capability (or equivalent) in communityID.
	HasModerationCapability(ctx context.Context, participantID, communityID string) (bool, error)

	// ListVoiceRooms returns all voice rooms in communityID.
	ListVoiceRooms(ctx context.Context, communityID string) ([]RoomRef, error)
}
