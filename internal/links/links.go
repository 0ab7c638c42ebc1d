package links

import (
	"errors"
	"fmt"
)

// Link pairs a voice room with the text room created for it. Exactly one Link
// exists per voice room; links are never updated or deleted by this service.
type Link struct {
	VoiceRoomID string `json:"voice_room_id"`
	TextRoomID  string `json:"text_room_id"`
	CommunityID string `json:"community_id"`
}

var (
	// ErrNotFound is returned by lookups for voice rooms with no link yet.
	ErrNotFound = errors.New("link not found")

	// ErrStoreUnavailable is returned when the link database cannot be
	// reached. Resolve never attempts provisioning in this state, so no room
	// is ever created without a recorded link. Transient; callers may retry
	// with backoff.
	ErrStoreUnavailable = errors.New("link store unavailable")

	// ErrRoomCreation is returned when the room service rejects creation of
	// the paired text room. Nothing has been written; the triggering
	// transition is abandoned rather than retried to avoid duplicate-room
	// storms.
	ErrRoomCreation = errors.New("room creation failed")
)

// PersistFailedError reports the recoverable inconsistency where a paired
// text room was created but the link could not be completed (the link row
// write or the default-visibility setup failed). The room now exists
// unlinked; reconciliation tooling can find it via TextRoomID.
type PersistFailedError struct {
	VoiceRoomID string
	TextRoomID  string
	Err         error
}

func (e *PersistFailedError) Error() string {
	return fmt.Sprintf("link persist failed: voice %s, orphaned text room %s: %v",
		e.VoiceRoomID, e.TextRoomID, e.Err)
}

func (e *PersistFailedError) Unwrap() error { return e.Err }
