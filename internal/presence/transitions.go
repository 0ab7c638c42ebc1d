package presence

import "github.com/bealsbe/DiscordChannelLink/internal/rooms"

// Event is one voice-state change for a participant as delivered by the
// gateway. A nil room means "not in any voice room" on that side.
type Event struct {
	ParticipantID string
	Before        *rooms.RoomRef
	After         *rooms.RoomRef
}

// Kind is the direction of a single transition leg.
type Kind string

const (
	Leave Kind = "leave"
	Join  Kind = "join"
)

// Transition is one leg derived from an Event: the participant left or
// joined Room.
type Transition struct {
	Kind Kind
	Room rooms.RoomRef
}

// Transitions derives the ordered transition legs for an event:
//
//	nil → R    join(R)
//	R → nil    leave(R)
//	R1 → R2    leave(R1), join(R2)
//	R → R      none
//	nil → nil  none
//
// For a switch the leave leg comes first so the participant is never visible
// in two paired rooms at once.
func Transitions(e Event) []Transition {
	switch {
	case e.Before == nil && e.After == nil:
		return nil
	case e.Before == nil:
		return []Transition{{Kind: Join, Room: *e.After}}
	case e.After == nil:
		return []Transition{{Kind: Leave, Room: *e.Before}}
	case e.Before.ID == e.After.ID:
		return nil
	default:
		return []Transition{
			{Kind: Leave, Room: *e.Before},
			{Kind: Join, Room: *e.After},
		}
	}
}
