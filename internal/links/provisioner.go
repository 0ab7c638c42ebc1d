package links

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bealsbe/DiscordChannelLink/internal/metrics"
	"github.com/bealsbe/DiscordChannelLink/internal/rooms"
)

// Provisioner creates the paired text room for a voice room. It does not
// write to the link database — the Store owns all link rows and records the
// returned Link itself.
type Provisioner struct {
	api rooms.API
}

func NewProvisioner(api rooms.API) *Provisioner {
	return &Provisioner{api: api}
}

// PairedRoomName derives the text room name from the voice room name.
// Deterministic; the room service allocates a fresh id regardless of name
// collisions, so collisions are acceptable.
func PairedRoomName(voiceName string) string {
	return voiceName + " - voice"
}

// Provision creates a default-hidden text room paired with voice and returns
// the Link to record.
//
// Error semantics:
//   - ErrRoomCreation: the room service rejected creation; nothing exists.
//   - *PersistFailedError: the room was created but could not be hidden by
//     default. It is reported (not linked) so an operator can reconcile.
//
// A topic-set failure is cosmetic and only logged.
func (p *Provisioner) Provision(ctx context.Context, voice rooms.RoomRef) (Link, error) {
	ref, err := p.api.CreateTextRoom(ctx, voice.CommunityID, PairedRoomName(voice.Name))
	if err != nil {
		return Link{}, fmt.Errorf("%w: %v", ErrRoomCreation, err)
	}

	if err := p.api.SetRoomTopic(ctx, ref.ID, voice.Name+" -> "+ref.Name); err != nil {
		slog.Warn("set paired room topic", "text_room_id", ref.ID, "err", err)
	}

	// The paired room is opt-in via voice presence only.
	if err := p.api.SetDefaultVisibility(ctx, ref.ID, true); err != nil {
		return Link{}, &PersistFailedError{
			VoiceRoomID: voice.ID,
			TextRoomID:  ref.ID,
			Err:         fmt.Errorf("hide by default: %w", err),
		}
	}

	metrics.ProvisionedRooms.Inc()
	slog.Info("provisioned paired text room",
		"community_id", voice.CommunityID,
		"voice_room_id", voice.ID,
		"text_room_id", ref.ID,
	)

	return Link{
		VoiceRoomID: voice.ID,
		TextRoomID:  ref.ID,
		CommunityID: voice.CommunityID,
	}, nil
}
