package visibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/bealsbe/DiscordChannelLink/internal/rooms"
)

// ErrPermissionWrite is returned when a visibility grant or revoke is
// rejected by the room service. Reported per occurrence; never aborts the
// processing of other participants or later events.
var ErrPermissionWrite = errors.New("permission write failed")

// Controller grants and revokes a participant's read access on paired text
// rooms and posts the matching join/leave notices.
type Controller struct {
	api rooms.API
}

func NewController(api rooms.API) *Controller {
	return &Controller{api: api}
}

// Apply executes one visibility instruction for participantID on textRoomID.
//
// allow=true (join): grant read access overriding the room's default-hidden
// state, then post a join notice.
//
// allow=false (leave): participants holding the moderation capability in
// communityID keep their standing visibility; everyone else has access
// revoked. The leave notice is posted either way.
//
// The notice is posted even when the permission write fails, matching the
// join/leave record the room would have shown had the write succeeded; all
// failures are returned together so the caller can report each.
func (c *Controller) Apply(ctx context.Context, participantID, textRoomID, communityID string, allow bool) error {
	var errs []error

	if allow {
		if err := c.api.SetParticipantVisibility(ctx, textRoomID, participantID, true); err != nil {
			errs = append(errs, fmt.Errorf("%w: grant %s on %s: %v", ErrPermissionWrite, participantID, textRoomID, err))
		}
		if err := c.postNotice(ctx, textRoomID, participantID, rooms.NoticeJoin); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}

	mod, err := c.api.HasModerationCapability(ctx, participantID, communityID)
	if err != nil {
		// Unknown capability state: skip the revoke rather than risk
		// stripping a moderator's standing visibility.
		errs = append(errs, fmt.Errorf("moderation capability check for %s: %w", participantID, err))
	} else if !mod {
		if err := c.api.SetParticipantVisibility(ctx, textRoomID, participantID, false); err != nil {
			errs = append(errs, fmt.Errorf("%w: revoke %s on %s: %v", ErrPermissionWrite, participantID, textRoomID, err))
		}
	}

	if err := c.postNotice(ctx, textRoomID, participantID, rooms.NoticeLeave); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Controller) postNotice(ctx context.Context, textRoomID, participantID string, kind rooms.NoticeKind) error {
	n := rooms.Notice{
		Kind:          kind,
		ParticipantID: participantID,
		Text:          noticeText(participantID, kind),
	}
	if err := c.api.PostNotice(ctx, textRoomID, n); err != nil {
		return fmt.Errorf("post %s notice to %s: %w", kind, textRoomID, err)
	}
	return nil
}

func noticeText(participantID string, kind rooms.NoticeKind) string {
	if kind == rooms.NoticeJoin {
		return fmt.Sprintf("🔊 <@%s> has joined the voice channel", participantID)
	}
	return fmt.Sprintf("🔇 <@%s> has left the voice channel", participantID)
}
