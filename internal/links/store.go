package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/bealsbe/DiscordChannelLink/internal/rooms"
)

// provisioner is the slice of Provisioner the store needs. Narrowed to an
// interface so store tests can count provisioning attempts.
type provisioner interface {
	Provision(ctx context.Context, voice rooms.RoomRef) (Link, error)
}

// Store owns the links table. All reads and writes to it go through here; no
// other component touches the database.
//
// Resolve is idempotent: after the first successful resolution of a voice
// room every later call returns the same text room without re-provisioning.
type Store struct {
	db    *sql.DB
	prov  provisioner
	group singleflight.Group
}

func NewStore(db *sql.DB, prov provisioner) *Store {
	return &Store{db: db, prov: prov}
}

// Resolve returns the text room paired with voice, provisioning it first if
// no link exists yet. Concurrent cold resolves of the same voice room share a
// single provisioning flight, so at most one paired room is ever created per
// voice room.
//
// If the database is unreachable the call fails with ErrStoreUnavailable and
// provisioning is not attempted, so a room is never created without a
// recorded link.
func (s *Store) Resolve(ctx context.Context, voice rooms.RoomRef) (string, error) {
	link, err := s.get(ctx, voice.ID)
	if err == nil {
		return link.TextRoomID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	v, err, _ := s.group.Do(voice.ID, func() (any, error) {
		// Losers of the race re-check after the winner's insert.
		link, err := s.get(ctx, voice.ID)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		link, err = s.prov.Provision(ctx, voice)
		if err != nil {
			return nil, err
		}
		if err := s.insert(ctx, link); err != nil {
			return nil, &PersistFailedError{
				VoiceRoomID: link.VoiceRoomID,
				TextRoomID:  link.TextRoomID,
				Err:         err,
			}
		}
		return link, nil
	})
	if err != nil {
		return "", err
	}
	return v.(Link).TextRoomID, nil
}

// Get returns the link for voiceRoomID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, voiceRoomID string) (Link, error) {
	return s.get(ctx, voiceRoomID)
}

// List returns all links, newest first. Used by the reconciliation endpoint.
func (s *Store) List(ctx context.Context) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT voice_room_id, text_room_id, community_id
		FROM links
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.VoiceRoomID, &l.TextRoomID, &l.CommunityID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *Store) get(ctx context.Context, voiceRoomID string) (Link, error) {
	var l Link
	err := s.db.QueryRowContext(ctx, `
		SELECT voice_room_id, text_room_id, community_id
		FROM links
		WHERE voice_room_id = ?
	`, voiceRoomID).Scan(&l.VoiceRoomID, &l.TextRoomID, &l.CommunityID)
	if errors.Is(err, sql.ErrNoRows) {
		return Link{}, ErrNotFound
	}
	if err != nil {
		return Link{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return l, nil
}

func (s *Store) insert(ctx context.Context, l Link) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO links (voice_room_id, text_room_id, community_id)
		VALUES (?, ?, ?)
	`, l.VoiceRoomID, l.TextRoomID, l.CommunityID)
	return err
}
