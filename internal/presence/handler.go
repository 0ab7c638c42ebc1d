package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/bealsbe/DiscordChannelLink/internal/links"
	"github.com/bealsbe/DiscordChannelLink/internal/metrics"
	"github.com/bealsbe/DiscordChannelLink/internal/rooms"
	"github.com/bealsbe/DiscordChannelLink/internal/visibility"
)

// ErrShuttingDown is returned by OnPresenceChange once Close has begun.
var ErrShuttingDown = errors.New("presence handler shutting down")

// lineBuffer is the per-participant event queue depth. Events beyond it are
// dropped rather than blocking other participants.
const lineBuffer = 64

type resolver interface {
	Resolve(ctx context.Context, voice rooms.RoomRef) (string, error)
}

type applier interface {
	Apply(ctx context.Context, participantID, textRoomID, communityID string, allow bool) error
}

// Handler turns gateway voice-state events into visibility changes on paired
// text rooms.
//
// Events for the same participant are processed strictly in arrival order on
// a dedicated line (queue + goroutine); different participants run
// concurrently. Failures are isolated per transition leg: a failed leave leg
// never suppresses the join leg of the same event, and no failure stops the
// event loop.
type Handler struct {
	store resolver
	vis   applier
	api   rooms.API

	mu     sync.Mutex
	lines  map[string]chan Event
	closed bool
	wg     sync.WaitGroup
}

func NewHandler(store resolver, vis applier, api rooms.API) *Handler {
	return &Handler{
		store: store,
		vis:   vis,
		api:   api,
		lines: make(map[string]chan Event),
	}
}

// OnPresenceChange is the single inbound entry point, invoked by the gateway
// for every voice-state update. It enqueues the event on the participant's
// line and returns immediately. Events arriving after shutdown begins are
// rejected with ErrShuttingDown; events overflowing a participant's queue are
// dropped and counted.
func (h *Handler) OnPresenceChange(e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		metrics.DroppedEvents.Inc()
		return ErrShuttingDown
	}

	line, ok := h.lines[e.ParticipantID]
	if !ok {
		line = make(chan Event, lineBuffer)
		h.lines[e.ParticipantID] = line
		h.wg.Add(1)
		go h.runLine(e.ParticipantID, line)
	}

	select {
	case line <- e:
	default:
		// Queue full — drop rather than stall every other participant.
		metrics.DroppedEvents.Inc()
		slog.Warn("presence queue full, event dropped", "participant_id", e.ParticipantID)
	}
	return nil
}

// SyncCommunity provisions links for every existing voice room in
// communityID. Run when the service is added to a community so paired rooms
// exist before anyone joins voice. Per-room failures are logged and do not
// abort the remaining rooms; the first error is returned for reporting.
func (h *Handler) SyncCommunity(ctx context.Context, communityID string) error {
	voiceRooms, err := h.api.ListVoiceRooms(ctx, communityID)
	if err != nil {
		return err
	}

	var first error
	for _, vr := range voiceRooms {
		if _, err := h.store.Resolve(ctx, vr); err != nil {
			slog.Error("community sync: resolve failed",
				"community_id", communityID, "voice_room_id", vr.ID, "err", err)
			metrics.TransitionErrors.WithLabelValues(errorClass(err)).Inc()
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Close stops accepting events and waits for every participant line to drain,
// so in-flight provisioning and permission writes complete before the process
// exits.
func (h *Handler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, line := range h.lines {
		close(line)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *Handler) runLine(participantID string, line <-chan Event) {
	defer h.wg.Done()
	for e := range line {
		h.process(e)
	}
}

// process applies every transition leg of one event in order. Legs fail
// independently: each failure is logged and counted, then the next leg runs.
func (h *Handler) process(e Event) {
	ctx := context.Background()

	for _, t := range Transitions(e) {
		metrics.Transitions.WithLabelValues(string(t.Kind)).Inc()

		textRoomID, err := h.store.Resolve(ctx, t.Room)
		if err != nil {
			h.reportLegFailure(e.ParticipantID, t, err)
			continue
		}

		allow := t.Kind == Join
		if err := h.vis.Apply(ctx, e.ParticipantID, textRoomID, t.Room.CommunityID, allow); err != nil {
			h.reportLegFailure(e.ParticipantID, t, err)
		}
	}
}

func (h *Handler) reportLegFailure(participantID string, t Transition, err error) {
	metrics.TransitionErrors.WithLabelValues(errorClass(err)).Inc()
	slog.Error("transition leg failed",
		"participant_id", participantID,
		"kind", t.Kind,
		"voice_room_id", t.Room.ID,
		"err", err,
	)
}

func errorClass(err error) string {
	var persist *links.PersistFailedError
	switch {
	case errors.Is(err, links.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, links.ErrRoomCreation):
		return "room_creation"
	case errors.As(err, &persist):
		return "persist"
	case errors.Is(err, visibility.ErrPermissionWrite):
		return "permission_write"
	default:
		return "other"
	}
}
