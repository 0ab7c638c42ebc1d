package links_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bealsbe/DiscordChannelLink/internal/db"
	"github.com/bealsbe/DiscordChannelLink/internal/links"
	"github.com/bealsbe/DiscordChannelLink/internal/rooms"
)

// countingAPI counts CreateTextRoom calls on top of the in-memory room API.
type countingAPI struct {
	rooms.API
	creates atomic.Int32
}

func (c *countingAPI) CreateTextRoom(ctx context.Context, communityID, name string) (rooms.RoomRef, error) {
	c.creates.Add(1)
	return c.API.CreateTextRoom(ctx, communityID, name)
}

// failingCreateAPI rejects all room creation.
type failingCreateAPI struct {
	rooms.API
}

func (f *failingCreateAPI) CreateTextRoom(ctx context.Context, communityID, name string) (rooms.RoomRef, error) {
	return rooms.RoomRef{}, errors.New("rate limited")
}

// failingHideAPI creates rooms but cannot hide them.
type failingHideAPI struct {
	rooms.API
}

func (f *failingHideAPI) SetDefaultVisibility(ctx context.Context, roomID string, hidden bool) error {
	return errors.New("permission denied")
}

func newTestStore(t *testing.T, api rooms.API) *links.Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "links.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return links.NewStore(database, links.NewProvisioner(api))
}

func TestResolve_ProvisionsOnMiss(t *testing.T) {
	req := require.New(t)
	mem := rooms.NewMemory()
	store := newTestStore(t, mem)

	voice := rooms.RoomRef{ID: "V1", Name: "General", CommunityID: "C1"}
	textID, err := store.Resolve(context.Background(), voice)
	req.NoError(err)
	req.NotEmpty(textID)

	// The paired room is hidden by default and carries a topic.
	req.True(mem.DefaultHidden(textID))
	req.Contains(mem.Topic(textID), "General")

	// Exactly one link row, matching the returned room.
	link, err := store.Get(context.Background(), "V1")
	req.NoError(err)
	req.Equal(links.Link{VoiceRoomID: "V1", TextRoomID: textID, CommunityID: "C1"}, link)
}

func TestResolve_Idempotent(t *testing.T) {
	req := require.New(t)
	api := &countingAPI{API: rooms.NewMemory()}
	store := newTestStore(t, api)

	voice := rooms.RoomRef{ID: "V1", Name: "General", CommunityID: "C1"}
	first, err := store.Resolve(context.Background(), voice)
	req.NoError(err)

	for i := 0; i < 5; i++ {
		textID, err := store.Resolve(context.Background(), voice)
		req.NoError(err)
		req.Equal(first, textID)
	}
	req.EqualValues(1, api.creates.Load())
}

func TestResolve_ConcurrentSingleProvision(t *testing.T) {
	req := require.New(t)
	api := &countingAPI{API: rooms.NewMemory()}
	store := newTestStore(t, api)

	voice := rooms.RoomRef{ID: "V1", Name: "General", CommunityID: "C1"}

	const callers = 16
	results := make([]string, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = store.Resolve(context.Background(), voice)
		}(i)
	}
	close(start)
	wg.Wait()

	req.EqualValues(1, api.creates.Load())
	for i := range results {
		req.NoError(errs[i])
		req.Equal(results[0], results[i])
	}

	list, err := store.List(context.Background())
	req.NoError(err)
	req.Len(list, 1)
}

func TestResolve_StoreUnavailable(t *testing.T) {
	req := require.New(t)
	api := &countingAPI{API: rooms.NewMemory()}

	database, err := db.Open(filepath.Join(t.TempDir(), "links.db"))
	req.NoError(err)
	store := links.NewStore(database, links.NewProvisioner(api))
	req.NoError(database.Close())

	_, err = store.Resolve(context.Background(), rooms.RoomRef{ID: "V1", Name: "General", CommunityID: "C1"})
	req.ErrorIs(err, links.ErrStoreUnavailable)

	// No provisioning when the store is down — no orphaned rooms.
	req.EqualValues(0, api.creates.Load())
}

func TestResolve_RoomCreationFailed(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, &failingCreateAPI{API: rooms.NewMemory()})

	voice := rooms.RoomRef{ID: "V1", Name: "General", CommunityID: "C1"}
	_, err := store.Resolve(context.Background(), voice)
	req.ErrorIs(err, links.ErrRoomCreation)

	// Nothing cached or persisted; a later resolve tries again.
	_, err = store.Get(context.Background(), "V1")
	req.ErrorIs(err, links.ErrNotFound)
	_, err = store.Resolve(context.Background(), voice)
	req.ErrorIs(err, links.ErrRoomCreation)
}

func TestResolve_PersistFailedReportsOrphan(t *testing.T) {
	req := require.New(t)
	mem := rooms.NewMemory()
	store := newTestStore(t, &failingHideAPI{API: mem})

	_, err := store.Resolve(context.Background(), rooms.RoomRef{ID: "V1", Name: "General", CommunityID: "C1"})

	var persist *links.PersistFailedError
	req.ErrorAs(err, &persist)
	req.Equal("V1", persist.VoiceRoomID)
	req.NotEmpty(persist.TextRoomID)

	// The room exists unlinked — exactly what reconciliation needs to find.
	req.Len(mem.TextRooms(), 1)
	_, err = store.Get(context.Background(), "V1")
	req.ErrorIs(err, links.ErrNotFound)
}
