package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/bealsbe/DiscordChannelLink/internal/presence"
	"github.com/bealsbe/DiscordChannelLink/internal/rooms"
)

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, voice rooms.RoomRef) (string, error) {
	return "T-" + voice.ID, nil
}

type fakeApplier struct {
	mu    sync.Mutex
	calls []string // "<participant>:<room>:<allow>"
}

func (a *fakeApplier) Apply(ctx context.Context, participantID, textRoomID, communityID string, allow bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	suffix := ":revoke"
	if allow {
		suffix = ":grant"
	}
	a.calls = append(a.calls, participantID+":"+textRoomID+suffix)
	return nil
}

func (a *fakeApplier) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.calls))
	copy(out, a.calls)
	return out
}

// newGatewayServer runs a ws server that sends frames to every connecting
// client and reports the token it presented on gotToken.
func newGatewayServer(t *testing.T, frames []string, gotToken chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotToken != nil {
			select {
			case gotToken <- r.URL.Query().Get("token"):
			default:
			}
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_DispatchesVoiceStateUpdates(t *testing.T) {
	req := require.New(t)

	frames := []string{
		`{"t":"VOICE_STATE_UPDATE","d":{"participant_id":"P1","before_room":null,"after_room":{"id":"V1","name":"General","community_id":"C1"}}}`,
		`not json`,
		`{"t":"SOMETHING_ELSE","d":{}}`,
		`{"t":"VOICE_STATE_UPDATE","d":{"participant_id":"P1","before_room":{"id":"V1","name":"General","community_id":"C1"},"after_room":{"id":"V2","name":"Gaming","community_id":"C1"}}}`,
	}
	gotToken := make(chan string, 1)
	srv := newGatewayServer(t, frames, gotToken)

	applier := &fakeApplier{}
	handler := presence.NewHandler(fakeResolver{}, applier, rooms.NewMemory())
	defer handler.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), "secret", handler)
	go client.Run(ctx)

	req.Eventually(func() bool { return len(applier.recorded()) == 3 }, 2*time.Second, 10*time.Millisecond)
	req.Equal([]string{
		"P1:T-V1:grant",
		"P1:T-V1:revoke",
		"P1:T-V2:grant",
	}, applier.recorded())
	req.Equal("secret", <-gotToken)
}

func TestClient_CommunityCreateTriggersSync(t *testing.T) {
	req := require.New(t)

	mem := rooms.NewMemory()
	mem.AddVoiceRoom("C1", "General")
	mem.AddVoiceRoom("C1", "Gaming")

	frames := []string{`{"t":"COMMUNITY_CREATE","d":{"community_id":"C1"}}`}
	srv := newGatewayServer(t, frames, nil)

	// SyncCommunity resolves every voice room; count via a recording resolver.
	var mu sync.Mutex
	resolved := map[string]bool{}
	resolver := resolverFunc(func(ctx context.Context, voice rooms.RoomRef) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		resolved[voice.Name] = true
		return "T-" + voice.ID, nil
	})

	handler := presence.NewHandler(resolver, &fakeApplier{}, mem)
	defer handler.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), "", handler)
	go client.Run(ctx)

	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return resolved["General"] && resolved["Gaming"]
	}, 2*time.Second, 10*time.Millisecond)
}

type resolverFunc func(ctx context.Context, voice rooms.RoomRef) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, voice rooms.RoomRef) (string, error) {
	return f(ctx, voice)
}
