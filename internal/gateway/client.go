package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bealsbe/DiscordChannelLink/internal/presence"
	"github.com/bealsbe/DiscordChannelLink/internal/rooms"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536

	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// EventType identifies a gateway event.
type EventType string

const (
	EventVoiceStateUpdate EventType = "VOICE_STATE_UPDATE"
	EventCommunityCreate  EventType = "COMMUNITY_CREATE"
)

// Envelope is the gateway wire format.
type Envelope struct {
	Type    EventType       `json:"t"`
	Payload json.RawMessage `json:"d"`
}

type voiceStatePayload struct {
	ParticipantID string         `json:"participant_id"`
	BeforeRoom    *rooms.RoomRef `json:"before_room"`
	AfterRoom     *rooms.RoomRef `json:"after_room"`
}

type communityCreatePayload struct {
	CommunityID string `json:"community_id"`
}

// Client consumes presence events from the gateway over a WebSocket and feeds
// them to the presence handler. It reconnects with exponential backoff until
// its context is cancelled.
type Client struct {
	url     string
	token   string
	handler *presence.Handler
}

func NewClient(url, token string, handler *presence.Handler) *Client {
	return &Client{url: url, token: token, handler: handler}
}

// Run dials the gateway and consumes events until ctx is cancelled. Each
// disconnect is retried with backoff; the backoff resets after a healthy
// connection.
func (c *Client) Run(ctx context.Context) {
	backoff := reconnectMin
	for {
		start := time.Now()
		if err := c.consume(ctx); err != nil {
			slog.Warn("gateway disconnected", "err", err)
		}
		if ctx.Err() != nil {
			return
		}

		if time.Since(start) > pongWait {
			backoff = reconnectMin
		}
		slog.Info("gateway reconnecting", "in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// consume runs one gateway connection: a ping loop plus the read loop.
func (c *Client) consume(ctx context.Context) error {
	url := c.url
	if c.token != "" {
		url += "?token=" + c.token
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	slog.Info("gateway connected", "url", c.url)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Ping loop; also closes the connection on ctx cancellation so the read
	// loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handleMessage(ctx, message)
	}
}

// handleMessage parses one gateway frame and dispatches it. Called
// synchronously from the read loop; the presence handler only enqueues, so
// dispatch never blocks on downstream work.
func (c *Client) handleMessage(ctx context.Context, raw []byte) {
	var msg Envelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("gateway bad message", "err", err)
		return
	}

	switch msg.Type {
	case EventVoiceStateUpdate:
		var p voiceStatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ParticipantID == "" {
			slog.Warn("gateway bad voice state payload", "err", err)
			return
		}
		if err := c.handler.OnPresenceChange(presence.Event{
			ParticipantID: p.ParticipantID,
			Before:        p.BeforeRoom,
			After:         p.AfterRoom,
		}); err != nil {
			slog.Warn("presence event rejected", "participant_id", p.ParticipantID, "err", err)
		}

	case EventCommunityCreate:
		var p communityCreatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.CommunityID == "" {
			slog.Warn("gateway bad community payload", "err", err)
			return
		}
		// Bootstrap can touch many rooms; keep it off the read loop.
		go func() {
			if err := c.handler.SyncCommunity(ctx, p.CommunityID); err != nil {
				slog.Error("community sync incomplete", "community_id", p.CommunityID, "err", err)
			}
		}()

	default:
		slog.Debug("gateway unknown event", "type", msg.Type)
	}
}
