package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is an HTTP implementation of API against the room-management
// service's internal REST surface. All requests carry the bot token; the
// response bodies are decoded only as far as this service needs them.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ API = (*Client)(nil)

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) CreateTextRoom(ctx context.Context, communityID, name string) (RoomRef, error) {
	body, _ := json.Marshal(map[string]string{"name": name, "type": "text"})
	raw, err := c.do(ctx, http.MethodPost, "/communities/"+url.PathEscape(communityID)+"/rooms", body)
	if err != nil {
		return RoomRef{}, err
	}
	var ref RoomRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return RoomRef{}, fmt.Errorf("decode created room: %w", err)
	}
	if ref.CommunityID == "" {
		ref.CommunityID = communityID
	}
	return ref, nil
}

func (c *Client) SetRoomTopic(ctx context.Context, roomID, topic string) error {
	body, _ := json.Marshal(map[string]string{"topic": topic})
	_, err := c.do(ctx, http.MethodPatch, "/rooms/"+url.PathEscape(roomID), body)
	return err
}

func (c *Client) SetDefaultVisibility(ctx context.Context, roomID string, hidden bool) error {
	body, _ := json.Marshal(map[string]bool{"hidden": hidden})
	_, err := c.do(ctx, http.MethodPut, "/rooms/"+url.PathEscape(roomID)+"/visibility/default", body)
	return err
}

func (c *Client) SetParticipantVisibility(ctx context.Context, roomID, participantID string, allow bool) error {
	body, _ := json.Marshal(map[string]bool{"allow": allow})
	_, err := c.do(ctx, http.MethodPut,
		"/rooms/"+url.PathEscape(roomID)+"/visibility/"+url.PathEscape(participantID), body)
	return err
}

func (c *Client) PostNotice(ctx context.Context, roomID string, n Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/notices", body)
	return err
}

func (c *Client) HasModerationCapability(ctx context.Context, participantID, communityID string) (bool, error) {
	raw, err := c.do(ctx, http.MethodGet,
		"/communities/"+url.PathEscape(communityID)+"/members/"+url.PathEscape(participantID)+"/capabilities", nil)
	if err != nil {
		return false, err
	}
	var caps struct {
		ManageMessages bool `json:"manage_messages"`
	}
	if err := json.Unmarshal(raw, &caps); err != nil {
		return false, fmt.Errorf("decode capabilities: %w", err)
	}
	return caps.ManageMessages, nil
}

func (c *Client) ListVoiceRooms(ctx context.Context, communityID string) ([]RoomRef, error) {
	raw, err := c.do(ctx, http.MethodGet,
		"/communities/"+url.PathEscape(communityID)+"/rooms?type=voice", nil)
	if err != nil {
		return nil, err
	}
	var refs []RoomRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("decode voice rooms: %w", err)
	}
	return refs, nil
}

// do executes a JSON request against the room service and returns the raw
// response body. A bodyless response (204 etc.) is returned as nil, nil.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bot "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rooms %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("rooms %s %s: status %d", method, path, resp.StatusCode)
	}

	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	return raw, nil
}
