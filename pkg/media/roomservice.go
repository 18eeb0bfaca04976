package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RoomInfo describes a room known to the media server.
type RoomInfo struct {
	Name            string `json:"name"`
	NumParticipants int    `json:"num_participants"`
	CreatedAt       int64  `json:"created_at"`
}

// EgressS3Output tells the media server where to write a composite
// recording.
type EgressS3Output struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// EgressInfo identifies a started egress job.
type EgressInfo struct {
	EgressID string `json:"egress_id"`
	RoomName string `json:"room_name"`
	Status   string `json:"status"`
}

// RoomService is a client for the media server's control API: room
// lifecycle and composite-recording egress.
type RoomService struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
}

// NewRoomService creates a control-API client. baseURL is the HTTP
// endpoint of the media server, e.g. http://host:7880.
func NewRoomService(baseURL, apiKey, apiSecret string) *RoomService {
	return &RoomService{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateRoom creates (or returns) the named room.
func (s *RoomService) CreateRoom(ctx context.Context, name string) (*RoomInfo, error) {
	var info RoomInfo
	err := s.do(ctx, http.MethodPost, "/twirp/livekit.RoomService/CreateRoom",
		map[string]any{"name": name}, &info)
	if err != nil {
		return nil, fmt.Errorf("media: create room %s: %w", name, err)
	}
	return &info, nil
}

// DeleteRoom removes the named room, disconnecting all participants.
func (s *RoomService) DeleteRoom(ctx context.Context, name string) error {
	err := s.do(ctx, http.MethodPost, "/twirp/livekit.RoomService/DeleteRoom",
		map[string]any{"room": name}, nil)
	if err != nil {
		return fmt.Errorf("media: delete room %s: %w", name, err)
	}
	return nil
}

// ListRooms returns the rooms currently known to the server.
func (s *RoomService) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	var out struct {
		Rooms []RoomInfo `json:"rooms"`
	}
	err := s.do(ctx, http.MethodPost, "/twirp/livekit.RoomService/ListRooms",
		map[string]any{}, &out)
	if err != nil {
		return nil, fmt.Errorf("media: list rooms: %w", err)
	}
	return out.Rooms, nil
}

// StartCompositeEgress starts a composite recording of the room written
// to object storage.
func (s *RoomService) StartCompositeEgress(ctx context.Context, room string, output EgressS3Output) (*EgressInfo, error) {
	req := map[string]any{
		"room_name": room,
		"file_outputs": []map[string]any{{
			"filepath": output.KeyPrefix + room + ".mp4",
			"s3":       output,
		}},
	}
	var info EgressInfo
	err := s.do(ctx, http.MethodPost, "/twirp/livekit.Egress/StartRoomCompositeEgress", req, &info)
	if err != nil {
		return nil, fmt.Errorf("media: start egress for %s: %w", room, err)
	}
	return &info, nil
}

func (s *RoomService) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := NewAccessToken(s.apiKey, s.apiSecret).
		SetIdentity("room-service").
		SetVideoGrant(VideoGrant{RoomAdmin: true}).
		SetValidFor(10 * time.Minute).
		ToJWT()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
