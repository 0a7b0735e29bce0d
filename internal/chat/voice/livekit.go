package voice

import (
	"context"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// LiveKitClient talks to a LiveKit deployment over its HTTP API.
type LiveKitClient struct {
	svc       *lksdk.RoomServiceClient
	apiKey    string
	apiSecret string
}

// NewLiveKitClient builds a client against the given host (http(s) endpoint,
// not the websocket URL).
func NewLiveKitClient(host, apiKey, apiSecret string) *LiveKitClient {
	return &LiveKitClient{
		svc:       lksdk.NewRoomServiceClient(host, apiKey, apiSecret),
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

func (c *LiveKitClient) CreateRoom(ctx context.Context, name string, maxParticipants int) error {
	_, err := c.svc.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            name,
		EmptyTimeout:    uint32(EmptyRoomTimeout / time.Second),
		MaxParticipants: uint32(maxParticipants),
	})
	return err
}

func (c *LiveKitClient) DeleteRoom(ctx context.Context, name string) error {
	_, err := c.svc.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name})
	return err
}

func (c *LiveKitClient) RoomExists(ctx context.Context, name string) (bool, error) {
	resp, err := c.svc.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{name}})
	if err != nil {
		return false, err
	}
	return len(resp.GetRooms()) > 0, nil
}

func (c *LiveKitClient) RemoveParticipant(ctx context.Context, roomName, identity string) error {
	_, err := c.svc.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     roomName,
		Identity: identity,
	})
	return err
}

func (c *LiveKitClient) MintAccessToken(roomName, identity, displayName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)
	grant.SetCanPublishData(true)

	at := auth.NewAccessToken(c.apiKey, c.apiSecret).
		SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(displayName).
		SetValidFor(ttl)

	return at.ToJWT()
}
