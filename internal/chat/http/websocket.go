package http

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/aussiebroadwan/taproom/internal/chat/service"
	"github.com/aussiebroadwan/taproom/internal/chat/ws"
	"github.com/aussiebroadwan/taproom/pkg/httpx"
	"github.com/aussiebroadwan/taproom/pkg/idx"
	"github.com/aussiebroadwan/taproom/pkg/jwtx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

type WebsocketHandler struct {
	Hub        *ws.Hub
	Membership *service.MembershipService
	Messages   *service.MessageService
	Verifier   *jwtx.Verifier

	upgrader websocket.Upgrader
}

func NewWebsocketHandler(
	hub *ws.Hub,
	membership *service.MembershipService,
	messages *service.MessageService,
	verifier *jwtx.Verifier,
) *WebsocketHandler {
	return &WebsocketHandler{
		Hub:        hub,
		Membership: membership,
		Messages:   messages,
		Verifier:   verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Bearer auth gates the upgrade; cross-origin browser clients
			// are expected.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and subscribes the client to every room
// it currently belongs to. Browsers cannot set Authorization headers on
// websocket dials, so the token is also accepted as a query parameter.
func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		token := r.URL.Query().Get("token")
		if token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		var err error
		claims, err = h.Verifier.Verify(token)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}
	}

	userID, err := idx.Parse(claims.Subject)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid token subject")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Debug("websocket upgrade failed", "err", err)
		return
	}

	client := ws.NewClient(h.Hub, conn, userID, claims.Username, log)
	h.Hub.Register(client)
	h.subscribeMemberRooms(ctx, client, userID)

	log.Debug("websocket connected", "user_id", userID.String())
	client.Run(
		func(roomID, userID idx.ID) bool {
			member, err := h.Membership.IsMember(context.Background(), roomID, userID)
			return err == nil && member
		},
		func(roomID, userID idx.ID, username, text string) error {
			_, err := h.Messages.SendMessage(context.Background(), roomID, userID, username, text)
			return err
		},
	)
	log.Debug("websocket disconnected", "user_id", userID.String())
}

func (h *WebsocketHandler) subscribeMemberRooms(ctx context.Context, client *ws.Client, userID idx.ID) {
	summaries, err := h.Membership.ListRooms(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to subscribe member rooms", "err", err)
		return
	}

	for _, s := range summaries {
		member, err := h.Membership.IsMember(ctx, s.Room.ID, userID)
		if err != nil || !member {
			continue
		}
		h.Hub.Subscribe(s.Room.ID, client)
	}
}
