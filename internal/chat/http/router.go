package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/internal/chat/service"
	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/internal/chat/ws"
	"github.com/aussiebroadwan/taproom/pkg/httpx"
	"github.com/aussiebroadwan/taproom/pkg/jwtx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier       *jwtx.Verifier
	buildVersion   string
	startTime      time.Time
	logger         *slog.Logger
	voiceServerURL string

	store store.Store
	hub   *ws.Hub

	UserService       *service.UserService
	TokenService      *service.TokenService
	InviteService     *service.InviteService
	MembershipService *service.MembershipService
	MessageService    *service.MessageService
	VoiceService      *service.VoiceService
}

func NewRouter(
	verifier *jwtx.Verifier,
	buildVersion, voiceServerURL string,
	st store.Store,
	hub *ws.Hub,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:            http.NewServeMux(),
		verifier:       verifier,
		buildVersion:   buildVersion,
		voiceServerURL: voiceServerURL,
		startTime:      time.Now(),
		store:          st,
		hub:            hub,
		logger:         logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerRooms()
	r.registerMessages()
	r.registerInvites()
	r.registerVoice()
	r.registerWebsocket()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		UserService:  r.UserService,
		TokenService: r.TokenService,
	}

	// Credential endpoints get strict per-IP limits to slow brute force.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Users: r.UserService}

	adminOnly := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/users", adminOnly(h.HandleList))
	r.Mux.Handle("DELETE /v1/users/{id}", adminOnly(h.HandleDelete))
}

func (r *Router) registerRooms() {
	h := &RoomsHandler{
		Membership: r.MembershipService,
		Voice:      r.VoiceService,
	}

	authed := func(next http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(limit),
		)
	}
	adminOnly := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/rooms", authed(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/rooms/{id}", authed(h.HandleGet, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/rooms/{id}/users", authed(h.HandleListUsers, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/rooms/{id}/join", authed(h.HandleJoin, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/rooms/{id}/leave", authed(h.HandleLeave, httpx.ModerateLimit))

	r.Mux.Handle("POST /v1/rooms", adminOnly(h.HandleCreate))
	r.Mux.Handle("PUT /v1/rooms/{id}", adminOnly(h.HandleUpdate))
	r.Mux.Handle("DELETE /v1/rooms/{id}", adminOnly(h.HandleDelete))
}

func (r *Router) registerMessages() {
	h := &MessagesHandler{Messages: r.MessageService}

	r.Mux.Handle("POST /v1/rooms/{id}/messages",
		httpx.Chain(http.HandlerFunc(h.HandleSend),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/rooms/{id}/messages",
		httpx.Chain(http.HandlerFunc(h.HandleHistory),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/messages/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerInvites() {
	h := &InvitesHandler{Invites: r.InviteService}

	adminOnly := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/invites", adminOnly(h.HandleMint))
	r.Mux.Handle("GET /v1/invites", adminOnly(h.HandleList))
	r.Mux.Handle("DELETE /v1/invites/{code}", adminOnly(h.HandleRevoke))

	// Pre-registration check used by the signup form; unauthenticated but
	// strictly limited to slow code scanning.
	r.Mux.Handle("GET /v1/invites/{code}/validate",
		httpx.Chain(http.HandlerFunc(h.HandleValidate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerVoice() {
	h := &VoiceHandler{
		Voice:     r.VoiceService,
		ServerURL: r.voiceServerURL,
	}

	r.Mux.Handle("POST /v1/rooms/{id}/voice/join",
		httpx.Chain(http.HandlerFunc(h.HandleJoin),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/rooms/{id}/voice/leave",
		httpx.Chain(http.HandlerFunc(h.HandleLeave),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerWebsocket() {
	h := NewWebsocketHandler(r.hub, r.MembershipService, r.MessageService, r.verifier)

	// No AuthnMiddleware here: browsers cannot set headers on websocket
	// dials, so the handler accepts the token via query parameter too.
	r.Mux.Handle("GET /v1/ws",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
