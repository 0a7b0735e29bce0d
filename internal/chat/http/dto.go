package http

import (
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
)

type registerRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	InviteCode string `json:"invite_code"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type createRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxUsers    int    `json:"max_users"`
}

type updateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxUsers    int    `json:"max_users"`
}

type roomResponse struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	IsDefault       bool                 `json:"is_default"`
	MaxUsers        int                  `json:"max_users"`
	ActiveUserCount int                  `json:"active_user_count"`
	ActiveUsers     []activeUserResponse `json:"active_users,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

type activeUserResponse struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	JoinedAt    time.Time `json:"joined_at"`
	VoiceActive bool      `json:"voice_active"`
}

func toRoomResponse(r domain.Room) roomResponse {
	resp := roomResponse{
		ID:              r.ID.String(),
		Name:            r.Name,
		Description:     r.Description,
		IsDefault:       r.IsDefault,
		MaxUsers:        r.MaxUsers,
		ActiveUserCount: len(r.ActiveUsers),
		CreatedAt:       r.CreatedAt,
	}
	for _, au := range r.ActiveUsers {
		resp.ActiveUsers = append(resp.ActiveUsers, toActiveUserResponse(au))
	}
	return resp
}

func toRoomSummaryResponse(s domain.RoomSummary) roomResponse {
	resp := toRoomResponse(s.Room)
	resp.ActiveUserCount = s.ActiveUserCount
	return resp
}

func toActiveUserResponse(au domain.ActiveUser) activeUserResponse {
	return activeUserResponse{
		UserID:      au.UserID.String(),
		Username:    au.Username,
		JoinedAt:    au.JoinedAt,
		VoiceActive: au.VoiceActive,
	}
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:        m.ID.String(),
		RoomID:    m.RoomID.String(),
		UserID:    m.UserID.String(),
		Username:  m.Username,
		Text:      m.Text,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
	}
}

type messagePageResponse struct {
	Messages []messageResponse `json:"messages"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
	Total    int               `json:"total"`
	HasMore  bool              `json:"has_more"`
}

func toMessagePageResponse(p domain.MessagePage) messagePageResponse {
	resp := messagePageResponse{
		Messages: make([]messageResponse, 0, len(p.Messages)),
		Page:     p.Page,
		Limit:    p.Limit,
		Total:    p.Total,
		HasMore:  p.HasMore,
	}
	for _, m := range p.Messages {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	return resp
}

type mintInviteRequest struct {
	ExpiresInHours int `json:"expires_in_hours"`
	MaxUses        int `json:"max_uses"`
}

type inviteResponse struct {
	Code           string     `json:"code"`
	CreatedBy      string     `json:"created_by"`
	ExpiresAt      time.Time  `json:"expires_at"`
	MaxUses        int        `json:"max_uses"`
	CurrentUses    int        `json:"current_uses"`
	RemainingUses  int        `json:"remaining_uses"`
	IsUsed         bool       `json:"is_used"`
	UsedByUsername string     `json:"used_by_username,omitempty"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toInviteResponse(c domain.InviteCode) inviteResponse {
	return inviteResponse{
		Code:           c.Code,
		CreatedBy:      c.CreatedByUsername,
		ExpiresAt:      c.ExpiresAt,
		MaxUses:        c.MaxUses,
		CurrentUses:    c.CurrentUses,
		RemainingUses:  c.RemainingUses(),
		IsUsed:         c.IsUsed,
		UsedByUsername: c.UsedByUsername,
		UsedAt:         c.UsedAt,
		CreatedAt:      c.CreatedAt,
	}
}

type voiceTokenResponse struct {
	Token     string `json:"token"`
	RoomName  string `json:"room_name"`
	ServerURL string `json:"server_url,omitempty"`
}
