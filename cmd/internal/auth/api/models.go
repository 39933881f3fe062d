package api

import (
	"time"

	"github.com/suffus/auth0/cmd/identity"
	"github.com/suffus/auth0/cmd/internal/auth/session"
)

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Active    bool   `json:"active"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Active:    u.Active,
	}
}

type deviceResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Type       string     `json:"type"`
	Identifier string     `json:"identifier"`
	Name       string     `json:"name,omitempty"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func toDeviceResponse(d identity.Device) deviceResponse {
	return deviceResponse{
		ID:         d.ID,
		UserID:     d.UserID,
		Type:       string(d.Type),
		Identifier: d.Identifier,
		Name:       d.Name,
		Active:     d.Active,
		CreatedAt:  d.CreatedAt,
		LastUsedAt: d.LastUsedAt,
	}
}

type verifyResponse struct {
	User   userResponse   `json:"user"`
	Device deviceResponse `json:"device"`
}

// sessionResponse is shared by session creation and refresh. User and Device
// are filled only on creation; a refresh response stays lean.
type sessionResponse struct {
	SessionID        string          `json:"session_id"`
	UserID           string          `json:"user_id"`
	DeviceID         string          `json:"device_id"`
	Counter          uint64          `json:"counter"`
	AccessToken      string          `json:"access_token"`
	AccessExpiresAt  time.Time       `json:"access_expires_at"`
	RefreshToken     string          `json:"refresh_token"`
	SessionExpiresAt time.Time       `json:"session_expires_at"`
	User             *userResponse   `json:"user,omitempty"`
	Device           *deviceResponse `json:"device,omitempty"`
}

func toSessionResponse(issued session.Issued) sessionResponse {
	return sessionResponse{
		SessionID:        issued.Session.ID,
		UserID:           issued.Session.UserID,
		DeviceID:         issued.Session.DeviceID,
		Counter:          issued.Session.Counter,
		AccessToken:      issued.AccessToken,
		AccessExpiresAt:  issued.AccessExpiresAt,
		RefreshToken:     issued.RefreshToken,
		SessionExpiresAt: issued.Session.ExpiresAt,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// deviceCredentialsRequest is the body-borne alternative to the
// "Authorization: <device_type>:<code>" header on the auth endpoints.
type deviceCredentialsRequest struct {
	DeviceType string `json:"device_type"`
	AuthCode   string `json:"auth_code"`
}

type registerDeviceRequest struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
}

type actionRequest struct {
	Location string `json:"location,omitempty"`
	Status   string `json:"status,omitempty"`
	Note     string `json:"note,omitempty"`
}

type revokedResponse struct {
	Revoked int `json:"revoked"`
}

type entryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type entryPatchRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}
