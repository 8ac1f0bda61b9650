// Package identity defines the contract this service consumes from the
// external identity provider: user lifecycle on the management API and
// token issuance on the authentication API.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// CreateUserInput carries the fields synchronized to the provider at
// registration time. Password is forwarded here and nowhere else.
type CreateUserInput struct {
	Email       string
	Password    string
	Name        string
	LastName    string
	CompanyName string
	PhoneNumber string
}

// User is the remote identity as returned by the provider's management API.
// Only UserID is relied upon by the core; the rest is echoed to callers.
type User struct {
	UserID string         `json:"user_id"`
	Email  string         `json:"email,omitempty"`
	Name   string         `json:"name,omitempty"`
	Extra  map[string]any `json:"-"`
}

// TokenSet is the credential bundle issued by a successful password grant.
// It is returned to the caller and never persisted.
type TokenSet struct {
	AccessToken  string `json:"access_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// UserInfo is the userinfo-equivalent profile fetched with an access token.
type UserInfo map[string]any

var (
	// ErrInvalidCredentials maps the provider's invalid_grant response on
	// a password grant: the username/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized maps a 401 from the userinfo endpoint.
	ErrUnauthorized = errors.New("access token rejected")
)

// RequestError is a non-credential provider rejection of an authentication
// request, carrying the provider's error code and description.
type RequestError struct {
	Code        string
	Description string
}

func (e *RequestError) Error() string {
	code := e.Code
	if code == "" {
		code = "auth0_error"
	}
	return fmt.Sprintf("%s: %s", code, e.Description)
}

// Provider is the identity provider as consumed by the orchestrators.
// Tests substitute a recording fake; production wires the Auth0 client.
type Provider interface {
	// CreateUser provisions a remote identity. Any failure is fatal to the
	// calling operation.
	CreateUser(ctx context.Context, in CreateUserInput) (*User, error)
	// DeleteUser removes a remote identity by id. It runs as compensation
	// for a failed registration, so implementations log failures instead of
	// returning them; the error return exists for test doubles and is
	// ignored by callers.
	DeleteUser(ctx context.Context, userID string) error
	// LoginWithPassword exchanges end-user credentials for tokens.
	// Returns ErrInvalidCredentials on a rejected password, *RequestError
	// on any other provider rejection.
	LoginWithPassword(ctx context.Context, username, password string) (*TokenSet, error)
	// GetUserInfo fetches profile data for a bearer access token.
	// Returns ErrUnauthorized on 401.
	GetUserInfo(ctx context.Context, accessToken string) (UserInfo, error)
}
