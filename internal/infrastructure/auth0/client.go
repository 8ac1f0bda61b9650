package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/turnlabs/authgate/internal/identity"
)

const mgmtTokenKey = "mgmt_token"

// Config carries the Auth0 connection settings for both the Management API
// (privileged user lifecycle) and the Authentication API (end-user login).
type Config struct {
	Domain           string
	MgmtClientID     string
	MgmtClientSecret string
	MgmtAudience     string // optional; defaults to <base>/api/v2/
	DBConnection     string
	AuthnClientID    string
	AuthnSecret      string // optional
	AuthnAudience    string // optional
	AuthnScope       string
	Timeout          time.Duration
	TokenCacheTTL    time.Duration // 0 disables management token caching
}

// Client implements identity.Provider against Auth0's HTTP APIs.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *logrus.Logger
	tokens *gocache.Cache
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.AuthnScope == "" {
		cfg.AuthnScope = "openid profile email"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var tokens *gocache.Cache
	if cfg.TokenCacheTTL > 0 {
		tokens = gocache.New(cfg.TokenCacheTTL, time.Minute)
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
		tokens: tokens,
	}
}

// baseURL normalizes the configured domain into an absolute https URL
// without a trailing slash.
func (c *Client) baseURL() string {
	d := strings.TrimSpace(c.cfg.Domain)
	if !strings.HasPrefix(d, "http") {
		d = "https://" + d
	}
	return strings.TrimRight(d, "/")
}

func (c *Client) mgmtAudience() string {
	if a := strings.TrimSpace(c.cfg.MgmtAudience); a != "" {
		if strings.HasPrefix(a, "http") {
			return a
		}
		return "https://" + strings.TrimPrefix(strings.TrimPrefix(a, "https://"), "http://")
	}
	return c.baseURL() + "/api/v2/"
}

func (c *Client) authnAudience() string {
	a := strings.TrimSpace(c.cfg.AuthnAudience)
	if a == "" {
		return ""
	}
	if strings.HasPrefix(a, "http") {
		return a
	}
	return "https://" + strings.TrimPrefix(strings.TrimPrefix(a, "https://"), "http://")
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// managementToken acquires a Management API token via the client-credentials
// grant. With caching enabled the token is reused, but never beyond the
// expiry the provider stated.
func (c *Client) managementToken(ctx context.Context) (string, error) {
	if c.tokens != nil {
		if v, ok := c.tokens.Get(mgmtTokenKey); ok {
			if tok, ok := v.(string); ok && tok != "" {
				return tok, nil
			}
		}
	}

	body := map[string]any{
		"grant_type":    "client_credentials",
		"client_id":     c.cfg.MgmtClientID,
		"client_secret": c.cfg.MgmtClientSecret,
		"audience":      c.mgmtAudience(),
		"scope":         "create:users delete:users",
	}
	var tr tokenResponse
	status, raw, err := c.doJSON(ctx, http.MethodPost, c.baseURL()+"/oauth/token", body, "", &tr)
	if err != nil || status < 200 || status >= 300 || tr.AccessToken == "" {
		if c.logger != nil {
			c.logger.WithError(err).WithField("status", status).Error("auth0 management token acquisition failed")
		}
		return "", fmt.Errorf("auth0 token acquisition failed: %s", summarize(status, raw, err))
	}

	if c.tokens != nil && tr.ExpiresIn > 0 {
		ttl := c.cfg.TokenCacheTTL
		// keep a safety margin below the provider-stated expiry
		if stated := time.Duration(tr.ExpiresIn)*time.Second - 30*time.Second; stated < ttl {
			ttl = stated
		}
		if ttl > 0 {
			c.tokens.Set(mgmtTokenKey, tr.AccessToken, ttl)
		}
	}
	return tr.AccessToken, nil
}

// CreateUser provisions a remote identity on the configured database connection.
func (c *Client) CreateUser(ctx context.Context, in identity.CreateUserInput) (*identity.User, error) {
	token, err := c.managementToken(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"connection": c.cfg.DBConnection,
		"email":      in.Email,
		"password":   in.Password,
		"name":       in.Name,
		"user_metadata": map[string]any{
			"companyName": in.CompanyName,
			"phoneNumber": in.PhoneNumber,
		},
	}
	if in.LastName != "" {
		body["family_name"] = in.LastName
	}

	var raw map[string]any
	status, rawBody, err := c.doJSON(ctx, http.MethodPost, c.baseURL()+"/api/v2/users", body, token, &raw)
	if err != nil || status < 200 || status >= 300 {
		if c.logger != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{"status": status, "email": in.Email}).Error("auth0 user creation failed")
		}
		return nil, fmt.Errorf("auth0 user creation failed: %s", summarize(status, rawBody, err))
	}

	u := &identity.User{Extra: raw}
	if v, ok := raw["user_id"].(string); ok {
		u.UserID = v
	}
	if v, ok := raw["email"].(string); ok {
		u.Email = v
	}
	if v, ok := raw["name"].(string); ok {
		u.Name = v
	}
	return u, nil
}

// DeleteUser removes a remote identity by id. It only ever runs as
// compensation for a failed registration, so failures are logged and
// swallowed to keep the originating error visible.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	token, err := c.managementToken(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).WithField("user_id", userID).Error("auth0 delete skipped: token acquisition failed")
		}
		return nil
	}

	endpoint := c.baseURL() + "/api/v2/users/" + url.PathEscape(userID)
	status, raw, err := c.doJSON(ctx, http.MethodDelete, endpoint, nil, token, nil)
	if err != nil || status < 200 || status >= 300 {
		if c.logger != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{"status": status, "user_id": userID}).
				Error("auth0 user deletion failed: " + summarize(status, raw, err))
		}
	}
	return nil
}

type authnError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// LoginWithPassword performs a resource-owner password grant.
func (c *Client) LoginWithPassword(ctx context.Context, username, password string) (*identity.TokenSet, error) {
	body := map[string]any{
		"grant_type": "password",
		"username":   username,
		"password":   password,
		"client_id":  c.cfg.AuthnClientID,
		"scope":      c.cfg.AuthnScope,
	}
	if c.cfg.AuthnSecret != "" {
		body["client_secret"] = c.cfg.AuthnSecret
	}
	if aud := c.authnAudience(); aud != "" {
		body["audience"] = aud
	}

	var ts identity.TokenSet
	status, raw, err := c.doJSON(ctx, http.MethodPost, c.baseURL()+"/oauth/token", body, "", &ts)
	if err != nil {
		return nil, fmt.Errorf("auth0 login failed: %w", err)
	}
	if status < 200 || status >= 300 {
		var ae authnError
		_ = json.Unmarshal(raw, &ae)
		if ae.Description == "" {
			ae.Description = "authentication with Auth0 failed"
		}
		if c.logger != nil {
			c.logger.WithFields(logrus.Fields{"code": ae.Code, "status": status}).
				Warn("auth0 login error: " + ae.Description)
		}
		if ae.Code == "invalid_grant" {
			return nil, identity.ErrInvalidCredentials
		}
		return nil, &identity.RequestError{Code: ae.Code, Description: ae.Description}
	}
	return &ts, nil
}

// GetUserInfo fetches the profile bound to an access token.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (identity.UserInfo, error) {
	var info identity.UserInfo
	status, raw, err := c.doJSON(ctx, http.MethodGet, c.baseURL()+"/userinfo", nil, accessToken, &info)
	if err != nil {
		return nil, fmt.Errorf("auth0 userinfo failed: %w", err)
	}
	if status == http.StatusUnauthorized {
		return nil, identity.ErrUnauthorized
	}
	if status < 200 || status >= 300 {
		return nil, errors.New("auth0 userinfo failed: " + summarize(status, raw, nil))
	}
	return info, nil
}

// doJSON performs a single bounded HTTP round trip with optional JSON body
// and bearer token, decoding a 2xx body into out when provided. The raw
// body is returned for error mapping on non-2xx responses.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, bearer string, out any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, nil, err
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 && out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return res.StatusCode, raw, err
		}
	}
	return res.StatusCode, raw, nil
}

func summarize(status int, raw []byte, err error) string {
	if err != nil {
		return err.Error()
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, msg)
}

var _ identity.Provider = (*Client)(nil)
