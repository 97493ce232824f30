// Package quota refreshes per-account usage quotas against the upstream API
// and keeps protection state in sync.
package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/j-veylop/antigravity-account-manager/internal/config"
	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/uagent"
)

const (
	googleOAuthURL   = "https://oauth2.googleapis.com/token"
	userInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

	// Refresh this far before the recorded expiry.
	expiryBuffer = 5 * time.Minute
)

// OAuthClient is the token collaborator used by the engine.
type OAuthClient interface {
	// EnsureFreshToken returns a valid token, exchanging the refresh token
	// when the access token is near expiry. rotated reports a change.
	EnsureFreshToken(ctx context.Context, token models.TokenData) (fresh models.TokenData, rotated bool, err error)
	// RefreshAccessToken always performs a refresh-token exchange.
	RefreshAccessToken(ctx context.Context, token models.TokenData) (models.TokenData, error)
	// FetchUserInfo returns the display name for the token's user.
	FetchUserInfo(ctx context.Context, accessToken string) (string, error)
}

// tokenResponse is Google's OAuth token exchange response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

// Client talks to Google's OAuth and user-info endpoints.
type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	userInfoURL  string
	http         *http.Client
}

// NewClient builds an OAuth client from the configured credentials.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		clientID:     cfg.GoogleClientID,
		clientSecret: cfg.GoogleClientSecret,
		tokenURL:     googleOAuthURL,
		userInfoURL:  userInfoEndpoint,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

// EnsureFreshToken refreshes the token only when it is near expiry.
func (c *Client) EnsureFreshToken(ctx context.Context, token models.TokenData) (models.TokenData, bool, error) {
	if token.AccessToken != "" && !token.IsExpired(expiryBuffer) {
		return token, false, nil
	}
	fresh, err := c.RefreshAccessToken(ctx, token)
	if err != nil {
		return token, false, err
	}
	return fresh, true, nil
}

// RefreshAccessToken exchanges the refresh token for a new access token. The
// upstream error body is preserved in the returned error so callers can
// detect the invalid_grant rejection.
func (c *Client) RefreshAccessToken(ctx context.Context, token models.TokenData) (models.TokenData, error) {
	if token.RefreshToken == "" {
		return token, fmt.Errorf("refresh token is empty")
	}

	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("refresh_token", token.RefreshToken)
	data.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return token, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", uagent.OAuthUserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return token, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return token, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return token, fmt.Errorf("token refresh failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return token, fmt.Errorf("failed to parse token response: %w", err)
	}

	fresh := models.NewTokenData(tr.AccessToken, token.RefreshToken, tr.ExpiresIn,
		token.Email, token.ProjectID, token.SessionID)
	if tr.RefreshToken != "" {
		fresh.RefreshToken = tr.RefreshToken
	}
	return fresh, nil
}

// userInfo is the subset of Google's user-info response we care about.
type userInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// FetchUserInfo retrieves the user's display name.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", fmt.Errorf("access token is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	return info.Name, nil
}
