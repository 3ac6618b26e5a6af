package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Cookie names set by the service.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Client talks to the auth service. It keeps the session cookies in a jar,
// and a RefreshCoordinator replays requests that fail with TOKEN_EXPIRED.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Refresher  *RefreshCoordinator

	base *url.URL
}

// NewClient creates a client with its own cookie jar.
func NewClient(baseURL string) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("authsdk: parse base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("authsdk: cookie jar: %w", err)
	}

	c := &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
			// OAuth endpoints answer with redirects meant for a browser.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		base: base,
	}
	c.Refresher = NewRefreshCoordinator(c.refreshAccessToken)
	return c, nil
}

// Cookie returns the value of a cookie the service set, if any.
func (c *Client) Cookie(name string) string {
	if c.HTTPClient.Jar == nil {
		return ""
	}
	for _, ck := range c.HTTPClient.Jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// ============================================================================
// Public endpoints
// ============================================================================

// Register creates a password account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var out Envelope[User]
	if err := c.call(ctx, http.MethodPost, "/register", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Login authenticates with email and password. When the account has 2FA
// enabled the response carries a temp token for LoginTwoFactor and no session
// is created.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out Envelope[LoginResponse]
	if err := c.call(ctx, http.MethodPost, "/login", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if !out.Data.Requires2FA {
		c.Refresher.SetToken(c.Cookie(AccessTokenCookie))
	}
	return &out.Data, nil
}

// LoginTwoFactor completes a login with the temp token and a TOTP code.
func (c *Client) LoginTwoFactor(ctx context.Context, req TwoFactorLoginRequest) (*LoginResponse, error) {
	var out Envelope[LoginResponse]
	if err := c.call(ctx, http.MethodPost, "/2fa/login", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	c.Refresher.SetToken(c.Cookie(AccessTokenCookie))
	return &out.Data, nil
}

// ForgotPassword requests a reset link. The response is the same whether or
// not the account exists.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/forgot-password", ForgotPasswordRequest{Email: email}, nil, http.StatusOK)
}

// ResetPassword consumes a reset token.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.call(ctx, http.MethodPost, "/reset-password", req, nil, http.StatusOK)
}

// Refresh exchanges the refresh cookie for a new access token right away,
// without going through the coordinator.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	tok, err := c.refreshAccessToken(ctx)
	if err != nil {
		return "", err
	}
	c.Refresher.SetToken(tok)
	return tok, nil
}

func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	var out Envelope[RefreshResponse]
	if err := c.call(ctx, http.MethodPost, "/refresh-token", RefreshRequest{}, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.Data.AccessToken, nil
}

// ============================================================================
// Authenticated endpoints
// ============================================================================

// Me returns the signed-in user and the current session.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var out Envelope[MeResponse]
	if err := c.authCall(ctx, http.MethodGet, "/me", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Sessions lists the user's sessions, newest first.
func (c *Client) Sessions(ctx context.Context) ([]SessionInfo, error) {
	var out Envelope[[]SessionInfo]
	if err := c.authCall(ctx, http.MethodGet, "/sessions", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Logout terminates sessions as selected by req. The zero request ends the
// current session.
func (c *Client) Logout(ctx context.Context, req LogoutRequest) error {
	return c.authCall(ctx, http.MethodPost, "/logout", req, nil, http.StatusOK)
}

// ChangePassword replaces the password. Every session of the user, this one
// included, is terminated.
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return c.authCall(ctx, http.MethodPost, "/change-password", req, nil, http.StatusOK)
}

// SetupTwoFactor provisions an unsaved TOTP secret.
func (c *Client) SetupTwoFactor(ctx context.Context) (*TwoFactorSetupResponse, error) {
	var out Envelope[TwoFactorSetupResponse]
	if err := c.authCall(ctx, http.MethodPost, "/2fa/setup", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// VerifyTwoFactor confirms a provisioned secret and enables 2FA.
func (c *Client) VerifyTwoFactor(ctx context.Context, req TwoFactorVerifyRequest) error {
	return c.authCall(ctx, http.MethodPost, "/2fa/verify", req, nil, http.StatusOK)
}

// DisableTwoFactor turns 2FA off and discards the secret.
func (c *Client) DisableTwoFactor(ctx context.Context) error {
	return c.authCall(ctx, http.MethodPost, "/2fa/disable", nil, nil, http.StatusOK)
}

// authCall sends an authenticated request. On TOKEN_EXPIRED it waits for a
// fresh token from the coordinator and replays the request once.
func (c *Client) authCall(ctx context.Context, method, path string, in, out any, expectedStatus int) error {
	token := c.Refresher.Token()
	err := c.do(ctx, method, path, in, out, expectedStatus, token)
	if !HasCode(err, CodeTokenExpired) {
		return err
	}

	fresh, err := c.Refresher.AwaitFreshToken(ctx, token)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, in, out, expectedStatus, fresh)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any, expectedStatus int) error {
	return c.do(ctx, method, path, in, out, expectedStatus, "")
}
