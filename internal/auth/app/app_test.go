package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
)

func newTestApp(t *testing.T, opts ...func(*Config)) *Application {
	t.Helper()
	dir := t.TempDir()

	cfg := Config{
		Env:          EnvDevelopment,
		LogLevel:     "error",
		LogFormat:    "text",
		DatabaseFile: filepath.Join(dir, "auth.db"),
		PepperFile:   filepath.Join(dir, "pepper"),
		JWT: JWTConfig{
			Issuer:          "auth-test",
			AccessExpiry:    15 * time.Minute,
			RefreshExpiry:   7 * 24 * time.Hour,
			TwoFactorExpiry: 5 * time.Minute,
			RotateRefresh:   true,
		},
		PasswordResetTTL: 15 * time.Minute,
		FrontendURL:      "http://localhost:3000",
		TOTPIssuer:       "Auth System",
		MetricsEnabled:   true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.closeResources() })
	return app
}

func TestNew_ServesAuthFlow(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	client, err := authsdk.NewClient(srv.URL)
	require.NoError(t, err)
	ctx := t.Context()

	health, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)

	_, err = client.Register(ctx, authsdk.RegisterRequest{
		FirstName: "Alice",
		LastName:  "Smith",
		Email:     "alice@example.com",
		Password:  "correct-horse",
	})
	require.NoError(t, err)

	login, err := client.Login(ctx, authsdk.LoginRequest{Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.False(t, login.Requires2FA)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", me.User.Email)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_RestartKeepsPasswords(t *testing.T) {
	first := newTestApp(t)
	srv := httptest.NewServer(first.Handler())

	client, err := authsdk.NewClient(srv.URL)
	require.NoError(t, err)
	_, err = client.Register(t.Context(), authsdk.RegisterRequest{
		FirstName: "Bob",
		LastName:  "Jones",
		Email:     "bob@example.com",
		Password:  "correct-horse",
	})
	require.NoError(t, err)
	srv.Close()
	require.NoError(t, first.closeResources())

	// The pepper file written on first start is read back, so the stored
	// digest still verifies.
	second, err := New(first.cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.closeResources() })
	srv = httptest.NewServer(second.Handler())
	t.Cleanup(srv.Close)

	client, err = authsdk.NewClient(srv.URL)
	require.NoError(t, err)
	_, err = client.Login(t.Context(), authsdk.LoginRequest{Email: "bob@example.com", Password: "correct-horse"})
	require.NoError(t, err)
}

func TestNew_ProductionNeedsSecrets(t *testing.T) {
	dir := t.TempDir()
	_, err := New(Config{
		Env:          EnvProduction,
		DatabaseFile: filepath.Join(dir, "auth.db"),
		PepperFile:   filepath.Join(dir, "pepper"),
	})
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestNew_ForwardedForNeedsTrustedProxy(t *testing.T) {
	// loginStatuses posts six logins, each claiming a different client.
	loginStatuses := func(t *testing.T, app *Application) []int {
		srv := httptest.NewServer(app.Handler())
		t.Cleanup(srv.Close)

		var codes []int
		for i := range 6 {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/login",
				strings.NewReader(`{"email":"nobody@example.com","password":"wrong-password"}`))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			codes = append(codes, resp.StatusCode)
		}
		return codes
	}

	t.Run("untrusted peer is limited despite rotating headers", func(t *testing.T) {
		codes := loginStatuses(t, newTestApp(t))
		require.Equal(t, http.StatusTooManyRequests, codes[5])
	})

	t.Run("trusted proxy forwards distinct clients", func(t *testing.T) {
		app := newTestApp(t, func(c *Config) { c.TrustedProxies = []string{"127.0.0.0/8", "::1"} })
		for _, code := range loginStatuses(t, app) {
			require.NotEqual(t, http.StatusTooManyRequests, code)
		}
	})
}
