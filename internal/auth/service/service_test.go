package service

import (
	"context"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/store/drivers/sqlite"
	"github.com/Dhairyash-1/auth-system/pkg/cryptox"
	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
)

const testPassword = "Abc12345!"

type sentMail struct {
	To, Subject, HTML string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (f *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type recordingMetrics struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *recordingMetrics) inc(key string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string]int)
	}
	r.events[key] += n
}

func (r *recordingMetrics) Login(result string)                { r.inc("login:"+result, 1) }
func (r *recordingMetrics) Refresh(result string)              { r.inc("refresh:"+result, 1) }
func (r *recordingMetrics) SessionsRevoked(reason string, n int) { r.inc("revoked:"+reason, n) }
func (r *recordingMetrics) PasswordReset(stage string)         { r.inc("reset:"+stage, 1) }

func (r *recordingMetrics) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[key]
}

type testEnv struct {
	store     *sqlite.Store
	tokens    *jwtx.Issuer
	mailer    *fakeMailer
	metrics   *recordingMetrics
	users     *UserService
	sessions  *SessionService
	login     *LoginService
	twoFactor *TwoFactorService
	resets    *PasswordResetService
	oauth     *OAuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.MemoryDSN(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	tokens, err := jwtx.NewIssuer(jwtx.IssuerConfig{
		Issuer:          "auth-test",
		SessionSecret:   []byte("session-secret-session-secret-0123456789"),
		TwoFactorSecret: []byte("two-factor-secret-two-factor-secret-0123"),
	})
	require.NoError(t, err)

	m := &recordingMetrics{}
	mail := &fakeMailer{}
	hasher := cryptox.NewPasswordHasher("test-pepper")

	sessions := &SessionService{Store: st, Tokens: tokens, RotateRefresh: true, Metrics: m}
	users := &UserService{Store: st, Hasher: hasher, Sessions: sessions}

	return &testEnv{
		store:     st,
		tokens:    tokens,
		mailer:    mail,
		metrics:   m,
		users:     users,
		sessions:  sessions,
		login:     &LoginService{Users: users, Sessions: sessions, Tokens: tokens, Metrics: m},
		twoFactor: &TwoFactorService{Store: st, Tokens: tokens, Sessions: sessions, Metrics: m, Issuer: "Auth System"},
		resets: &PasswordResetService{
			Store:       st,
			Hasher:      hasher,
			Mailer:      mail,
			Metrics:     m,
			FrontendURL: "https://app.example.com/",
		},
		oauth: &OAuthService{Store: st, Sessions: sessions, Metrics: m},
	}
}

func (e *testEnv) register(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), RegisterInput{
		FirstName: "Alice",
		LastName:  "Smith",
		Email:     email,
		Password:  testPassword,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) loginSession(t *testing.T, email string) domain.SessionTokens {
	t.Helper()
	res, err := e.login.Login(context.Background(), email, testPassword, Client{UserAgent: "test"})
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	return *res.Tokens
}

var tokenParam = regexp.MustCompile(`href="([^"]+)"`)

// resetTokenFrom pulls the raw token out of the emailed link.
func resetTokenFrom(t *testing.T, m sentMail) string {
	t.Helper()
	match := tokenParam.FindStringSubmatch(m.HTML)
	require.Len(t, match, 2)

	link := regexp.MustCompile(`&amp;`).ReplaceAllString(match[1], "&")
	u, err := url.Parse(link)
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)
	return tok
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
