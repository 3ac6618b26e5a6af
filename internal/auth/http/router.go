package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Dhairyash-1/auth-system/internal/auth/device"
	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/oauth"
	"github.com/Dhairyash-1/auth-system/internal/auth/service"
	"github.com/Dhairyash-1/auth-system/internal/auth/store"
	"github.com/Dhairyash-1/auth-system/pkg/httpx"
	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"

	_ "github.com/Dhairyash-1/auth-system/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimitClasses holds the thresholds applied per endpoint group.
type RateLimitClasses struct {
	Global httpx.RateLimitClass
	Login  httpx.RateLimitClass
	Reset  httpx.RateLimitClass
	OAuth  httpx.RateLimitClass
}

// DefaultRateLimitClasses returns the built-in thresholds.
func DefaultRateLimitClasses() RateLimitClasses {
	return RateLimitClasses{
		Global: httpx.GlobalLimit,
		Login:  httpx.LoginLimit,
		Reset:  httpx.ResetLimit,
		OAuth:  httpx.OAuthLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Tokens               *jwtx.Issuer
	UserService          *service.UserService
	LoginService         *service.LoginService
	SessionService       *service.SessionService
	TwoFactorService     *service.TwoFactorService
	PasswordResetService *service.PasswordResetService
	OAuthService         *service.OAuthService

	Providers oauth.Registry
	Devices   *device.Resolver

	// ClientIP keys logs, rate limits and session devices. Defaults to the
	// socket peer address.
	ClientIP httpx.KeyExtractor

	// RateLimiter is optional; without it no endpoint is limited.
	RateLimiter *httpx.RateLimiter
	Limits      RateLimitClasses

	// Metrics and MetricsHandler are optional.
	Metrics        Recorder
	MetricsHandler http.Handler

	Cookies     Cookies
	FrontendURL string
}

// Recorder receives HTTP level events for metrics.
type Recorder interface {
	ErrorRecorder
	RateLimited(class string)
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits:       DefaultRateLimitClasses(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, r.clientIP),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	out := &responder{cookies: r.Cookies}
	if r.Metrics != nil {
		out.errors = r.Metrics
	}

	if r.RateLimiter != nil {
		r.RateLimiter.Key = r.clientIP
		if r.Metrics != nil {
			r.RateLimiter.OnReject = func(_ *http.Request, class string) {
				r.Metrics.RateLimited(class)
			}
		}
		r.middlewares = append(r.middlewares, r.RateLimiter.Limit(r.Limits.Global))
	}

	authn := httpx.AuthnMiddleware(httpx.AuthnConfig{
		Verifier:   r.Tokens.Verifier(jwtx.KindAccess),
		Sessions:   r.SessionService,
		CookieName: accessCookie,
		Fail:       out.authnFailure,
	})

	r.registerAuth(out, authn)
	r.registerAccount(out, authn)
	r.registerPasswordReset(out)
	r.registerTwoFactor(out, authn)
	r.registerOAuth(out)
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Auth System API
//	@version		0.1.0
//	@description	Session based authentication: email/password and OAuth login, TOTP second factor, password reset and per-device session management.
//	@description
//	@description				Access and refresh tokens are HS256 JWTs delivered as the accessToken and refreshToken cookies.
//	@description				A 401 with code TOKEN_EXPIRED means refresh at /refresh-token and retry; any other 401 code is terminal.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}". The accessToken cookie is accepted too.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) clientIP(req *http.Request) string {
	if r.ClientIP != nil {
		return r.ClientIP(req)
	}
	return httpx.ClientIP(req)
}

// limit returns the class middleware, or nothing when limiting is off.
func (r *Router) limit(class httpx.RateLimitClass) []httpx.Middleware {
	if r.RateLimiter == nil {
		return nil
	}
	return []httpx.Middleware{r.RateLimiter.Limit(class)}
}

func (r *Router) registerAuth(out *responder, authn httpx.Middleware) {
	h := &AuthHandler{
		Users:     r.UserService,
		Login:     r.LoginService,
		Sessions:  r.SessionService,
		TwoFactor: r.TwoFactorService,
		Devices:   r.Devices,
		ClientIP:  r.clientIP,
		out:       out,
	}

	r.Mux.Handle("POST /register", http.HandlerFunc(h.HandleRegister))

	// Credential endpoints share the strict login window.
	r.Mux.Handle("POST /login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), r.limit(r.Limits.Login)...),
	)
	r.Mux.Handle("POST /2fa/login",
		httpx.Chain(http.HandlerFunc(h.HandleTwoFactorLogin), r.limit(r.Limits.Login)...),
	)

	r.Mux.Handle("POST /refresh-token", http.HandlerFunc(h.HandleRefresh))
	r.Mux.Handle("POST /logout", httpx.Chain(http.HandlerFunc(h.HandleLogout), authn))
}

func (r *Router) registerAccount(out *responder, authn httpx.Middleware) {
	h := &AccountHandler{
		Users:    r.UserService,
		Sessions: r.SessionService,
		out:      out,
	}

	r.Mux.Handle("GET /me", httpx.Chain(http.HandlerFunc(h.HandleMe), authn))
	r.Mux.Handle("GET /sessions", httpx.Chain(http.HandlerFunc(h.HandleSessions), authn))
	r.Mux.Handle("POST /change-password", httpx.Chain(http.HandlerFunc(h.HandleChangePassword), authn))
}

func (r *Router) registerPasswordReset(out *responder) {
	h := &PasswordResetHandler{Resets: r.PasswordResetService, out: out}

	r.Mux.Handle("POST /forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword), r.limit(r.Limits.Reset)...),
	)
	r.Mux.Handle("POST /reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword), r.limit(r.Limits.Reset)...),
	)
}

func (r *Router) registerTwoFactor(out *responder, authn httpx.Middleware) {
	h := &TwoFactorHandler{TwoFactor: r.TwoFactorService, out: out}

	r.Mux.Handle("POST /2fa/setup", httpx.Chain(http.HandlerFunc(h.HandleSetup), authn))
	r.Mux.Handle("POST /2fa/verify", httpx.Chain(http.HandlerFunc(h.HandleVerify), authn))
	r.Mux.Handle("POST /2fa/disable", httpx.Chain(http.HandlerFunc(h.HandleDisable), authn))
}

func (r *Router) registerOAuth(out *responder) {
	h := &OAuthHandler{
		OAuth:       r.OAuthService,
		Devices:     r.Devices,
		ClientIP:    r.clientIP,
		FrontendURL: r.FrontendURL,
		out:         out,
	}

	// One route pair per configured provider; a wildcard first segment would
	// collide with /swagger/.
	for _, name := range []domain.Provider{domain.ProviderGoogle, domain.ProviderGitHub} {
		p, ok := r.Providers.Get(name.String())
		if !ok {
			continue
		}
		r.Mux.Handle("GET /"+name.String(),
			httpx.Chain(h.HandleStart(p), r.limit(r.Limits.OAuth)...),
		)
		r.Mux.Handle("GET /"+name.String()+"/callback", h.HandleCallback(p))
	}
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))

	if r.MetricsHandler != nil {
		r.Mux.Handle("GET /metrics", r.MetricsHandler)
	}
}
