package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/Dhairyash-1/auth-system/internal/auth/device"
	"github.com/Dhairyash-1/auth-system/internal/auth/oauth"
	"github.com/Dhairyash-1/auth-system/internal/auth/service"
	"github.com/Dhairyash-1/auth-system/pkg/httpx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

// OAuthHandler runs the redirect flow for external identity providers.
type OAuthHandler struct {
	OAuth       *service.OAuthService
	Devices     *device.Resolver
	ClientIP    httpx.KeyExtractor
	FrontendURL string

	out *responder
}

// HandleStart handles GET /{provider}
//
//	@Summary		Start an OAuth login
//	@Description	Sets a short-lived oauthState cookie and redirects to the provider's consent page.
//	@Tags			OAuth
//	@Param			provider	path	string	true	"google or github"
//	@Success		302
//	@Failure		429	{object}	authsdk.APIError	"RATE_LIMITED"
//	@Router			/{provider} [get].
func (h *OAuthHandler) HandleStart(p oauth.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()
		h.out.cookies.SetState(w, state)
		http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
	}
}

// HandleCallback handles GET /{provider}/callback
//
//	@Summary		Finish an OAuth login
//	@Description	Checks the state nonce, exchanges the code, links or creates the account and opens a session.
//	@Description	Redirects to the frontend on success, or to its login page with error and provider query parameters.
//	@Tags			OAuth
//	@Param			provider	path	string	true	"google or github"
//	@Param			code		query	string	true	"Authorization code"
//	@Param			state		query	string	true	"State nonce"
//	@Success		302
//	@Router			/{provider}/callback [get].
func (h *OAuthHandler) HandleCallback(p oauth.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := slogx.FromContext(ctx).With("provider", p.Name())
		q := r.URL.Query()

		expected := ""
		if c, err := r.Cookie(stateCookie); err == nil {
			expected = c.Value
		}
		h.out.cookies.ClearState(w)

		if e := q.Get("error"); e != "" {
			log.Info("oauth consent declined", "error", e)
			h.failRedirect(w, r, "Authentication cancelled", "")
			return
		}

		state := q.Get("state")
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
			log.Warn("oauth state mismatch")
			h.failRedirect(w, r, "Invalid OAuth state", "")
			return
		}

		id, err := p.Identify(ctx, q.Get("code"))
		if err != nil {
			log.Warn("oauth identify failed", "err", err)
			msg := "Authentication failed"
			if errors.Is(err, oauth.ErrUnverifiedEmail) {
				msg = "No verified email available from provider"
			}
			h.failRedirect(w, r, msg, "")
			return
		}

		res, err := h.OAuth.Login(ctx, id, clientFor(r, h.Devices, h.ClientIP))
		if err != nil {
			var wp *service.WrongProviderError
			if errors.As(err, &wp) {
				h.failRedirect(w, r, wrongProviderMessage(wp.Provider), wp.Provider.String())
				return
			}
			log.Error("oauth login failed", "err", err)
			h.failRedirect(w, r, "Authentication failed", "")
			return
		}

		h.out.cookies.SetSession(w, *res.Tokens, RememberMeMaxAge)
		http.Redirect(w, r, h.frontend(""), http.StatusFound)
	}
}

func (h *OAuthHandler) failRedirect(w http.ResponseWriter, r *http.Request, msg, provider string) {
	q := url.Values{}
	q.Set("error", msg)
	if provider != "" {
		q.Set("provider", provider)
	}
	http.Redirect(w, r, h.frontend("/login")+"?"+q.Encode(), http.StatusFound)
}

func (h *OAuthHandler) frontend(path string) string {
	base := strings.TrimRight(h.FrontendURL, "/")
	if path == "" && base == "" {
		return "/"
	}
	return base + path
}
