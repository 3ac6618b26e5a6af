package http

import (
	"net/http"

	"github.com/Dhairyash-1/auth-system/internal/auth/device"
	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/service"
	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
	"github.com/Dhairyash-1/auth-system/pkg/httpx"
)

// AuthHandler serves registration, login, refresh and logout.
type AuthHandler struct {
	Users     *service.UserService
	Login     *service.LoginService
	Sessions  *service.SessionService
	TwoFactor *service.TwoFactorService
	Devices   *device.Resolver
	ClientIP  httpx.KeyExtractor

	out *responder
}

// client describes the device a request comes from.
func clientFor(r *http.Request, devices *device.Resolver, clientIP httpx.KeyExtractor) service.Client {
	if clientIP == nil {
		clientIP = httpx.ClientIP
	}
	ua := r.UserAgent()
	return service.Client{
		UserAgent: ua,
		Device:    devices.Resolve(ua, clientIP(r)),
	}
}

// HandleRegister handles POST /register
//
//	@Summary		Register an account
//	@Description	Creates a password account. Does not log in.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"Account details"
//	@Success		201		{object}	authsdk.Envelope[authsdk.User]
//	@Failure		400		{object}	authsdk.APIError	"VALIDATION_ERROR"
//	@Failure		409		{object}	authsdk.APIError	"CONFLICT"
//	@Failure		429		{object}	authsdk.APIError	"RATE_LIMITED"
//	@Router			/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := decode(w, r, &req, false); err != nil {
		h.out.error(w, r, err)
		return
	}

	u, err := h.Users.Register(r.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		h.out.error(w, r, err)
		return
	}

	h.out.ok(w, http.StatusCreated, "User registered successfully", toUser(u))
}

// HandleLogin handles POST /login
//
//	@Summary		Log in with email and password
//	@Description	Sets the accessToken and refreshToken cookies and returns the user.
//	@Description	When the account has 2FA enabled no cookies are set; the response carries a temp token for /2fa/login instead.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.Envelope[authsdk.LoginResponse]
//	@Failure		401		{object}	authsdk.APIError	"INVALID_CREDENTIALS"
//	@Failure		403		{object}	authsdk.APIError	"WRONG_PROVIDER"
//	@Failure		404		{object}	authsdk.APIError	"NOT_FOUND"
//	@Failure		429		{object}	authsdk.APIError	"RATE_LIMITED"
//	@Router			/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := decode(w, r, &req, false); err != nil {
		h.out.error(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.out.fail(w, authsdk.ErrValidation.With("Email and password are required"))
		return
	}

	res, err := h.Login.Login(r.Context(), req.Email, req.Password, clientFor(r, h.Devices, h.ClientIP))
	if err != nil {
		h.out.error(w, r, err)
		return
	}

	if res.RequiresTwoFactor() {
		h.out.ok(w, http.StatusOK, "2FA verification required", authsdk.LoginResponse{
			Requires2FA: true,
			TempToken:   res.TempToken,
		})
		return
	}

	h.out.cookies.SetSession(w, *res.Tokens, rememberMeAge(req.RememberMe))
	u := toUser(res.User)
	h.out.ok(w, http.StatusOK, "User LoggedIn Successfully", authsdk.LoginResponse{User: &u})
}

// HandleTwoFactorLogin handles POST /2fa/login
//
//	@Summary		Complete a 2FA login
//	@Description	Exchanges the temp token from /login and a TOTP code for a session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorLoginRequest	true	"Temp token and code"
//	@Success		200		{object}	authsdk.Envelope[authsdk.LoginResponse]
//	@Failure		400		{object}	authsdk.APIError	"INVALID_CODE"
//	@Failure		401		{object}	authsdk.APIError	"INVALID_TEMP_TOKEN"
//	@Failure		429		{object}	authsdk.APIError	"RATE_LIMITED"
//	@Router			/2fa/login [post].
func (h *AuthHandler) HandleTwoFactorLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TwoFactorLoginRequest
	if err := decode(w, r, &req, false); err != nil {
		h.out.error(w, r, err)
		return
	}
	if req.TempToken == "" || req.Code == "" {
		h.out.fail(w, authsdk.ErrValidation.With("Temp token and code are required"))
		return
	}

	res, err := h.TwoFactor.VerifyDuringLogin(r.Context(), req.TempToken, req.Code, clientFor(r, h.Devices, h.ClientIP))
	if err != nil {
		h.out.error(w, r, err)
		return
	}

	h.out.cookies.SetSession(w, *res.Tokens, rememberMeAge(req.RememberMe))
	u := toUser(res.User)
	h.out.ok(w, http.StatusOK, "User LoggedIn Successfully", authsdk.LoginResponse{User: &u})
}

// HandleRefresh handles POST /refresh-token
//
//	@Summary		Refresh the access token
//	@Description	Reads the refreshToken cookie, or refreshToken in the body, and issues a new access token.
//	@Description	With rotation enabled the refresh token is replaced as well and the old one stops working.
//	@Description	A superseded refresh token gets INVALID_REFRESH_TOKEN but the session cookies are left alone.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	false	"Refresh token when no cookie is sent"
//	@Success		200		{object}	authsdk.Envelope[authsdk.RefreshResponse]
//	@Failure		401		{object}	authsdk.APIError	"INVALID_REFRESH_TOKEN or SESSION_REVOKED"
//	@Router			/refresh-token [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := decode(w, r, &req, true); err != nil {
		h.out.error(w, r, err)
		return
	}

	raw := req.RefreshToken
	if raw == "" {
		if c, err := r.Cookie(refreshCookie); err == nil {
			raw = c.Value
		}
	}

	tokens, err := h.Sessions.Refresh(r.Context(), raw)
	if err != nil {
		h.out.error(w, r, err)
		return
	}

	h.out.cookies.SetSession(w, tokens, 0)
	h.out.ok(w, http.StatusOK, "Access token refreshed", authsdk.RefreshResponse{
		AccessToken: tokens.AccessToken,
	})
}

// HandleLogout handles POST /logout
//
//	@Summary		Log out
//	@Description	Without a body the current session ends and the cookies are cleared.
//	@Description	sessionId ends another session of the same user. terminateAllOtherSession ends every session but this one.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LogoutRequest	false	"What to terminate"
//	@Success		200		{object}	authsdk.Envelope[any]
//	@Failure		401		{object}	authsdk.APIError	"TOKEN_EXPIRED, INVALID_TOKEN or SESSION_REVOKED"
//	@Failure		404		{object}	authsdk.APIError	"NOT_FOUND"
//	@Router			/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFrom(ctx)
	current, _ := httpx.SessionIDFrom(ctx)

	var req authsdk.LogoutRequest
	if err := decode(w, r, &req, true); err != nil {
		h.out.error(w, r, err)
		return
	}

	switch {
	case req.TerminateAllOtherSession:
		if _, err := h.Sessions.TerminateAllExcept(ctx, userID, current); err != nil {
			h.out.error(w, r, err)
			return
		}
		h.out.ok(w, http.StatusOK, "All other session terminated successfully", nil)

	case req.SessionID != "" && req.SessionID != current:
		if err := h.Sessions.Terminate(ctx, req.SessionID, userID); err != nil {
			h.out.error(w, r, err)
			return
		}
		h.out.ok(w, http.StatusOK, "Session logged out successfully", nil)

	default:
		if err := h.Sessions.Terminate(ctx, current, userID); err != nil {
			h.out.error(w, r, err)
			return
		}
		h.out.cookies.ClearSession(w)
		h.out.ok(w, http.StatusOK, "Logged out successfully", nil)
	}
}

func toUser(u domain.User) authsdk.User {
	return authsdk.User{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Provider:          u.Provider.String(),
		TwoFactorEnabled:  u.TwoFactorEnabled,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}
