package http

import (
	"net/http"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/service"
	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
	"github.com/Dhairyash-1/auth-system/pkg/httpx"
)

// AccountHandler serves the signed-in user's profile, sessions and password.
type AccountHandler struct {
	Users    *service.UserService
	Sessions *service.SessionService

	out *responder
}

// HandleMe handles GET /me
//
//	@Summary		Current user
//	@Description	Returns the signed-in user and the session the request authenticated with.
//	@Tags			Account
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.Envelope[authsdk.MeResponse]
//	@Failure		401	{object}	authsdk.APIError	"TOKEN_EXPIRED, INVALID_TOKEN or SESSION_REVOKED"
//	@Router			/me [get].
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFrom(ctx)
	sessionID, _ := httpx.SessionIDFrom(ctx)

	u, err := h.Users.GetUserByID(ctx, userID)
	if err != nil {
		h.out.error(w, r, err)
		return
	}
	sess, err := h.Sessions.Get(ctx, sessionID)
	if err != nil {
		h.out.error(w, r, err)
		return
	}

	h.out.ok(w, http.StatusOK, "", authsdk.MeResponse{
		User: toUser(u),
		Session: authsdk.CurrentSession{
			ID:        sess.ID,
			IPAddress: sess.Device.IPAddress,
			UserAgent: sess.UserAgent,
			CreatedAt: sess.CreatedAt,
		},
	})
}

// HandleSessions handles GET /sessions
//
//	@Summary		List sessions
//	@Description	Lists every session of the signed-in user, newest first. isCurrent marks the one the request came from.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.Envelope[[]authsdk.SessionInfo]
//	@Failure		401	{object}	authsdk.APIError	"TOKEN_EXPIRED, INVALID_TOKEN or SESSION_REVOKED"
//	@Router			/sessions [get].
func (h *AccountHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFrom(ctx)
	current, _ := httpx.SessionIDFrom(ctx)

	sessions, err := h.Sessions.List(ctx, userID, current)
	if err != nil {
		h.out.error(w, r, err)
		return
	}

	out := make([]authsdk.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionInfo(s))
	}
	h.out.ok(w, http.StatusOK, "", out)
}

// HandleChangePassword handles POST /change-password
//
//	@Summary		Change password
//	@Description	Replaces the password of an email account. Every session of the user ends, this one included.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	authsdk.Envelope[any]
//	@Failure		400		{object}	authsdk.APIError	"VALIDATION_ERROR"
//	@Failure		401		{object}	authsdk.APIError	"INVALID_CREDENTIALS"
//	@Failure		403		{object}	authsdk.APIError	"WRONG_PROVIDER"
//	@Router			/change-password [post].
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFrom(ctx)

	var req authsdk.ChangePasswordRequest
	if err := decode(w, r, &req, false); err != nil {
		h.out.error(w, r, err)
		return
	}

	if err := h.Users.ChangePassword(ctx, userID, req.Password, req.NewPassword); err != nil {
		h.out.error(w, r, err)
		return
	}

	h.out.cookies.ClearSession(w)
	h.out.ok(w, http.StatusOK, "Password changed successfully. Please login again.", nil)
}

func toSessionInfo(s domain.SessionSummary) authsdk.SessionInfo {
	return authsdk.SessionInfo{
		ID: s.ID,
		DeviceInfo: authsdk.DeviceInfo{
			Browser:    s.Device.Browser,
			OS:         s.Device.OS,
			DeviceType: s.Device.DeviceType,
			Location:   s.Device.Location,
			IPAddress:  s.Device.IPAddress,
		},
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastSeenAt,
		IsCurrent:  s.IsCurrent,
	}
}
