package http

import (
	"errors"
	"net/http"

	"github.com/Dhairyash-1/auth-system/internal/auth/service"
	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

const forgotPasswordMessage = "Reset link sent to email if account exists"

// PasswordResetHandler serves the forgot/reset password flow.
type PasswordResetHandler struct {
	Resets *service.PasswordResetService

	out *responder
}

// HandleForgotPassword handles POST /forgot-password
//
//	@Summary		Request a password reset link
//	@Description	Always answers with the same message so the response never reveals whether the account exists.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	authsdk.Envelope[any]
//	@Failure		400		{object}	authsdk.APIError	"VALIDATION_ERROR"
//	@Failure		429		{object}	authsdk.APIError	"RATE_LIMITED"
//	@Router			/forgot-password [post].
func (h *PasswordResetHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := decode(w, r, &req, false); err != nil {
		h.out.error(w, r, err)
		return
	}

	if err := h.Resets.Request(r.Context(), req.Email); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.out.error(w, r, err)
			return
		}
		// Failures past validation would reveal that the account exists.
		slogx.FromContext(r.Context()).Error("password reset request failed", "err", err)
	}

	h.out.ok(w, http.StatusOK, forgotPasswordMessage, nil)
}

// HandleResetPassword handles POST /reset-password
//
//	@Summary		Reset the password
//	@Description	Consumes a reset token. Every outstanding reset token for the email is purged and every session of the user ends.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"Email, token and new password"
//	@Success		200		{object}	authsdk.Envelope[any]
//	@Failure		400		{object}	authsdk.APIError	"INVALID_OR_EXPIRED_TOKEN or VALIDATION_ERROR"
//	@Failure		429		{object}	authsdk.APIError	"RATE_LIMITED"
//	@Router			/reset-password [post].
func (h *PasswordResetHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := decode(w, r, &req, false); err != nil {
		h.out.error(w, r, err)
		return
	}

	if err := h.Resets.Reset(r.Context(), req.Email, req.Token, req.Password); err != nil {
		h.out.error(w, r, err)
		return
	}

	h.out.cookies.ClearSession(w)
	h.out.ok(w, http.StatusOK, "Password reset successfull", nil)
}
