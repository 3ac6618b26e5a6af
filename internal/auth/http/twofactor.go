package http

import (
	"net/http"

	"github.com/Dhairyash-1/auth-system/internal/auth/service"
	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
	"github.com/Dhairyash-1/auth-system/pkg/httpx"
)

// TwoFactorHandler serves 2FA setup for the signed-in user.
type TwoFactorHandler struct {
	TwoFactor *service.TwoFactorService

	out *responder
}

// HandleSetup handles POST /2fa/setup
//
//	@Summary		Provision a TOTP secret
//	@Description	Generates a secret and QR code. Nothing is saved until /2fa/verify accepts a code for it.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.Envelope[authsdk.TwoFactorSetupResponse]
//	@Failure		401	{object}	authsdk.APIError	"TOKEN_EXPIRED, INVALID_TOKEN or SESSION_REVOKED"
//	@Failure		409	{object}	authsdk.APIError	"TWO_FACTOR_ALREADY_ENABLED"
//	@Router			/2fa/setup [post].
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFrom(ctx)

	p, err := h.TwoFactor.Provision(ctx, userID)
	if err != nil {
		h.out.error(w, r, err)
		return
	}

	h.out.ok(w, http.StatusOK, "Scan the QR code with your authenticator app", authsdk.TwoFactorSetupResponse{
		Secret:     p.Secret,
		OTPAuthURL: p.OTPAuthURL,
		QRCode:     p.QRCode,
	})
}

// HandleVerify handles POST /2fa/verify
//
//	@Summary		Enable 2FA
//	@Description	Checks a code against the provisioned secret and, if it matches, saves the secret and enables 2FA.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorVerifyRequest	true	"Code and provisioned secret"
//	@Success		200		{object}	authsdk.Envelope[any]
//	@Failure		400		{object}	authsdk.APIError	"INVALID_CODE or VALIDATION_ERROR"
//	@Failure		409		{object}	authsdk.APIError	"TWO_FACTOR_ALREADY_ENABLED"
//	@Router			/2fa/verify [post].
func (h *TwoFactorHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFrom(ctx)

	var req authsdk.TwoFactorVerifyRequest
	if err := decode(w, r, &req, false); err != nil {
		h.out.error(w, r, err)
		return
	}

	if err := h.TwoFactor.ConfirmEnable(ctx, userID, req.Code, req.Secret); err != nil {
		h.out.error(w, r, err)
		return
	}

	h.out.ok(w, http.StatusOK, "2FA enabled successfully", nil)
}

// HandleDisable handles POST /2fa/disable
//
//	@Summary		Disable 2FA
//	@Description	Clears the 2FA flag and wipes the stored secret.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.Envelope[any]
//	@Failure		400	{object}	authsdk.APIError	"TWO_FACTOR_NOT_ENABLED"
//	@Router			/2fa/disable [post].
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.UserIDFrom(ctx)

	if err := h.TwoFactor.Disable(ctx, userID); err != nil {
		h.out.error(w, r, err)
		return
	}

	h.out.ok(w, http.StatusOK, "2FA disabled successfully", nil)
}
