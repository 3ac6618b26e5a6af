package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/service"
	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
	"github.com/Dhairyash-1/auth-system/pkg/httpx"
	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

// ErrorRecorder is told about every error response.
type ErrorRecorder interface {
	HTTPError(status int, code string)
}

// responder writes envelopes and maps service errors to API errors. It is
// shared by every handler.
type responder struct {
	cookies Cookies
	errors  ErrorRecorder
}

func (o *responder) ok(w http.ResponseWriter, status int, message string, data any) {
	httpx.WriteJSON(w, status, authsdk.Envelope[any]{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (o *responder) fail(w http.ResponseWriter, e *authsdk.APIError) {
	if o.errors != nil {
		o.errors.HTTPError(e.StatusCode, e.Code)
	}
	e.WriteError(w)
}

// error maps err to its API error and writes it. A revoked session or a
// rejected refresh token also clears the token cookies, except when the
// refresh token was only superseded and the session is still live. Unknown
// errors are logged and reported as a generic 500.
func (o *responder) error(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiError(err)
	if apiErr == nil {
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		apiErr = authsdk.ErrInternal
	}

	switch {
	case errors.Is(err, service.ErrRefreshSuperseded):
		// Another refresh already rotated the token; its cookies are current.
	case apiErr.Code == authsdk.CodeSessionRevoked, apiErr.Code == authsdk.CodeInvalidRefreshToken:
		o.cookies.ClearSession(w)
	}
	o.fail(w, apiErr)
}

// authnFailure is the AuthnMiddleware rejection writer.
func (o *responder) authnFailure(w http.ResponseWriter, r *http.Request, err error) {
	o.error(w, r, err)
}

// apiError returns the API error for a known failure, nil otherwise.
func apiError(err error) *authsdk.APIError {
	var (
		verr *service.ValidationError
		wp   *service.WrongProviderError
	)

	switch {
	case errors.As(err, &verr):
		e := authsdk.ErrValidation.With(validationMessage(verr))
		e.Details = verr.Fields
		return e
	case errors.As(err, &wp):
		e := authsdk.ErrWrongProvider.With(wrongProviderMessage(wp.Provider))
		e.Provider = wp.Provider.String()
		return e
	case errors.Is(err, httpx.ErrEmptyBody):
		return authsdk.ErrValidation.With("Request body is required")
	case isDecodeError(err):
		return authsdk.ErrValidation

	case errors.Is(err, service.ErrUserNotFound):
		return authsdk.ErrUserNotFound
	case errors.Is(err, service.ErrEmailTaken):
		return authsdk.ErrEmailTaken
	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidCredentials
	case errors.Is(err, service.ErrSessionNotFound):
		return authsdk.ErrSessionNotFound

	case errors.Is(err, httpx.ErrMissingToken):
		return authsdk.ErrMissingToken
	case errors.Is(err, service.ErrSessionRevoked):
		return authsdk.ErrSessionRevoked
	case jwtx.IsExpired(err):
		return authsdk.ErrTokenExpired
	case isTokenError(err):
		return authsdk.ErrInvalidToken
	case errors.Is(err, service.ErrInvalidRefresh):
		return authsdk.ErrInvalidRefreshToken

	case errors.Is(err, service.ErrInvalidCode):
		return authsdk.ErrInvalidCode
	case errors.Is(err, service.ErrInvalidTempToken):
		return authsdk.ErrInvalidTempToken
	case errors.Is(err, service.ErrTwoFactorNotEnabled):
		return authsdk.ErrTwoFactorNotEnabled
	case errors.Is(err, service.ErrTwoFactorAlreadyEnabled):
		return authsdk.ErrTwoFactorAlreadyEnabled

	case errors.Is(err, service.ErrInvalidResetToken), errors.Is(err, service.ErrPasswordLogin):
		return authsdk.ErrInvalidOrExpiredToken
	}
	return nil
}

func wrongProviderMessage(p domain.Provider) string {
	return fmt.Sprintf("Please log in using %s.", p)
}

// validationMessage reports the first problem, in field order.
func validationMessage(verr *service.ValidationError) string {
	for _, field := range []string{"firstName", "lastName", "email", "password", "newPassword", "code", "tempToken", "token"} {
		if reason, ok := verr.Fields[field]; ok {
			return reason
		}
	}
	for _, reason := range verr.Fields {
		return reason
	}
	return authsdk.ErrValidation.Message
}

func isTokenError(err error) bool {
	for _, target := range []error{
		jwtx.ErrMalformed, jwtx.ErrInvalidSig, jwtx.ErrIssuer,
		jwtx.ErrWrongKind, jwtx.ErrNotYetValid, jwtx.ErrInvalidClaim,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type decodeError struct{ err error }

func (e decodeError) Error() string { return e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de decodeError
	return errors.As(err, &de)
}

// decode reads the JSON body into dst. An empty body is allowed when
// optional is set.
func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	err := httpx.DecodeJSON(w, r, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, httpx.ErrEmptyBody):
		if optional {
			return nil
		}
		return err
	default:
		return decodeError{err: err}
	}
}
