package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Dhairyash-1/auth-system/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeNotFound                = "NOT_FOUND"
	CodeConflict                = "CONFLICT"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeWrongProvider           = "WRONG_PROVIDER"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeSessionRevoked          = "SESSION_REVOKED"
	CodeInvalidRefreshToken     = "INVALID_REFRESH_TOKEN"
	CodeInvalidCode             = "INVALID_CODE"
	CodeInvalidTempToken        = "INVALID_TEMP_TOKEN"
	CodeTwoFactorNotEnabled     = "TWO_FACTOR_NOT_ENABLED"
	CodeTwoFactorAlreadyEnabled = "TWO_FACTOR_ALREADY_ENABLED"
	CodeInvalidOrExpiredToken   = "INVALID_OR_EXPIRED_TOKEN"
	CodeRateLimited             = "RATE_LIMITED"
	CodeInternal                = "INTERNAL_ERROR"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is the error body every endpoint returns on failure. It is used by
// the server to write responses and by the SDK client to represent them.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the stable machine-checkable error code (e.g. "TOKEN_EXPIRED")
	Code string `json:"code"`

	// Message is a human-readable description of the error
	Message string `json:"message"`

	// Details carries per-field reasons for validation failures
	Details map[string]string `json:"details,omitempty"`

	// Provider names the sign-in method to use after a WRONG_PROVIDER failure
	Provider string `json:"provider,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *APIError with the same code, so predefined errors work
// with errors.Is regardless of message.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, errorBody{
		Success:  false,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Provider: e.Provider,
	})
}

// With returns a copy of e carrying a different message.
func (e *APIError) With(message string) *APIError {
	cp := *e
	cp.Message = message
	return &cp
}

type errorBody struct {
	Success  bool              `json:"success"`
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Details  map[string]string `json:"details,omitempty"`
	Provider string            `json:"provider,omitempty"`
}

// NewAPIError creates an APIError with the given status, code and message.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// HasCode reports whether err is an *APIError carrying code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrValidation = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       CodeValidation,
		Message:    "Invalid request body",
	}

	ErrUserNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    "User does not exist.",
	}

	ErrSessionNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    "Session not found or unauthorized",
	}

	ErrEmailTaken = &APIError{
		StatusCode: http.StatusConflict,
		Code:       CodeConflict,
		Message:    "User with Email Already exist.",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       CodeInvalidCredentials,
		Message:    "Incorrect password.",
	}

	// ErrWrongProvider is returned when an account signs in with a method
	// other than the one it was created with. Provider names the right one.
	ErrWrongProvider = &APIError{
		StatusCode: http.StatusForbidden,
		Code:       CodeWrongProvider,
		Message:    "Please log in using the provider linked to this account.",
	}

	ErrMissingToken = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       CodeInvalidToken,
		Message:    "Unauthorized request",
	}

	// ErrTokenExpired marks an access token that verified except for its
	// expiry. Clients refresh and replay on this code only.
	ErrTokenExpired = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       CodeTokenExpired,
		Message:    "Token expired",
	}

	ErrInvalidToken = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       CodeInvalidToken,
		Message:    "Invalid or expired token",
	}

	// ErrSessionRevoked is terminal: the caller must log in again.
	ErrSessionRevoked = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       CodeSessionRevoked,
		Message:    "Session expired or revoked. Please login again.",
	}

	ErrInvalidRefreshToken = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       CodeInvalidRefreshToken,
		Message:    "Invalid refresh token",
	}

	ErrInvalidCode = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidCode,
		Message:    "Invalid 2FA code",
	}

	ErrInvalidTempToken = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       CodeInvalidTempToken,
		Message:    "Invalid or expired temporary token",
	}

	ErrTwoFactorNotEnabled = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       CodeTwoFactorNotEnabled,
		Message:    "2FA is not enabled for this account",
	}

	ErrTwoFactorAlreadyEnabled = &APIError{
		StatusCode: http.StatusConflict,
		Code:       CodeTwoFactorAlreadyEnabled,
		Message:    "2FA is already enabled for this account",
	}

	ErrInvalidOrExpiredToken = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidOrExpiredToken,
		Message:    "Token invalid or expired",
	}

	ErrRateLimited = &APIError{
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimited,
		Message:    "Too many requests, please try again later.",
	}

	ErrInternal = &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    "Something went wrong",
	}
)

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies that
// are not in the service's error shape fall back to a status-derived error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp errorBody
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Code,
			Message:    errResp.Message,
			Details:    errResp.Details,
			Provider:   errResp.Provider,
		}
	}

	code := CodeInternal
	switch resp.StatusCode {
	case http.StatusBadRequest:
		code = CodeValidation
	case http.StatusUnauthorized:
		code = CodeInvalidToken
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusConflict:
		code = CodeConflict
	case http.StatusTooManyRequests:
		code = CodeRateLimited
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
