package authsdk

import "time"

// ============================================================================
// Response Envelope
// ============================================================================

// Envelope wraps every successful response body.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// ============================================================================
// Account Types
// ============================================================================

// RegisterRequest creates a password account.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// User is the public view of an account. It never carries the password
// digest or the TOTP secret.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Provider          string     `json:"provider"`
	TwoFactorEnabled  bool       `json:"twoFactorEnabled"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// ChangePasswordRequest replaces the password of the signed-in account.
type ChangePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

// ForgotPasswordRequest asks for a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest consumes a reset link.
type ResetPasswordRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ============================================================================
// Login Types
// ============================================================================

// LoginRequest authenticates with email and password. RememberMe makes the
// session cookies persistent.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// LoginResponse is returned by /login and /2fa/login. When Requires2FA is set
// no cookies were issued and TempToken must be exchanged at /2fa/login.
type LoginResponse struct {
	User        *User  `json:"user,omitempty"`
	Requires2FA bool   `json:"requires2FA,omitempty"`
	TempToken   string `json:"tempToken,omitempty"`
}

// TwoFactorLoginRequest completes a login that returned a temp token.
type TwoFactorLoginRequest struct {
	TempToken  string `json:"tempToken"`
	Code       string `json:"code"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// RefreshRequest carries a refresh token for clients that do not hold the
// refreshToken cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RefreshResponse carries the new access token. The cookies are reset too.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// ============================================================================
// Session Types
// ============================================================================

// LogoutRequest selects what /logout terminates. An empty request ends the
// current session.
type LogoutRequest struct {
	SessionID                string `json:"sessionId,omitempty"`
	TerminateAllOtherSession bool   `json:"terminateAllOtherSession,omitempty"`
}

// DeviceInfo describes the device a session was created from.
type DeviceInfo struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"deviceType"`
	Location   string `json:"location"`
	IPAddress  string `json:"ipAddress"`
}

// SessionInfo is one entry of GET /sessions.
type SessionInfo struct {
	ID         string     `json:"id"`
	DeviceInfo DeviceInfo `json:"deviceInfo"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastActive time.Time  `json:"lastActive"`
	IsCurrent  bool       `json:"isCurrent"`
}

// CurrentSession is the session part of GET /me.
type CurrentSession struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

// MeResponse is returned by GET /me.
type MeResponse struct {
	User    User           `json:"user"`
	Session CurrentSession `json:"session"`
}

// ============================================================================
// Two-Factor Types
// ============================================================================

// TwoFactorSetupResponse carries an unsaved TOTP secret. It is only stored
// once /2fa/verify confirms a code generated from it.
type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	QRCode     string `json:"qrCode"`
}

// TwoFactorVerifyRequest confirms a provisioned secret.
type TwoFactorVerifyRequest struct {
	Code   string `json:"code"`
	Secret string `json:"secret"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`
}
