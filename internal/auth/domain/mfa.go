package domain

// TwoFactorProvision is a freshly generated TOTP secret that has not been
// saved yet. The user proves possession by confirming a code against it.
type TwoFactorProvision struct {
	Secret     string // base32
	OTPAuthURL string // otpauth:// URI
	QRCode     string // data:image/png;base64,...
}

// LoginResult is the outcome of a password login. Exactly one of Tokens or
// TempToken is set.
type LoginResult struct {
	User      User
	Tokens    *SessionTokens
	TempToken string
}

// RequiresTwoFactor reports whether the caller must complete a second factor.
func (r LoginResult) RequiresTwoFactor() bool { return r.TempToken != "" }
