package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	httpapi "github.com/Dhairyash-1/auth-system/internal/auth/http"
	"github.com/Dhairyash-1/auth-system/internal/auth/mailer"
	"github.com/Dhairyash-1/auth-system/internal/auth/oauth"
	"github.com/Dhairyash-1/auth-system/pkg/cryptox"
	"github.com/Dhairyash-1/auth-system/pkg/httpx"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// generatedSecretSize is the byte length of secrets made up in development.
const generatedSecretSize = 32

type Config struct {
	Env                  string        `env:"ENV"                   envDefault:"development"`
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	PepperFile   string `env:"AUTH_PEPPER_FILE"   envDefault:"pepper"`

	JWT JWTConfig

	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"15m"`
	FrontendURL      string        `env:"FRONTEND_URL"       envDefault:"http://localhost:3000"`
	TOTPIssuer       string        `env:"TOTP_ISSUER"        envDefault:"Auth System"`

	Google ProviderConfig `envPrefix:"GOOGLE_"`
	GitHub ProviderConfig `envPrefix:"GITHUB_"`

	SMTP SMTPConfig `envPrefix:"SMTP_"`

	// MailRatePerSecond caps outbound email. Zero disables throttling.
	MailRatePerSecond float64 `env:"MAIL_RATE_PER_SECOND" envDefault:"5"`

	// GeoIPDatabaseFile is an optional MaxMind City mmdb.
	GeoIPDatabaseFile string `env:"GEOIP_DATABASE_FILE"`

	RateLimit RateLimitConfig `envPrefix:"RATELIMIT_"`

	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For is
	// believed. Empty keys every request by its socket peer.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	OTelEnabled    bool   `env:"OTEL_ENABLED"`
	OTelEndpoint   string `env:"OTEL_ENDPOINT"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
}

type JWTConfig struct {
	Secret          string        `env:"JWT_SECRET"`
	TwoFactorSecret string        `env:"JWT_2FA_SECRET"`
	Issuer          string        `env:"JWT_ISSUER"         envDefault:"auth-system"`
	AccessExpiry    time.Duration `env:"JWT_ACCESS_EXPIRY"  envDefault:"15m"`
	RefreshExpiry   time.Duration `env:"JWT_REFRESH_EXPIRY" envDefault:"168h"`
	TwoFactorExpiry time.Duration `env:"JWT_2FA_EXPIRY"     envDefault:"5m"`

	// RotateRefresh replaces the refresh token on every refresh.
	RotateRefresh bool `env:"ROTATE_REFRESH_TOKENS" envDefault:"true"`
}

type ProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

func (p ProviderConfig) oauth() oauth.Config {
	return oauth.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
	}
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"Auth System <no-reply@localhost>"`
}

// RateLimitOverride replaces one class threshold when both fields are set.
type RateLimitOverride struct {
	Requests  int `env:"REQUESTS"`
	WindowSec int `env:"WINDOW_SEC"`
}

func (o RateLimitOverride) apply(class httpx.RateLimitClass) httpx.RateLimitClass {
	if o.Requests > 0 {
		class.Rule.Limit = o.Requests
	}
	if o.WindowSec > 0 {
		class.Rule.Window = time.Duration(o.WindowSec) * time.Second
	}
	return class
}

type RateLimitConfig struct {
	// RedisAddr selects the shared Redis store. Empty keeps counters in memory.
	RedisAddr string `env:"REDIS_ADDR"`

	Global RateLimitOverride `envPrefix:"GLOBAL_"`
	Login  RateLimitOverride `envPrefix:"LOGIN_"`
	Reset  RateLimitOverride `envPrefix:"RESET_"`
	OAuth  RateLimitOverride `envPrefix:"OAUTH_"`
}

// Classes returns the default thresholds with any overrides applied.
func (c RateLimitConfig) Classes() httpapi.RateLimitClasses {
	d := httpapi.DefaultRateLimitClasses()
	return httpapi.RateLimitClasses{
		Global: c.Global.apply(d.Global),
		Login:  c.Login.apply(d.Login),
		Reset:  c.Reset.apply(d.Reset),
		OAuth:  c.OAuth.apply(d.OAuth),
	}
}

// LoadConfig reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool { return c.Env == EnvProduction }

// Validate checks settings that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.JWT.AccessExpiry <= 0 || c.JWT.RefreshExpiry <= 0 || c.JWT.TwoFactorExpiry <= 0 {
		errs = append(errs, errors.New("JWT expiries must be positive"))
	}
	if c.JWT.AccessExpiry >= c.JWT.RefreshExpiry {
		errs = append(errs, errors.New("JWT_ACCESS_EXPIRY must be shorter than JWT_REFRESH_EXPIRY"))
	}
	if c.PasswordResetTTL <= 0 {
		errs = append(errs, errors.New("PASSWORD_RESET_TTL must be positive"))
	}
	if _, err := httpx.NewClientIPResolver(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}

	if c.IsProduction() {
		if c.JWT.Secret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		if c.JWT.TwoFactorSecret == "" {
			errs = append(errs, errors.New("JWT_2FA_SECRET is required in production"))
		}
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required in production"))
		}
		if !strings.HasPrefix(c.FrontendURL, "https://") {
			errs = append(errs, errors.New("FRONTEND_URL must use https in production"))
		}
	}

	return errors.Join(errs...)
}

// ensureSecrets fills missing JWT secrets with random values. Tokens signed
// with them do not survive a restart.
func (c *Config) ensureSecrets(logger *slog.Logger) error {
	for _, s := range []struct {
		name  string
		value *string
	}{
		{"JWT_SECRET", &c.JWT.Secret},
		{"JWT_2FA_SECRET", &c.JWT.TwoFactorSecret},
	} {
		if *s.value != "" {
			continue
		}
		if c.IsProduction() {
			return fmt.Errorf("%s is required in production", s.name)
		}
		v, err := cryptox.GenerateToken(generatedSecretSize)
		if err != nil {
			return fmt.Errorf("generate %s: %w", s.name, err)
		}
		*s.value = v
		logger.Warn("secret not set, using a random value for this process", "var", s.name)
	}
	return nil
}

func (c Config) smtp() mailer.SMTPConfig {
	return mailer.SMTPConfig{
		Host:          c.SMTP.Host,
		Port:          c.SMTP.Port,
		Username:      c.SMTP.Username,
		Password:      c.SMTP.Password,
		From:          c.SMTP.From,
		RatePerSecond: c.MailRatePerSecond,
	}
}
