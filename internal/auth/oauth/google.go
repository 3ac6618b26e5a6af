package oauth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type Google struct {
	cfg      *oauth2.Config
	userInfo string
}

func NewGoogle(c Config) *Google {
	userInfo := googleUserInfoURL
	if c.APIURL != "" {
		userInfo = c.APIURL + "/v1/userinfo"
	}
	return &Google{
		cfg:      c.oauth2(endpoints.Google, []string{"openid", "profile", "email"}),
		userInfo: userInfo,
	}
}

func (g *Google) Name() domain.Provider { return domain.ProviderGoogle }

func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (g *Google) Identify(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	client, err := exchange(ctx, g.cfg, code)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}

	var info struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := getJSON(ctx, client, g.userInfo, &info); err != nil {
		return domain.ExternalIdentity{}, err
	}
	if info.Email == "" || !info.EmailVerified {
		return domain.ExternalIdentity{}, ErrUnverifiedEmail
	}

	return domain.ExternalIdentity{
		Provider:   domain.ProviderGoogle,
		Email:      domain.NormalizeEmail(info.Email),
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
	}, nil
}
