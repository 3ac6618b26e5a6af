package oauth

import (
	"context"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
)

const githubAPIURL = "https://api.github.com"

type GitHub struct {
	cfg *oauth2.Config
	api string
}

func NewGitHub(c Config) *GitHub {
	api := githubAPIURL
	if c.APIURL != "" {
		api = strings.TrimRight(c.APIURL, "/")
	}
	return &GitHub{
		cfg: c.oauth2(endpoints.GitHub, []string{"read:user", "user:email"}),
		api: api,
	}
}

func (g *GitHub) Name() domain.Provider { return domain.ProviderGitHub }

func (g *GitHub) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

// Identify uses the primary verified address from /user/emails; the public
// profile email may be missing or unverified.
func (g *GitHub) Identify(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	client, err := exchange(ctx, g.cfg, code)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}

	var profile struct {
		Login string `json:"login"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, client, g.api+"/user", &profile); err != nil {
		return domain.ExternalIdentity{}, err
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, g.api+"/user/emails", &emails); err != nil {
		return domain.ExternalIdentity{}, err
	}

	var email string
	for _, e := range emails {
		if e.Primary && e.Verified {
			email = e.Email
			break
		}
	}
	if email == "" {
		return domain.ExternalIdentity{}, ErrUnverifiedEmail
	}

	given, family := splitName(profile.Name)
	if given == "" {
		given = profile.Login
	}

	return domain.ExternalIdentity{
		Provider:   domain.ProviderGitHub,
		Email:      domain.NormalizeEmail(email),
		GivenName:  given,
		FamilyName: family,
	}, nil
}

// splitName treats the last word as the family name.
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}
