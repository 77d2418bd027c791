package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
)

// GitHubAuthenticator handles GitHub sign-in over the OAuth 2.0
// authorization-code flow. GitHub has no OIDC ID token, so identity comes
// from the /user API after the code exchange.
type GitHubAuthenticator struct {
	config *oauth2.Config

	// Overridable in tests.
	userURL   string
	emailsURL string
}

// NewGitHubAuthenticator creates a GitHubAuthenticator. The user:email scope
// is requested because many GitHub accounts hide their email from the public
// profile and it must then be read from /user/emails.
func NewGitHubAuthenticator(clientID, clientSecret, redirectURL string) *GitHubAuthenticator {
	return &GitHubAuthenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL:   "https://api.github.com/user",
		emailsURL: "https://api.github.com/user/emails",
	}
}

// Name returns the provider name.
func (g *GitHubAuthenticator) Name() string { return ProviderGitHub }

// AuthURL generates the GitHub consent URL with the given state.
func (g *GitHubAuthenticator) AuthURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades the authorization code for the normalized profile. A
// profile without any resolvable email is still returned; the reconciler is
// the one that rejects it, so the rule lives in one place.
func (g *GitHubAuthenticator) Exchange(ctx context.Context, code string) (Profile, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("token exchange: %w", err)
	}

	client := g.config.Client(ctx, token)

	var user githubUser
	if err := getJSON(client, g.userURL, &user); err != nil {
		return Profile{}, fmt.Errorf("github user: %w", err)
	}
	if user.ID == 0 {
		return Profile{}, fmt.Errorf("github returned an invalid user")
	}

	email := user.Email
	if email == "" {
		// Email hidden on the profile; ask the emails endpoint.
		var emails []githubEmail
		if err := getJSON(client, g.emailsURL, &emails); err != nil {
			return Profile{}, fmt.Errorf("github emails: %w", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}

	return Profile{
		Provider:   ProviderGitHub,
		ExternalID: strconv.FormatInt(user.ID, 10),
		Email:      email,
	}, nil
}

// FacebookAuthenticator handles Facebook sign-in via the Graph API.
type FacebookAuthenticator struct {
	config *oauth2.Config

	// Overridable in tests.
	profileURL string
}

// NewFacebookAuthenticator creates a FacebookAuthenticator.
func NewFacebookAuthenticator(clientID, clientSecret, redirectURL string) *FacebookAuthenticator {
	return &FacebookAuthenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebook.Endpoint,
		},
		profileURL: "https://graph.facebook.com/me?fields=id,email,first_name,last_name",
	}
}

// Name returns the provider name.
func (f *FacebookAuthenticator) Name() string { return ProviderFacebook }

// AuthURL generates the Facebook consent URL with the given state.
func (f *FacebookAuthenticator) AuthURL(state string) string {
	return f.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type facebookUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Exchange trades the authorization code for the normalized profile. Email
// is optional on Facebook accounts and stays empty when not granted.
func (f *FacebookAuthenticator) Exchange(ctx context.Context, code string) (Profile, error) {
	token, err := f.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("token exchange: %w", err)
	}

	client := f.config.Client(ctx, token)

	var user facebookUser
	if err := getJSON(client, f.profileURL, &user); err != nil {
		return Profile{}, fmt.Errorf("facebook profile: %w", err)
	}
	if user.ID == "" {
		return Profile{}, fmt.Errorf("facebook returned an invalid user")
	}

	return Profile{
		Provider:   ProviderFacebook,
		ExternalID: user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
	}, nil
}

func getJSON(client *http.Client, url string, dst any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
