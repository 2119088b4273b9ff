package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	ErrProviderExchange      = errors.New("provider code exchange failed")
	ErrProviderNotConfigured = errors.New("identity provider is not configured")
)

const (
	discordUserInfoURL = "https://discord.com/api/users/@me"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"

	maxProfileBytes = 1 << 20
)

// ProviderProfile is the identity a provider vouched for.
type ProviderProfile struct {
	Provider Provider
	ID       string
	Email    string
	Username string
}

// IdentityProvider exchanges an authorization code for a verified profile.
type IdentityProvider interface {
	Name() Provider
	Configured() bool
	AuthCodeURL(state, redirectURL string) string
	// Authenticate performs exactly one code exchange; codes are single-use
	// so failures are never retried.
	Authenticate(ctx context.Context, code, redirectURL string) (*ProviderProfile, error)
}

// OAuthProviderConfig describes one OAuth2 authorization-code provider.
type OAuthProviderConfig struct {
	Provider     Provider
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	Scopes       []string
	UserInfoURL  string
	// HTTPClient overrides the client used for token and profile requests.
	HTTPClient *http.Client
}

// OAuthProvider is an IdentityProvider backed by golang.org/x/oauth2.
type OAuthProvider struct {
	cfg   OAuthProviderConfig
	parse func(body []byte) (*ProviderProfile, error)
}

// NewDiscordProvider creates the Discord provider.
func NewDiscordProvider(clientID, clientSecret string) *OAuthProvider {
	return NewOAuthProvider(OAuthProviderConfig{
		Provider:     ProviderDiscord,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoints.Discord,
		Scopes:       []string{"identify", "email"},
		UserInfoURL:  discordUserInfoURL,
	})
}

// NewGoogleProvider creates the Google provider.
func NewGoogleProvider(clientID, clientSecret string) *OAuthProvider {
	return NewOAuthProvider(OAuthProviderConfig{
		Provider:     ProviderGoogle,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoints.Google,
		Scopes:       []string{"openid", "email", "profile"},
		UserInfoURL:  googleUserInfoURL,
	})
}

// NewOAuthProvider creates a provider from cfg. The profile format is chosen
// by cfg.Provider.
func NewOAuthProvider(cfg OAuthProviderConfig) *OAuthProvider {
	// Client credentials go in the form body so a failed exchange is never
	// re-sent with a different auth style.
	cfg.Endpoint.AuthStyle = oauth2.AuthStyleInParams

	p := &OAuthProvider{cfg: cfg}
	switch cfg.Provider {
	case ProviderGoogle:
		p.parse = parseGoogleProfile
	default:
		p.parse = parseDiscordProfile
	}
	return p
}

func (p *OAuthProvider) Name() Provider {
	return p.cfg.Provider
}

func (p *OAuthProvider) Configured() bool {
	return p.cfg.ClientID != "" && p.cfg.ClientSecret != ""
}

func (p *OAuthProvider) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint:     p.cfg.Endpoint,
		Scopes:       p.cfg.Scopes,
		RedirectURL:  redirectURL,
	}
}

func (p *OAuthProvider) AuthCodeURL(state, redirectURL string) string {
	return p.oauthConfig(redirectURL).AuthCodeURL(state)
}

func (p *OAuthProvider) Authenticate(ctx context.Context, code, redirectURL string) (*ProviderProfile, error) {
	if !p.Configured() {
		return nil, ErrProviderNotConfigured
	}

	if p.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.cfg.HTTPClient)
	}

	conf := p.oauthConfig(redirectURL)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s token request: %v", ErrProviderExchange, p.cfg.Provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderExchange, err)
	}

	resp, err := conf.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s profile request: %v", ErrProviderExchange, p.cfg.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s profile: %v", ErrProviderExchange, p.cfg.Provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s profile returned status %d", ErrProviderExchange, p.cfg.Provider, resp.StatusCode)
	}

	profile, err := p.parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s profile: %v", ErrProviderExchange, p.cfg.Provider, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: %s profile has no id", ErrProviderExchange, p.cfg.Provider)
	}

	return profile, nil
}

type discordProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Verified *bool  `json:"verified"`
}

func parseDiscordProfile(body []byte) (*ProviderProfile, error) {
	var raw discordProfile
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return &ProviderProfile{
		Provider: ProviderDiscord,
		ID:       raw.ID,
		Email:    verifiedEmail(raw.Email, raw.Verified),
		Username: raw.Username,
	}, nil
}

type googleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
	Name          string `json:"name"`
}

func parseGoogleProfile(body []byte) (*ProviderProfile, error) {
	var raw googleProfile
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	email := verifiedEmail(raw.Email, raw.VerifiedEmail)
	username := strings.TrimSpace(raw.Name)
	if username == "" {
		username = fallbackUsername("", email)
	}

	return &ProviderProfile{
		Provider: ProviderGoogle,
		ID:       raw.ID,
		Email:    email,
		Username: username,
	}, nil
}

// verifiedEmail drops an email the provider explicitly marks unverified.
func verifiedEmail(email string, verified *bool) string {
	if verified != nil && !*verified {
		return ""
	}
	return strings.TrimSpace(email)
}
