package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const discordAPI = "https://discord.com/api/v10"

type oauthClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	client       *http.Client
}

func newOAuthClient(clientID, clientSecret, redirectURI string) *oauthClient {
	return &oauthClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthorizeURL builds the Discord consent page URL for the identify scope.
func (o *oauthClient) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", o.clientID)
	q.Set("redirect_uri", o.redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "identify")
	q.Set("state", state)
	return "https://discord.com/oauth2/authorize?" + q.Encode()
}

// Exchange trades an authorization code for an access token.
func (o *oauthClient) Exchange(code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", o.redirectURI)

	resp, err := o.client.Post(discordAPI+"/oauth2/token",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange: HTTP %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token exchange: empty access token")
	}
	return body.AccessToken, nil
}

type discordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// AvatarURL resolves the CDN avatar, falling back to the default set.
func (u discordUser) AvatarURL() string {
	if u.Avatar != "" {
		return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", u.ID, u.Avatar)
	}
	return "https://cdn.discordapp.com/embed/avatars/0.png"
}

// FetchUser loads the authenticated user's identity.
func (o *oauthClient) FetchUser(accessToken string) (*discordUser, error) {
	req, err := http.NewRequest(http.MethodGet, discordAPI+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch user: HTTP %d", resp.StatusCode)
	}

	var u discordUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return &u, nil
}
