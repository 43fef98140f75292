// Package auth provides OAuth2 session acquisition for the Gmail and
// Outlook providers.
//
// Gmail reads the credentials.json / token.json pair written by the
// google-auth tooling, so tokens provisioned elsewhere keep working
// without re-authentication. Refreshed tokens are persisted immediately,
// not at process exit, so a crash never loses a refresh.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailScopes covers listing, reading and modifying messages.
var GmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.modify",
}

// GraphScopes covers reading and writing Outlook mail through Microsoft Graph.
var GraphScopes = []string{
	"User.Read",
	"Mail.ReadWrite",
	"offline_access",
}

// googleToken is the token.json layout written by the google-auth library.
type googleToken struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

// GmailService returns an authenticated Gmail API service. credentialsDir
// must contain credentials.json and token.json.
func GmailService(ctx context.Context, credentialsDir string) (*gmail.Service, error) {
	client, err := gmailClient(ctx, credentialsDir)
	if err != nil {
		return nil, fmt.Errorf("get oauth client: %w", err)
	}
	return gmail.NewService(ctx, option.WithHTTPClient(client))
}

func gmailClient(ctx context.Context, credentialsDir string) (*http.Client, error) {
	credPath := filepath.Join(credentialsDir, "credentials.json")
	data, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials from %s: %w", credPath, err)
	}

	config, err := google.ConfigFromJSON(data, GmailScopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	tokenPath := filepath.Join(credentialsDir, "token.json")
	token, err := loadGoogleToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token from %s: %w", tokenPath, err)
	}

	ts := config.TokenSource(ctx, token)
	newToken, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if newToken.AccessToken != token.AccessToken {
		if saveErr := saveGoogleToken(tokenPath, newToken, config); saveErr != nil {
			// Non-fatal: the session still works for this pass.
			fmt.Fprintf(os.Stderr, "warning: could not save refreshed token: %v\n", saveErr)
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

func loadGoogleToken(tokenPath string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	var gt googleToken
	if err := json.Unmarshal(data, &gt); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	// google-auth writes ISO 8601 with microseconds.
	var expiry time.Time
	if gt.Expiry != "" {
		for _, layout := range []string{
			"2006-01-02T15:04:05.999999Z",
			"2006-01-02T15:04:05Z",
			time.RFC3339,
			time.RFC3339Nano,
		} {
			if t, err := time.Parse(layout, gt.Expiry); err == nil {
				expiry = t
				break
			}
		}
	}

	return &oauth2.Token{
		AccessToken:  gt.Token,
		RefreshToken: gt.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, nil
}

func saveGoogleToken(tokenPath string, token *oauth2.Token, config *oauth2.Config) error {
	gt := googleToken{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     config.Endpoint.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       GmailScopes,
		Expiry:       token.Expiry.UTC().Format("2006-01-02T15:04:05.999999Z"),
	}

	data, err := json.MarshalIndent(gt, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath, data, 0o600)
}

// GraphClient returns an HTTP client that attaches a valid Microsoft Graph
// bearer token to every request. The token file is an oauth2.Token JSON
// blob; a refreshed token is written back before the client is returned.
func GraphClient(ctx context.Context, clientID, tenant, tokenPath string) (*http.Client, error) {
	if tenant == "" {
		tenant = "consumers"
	}
	config := &oauth2.Config{
		ClientID: clientID,
		Endpoint: microsoft.AzureADEndpoint(tenant),
		Scopes:   GraphScopes,
	}

	token, err := loadGraphToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load graph token from %s: %w", tokenPath, err)
	}

	ts := config.TokenSource(ctx, token)
	newToken, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh graph token: %w", err)
	}

	if newToken.AccessToken != token.AccessToken {
		if saveErr := SaveGraphToken(tokenPath, newToken); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save refreshed token: %v\n", saveErr)
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

func loadGraphToken(tokenPath string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &token, nil
}

// SaveGraphToken persists a Graph token for later silent refresh.
func SaveGraphToken(tokenPath string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(tokenPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(tokenPath, data, 0o600)
}
