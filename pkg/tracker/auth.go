package tracker

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/gsm"
	"github.com/golang-jwt/jwt/v5"
)

// Authentication constants.
const (
	minTokenLength = 40
	maxTokenLength = 100
	maxAppID       = 999999999

	// appKeySecret is the Google Secret Manager name consulted when no
	// private key path is configured.
	appKeySecret = "review-lottery-app-key"
)

// newTokenClient creates a client with personal token authentication.
func newTokenClient(cfg Config) (*Client, error) {
	if err := validateToken(cfg.Token); err != nil {
		return nil, err
	}

	slog.Info("Using personal access token authentication", "component", "auth")

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		org:        cfg.Organization,
		token:      cfg.Token,
		isAppAuth:  false,
	}, nil
}

// newAppAuthClient creates a client with GitHub App authentication.
func newAppAuthClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := validateAppID(cfg.AppID); err != nil {
		return nil, err
	}

	privateKey, err := loadPrivateKey(ctx, cfg.AppKeyPath)
	if err != nil {
		return nil, err
	}

	jwtToken, err := generateJWT(cfg.AppID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	slog.Info("Successfully generated JWT for GitHub App", "component", "auth")

	return &Client{
		httpClient:        &http.Client{Timeout: cfg.HTTPTimeout},
		org:               cfg.Organization,
		token:             jwtToken,
		tokenExpiry:       time.Now().Add(9 * time.Minute),
		appID:             cfg.AppID,
		privateKeyPath:    cfg.AppKeyPath,
		privateKeyContent: privateKey,
		isAppAuth:         true,
	}, nil
}

// loadPrivateKey reads the App private key from the configured path, or
// from Google Secret Manager when no path is set.
func loadPrivateKey(ctx context.Context, keyPath string) ([]byte, error) {
	if keyPath != "" {
		key, err := os.ReadFile(keyPath) //nolint:gosec // path comes from operator config
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		return key, nil
	}

	secret, err := gsm.Secret(ctx, appKeySecret)
	if err != nil {
		return nil, fmt.Errorf("no private key path configured and secret manager lookup failed: %w", err)
	}
	slog.Info("Loaded App private key from secret manager", "component", "auth", "secret", appKeySecret)
	return []byte(secret), nil
}

// generateJWT generates a JWT token for GitHub App authentication.
func generateJWT(appID string, privateKey []byte) (string, error) {
	block, _ := pem.Decode(privateKey)
	if block == nil {
		return "", errors.New("failed to parse PEM block containing the private key")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS8 format if PKCS1 fails
		parsedKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse private key: %w", err)
		}
		var ok bool
		key, ok = parsedKey.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("private key is not RSA")
		}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(), // GitHub Apps JWTs expire after 10 minutes max
		"iss": appID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// refreshJWTIfNeeded refreshes the JWT token if it's close to expiry.
func (c *Client) refreshJWTIfNeeded() error {
	if !c.isAppAuth {
		return nil
	}

	c.tokenMutex.RLock()
	needsRefresh := time.Now().After(c.tokenExpiry)
	c.tokenMutex.RUnlock()
	if !needsRefresh {
		return nil
	}

	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()
	if time.Now().Before(c.tokenExpiry) {
		return nil
	}

	var privateKey []byte
	var err error
	switch {
	case len(c.privateKeyContent) > 0:
		privateKey = c.privateKeyContent
	case c.privateKeyPath != "":
		privateKey, err = os.ReadFile(c.privateKeyPath)
		if err != nil {
			return fmt.Errorf("failed to read private key for refresh: %w", err)
		}
	default:
		return errors.New("no private key available for JWT refresh")
	}

	newToken, err := generateJWT(c.appID, privateKey)
	if err != nil {
		return fmt.Errorf("failed to generate JWT for refresh: %w", err)
	}

	c.token = newToken
	c.tokenExpiry = time.Now().Add(9 * time.Minute)
	slog.Info("Refreshed GitHub App JWT", "component", "auth")
	return nil
}

// getInstallationToken gets or refreshes the installation access token for
// the configured organization.
func (c *Client) getInstallationToken(ctx context.Context) (string, error) {
	if !c.isAppAuth {
		return c.token, nil
	}

	c.tokenMutex.RLock()
	if c.installationToken != "" && time.Now().Before(c.installationExpiry) {
		token := c.installationToken
		c.tokenMutex.RUnlock()
		return token, nil
	}
	c.tokenMutex.RUnlock()

	if err := c.refreshJWTIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to refresh JWT: %w", err)
	}

	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()
	if c.installationToken != "" && time.Now().Before(c.installationExpiry) {
		return c.installationToken, nil
	}

	installationID, err := c.lookupInstallationID(ctx)
	if err != nil {
		return "", err
	}

	slog.Info("Creating installation access token", "component", "auth", "org", c.org, "installation_id", installationID)
	apiURL := fmt.Sprintf("%s/app/installations/%d/access_tokens", apiBase, installationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get installation token: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("failed to get installation token (status %d)", resp.StatusCode)
	}

	var tokenData struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenData); err != nil {
		return "", fmt.Errorf("failed to decode installation token: %w", err)
	}

	c.installationToken = tokenData.Token
	// Refresh a little early so an in-flight request never carries an
	// expired token.
	c.installationExpiry = tokenData.ExpiresAt.Add(-5 * time.Minute)
	return c.installationToken, nil
}

// lookupInstallationID resolves the App installation for the configured org.
// Callers hold tokenMutex.
func (c *Client) lookupInstallationID(ctx context.Context) (int, error) {
	if c.installationID != 0 {
		return c.installationID, nil
	}

	apiURL := fmt.Sprintf("%s/orgs/%s/installation", apiBase, c.org)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to look up app installation: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("no app installation found for organization %s (status %d, is the app installed?)", c.org, resp.StatusCode)
	}

	var installation struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&installation); err != nil {
		return 0, fmt.Errorf("failed to decode installation: %w", err)
	}

	c.installationID = installation.ID
	return c.installationID, nil
}

// validateToken sanity-checks a personal access token.
func validateToken(token string) error {
	if token == "" {
		return errors.New("no GitHub token provided")
	}
	if len(token) < minTokenLength || len(token) > maxTokenLength {
		return fmt.Errorf("token length %d outside expected range [%d, %d]", len(token), minTokenLength, maxTokenLength)
	}
	if strings.ContainsAny(token, " \t\n\r") {
		return errors.New("token contains whitespace")
	}
	return nil
}

// validateAppID sanity-checks a GitHub App ID.
func validateAppID(appID string) error {
	id, err := strconv.Atoi(appID)
	if err != nil {
		return fmt.Errorf("app ID must be numeric: %w", err)
	}
	if id <= 0 || id > maxAppID {
		return fmt.Errorf("app ID %d out of range", id)
	}
	return nil
}
