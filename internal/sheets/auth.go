// Package sheets is the spreadsheet-backed configuration source: selected
// markets, parameter profiles and the stats write-back all live in one
// Google Sheets document accessed over the v4 REST API with a service
// account.
package sheets

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

const (
	sheetsScope = "https://www.googleapis.com/auth/spreadsheets"
	jwtGrant    = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// Tokens are refreshed a minute before Google's stated expiry.
	tokenSlack = time.Minute
)

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// tokenSource mints and caches OAuth2 access tokens from service-account
// credentials using the signed-JWT grant.
type tokenSource struct {
	account serviceAccount
	key     *rsa.PrivateKey
	rest    *resty.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// newTokenSource loads the service-account JSON file and parses its key.
func newTokenSource(credentialsFile string) (*tokenSource, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var account serviceAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, fmt.Errorf("credentials missing client_email or private_key")
	}
	if account.TokenURI == "" {
		account.TokenURI = "https://oauth2.googleapis.com/token"
	}

	block, _ := pem.Decode([]byte(account.PrivateKey))
	if block == nil {
		return nil, fmt.Errorf("credentials private_key is not PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}

	return &tokenSource{
		account: account,
		key:     key,
		rest:    resty.New().SetTimeout(10 * time.Second),
	}, nil
}

// Token returns a valid access token, minting a fresh one when the cached
// token is near expiry.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expires.Add(-tokenSlack)) {
		return ts.token, nil
	}

	assertion, err := ts.signJWT()
	if err != nil {
		return "", err
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	resp, err := ts.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": jwtGrant,
			"assertion":  assertion,
		}).
		SetResult(&out).
		Post(ts.account.TokenURI)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token exchange: status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token exchange: empty access token")
	}

	ts.token = out.AccessToken
	ts.expires = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return ts.token, nil
}

// signJWT builds the RS256-signed assertion for the token exchange.
func (ts *tokenSource) signJWT() (string, error) {
	now := time.Now()

	header, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	claims, err := json.Marshal(map[string]any{
		"iss":   ts.account.ClientEmail,
		"scope": sheetsScope,
		"aud":   ts.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(header) + "." + enc.EncodeToString(claims)

	digest := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, ts.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	return signingInput + "." + enc.EncodeToString(signature), nil
}
