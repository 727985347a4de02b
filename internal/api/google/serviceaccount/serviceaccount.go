// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package serviceaccount provides functions for working with Google service accounts.
//
// See https://developers.google.com/identity/protocols/oauth2/service-account.
package serviceaccount

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/prodbot/internal/request"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenURI = "https://oauth2.googleapis.com/token"

// ErrInvalidKey is returned by LoadKey when the key lacks required fields.
var ErrInvalidKey = errors.New("invalid service account key")

// LoadKey loads service account key from JSON byte slice.
func LoadKey(b []byte) (*Key, error) {
	var key Key
	if err := json.Unmarshal(b, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("%w: client_email and private_key are required", ErrInvalidKey)
	}
	if key.TokenURI == "" {
		key.TokenURI = defaultTokenURI
	}
	return &key, nil
}

// Key represents a service account key.
type Key struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// Token is an OAuth 2.0 access token.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// AccessToken obtains an access token for service account identified by this
// key that is valid for one hour.
func (k *Key) AccessToken(ctx context.Context, client *http.Client, scrubber *strings.Replacer, scopes ...string) (Token, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(k.PrivateKey))
	if err != nil {
		return Token{}, fmt.Errorf("%w: parsing private key: %v", ErrInvalidKey, err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   k.ClientEmail,
		"sub":   k.ClientEmail,
		"aud":   k.TokenURI,
		"scope": strings.Join(scopes, " "),
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if k.PrivateKeyID != "" {
		tok.Header["kid"] = k.PrivateKeyID
	}
	sig, err := tok.SignedString(key)
	if err != nil {
		return Token{}, err
	}

	params := url.Values{}
	params.Add("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	params.Add("assertion", sig)

	type response struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	resp, err := request.Make[response](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        k.TokenURI,
		Body:       params,
		HTTPClient: client,
		Scrubber:   scrubber,
	})
	if err != nil {
		return Token{}, err
	}
	if resp.AccessToken == "" {
		return Token{}, errors.New("token endpoint returned an empty access token")
	}

	expiresIn := time.Duration(resp.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return Token{AccessToken: resp.AccessToken, Expiry: now.Add(expiresIn)}, nil
}

// expiryDelta is how long before expiry a cached token is refreshed.
const expiryDelta = time.Minute

// TokenSource returns access tokens for a key, reusing a token until it is
// about to expire. It is safe for concurrent use.
type TokenSource struct {
	Key        *Key
	Scopes     []string
	HTTPClient *http.Client
	Scrubber   *strings.Replacer

	mu  sync.Mutex
	tok Token
	now func() time.Time // for tests
}

// Token returns a valid access token.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now
	if ts.now != nil {
		now = ts.now
	}
	if ts.tok.AccessToken != "" && now().Add(expiryDelta).Before(ts.tok.Expiry) {
		return ts.tok.AccessToken, nil
	}

	tok, err := ts.Key.AccessToken(ctx, ts.HTTPClient, ts.Scrubber, ts.Scopes...)
	if err != nil {
		return "", err
	}
	ts.tok = tok
	return tok.AccessToken, nil
}
