// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package serviceaccount

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"go.astrophena.name/prodbot/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
)

func testKey(t *testing.T) (*Key, *rsa.PrivateKey) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	b := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(pk)})
	keyJSON, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"private_key_id": "kid1",
		"private_key":    string(b),
		"client_email":   "bot@example.iam.gserviceaccount.com",
		"token_uri":      "https://oauth2.example.com/token",
	})
	if err != nil {
		t.Fatal(err)
	}
	key, err := LoadKey(keyJSON)
	if err != nil {
		t.Fatal(err)
	}
	return key, pk
}

func tokenServer(t *testing.T, pk *rsa.PrivateKey, calls *int) *http.Client {
	mux := http.NewServeMux()
	mux.HandleFunc("POST oauth2.example.com/token", func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, r.PostForm.Get("grant_type"), "urn:ietf:params:oauth:grant-type:jwt-bearer")

		tok, err := jwt.Parse(r.PostForm.Get("assertion"), func(tok *jwt.Token) (any, error) {
			testutil.AssertEqual(t, tok.Header["kid"], "kid1")
			return &pk.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		claims := tok.Claims.(jwt.MapClaims)
		testutil.AssertEqual(t, claims["iss"], "bot@example.iam.gserviceaccount.com")
		testutil.AssertEqual(t, claims["aud"], "https://oauth2.example.com/token")
		testutil.AssertEqual(t, claims["scope"], "https://www.googleapis.com/auth/spreadsheets.readonly")

		w.Write([]byte(`{"access_token": "ya29.test", "expires_in": 3600, "token_type": "Bearer"}`))
	})
	return testutil.MockHTTPClient(mux)
}

func TestAccessToken(t *testing.T) {
	t.Parallel()

	key, pk := testKey(t)
	var calls int
	tok, err := key.AccessToken(t.Context(), tokenServer(t, pk, &calls), nil, "https://www.googleapis.com/auth/spreadsheets.readonly")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, tok.AccessToken, "ya29.test")
	if d := time.Until(tok.Expiry); d < 59*time.Minute || d > time.Hour {
		t.Fatalf("token expires in %v, want about an hour", d)
	}
}

func TestTokenSourceCaches(t *testing.T) {
	t.Parallel()

	key, pk := testKey(t)
	var calls int
	now := time.Now()
	ts := &TokenSource{
		Key:        key,
		Scopes:     []string{"https://www.googleapis.com/auth/spreadsheets.readonly"},
		HTTPClient: tokenServer(t, pk, &calls),
		now:        func() time.Time { return now },
	}

	for range 3 {
		tok, err := ts.Token(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, tok, "ya29.test")
	}
	testutil.AssertEqual(t, calls, 1)

	// Close to expiry the token is refreshed.
	now = now.Add(time.Hour - 30*time.Second)
	if _, err := ts.Token(t.Context()); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, calls, 2)
}

func TestLoadKey(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in      string
		wantErr error
		wantURI string
	}{
		"invalid JSON":       {in: `{`, wantErr: ErrInvalidKey},
		"missing email":      {in: `{"private_key": "x"}`, wantErr: ErrInvalidKey},
		"missing key":        {in: `{"client_email": "x"}`, wantErr: ErrInvalidKey},
		"default token URI":  {in: `{"client_email": "x", "private_key": "y"}`, wantURI: defaultTokenURI},
		"explicit token URI": {in: `{"client_email": "x", "private_key": "y", "token_uri": "https://t"}`, wantURI: "https://t"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			key, err := LoadKey([]byte(tc.in))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("LoadKey() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, key.TokenURI, tc.wantURI)
		})
	}
}

func TestAccessTokenInvalidPrivateKey(t *testing.T) {
	t.Parallel()

	key, err := LoadKey([]byte(`{"client_email": "x", "private_key": "not a PEM"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := key.AccessToken(t.Context(), http.DefaultClient, nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("AccessToken() error = %v, want %v", err, ErrInvalidKey)
	}
}

func TestAccessTokenLive(t *testing.T) {
	key := os.Getenv("SERVICE_ACCOUNT_KEY")
	if key == "" {
		t.Skip("set SERVICE_ACCOUNT_KEY environment variable to run this test")
	}

	k, err := LoadKey([]byte(key))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := k.AccessToken(t.Context(), http.DefaultClient, nil, "https://www.googleapis.com/auth/spreadsheets.readonly"); err != nil {
		t.Fatal(err)
	}
}
