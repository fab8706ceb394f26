package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	localstore "github.com/semed/merenda/storage/local"
)

// makeToken builds an unsigned JWT-shaped token carrying the given claims.
func makeToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	return makeToken(t, map[string]interface{}{"exp": exp.Unix(), "user_id": 1})
}

func newTestStore() *Store {
	return NewStore(localstore.NewMemStore(), nil)
}
