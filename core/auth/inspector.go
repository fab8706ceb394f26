package auth

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// DefaultExpirySkew absorbs clock drift and latency before the server would answer 401.
const DefaultExpirySkew = 30 * time.Second

// ExpiresAt reads the `exp` claim of a JWT-shaped token without verifying its signature.
// ok is false whenever the expiry cannot be determined.
func ExpiresAt(token string) (exp time.Time, ok bool) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 || parts[1] == "" {
		return time.Time{}, false
	}
	data, err := jwt.DecodeSegment(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(data, &claims); err != nil {
		return time.Time{}, false
	}
	val, isNum := claims["exp"].(float64)
	if !isNum || val == 0 || math.IsNaN(val) || math.IsInf(val, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(val)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))), true
}

// IsExpired reports whether token expires within skew of now.
// A token whose expiry is unknown is never expired: the server has the last word.
func IsExpired(token string, skew time.Duration, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return !now.Add(skew).Before(exp)
}
