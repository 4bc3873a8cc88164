package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/rahim2025/chottola-promo/internal/domain/auth"
)

// Security authenticates admin requests via HMAC-SHA256 hashed API keys
// presented in the X-Api-Key header. Only the hash is ever stored.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security guard with the given repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{apikeys: apikeys, pepper: pepper}
}

// HashKey computes the hex HMAC-SHA256 digest stored for an API key.
func (s *Security) HashKey(key string) string {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Require wraps a handler with API-key authentication.
func (s *Security) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Api-Key")
		if key == "" {
			writeUnauthorized(w)
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeUnauthorized(w)
			return
		}

		// The lookup already matched on the hash; the constant-time compare
		// guards against a repository returning a stale or wrong row.
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	var e jx.Encoder
	encodeError(&e, http.StatusUnauthorized, "unauthorized", nil)
	writeJSON(w, http.StatusUnauthorized, &e)
}
