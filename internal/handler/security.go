package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/xenking/orderflow/internal/domain/auth"
)

// actorKey is the context key for the authenticated actor name.
type actorKey struct{}

// actorFrom returns the authenticated actor recorded on the request, or
// "anonymous" when the route was mounted without authentication.
func actorFrom(r *http.Request) string {
	if actor, ok := r.Context().Value(actorKey{}).(string); ok {
		return actor
	}
	return "anonymous"
}

// Security authenticates requests via HMAC-SHA256 hashed API keys and
// records the key's name as the acting identity for modification history.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Middleware authenticates the api_key header by computing its HMAC-SHA256,
// looking the hash up, and comparing in constant time. Unauthorized
// requests get a 401 without reaching the handler.
func (s *Security) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("api_key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, info.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
