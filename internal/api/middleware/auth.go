package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/storage"
)

type contextKey string

const APIKeyContextKey contextKey = "api_key"

// Auth creates authentication middleware. Callers are machine clients
// (automation frameworks), authenticated with bearer API keys; the
// bootstrap key is only honored while no keys exist in storage.
func Auth(store storage.Storage, bootstrapKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"code":401,"message":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			apiKey, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || apiKey == "" {
				http.Error(w, `{"code":401,"message":"invalid authorization header"}`, http.StatusUnauthorized)
				return
			}

			ctx := r.Context()

			keyCount, err := store.CountAPIKeys(ctx)
			if err != nil {
				http.Error(w, `{"code":500,"message":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			// If no keys exist and bootstrap key is set, allow bootstrap key
			if keyCount == 0 && bootstrapKey != "" {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(bootstrapKey)) == 1 {
					ctx = context.WithValue(ctx, APIKeyContextKey, &domain.APIKey{
						ID:   "bootstrap",
						Name: "Bootstrap Key",
					})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			storedKey, err := store.GetAPIKeyByHash(ctx, HashAPIKey(apiKey))
			if err != nil {
				if err == domain.ErrNotFound {
					http.Error(w, `{"code":401,"message":"invalid API key"}`, http.StatusUnauthorized)
					return
				}
				http.Error(w, `{"code":500,"message":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			// Update last used timestamp (fire and forget)
			go func() {
				_ = store.UpdateAPIKeyLastUsed(context.Background(), storedKey.ID)
			}()

			ctx = context.WithValue(ctx, APIKeyContextKey, storedKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HashAPIKey creates a SHA-256 hash of the API key. API keys are already
// high-entropy random strings, so a fast hash is fine for lookups.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// GetAPIKeyFromContext retrieves the API key from the request context.
func GetAPIKeyFromContext(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(APIKeyContextKey).(*domain.APIKey)
	return key
}
