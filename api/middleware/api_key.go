package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/angelmondragon/shopkeeper/api/responses"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
)

const (
	apiKeyHeader = "X-API-Key"
	// ReceiptDegradedHeader flags a receipt that is less than what was asked for.
	ReceiptDegradedHeader = "X-Receipt-Degraded"
)

// APIKey admits requests carrying one of the configured keys, either in
// X-API-Key or as a bearer token. An empty key list rejects everything.
func APIKey(keys []string, logg *logger.Logger) func(http.Handler) http.Handler {
	allowed := make([][]byte, 0, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			allowed = append(allowed, []byte(key))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := presentedKey(r)
			if provided == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing api key"))
				return
			}
			if !matchKey(allowed, []byte(provided)) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key"))
				return
			}

			ctx := withClient(r.Context(), fingerprint(provided))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(apiKeyHeader)); key != "" {
		return key
	}
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}

func matchKey(allowed [][]byte, provided []byte) bool {
	found := false
	for _, key := range allowed {
		if subtle.ConstantTimeCompare(key, provided) == 1 {
			found = true
		}
	}
	return found
}

// fingerprint identifies a key in logs and rate-limit counters without exposing it.
func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}
