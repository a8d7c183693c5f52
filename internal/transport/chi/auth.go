package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// publicPaths are probes and scrapes that stay reachable without a key.
var publicPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware requires "Authorization: Bearer <key>" on every API route.
// An empty key list disables authentication.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	// Keys are compared as SHA-256 digests so the comparison never leaks key length.
	digests := make([][sha256.Size]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(digests) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "authorization header must be \"Bearer <api key>\"")
				return
			}
			if !knownKey(digests, sha256.Sum256([]byte(token))) {
				unauthorized(w, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credentials of a Bearer authorization header.
// The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// knownKey checks every digest so timing does not reveal which key matched.
func knownKey(digests [][sha256.Size]byte, got [sha256.Size]byte) bool {
	match := 0
	for i := range digests {
		match |= subtle.ConstantTimeCompare(digests[i][:], got[:])
	}
	return match == 1
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="clinicrag"`)
	writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
}
