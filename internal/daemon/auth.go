package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireAuth wraps a handler with a bearer token check. An empty token
// disables authentication, which is the default for single-host deployments.
// The comparison is constant time so the token cannot be probed byte by byte.
func (s *apiServer) requireAuth(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	want := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="zeus"`)
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}
