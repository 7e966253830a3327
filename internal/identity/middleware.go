package identity

import (
	"net/http"
	"strconv"
	"strings"
)

// Request headers carrying the caller identity.
const (
	HeaderUserID       = "X-Hunter-User-Id"
	HeaderUsername     = "X-Hunter-Username"
	HeaderXLinked      = "X-Hunter-X-Linked"
	HeaderXDisplayName = "X-Hunter-X-Display-Name"
)

// Middleware stores the identity headers of each request in its context.
// Requests without a user id pass through without an identity.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		linked, _ := strconv.ParseBool(r.Header.Get(HeaderXLinked))
		u := User{
			ID:           id,
			Username:     strings.TrimSpace(r.Header.Get(HeaderUsername)),
			XLinked:      linked,
			XDisplayName: strings.TrimSpace(r.Header.Get(HeaderXDisplayName)),
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}
