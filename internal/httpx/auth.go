package httpx

import (
	"context"
	"net/http"
)

// User is the authenticated caller as asserted by the upstream gateway.
// Token verification happens there; this service only trusts the headers the
// gateway injects.
type User struct {
	ID    string
	Email string
	Admin bool
}

type ctxKey int

const userKey ctxKey = 0

func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// Identity lifts the gateway identity headers into the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-Id")
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		u := User{
			ID:    id,
			Email: r.Header.Get("X-User-Email"),
			Admin: r.Header.Get("X-User-Admin") == "true",
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "authentication required"})
			return
		}
		if !u.Admin {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
