// Package tempuser is a stand-in for the real identity provider: it trusts
// a "user_id" cookie set by /signin. Good enough while sessions live
// elsewhere.
package tempuser

import (
	"context"
	"net/http"
)

type userIDKeyType struct{}

var userIDKey = userIDKeyType{}

// WithUser requires the "user_id" cookie and puts its value on the context.
func WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("user_id")
		if err != nil || c.Value == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, c.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the user ID stored by WithUser, or "" when absent.
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
