package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/AlexTsimba/traffboard-sub001/internal/auth"
)

// UserIDHeader carries the caller identity set by the upstream auth layer.
const UserIDHeader = "X-User-ID"

// Identity moves the caller id from header into the request context.
// Requests without one are rejected with 401.
func Identity(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = UserIDHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(header))
			if userID == "" {
				writeError(w, http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithUserID(r.Context(), userID)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
