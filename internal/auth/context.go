package auth

import "net/http"

// ContextKey is the type used for context keys.
type ContextKey string

const (
	// ContextKeyUserID is the key for the authenticated user id.
	ContextKeyUserID ContextKey = "userID"
	// ContextKeyIsAdmin is the key for the admin flag.
	ContextKeyIsAdmin ContextKey = "isAdmin"
	// ContextKeyClaims is the key for the full token claims.
	ContextKeyClaims ContextKey = "claims"
)

// GetUserID retrieves the authenticated user id from the request context.
func GetUserID(r *http.Request) int64 {
	if id, ok := r.Context().Value(ContextKeyUserID).(int64); ok {
		return id
	}
	return 0
}

// IsAdmin checks if the authenticated user has the admin role.
func IsAdmin(r *http.Request) bool {
	if isAdmin, ok := r.Context().Value(ContextKeyIsAdmin).(bool); ok {
		return isAdmin
	}
	return false
}
