package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"
	// UsernameKey is the context key for the username
	UsernameKey contextKey = "username"
	// CompanyKey is the context key for the company name
	CompanyKey contextKey = "company"
	// RoleKey is the context key for the user role
	RoleKey contextKey = "role"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ClaimsFromContext extracts the JWT claims from the request context
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// UsernameFromContext extracts the username from the request context
func UsernameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UsernameKey).(string); ok {
		return v
	}
	return ""
}

// CompanyFromContext extracts the company name from the request context
func CompanyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CompanyKey).(string); ok {
		return v
	}
	return ""
}

// RoleFromContext extracts the user role from the request context
func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RoleKey).(string); ok {
		return v
	}
	return ""
}

// WithClaims returns ctx carrying claims and the values derived from them
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	ctx = context.WithValue(ctx, UsernameKey, claims.Username())
	ctx = context.WithValue(ctx, CompanyKey, claims.CompanyName)
	return context.WithValue(ctx, RoleKey, claims.Role)
}

// Public paths that don't require authentication
var publicPaths = map[string]bool{
	"/health":        true,
	"/dbping":        true,
	"/metrics":       true,
	"/docs":          true,
	"/auth/login":    true,
	"/auth/register": true,
}

// isPublicPath checks if the given path is public (no auth required)
func isPublicPath(path string) bool {
	return publicPaths[path]
}

// SendErrorResponse writes a standardized JSON error
func SendErrorResponse(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := ErrorResponse{
		Error: message,
		Code:  code,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sendTokenExpirationWarning adds a warning header when token expires soon
func sendTokenExpirationWarning(w http.ResponseWriter, claims *Claims) {
	if claims.ExpiresAt == nil || !claims.IsExpiringSoon(time.Hour) {
		return
	}
	left := time.Until(claims.ExpiresAt.Time)
	if left <= 0 {
		return
	}
	w.Header().Set("X-Token-Expires-At", claims.ExpiresAt.Time.Format(time.RFC3339))
	w.Header().Set("X-Token-Expires-In", left.String())
}

// validateTokenFormat performs basic token format validation
func validateTokenFormat(tokenString string) error {
	if len(tokenString) == 0 {
		return errors.New("token cannot be empty")
	}
	if len(tokenString) > 8192 { // 8KB limit
		return errors.New("token size exceeds maximum allowed")
	}
	// Basic JWT format validation (3 parts separated by dots)
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return errors.New("invalid JWT token format")
	}
	return nil
}

// AuthMiddleware validates JWT tokens and sets user context
func AuthMiddleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				SendErrorResponse(w, "Authorization header required", "MISSING_AUTH_HEADER", http.StatusUnauthorized)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				SendErrorResponse(w, "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				SendErrorResponse(w, "Token is required", "MISSING_TOKEN", http.StatusUnauthorized)
				return
			}
			if err := validateTokenFormat(tokenString); err != nil {
				SendErrorResponse(w, "Invalid token format: "+err.Error(), "INVALID_TOKEN_FORMAT", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateToken(tokenString)
			if err != nil {
				switch {
				case strings.Contains(err.Error(), "expired"):
					SendErrorResponse(w, "Token has expired", "TOKEN_EXPIRED", http.StatusUnauthorized)
				case strings.Contains(err.Error(), "signing method"):
					SendErrorResponse(w, "Invalid token signing method", "INVALID_SIGNING_METHOD", http.StatusUnauthorized)
				case strings.Contains(err.Error(), "malformed"):
					SendErrorResponse(w, "Token is malformed", "MALFORMED_TOKEN", http.StatusUnauthorized)
				default:
					SendErrorResponse(w, "Invalid or expired token", "INVALID_TOKEN", http.StatusUnauthorized)
				}
				return
			}

			if claims.Username() == "" {
				SendErrorResponse(w, "Missing subject in token", "INVALID_SUBJECT", http.StatusUnauthorized)
				return
			}
			if claims.CompanyName == "" {
				SendErrorResponse(w, "Missing company in token", "INVALID_COMPANY", http.StatusUnauthorized)
				return
			}
			if claims.Role == "" {
				SendErrorResponse(w, "No role assigned to user", "NO_ROLE", http.StatusUnauthorized)
				return
			}

			sendTokenExpirationWarning(w, claims)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// MustRole creates middleware that requires one of the given roles
func MustRole(requiredRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				SendErrorResponse(w, "Authentication required", "AUTHENTICATION_REQUIRED", http.StatusUnauthorized)
				return
			}
			if len(requiredRoles) == 0 {
				SendErrorResponse(w, "No roles specified for this endpoint", "NO_ROLES_SPECIFIED", http.StatusInternalServerError)
				return
			}
			if !claims.HasRole(requiredRoles...) {
				SendErrorResponse(w, "Insufficient permissions", "INSUFFICIENT_PERMISSIONS", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
