package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"scheduling-api/internal/models"
)

// MinSecretLength is the shortest accepted HMAC secret
const MinSecretLength = 32

// Claims represents the JWT claims structure. The subject is the username.
type Claims struct {
	CompanyName string `json:"company_name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Username returns the token subject
func (c *Claims) Username() string {
	return c.Subject
}

// JWTManager handles JWT operations
type JWTManager struct {
	secret   string
	issuer   string
	audience string
	expiry   time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret, issuer, audience string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
	}
}

// ValidateConfig checks the manager can issue verifiable tokens
func (j *JWTManager) ValidateConfig() error {
	if len(j.secret) < MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d characters", MinSecretLength)
	}
	if j.issuer == "" {
		return errors.New("JWT issuer is required")
	}
	if j.audience == "" {
		return errors.New("JWT audience is required")
	}
	if j.expiry <= 0 {
		return errors.New("JWT expiry must be positive")
	}
	return nil
}

// GenerateToken creates a new JWT token
func (j *JWTManager) GenerateToken(username, companyName, role string) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}
	if companyName == "" {
		return "", errors.New("company name is required")
	}
	if !models.IsValidRole(role) {
		return "", fmt.Errorf("invalid role %q", role)
	}

	now := time.Now()
	claims := &Claims{
		CompanyName: companyName,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Audience:  []string{j.audience},
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secret))
}

// ValidateToken validates and parses a JWT token
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.secret), nil
	}, jwt.WithIssuer(j.issuer), jwt.WithAudience(j.audience))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// HasRole checks if the user holds any of the required roles
func (c *Claims) HasRole(requiredRoles ...string) bool {
	for _, required := range requiredRoles {
		if c.Role == required {
			return true
		}
	}
	return false
}

// IsExpiringSoon reports whether the token expires within d
func (c *Claims) IsExpiringSoon(d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Until(c.ExpiresAt.Time) <= d
}
