package internal

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"scheduling-api/internal/auth"
	"scheduling-api/internal/models"
	"scheduling-api/internal/scheduling"
	"scheduling-api/internal/store"
)

const minPasswordLength = 8

// registerUser creates an account for a company. The username is an email.
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	username := scheduling.NormalizeEmail(req.Username)
	company := strings.TrimSpace(req.CompanyName)
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = "member"
	}

	if !scheduling.ValidEmail(username) {
		auth.SendErrorResponse(w, "username must be a valid email address", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	if company == "" {
		auth.SendErrorResponse(w, "company_name is required", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	if len(req.Password) < minPasswordLength {
		auth.SendErrorResponse(w, "password must be at least 8 characters", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	if !models.IsValidRole(role) {
		auth.SendErrorResponse(w, "Invalid role provided", "INVALID_INPUT", http.StatusBadRequest)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, err)
		return
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		CompanyName:  company,
		Role:         role,
	}
	if err := s.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			auth.SendErrorResponse(w, "User with this username already exists", "DUPLICATE_USER", http.StatusConflict)
			return
		}
		writeError(w, err)
		return
	}

	log.Printf("registered user %s for company %s", user.Username, user.CompanyName)
	writeJSON(w, http.StatusCreated, user.Redacted())
}

// loginUser handles user authentication
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		auth.SendErrorResponse(w, "Username and password are required", "INVALID_INPUT", http.StatusBadRequest)
		return
	}

	user, err := s.Store.FindUser(r.Context(), scheduling.NormalizeEmail(req.Username))
	if errors.Is(err, store.ErrNotFound) {
		auth.SendErrorResponse(w, "Invalid credentials", "INVALID_CREDENTIALS", http.StatusUnauthorized)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		auth.SendErrorResponse(w, "Invalid credentials", "INVALID_CREDENTIALS", http.StatusUnauthorized)
		return
	}

	token, err := s.JWTManager.GenerateToken(user.Username, user.CompanyName, user.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token: token,
		User:  user.Redacted(),
	})
}

// getUserProfile returns the caller's account
func (s *Server) getUserProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.Store.FindUser(r.Context(), auth.UsernameFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Redacted())
}
