package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ewbrowntech/atto-host/internal/auth"
	"github.com/ewbrowntech/atto-host/internal/database"
)

type SignupRequest struct {
	Username  string `json:"username" example:"uploader-bot"`
	Password  string `json:"password" example:"password123"`
	Automated bool   `json:"automated" example:"true"`
}

type SignupResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

type ErrorResponse struct {
	Err string `json:"err"`
}

// bcrypt rejects longer inputs, and an empty password is never acceptable.
const maxPasswordLength = 72

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Err: message})
}

// @Summary      Register a new account
// @Description  Creates a new user account. Only administrators may register accounts; set "automated" for service accounts that will authenticate with perpetual API keys.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        signupRequest  body      SignupRequest  true  "New account"
// @Success      200            {object}  SignupResponse
// @Failure      400            {string}  string "Invalid request body"
// @Failure      401            {string}  string "Unauthorized"
// @Failure      403            {string}  string "Forbidden"
// @Failure      500            {object}  ErrorResponse
// @Router       /users/signup [post]
func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" {
		writeError(w, http.StatusInternalServerError, "username is required")
		return
	}
	if req.Password == "" || len(req.Password) > maxPasswordLength {
		writeError(w, http.StatusInternalServerError, "password must be between 1 and 72 characters")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	admin := GetUserFromContext(r.Context())

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		user, err := q.CreateUser(r.Context(), database.CreateUserParams{
			Username:     req.Username,
			PasswordHash: passwordHash,
			Automated:    req.Automated,
		})
		if err != nil {
			return err
		}

		return q.LogEvent(r.Context(), admin.ID, "user_registered", map[string]interface{}{
			"username":  user.Username,
			"automated": user.Automated,
		})
	})

	if txErr != nil {
		if errors.Is(txErr, database.ErrDuplicateUsername) {
			writeError(w, http.StatusInternalServerError, txErr.Error())
			return
		}
		log.Printf("ERROR: Failed to register user %s: %v", req.Username, txErr)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SignupResponse{Success: true, Status: "Registration successful!"})
}

type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"password123"`
}

type TokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Status  string `json:"status,omitempty"`
}

// @Summary      Log in
// @Description  Authenticates a user and returns a session token valid for one hour.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        loginRequest   body      LoginRequest  true  "Login Credentials"
// @Success      200            {object}  TokenResponse
// @Failure      400            {string}  string "Invalid request body"
// @Failure      401            {string}  string "Invalid username or password"
// @Failure      500            {string}  string "Internal Server Error"
// @Router       /users/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateSessionJWT(user, s.config.JWT.Secret)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{Success: true, Token: token, Status: "Login successful!"})
}

// @Summary      Generate a perpetual API key
// @Description  Issues a non-expiring token for an automated account and stores its digest, invalidating any previously issued key for that account. The target account's credentials go in the body; the caller must be an administrator.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        loginRequest   body      LoginRequest  true  "Automated account credentials"
// @Success      200            {object}  TokenResponse
// @Failure      400            {string}  string "Invalid request body"
// @Failure      401            {string}  string "Invalid username or password"
// @Failure      403            {string}  string "Forbidden - not an automated account"
// @Failure      500            {string}  string "Internal Server Error"
// @Router       /users/generate-api-key [post]
func (s *Server) GenerateAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if !user.Automated {
		http.Error(w, "You may not generate perpetual keys for non-automated accounts!", http.StatusForbidden)
		return
	}

	token, err := auth.GeneratePerpetualJWT(user, s.config.JWT.Secret)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	admin := GetUserFromContext(r.Context())

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		if err := q.UpdateAPIKeyHash(r.Context(), user.ID, auth.APIKeyDigest(token)); err != nil {
			return err
		}

		return q.LogEvent(r.Context(), admin.ID, "api_key_rotated", map[string]interface{}{
			"username": user.Username,
		})
	})

	if txErr != nil {
		log.Printf("ERROR: Failed to rotate api key for user %s: %v", user.Username, txErr)
		http.Error(w, "Failed to store API key", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{Success: true, Token: token})
}
