package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"showtracker/internal/auth"
	"showtracker/models"
	"showtracker/services/users"
)

type userService interface {
	Register(ctx context.Context, username, email, pass, preferredName string) (*models.User, error)
	Authenticate(ctx context.Context, login, pass string) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, email, preferredName string) (*models.User, error)
	ChangePassword(ctx context.Context, id int64, current, next string) error
	Delete(ctx context.Context, id int64) error
}

var _ userService = (*users.Service)(nil)

// AuthHandler serves registration, login and the /users/me endpoints.
type AuthHandler struct {
	users  userService
	issuer *auth.TokenIssuer
	log    *logrus.Logger
}

func NewAuthHandler(users userService, issuer *auth.TokenIssuer, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer, log: log}
}

type registerRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	PreferredName string `json:"preferredName,omitempty"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Register(r.Context(), body.Username, body.Email, body.Password, body.PreferredName)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}

	token, err := h.issuer.Generate(user)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), body.Login, body.Password)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}

	token, err := h.issuer.Generate(user)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), auth.GetUserID(r))
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Email         string `json:"email,omitempty"`
	PreferredName string `json:"preferredName,omitempty"`
}

func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var body updateProfileRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), auth.GetUserID(r), body.Email, body.PreferredName)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.users.ChangePassword(r.Context(), auth.GetUserID(r), body.CurrentPassword, body.NewPassword); err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), auth.GetUserID(r)); err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
