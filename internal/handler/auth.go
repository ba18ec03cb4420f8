package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/rosegold-gallery/storefront/internal/user"
)

type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,min=2"`
	LastName  string `json:"last_name" validate:"required,min=2"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	City      string `json:"city" validate:"required"`
	Street    string `json:"street" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// AuthHandler owns registration and login, the two routes that mint
// identity tokens.
type AuthHandler struct {
	svc      user.Service
	validate *validator.Validate
}

func NewAuthHandler(svc user.Service) *AuthHandler {
	return &AuthHandler{svc: svc, validate: validator.New()}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	u := &user.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		City:      req.City,
		Street:    req.Street,
	}

	created, err := h.svc.Register(r.Context(), u, req.Password)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to register user")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	u, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, user.ErrInvalidCredentials) {
			log.Error().Err(err).Msg("handler: login failed")
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, LoginResponse{Token: token, User: u})
}
