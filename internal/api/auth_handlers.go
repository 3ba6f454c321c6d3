package api

import (
	"errors"
	"net/http"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/coursepay/internal/auth"
	"github.com/example/coursepay/internal/domain/user"
	"github.com/example/coursepay/internal/infrastructure/store"
	"github.com/example/coursepay/internal/validation"
)

// AuthHandlers serves registration, login and token refresh.
type AuthHandlers struct {
	ledger     store.Ledger
	jwtService *auth.JWTService
	validate   *validatorv10.Validate
	log        *logrus.Entry
}

func NewAuthHandlers(ledger store.Ledger, jwtService *auth.JWTService, log *logrus.Entry) *AuthHandlers {
	return &AuthHandlers{
		ledger:     ledger,
		jwtService: jwtService,
		validate:   validation.New(),
		log:        log,
	}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Country   string `json:"country"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type tokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type authResponse struct {
	User   *user.User `json:"user"`
	Tokens tokenPair  `json:"tokens"`
}

// Register creates a student account and returns a token pair.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := validation.DecodeAndValidate(r, h.validate, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.ledger.UserByEmail(r.Context(), req.Email)
	if err != nil {
		h.log.WithError(err).Error("register email lookup failed")
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.WithError(err).Error("password hashing failed")
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	now := time.Now().UTC()
	newUser := &user.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Country:      req.Country,
		Role:         user.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.ledger.CreateUser(r.Context(), newUser); err != nil {
		h.log.WithError(err).Error("user creation failed")
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.respondWithTokens(w, http.StatusCreated, newUser)
}

// Login authenticates by email and password and returns a token pair.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := validation.DecodeAndValidate(r, h.validate, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.ledger.UserByEmail(r.Context(), req.Email)
	if err != nil {
		h.log.WithError(err).Error("login email lookup failed")
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if u == nil || auth.VerifyPassword(u.PasswordHash, req.Password) != nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.respondWithTokens(w, http.StatusOK, u)
}

// Refresh exchanges a valid refresh token for a fresh token pair.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := validation.DecodeAndValidate(r, h.validate, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	u, err := h.ledger.UserByID(r.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("refresh user lookup failed")
		respondError(w, http.StatusInternalServerError, "token refresh failed")
		return
	}
	if u == nil {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	h.respondWithTokens(w, http.StatusOK, u)
}

func (h *AuthHandlers) respondWithTokens(w http.ResponseWriter, status int, u *user.User) {
	accessToken, expiresAt, err := h.jwtService.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		h.log.WithError(err).Error("access token generation failed")
		respondError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	refreshToken, _, err := h.jwtService.GenerateRefreshToken(u.ID)
	if err != nil {
		h.log.WithError(err).Error("refresh token generation failed")
		respondError(w, http.StatusInternalServerError, "token generation failed")
		return
	}

	respondJSON(w, status, authResponse{
		User: u,
		Tokens: tokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    expiresAt,
		},
	})
}
