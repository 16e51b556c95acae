package handler

import (
	"errors"
	"net/http"

	"notevault-server/internal/domain"
	"notevault-server/internal/service"
	"notevault-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CookieOptions controls the session cookie issued on login.
type CookieOptions struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	authService *service.AuthService
	cookie      CookieOptions
	validate    *validator.Validate
	logger      *zap.SugaredLogger
}

func NewAuthHandler(authService *service.AuthService, cookie CookieOptions, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
		validate:    newValidator(),
		logger:      logger,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, h.validate, &req) {
		return
	}

	sess, err := h.authService.Login(r.Context(), &req)
	if errors.Is(err, service.ErrInvalidCredentials) {
		response.NotFound(w, "Invalid email or password, please check and try again")
		return
	}
	if err != nil {
		h.logger.Errorw("Login failed", "error", err)
		response.InternalError(w, "Error logging in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(h.authService.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	response.Success(w, "User logged in successfully", &domain.LoginResponse{Token: sess.Token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookie.Name); err == nil {
		if err := h.authService.Logout(r.Context(), c.Value); err != nil {
			h.logger.Errorw("Logout failed", "error", err)
			response.InternalError(w, "Error logging out")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	response.Success(w, "User logged out successfully", nil)
}
