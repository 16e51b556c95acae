package handler

import (
	"errors"
	"net/http"

	"notevault-server/internal/domain"
	"notevault-server/internal/service"
	"notevault-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService *service.UserService
	validate    *validator.Validate
	logger      *zap.SugaredLogger
}

func NewUserHandler(userService *service.UserService, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    newValidator(),
		logger:      logger,
	}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()
	if !validate(w, h.validate, &req) {
		return
	}

	account, err := h.userService.Create(r.Context(), &req)
	if err != nil {
		h.fail(w, err, "Error creating user account")
		return
	}

	response.Created(w, "User account created successfully", account)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		response.ValidationFailed(w, []response.FieldError{{Field: "id", Message: "ID must be a valid UUID"}})
		return
	}

	var req domain.UpdateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()
	if !validate(w, h.validate, &req) {
		return
	}

	account, err := h.userService.Update(r.Context(), id, &req)
	if err != nil {
		h.fail(w, err, "Error updating user account")
		return
	}

	response.Success(w, "User account updated successfully", account)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		response.NotFound(w, "User not found")
		return
	}

	account, err := h.userService.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, err, "Error deleting user account")
		return
	}

	response.Success(w, "User account deleted successfully", account)
}

func (h *UserHandler) fail(w http.ResponseWriter, err error, internalMsg string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, service.ErrEmailTaken):
		response.Conflict(w, "Email is already registered")
	case errors.Is(err, service.ErrUsernameTaken):
		response.Conflict(w, "Username is already taken")
	default:
		h.logger.Errorw(internalMsg, "error", err)
		response.InternalError(w, internalMsg)
	}
}
