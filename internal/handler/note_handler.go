package handler

import (
	"errors"
	"net/http"

	"notevault-server/internal/domain"
	"notevault-server/internal/middleware"
	"notevault-server/internal/service"
	"notevault-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewNoteHandler(service *service.NoteService, logger *zap.SugaredLogger) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.List(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.internal(w, "Error retrieving notes", err)
		return
	}

	response.Success(w, "Notes retrieved successfully", notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.GetByID(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "Note not found", "Error retrieving note")
		return
	}

	response.Success(w, "Note retrieved successfully", note)
}

func (h *NoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()["query"]
	if len(values) > 1 {
		response.BadRequest(w, "Query must be a single value")
		return
	}

	var query string
	if len(values) == 1 {
		query = values[0]
	}

	notes, err := h.service.Search(r.Context(), middleware.GetUserID(r), query)
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		response.ValidationFailed(w, []response.FieldError{{Field: "query", Message: "Query is required"}})
		return
	case errors.Is(err, service.ErrNoNotesFound):
		response.NotFound(w, "No notes found")
		return
	case err != nil:
		h.internal(w, "Error searching notes", err)
		return
	}

	response.Success(w, "Notes found successfully", notes)
}

func (h *NoteHandler) History(w http.ResponseWriter, r *http.Request) {
	changes, err := h.service.History(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "Note not found", "Error retrieving note history")
		return
	}

	response.Success(w, "Note history retrieved successfully", changes)
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.content(w, r)
	if !ok {
		return
	}

	note, err := h.service.Create(r.Context(), middleware.GetUserID(r), req)
	if err != nil {
		h.fail(w, err, "", "Error creating note")
		return
	}

	response.Created(w, "Note created successfully", note)
}

func (h *NoteHandler) AppendHistory(w http.ResponseWriter, r *http.Request) {
	req, ok := h.content(w, r)
	if !ok {
		return
	}

	note, err := h.service.AppendHistory(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"], req)
	if err != nil {
		h.fail(w, err, "Note already deleted, sorry you cannot edit a deleted note", "Error creating note history")
		return
	}

	response.Success(w, "Note history created successfully", note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.content(w, r)
	if !ok {
		return
	}

	note, err := h.service.Update(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"], req)
	if err != nil {
		h.fail(w, err, "Note already deleted, sorry you cannot edit a deleted note", "Error updating note")
		return
	}

	response.Success(w, "Note updated successfully", note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Delete(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "Note already deleted", "Error deleting note")
		return
	}

	response.Success(w, "Note deleted successfully", note)
}

func (h *NoteHandler) content(w http.ResponseWriter, r *http.Request) (*domain.NoteContentRequest, bool) {
	var req domain.NoteContentRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}

	req.Normalize()
	if !validate(w, h.validate, &req) {
		return nil, false
	}
	return &req, true
}

// fail maps service errors onto the envelope. deletedMsg is used when the
// note exists but has been soft-deleted.
func (h *NoteHandler) fail(w http.ResponseWriter, err error, deletedMsg, internalMsg string) {
	switch {
	case errors.Is(err, service.ErrNoteNotFound):
		response.NotFound(w, "Note not found")
	case errors.Is(err, service.ErrNoteDeleted):
		if deletedMsg == "" {
			deletedMsg = "Note not found"
		}
		response.NotFound(w, deletedMsg)
	case errors.Is(err, service.ErrEmptyContent):
		response.ValidationFailed(w, []response.FieldError{{Field: "title", Message: "Title is required"}})
	case errors.Is(err, service.ErrNoteBusy):
		response.Conflict(w, "Note is being modified, please try again")
	default:
		h.internal(w, internalMsg, err)
	}
}

func (h *NoteHandler) internal(w http.ResponseWriter, msg string, err error) {
	h.logger.Errorw(msg, "error", err)
	response.InternalError(w, msg)
}
