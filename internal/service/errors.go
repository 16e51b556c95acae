package service

import "errors"

var (
	ErrNoteNotFound       = errors.New("note not found")
	ErrNoteDeleted        = errors.New("note already deleted")
	ErrNoNotesFound       = errors.New("no notes found")
	ErrEmptyQuery         = errors.New("search query is required")
	ErrEmptyContent       = errors.New("title and description are required")
	ErrNoteBusy           = errors.New("note is being modified concurrently")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionMissing     = errors.New("session missing or expired")
	ErrInvalidToken       = errors.New("invalid token")
)
