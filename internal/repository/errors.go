package repository

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrRevisionConflict = errors.New("document revision conflict")
	ErrEmailTaken       = errors.New("email already registered")
	ErrUsernameTaken    = errors.New("username already taken")
)

// classify maps CouchDB status codes onto repository errors and wraps the rest.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	switch kivik.HTTPStatus(err) {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrRevisionConflict
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}
