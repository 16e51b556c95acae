package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notevault-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type UserRepository interface {
	// Create stores a new user. ErrEmailTaken or ErrUsernameTaken is returned
	// when another account already holds either value.
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// Update writes user conditionally on user.Rev, moving uniqueness claims
	// when the email or username changed.
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) (*domain.User, error)
}

const docTypeClaim = "claim"

// claim reserves a unique value for one user. CouchDB refuses a second create
// of the same document id, which makes the reservation atomic.
type claim struct {
	Rev    string `json:"_rev,omitempty"`
	Type   string `json:"type"`
	Kind   string `json:"kind"`
	UserID string `json:"user_id"`
}

func userDocID(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func claimDocID(kind, value string) string {
	return fmt.Sprintf("claim:%s:%s", kind, normalizeClaim(value))
}

func normalizeClaim(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

type userRepository struct {
	client *kivik.Client
	dbName string
}

func NewUserRepository(client *kivik.Client, dbName string) UserRepository {
	return &userRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.claim(ctx, "email", user.Email, user.ID); err != nil {
		return err
	}

	if err := r.claim(ctx, "username", user.Username, user.ID); err != nil {
		r.release(ctx, "email", user.Email, user.ID)
		return err
	}

	db := r.client.DB(r.dbName)

	user.Type = domain.DocTypeUser
	rev, err := db.Put(ctx, userDocID(user.ID), user)
	if err != nil {
		r.release(ctx, "email", user.Email, user.ID)
		r.release(ctx, "username", user.Username, user.ID)
		return classify("create user", err)
	}

	user.Rev = rev
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	var user domain.User
	if err := db.Get(ctx, userDocID(id)).ScanDoc(&user); err != nil {
		return nil, classify("find user by ID", err)
	}

	if user.Type != domain.DocTypeUser {
		return nil, ErrNotFound
	}

	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	var c claim
	if err := db.Get(ctx, claimDocID("email", email)).ScanDoc(&c); err != nil {
		return nil, classify("find user by email", err)
	}

	return r.FindByID(ctx, c.UserID)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	current, err := r.FindByID(ctx, user.ID)
	if err != nil {
		return err
	}

	emailChanged := normalizeClaim(current.Email) != normalizeClaim(user.Email)
	usernameChanged := normalizeClaim(current.Username) != normalizeClaim(user.Username)

	if emailChanged {
		if err := r.claim(ctx, "email", user.Email, user.ID); err != nil {
			return err
		}
	}

	if usernameChanged {
		if err := r.claim(ctx, "username", user.Username, user.ID); err != nil {
			if emailChanged {
				r.release(ctx, "email", user.Email, user.ID)
			}
			return err
		}
	}

	db := r.client.DB(r.dbName)

	user.Type = domain.DocTypeUser
	rev, err := db.Put(ctx, userDocID(user.ID), user)
	if err != nil {
		if emailChanged {
			r.release(ctx, "email", user.Email, user.ID)
		}
		if usernameChanged {
			r.release(ctx, "username", user.Username, user.ID)
		}
		return classify("update user", err)
	}
	user.Rev = rev

	if emailChanged {
		r.release(ctx, "email", current.Email, user.ID)
	}
	if usernameChanged {
		r.release(ctx, "username", current.Username, user.ID)
	}

	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) (*domain.User, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	db := r.client.DB(r.dbName)
	if _, err := db.Delete(ctx, userDocID(id), user.Rev); err != nil {
		return nil, classify("delete user", err)
	}

	r.release(ctx, "email", user.Email, user.ID)
	r.release(ctx, "username", user.Username, user.ID)

	return user, nil
}

func (r *userRepository) claim(ctx context.Context, kind, value, userID string) error {
	db := r.client.DB(r.dbName)

	_, err := db.Put(ctx, claimDocID(kind, value), &claim{
		Type:   docTypeClaim,
		Kind:   kind,
		UserID: userID,
	})
	err = classify("claim "+kind, err)
	if errors.Is(err, ErrRevisionConflict) {
		if kind == "email" {
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}

	return err
}

// release drops a claim held by userID. Failures leave a stale claim behind,
// which only blocks reuse of that value; they are not surfaced.
func (r *userRepository) release(ctx context.Context, kind, value, userID string) {
	db := r.client.DB(r.dbName)
	docID := claimDocID(kind, value)

	var c claim
	if err := db.Get(ctx, docID).ScanDoc(&c); err != nil {
		return
	}
	if c.UserID != userID {
		return
	}

	db.Delete(ctx, docID, c.Rev)
}
