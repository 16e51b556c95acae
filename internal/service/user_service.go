package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notevault-server/internal/domain"
	"notevault-server/internal/repository"
	"notevault-server/pkg/hash"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoteHider soft-deletes the notes of a removed account.
type NoteHider interface {
	HideAllForOwner(ctx context.Context, ownerID string) (int, error)
}

type UserService struct {
	userRepo repository.UserRepository
	notes    NoteHider
	logger   *zap.SugaredLogger
}

func NewUserService(userRepo repository.UserRepository, notes NoteHider, logger *zap.SugaredLogger) *UserService {
	return &UserService{
		userRepo: userRepo,
		notes:    notes,
		logger:   logger,
	}
}

func (s *UserService) Create(ctx context.Context, req *domain.CreateAccountRequest) (*domain.AccountResponse, error) {
	hashedPassword, err := hash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.New().String(),
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.TrimSpace(req.Email),
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, accountError("create user", err)
	}

	s.logger.Infow("Account created", "user_id", user.ID)

	return domain.NewAccountResponse(user), nil
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	ok, err := hash.Matches(user.Password, password)
	if err != nil {
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, userID string) (*domain.AccountResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, accountError("find user", err)
	}
	return domain.NewAccountResponse(user), nil
}

func (s *UserService) Update(ctx context.Context, userID string, req *domain.UpdateAccountRequest) (*domain.AccountResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Password != nil {
		hashedPassword, err := hash.Hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = hashedPassword
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, accountError("update user", err)
	}

	return domain.NewAccountResponse(user), nil
}

// Delete removes the account and hides every note it owns. The account is
// gone once the repository delete succeeds, so a failure to hide its notes is
// logged rather than reported to the caller.
func (s *UserService) Delete(ctx context.Context, userID string) (*domain.AccountResponse, error) {
	user, err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		return nil, accountError("delete user", err)
	}

	if s.notes != nil {
		hidden, err := s.notes.HideAllForOwner(ctx, userID)
		if err != nil {
			s.logger.Errorw("Failed to hide notes of deleted account", "user_id", userID, "hidden", hidden, "error", err)
		} else {
			s.logger.Infow("Account deleted", "user_id", userID, "hidden_notes", hidden)
		}
	}

	return domain.NewAccountResponse(user), nil
}

func accountError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, repository.ErrUsernameTaken):
		return ErrUsernameTaken
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
