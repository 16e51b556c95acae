package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notevault-server/internal/domain"
	"notevault-server/internal/session"
	"notevault-server/pkg/jwt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is what a successful login hands back: the cookie value and the
// signed token it resolves to.
type Session struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users         *UserService
	sessions      session.Store
	jwtSecret     string
	jwtExpiration time.Duration
	logger        *zap.SugaredLogger
}

func NewAuthService(users *UserService, sessions session.Store, jwtSecret string, jwtExp time.Duration, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExp,
		logger:        logger,
	}
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*Session, error) {
	user, err := s.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	token, err := jwt.GenerateToken(user.ID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	sess := &Session{
		ID:        uuid.New().String(),
		Token:     token,
		ExpiresAt: time.Now().Add(s.jwtExpiration),
	}

	if err := s.sessions.Save(ctx, sess.ID, token, s.jwtExpiration); err != nil {
		return nil, err
	}

	s.logger.Infow("User logged in", "user_id", user.ID)

	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

// ResolveSession returns the user id behind a session cookie value. A session
// whose token no longer resolves is dropped from the store.
func (s *AuthService) ResolveSession(ctx context.Context, sessionID string) (string, error) {
	token, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return "", ErrSessionMissing
	}
	if err != nil {
		return "", err
	}

	userID, err := s.ResolveToken(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		if derr := s.sessions.Delete(ctx, sessionID); derr != nil {
			s.logger.Warnw("Failed to drop dead session", "error", derr)
		}
	}
	return userID, err
}

// ResolveToken validates a signed token and checks that its account still
// exists, so tokens issued before a deletion stop working.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (string, error) {
	claims, err := jwt.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return "", ErrInvalidToken
	}

	if _, err := s.users.GetByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return claims.UserID, nil
}

func (s *AuthService) TTL() time.Duration {
	return s.jwtExpiration
}
