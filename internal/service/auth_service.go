package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fungiscan/internal/apperr"
	"fungiscan/internal/models"
	"fungiscan/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (*Session, error)
	Logout(ctx context.Context, token string) error
	// Resolve returns the username behind a session token.
	Resolve(ctx context.Context, token string) (string, error)
	CountUsers(ctx context.Context) (int64, error)
}

type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type authService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	sessionTTL time.Duration
	hashCost   int
	log        *zap.Logger
	now        func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	sessionTTL time.Duration,
	log *zap.Logger,
) AuthService {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &authService{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
		log:        log,
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return apperr.Validation("username and password are required")
	}
	if err := validateUsername(username); err != nil {
		return err
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return apperr.ErrConflict
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return apperr.Validation("password is too long")
	}
	if err != nil {
		return err
	}

	if err := s.users.Create(ctx, &models.User{Username: username, PasswordHash: string(hash)}); err != nil {
		return err
	}

	s.log.Info("user registered", zap.String("username", username))
	return nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	session := &Session{
		Token:     uuid.NewString(),
		Username:  user.Username,
		ExpiresAt: s.now().Add(s.sessionTTL).UTC(),
	}
	if err := s.sessions.Create(ctx, session.Token, session.Username, s.sessionTTL); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *authService) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperr.ErrInvalidCredentials
	}
	username, err := s.sessions.Get(ctx, token)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", apperr.ErrInvalidCredentials
	}
	return username, err
}

func (s *authService) CountUsers(ctx context.Context) (int64, error) {
	return s.users.Count(ctx)
}
