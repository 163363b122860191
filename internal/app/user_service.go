package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"saa-quiz-service/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService registers and authenticates learners.
type UserService struct {
	users  UserRepository
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewUserService(users UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:  users,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Register creates a user with zero counters. Names are unique.
func (s *UserService) Register(ctx context.Context, name, school, team, credential string) (domain.UserRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" || credential == "" {
		return domain.UserRecord{}, fmt.Errorf("%w: name and credential are required", domain.ErrInvalidInput)
	}
	user := domain.UserRecord{
		ID:         s.newID(),
		Name:       name,
		School:     strings.TrimSpace(school),
		Team:       strings.TrimSpace(team),
		Credential: credential,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.UserRecord{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("name", user.Name))
	return user.Public(), nil
}

// Login compares the credential verbatim and returns the user without it.
func (s *UserService) Login(ctx context.Context, name, credential string) (domain.UserRecord, error) {
	user, err := s.users.FindUserByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return domain.UserRecord{}, err
	}
	if user.Credential != credential {
		s.logger.Info("login rejected", zap.String("user_id", user.ID))
		return domain.UserRecord{}, domain.ErrInvalidCredentials
	}
	return user.Public(), nil
}

func (s *UserService) Get(ctx context.Context, userID string) (domain.UserRecord, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.UserRecord{}, err
	}
	return user.Public(), nil
}

// Delete is the administrative removal of a user and their daily and homework rows.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Error("delete user failed", zap.String("user_id", userID), zap.Error(err))
		}
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", userID))
	return nil
}
