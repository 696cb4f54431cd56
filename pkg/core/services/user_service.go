package services

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

const bcryptCost = 10

type credentials struct {
	Username string `validate:"required,min=3,max=64,printascii,excludes=/"`
	Password string `validate:"required,min=6,max=72"`
}

type UserService struct {
	repo     ports.UserRepository
	validate *validator.Validate
	logger   *zap.Logger
}

func NewUserService(repo ports.UserRepository, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{repo: repo, validate: validator.New(), logger: log}
}

// Signup creates a local account with a bcrypt hashed password.
func (s *UserService) Signup(ctx context.Context, username, password string) (*domain.User, error) {
	if err := s.validate.Struct(credentials{Username: username, Password: password}); err != nil {
		return nil, errors.Wrap(domain.ErrInvalidInput, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	user := &domain.User{
		Username: username,
		Password: string(hash),
		Provider: domain.ProviderLocal,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, errors.Wrapf(domain.ErrUserExists, "%q", username)
		}
		return nil, err
	}

	s.logger.Info("user signed up", zap.Int64("uid", user.ID), zap.String("username", username))
	return user, nil
}

// Login checks a local account's password. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Provider != domain.ProviderLocal || user.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// UpsertOAuthUser returns the account bound to (provider, providerID),
// creating it on first login.
func (s *UserService) UpsertOAuthUser(ctx context.Context, provider, providerID, username string) (*domain.User, error) {
	user, err := s.repo.GetUserByProvider(ctx, provider, providerID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user = &domain.User{
		Username:   provider + "/" + username,
		Provider:   provider,
		ProviderID: providerID,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, domain.ErrDuplicate) {
			return nil, err
		}
		// concurrent first login for the same identity
		return s.repo.GetUserByProvider(ctx, provider, providerID)
	}

	s.logger.Info("oauth user created", zap.String("provider", provider), zap.String("username", user.Username))
	return user, nil
}

var _ ports.UserService = (*UserService)(nil)
