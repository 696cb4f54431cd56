package gormdb

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
)

func (r *Repository) toUser(m *userModel) *domain.User {
	u := &domain.User{
		ID:        m.ID,
		Username:  m.Username,
		Password:  m.Password,
		Provider:  m.Provider,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.ProviderID != nil {
		u.ProviderID = *m.ProviderID
	}
	return u
}

func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	m := userModel{
		Username: user.Username,
		Password: user.Password,
		Provider: user.Provider,
	}
	if m.Provider == "" {
		m.Provider = domain.ProviderLocal
	}
	if user.ProviderID != "" {
		id := user.ProviderID
		m.ProviderID = &id
	}

	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return errors.Wrapf(domain.ErrDuplicate, "create user %q", user.Username)
		}
		return persistErr("create user", err)
	}

	user.ID = m.ID
	user.Provider = m.Provider
	user.CreatedAt = m.CreatedAt
	user.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("get user", err)
	}
	return r.toUser(&m), nil
}

func (r *Repository) GetUserByProvider(ctx context.Context, provider, providerID string) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("get user by provider", err)
	}
	return r.toUser(&m), nil
}
