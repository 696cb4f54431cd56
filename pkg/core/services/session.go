package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

const defaultSessionIssuer = "shortly"

// SessionConfig configures session token signing.
type SessionConfig struct {
	Secret string
	Expiry time.Duration // defaults to 24h
	Issuer string
}

type sessionClaims struct {
	UID      int64  `json:"uid"`
	Username string `json:"username"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies HS256 session tokens.
type SessionManager struct {
	config SessionConfig
}

func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultSessionIssuer
	}
	return &SessionManager{config: cfg}, nil
}

// Expiry is the lifetime of issued tokens.
func (m *SessionManager) Expiry() time.Duration {
	return m.config.Expiry
}

func (m *SessionManager) Issue(user *domain.User) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		UID:      user.ID,
		Username: user.Username,
		Provider: user.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", user.ID),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.Expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", errors.Wrap(err, "sign session")
	}
	return signed, nil
}

func (m *SessionManager) Verify(token string) (*domain.Principal, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(m.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
	)
	if err != nil {
		return nil, errors.Wrap(domain.ErrUnauthorized, err.Error())
	}
	if !parsed.Valid {
		return nil, domain.ErrUnauthorized
	}

	return &domain.Principal{
		UserID:   claims.UID,
		Username: claims.Username,
		Provider: claims.Provider,
	}, nil
}

var _ ports.SessionIssuer = (*SessionManager)(nil)
