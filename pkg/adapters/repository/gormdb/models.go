package gormdb

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// linkModel is the row layout of the urls table. URLHash carries the
// uniqueness of url so the constraint stays indexable on every dialect.
type linkModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	URL       string    `gorm:"column:url;type:text;not null"`
	URLHash   string    `gorm:"column:url_hash;size:40;not null;uniqueIndex"`
	Title     string    `gorm:"size:512"`
	BaseURL   string    `gorm:"column:base_url;size:255"`
	Code      string    `gorm:"size:64;not null;uniqueIndex"`
	Visits    int64     `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (linkModel) TableName() string { return "urls" }

type clickModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	LinkID    int64  `gorm:"not null;index"`
	Referer   string `gorm:"size:512"`
	UserAgent string `gorm:"size:512"`
	CreatedAt time.Time
}

func (clickModel) TableName() string { return "clicks" }

type userModel struct {
	ID         int64   `gorm:"primaryKey;autoIncrement"`
	Username   string  `gorm:"size:120;not null;uniqueIndex"`
	Password   string  `gorm:"size:255"`
	Provider   string  `gorm:"size:20;not null;uniqueIndex:idx_users_identity"`
	ProviderID *string `gorm:"size:120;uniqueIndex:idx_users_identity"` // NULL for local accounts
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (userModel) TableName() string { return "users" }

func hashURL(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
