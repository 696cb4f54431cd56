package gormdb

import (
	"context"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
)

func toLink(m *linkModel) *domain.Link {
	var l domain.Link
	_ = copier.Copy(&l, m)
	return &l
}

func (r *Repository) Create(ctx context.Context, link *domain.Link) error {
	m := linkModel{URLHash: hashURL(link.URL)}
	if err := copier.Copy(&m, link); err != nil {
		return errors.Wrap(err, "copy link")
	}
	m.Title = truncate(m.Title, 512)
	m.BaseURL = truncate(m.BaseURL, 255)

	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return errors.Wrapf(domain.ErrDuplicate, "create link %q", link.Code)
		}
		return persistErr("create link", err)
	}

	link.ID = m.ID
	link.Title = m.Title
	link.BaseURL = m.BaseURL
	link.CreatedAt = m.CreatedAt
	link.UpdatedAt = m.UpdatedAt
	return nil
}

// GetByCode matches code exactly; dialects with case-insensitive
// collations are filtered again in Go.
func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Link, error) {
	var m linkModel
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("get link by code", err)
	}
	if m.Code != code {
		return nil, domain.ErrNotFound
	}
	return toLink(&m), nil
}

func (r *Repository) GetByURL(ctx context.Context, url string) (*domain.Link, error) {
	var m linkModel
	err := r.db.WithContext(ctx).Where("url_hash = ?", hashURL(url)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("get link by url", err)
	}
	if m.URL != url {
		return nil, domain.ErrNotFound
	}
	return toLink(&m), nil
}

func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&linkModel{}).Where("code = ?", code).Count(&n).Error; err != nil {
		return false, persistErr("check code", err)
	}
	return n > 0, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]domain.Link, error) {
	var rows []linkModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, persistErr("list links", err)
	}

	links := make([]domain.Link, 0, len(rows))
	for i := range rows {
		links = append(links, *toLink(&rows[i]))
	}
	return links, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&linkModel{}).Count(&n).Error; err != nil {
		return 0, persistErr("count links", err)
	}
	return n, nil
}

func (r *Repository) Dump(ctx context.Context) ([]domain.Link, error) {
	var rows []linkModel
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, persistErr("dump links", err)
	}

	links := make([]domain.Link, 0, len(rows))
	for i := range rows {
		links = append(links, *toLink(&rows[i]))
	}
	return links, nil
}

// RecordClick inserts the click and bumps the link counter in one
// transaction. The increment is done by the database, never read back and
// rewritten, so concurrent visits cannot lose updates.
func (r *Repository) RecordClick(ctx context.Context, click *domain.Click) error {
	m := clickModel{
		LinkID:    click.LinkID,
		Referer:   truncate(click.Referer, 512),
		UserAgent: truncate(click.UserAgent, 512),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Insert click record
		if err := tx.Create(&m).Error; err != nil {
			return err
		}

		// 2. Increment link counter (atomic)
		res := tx.Model(&linkModel{}).
			Where("id = ?", click.LinkID).
			UpdateColumn("visits", gorm.Expr("visits + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err != nil {
		return persistErr("record click", err)
	}

	click.ID = m.ID
	click.CreatedAt = m.CreatedAt
	return nil
}

func (r *Repository) CountClicks(ctx context.Context, linkID int64) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&clickModel{}).Where("link_id = ?", linkID).Count(&n).Error; err != nil {
		return 0, persistErr("count clicks", err)
	}
	return n, nil
}

func (r *Repository) FindVisitDrift(ctx context.Context) ([]domain.VisitDrift, error) {
	var drift []domain.VisitDrift
	err := r.db.WithContext(ctx).
		Table("urls AS u").
		Select("u.id AS link_id, u.code AS code, u.visits AS visits, COUNT(c.id) AS clicks").
		Joins("LEFT JOIN clicks c ON c.link_id = u.id").
		Group("u.id, u.code, u.visits").
		Having("COUNT(c.id) <> u.visits").
		Order("u.id").
		Scan(&drift).Error
	if err != nil {
		return nil, persistErr("find visit drift", err)
	}
	return drift, nil
}

// SyncVisits sets the counter of one link to its click row count.
func (r *Repository) SyncVisits(ctx context.Context, linkID int64) error {
	res := r.db.WithContext(ctx).Model(&linkModel{}).
		Where("id = ?", linkID).
		UpdateColumn("visits", gorm.Expr("(SELECT COUNT(*) FROM clicks WHERE clicks.link_id = ?)", linkID))
	if res.Error != nil {
		return persistErr("sync visits", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
