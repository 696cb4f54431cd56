package services

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
	"github.com/wadjakorntonsri/shortly/pkg/metrics"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

const (
	defaultMaxAttempts  = 5
	defaultTitleTimeout = 5 * time.Second
	defaultPageSize     = 10
	maxPageSize         = 100
)

// reservedCodes are paths served by fixed routes; a link with one of these
// codes could never be reached.
var reservedCodes = map[string]struct{}{
	"auth":    {},
	"healthz": {},
	"links":   {},
	"login":   {},
	"logout":  {},
	"metrics": {},
	"signup":  {},
}

// LinkServiceOptions tune link creation.
type LinkServiceOptions struct {
	MaxAttempts  int
	TitleTimeout time.Duration
}

type LinkService struct {
	repo     ports.LinkRepository
	titles   ports.TitleFetcher
	codes    ports.CodeGenerator
	validate *validator.Validate
	logger   *zap.Logger

	maxAttempts  int
	titleTimeout time.Duration

	// collapses concurrent submissions of the same URL
	group singleflight.Group
}

func NewLinkService(repo ports.LinkRepository, titles ports.TitleFetcher, codes ports.CodeGenerator, opts LinkServiceOptions, log *zap.Logger) *LinkService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.TitleTimeout <= 0 {
		opts.TitleTimeout = defaultTitleTimeout
	}
	return &LinkService{
		repo:         repo,
		titles:       titles,
		codes:        codes,
		validate:     validator.New(),
		logger:       log,
		maxAttempts:  opts.MaxAttempts,
		titleTimeout: opts.TitleTimeout,
	}
}

// Resolve looks a code up exactly as received. A miss is domain.ErrNotFound.
func (s *LinkService) Resolve(ctx context.Context, code string) (*domain.Link, error) {
	return s.repo.GetByCode(ctx, code)
}

// RecordClick stores one visit for link and returns it once the click row
// and the counter increment are committed.
func (s *LinkService) RecordClick(ctx context.Context, link *domain.Link, meta domain.VisitMeta) (*domain.Click, error) {
	click := &domain.Click{
		LinkID:    link.ID,
		Referer:   meta.Referer,
		UserAgent: meta.UserAgent,
	}
	if err := s.repo.RecordClick(ctx, click); err != nil {
		return nil, err
	}
	link.Visits++
	return click, nil
}

// CreateOrFetch returns the link for rawURL, creating it when the URL has
// never been submitted. baseURL is the origin the request came from.
func (s *LinkService) CreateOrFetch(ctx context.Context, rawURL, baseURL string) (*domain.Link, error) {
	if err := s.validate.Var(rawURL, "required,http_url"); err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidURL, "%q", rawURL)
	}

	existing, err := s.repo.GetByURL(ctx, rawURL)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	v, err, shared := s.group.Do(rawURL, func() (interface{}, error) {
		return s.create(ctx, rawURL, baseURL)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("joined in-flight creation", zap.String("url", rawURL))
	}

	link := *v.(*domain.Link)
	return &link, nil
}

func (s *LinkService) create(ctx context.Context, rawURL, baseURL string) (*domain.Link, error) {
	titleCtx, cancel := context.WithTimeout(ctx, s.titleTimeout)
	defer cancel()

	title, err := s.titles.FetchTitle(titleCtx, rawURL)
	if err != nil {
		metrics.TitleFetchFailures.Inc()
		s.logger.Warn("title fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, errors.Wrapf(domain.ErrTitleFetch, "%s: %v", rawURL, err)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := s.codes.Generate(rawURL, attempt)
		if err != nil {
			return nil, errors.Wrap(err, "generate code")
		}

		if _, ok := reservedCodes[code]; ok {
			metrics.CodeCollisions.Inc()
			continue
		}
		taken, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			metrics.CodeCollisions.Inc()
			continue
		}

		link := &domain.Link{
			URL:     rawURL,
			Title:   title,
			BaseURL: baseURL,
			Code:    code,
		}
		err = s.repo.Create(ctx, link)
		if err == nil {
			metrics.LinksCreated.Inc()
			s.logger.Info("link created", zap.String("code", link.Code), zap.String("url", link.URL))
			return link, nil
		}
		if !errors.Is(err, domain.ErrDuplicate) {
			return nil, err
		}

		// Either the URL was stored by another writer or the code was
		// taken between the check and the insert.
		winner, gerr := s.repo.GetByURL(ctx, rawURL)
		if gerr == nil {
			return winner, nil
		}
		if !errors.Is(gerr, domain.ErrNotFound) {
			return nil, gerr
		}
		metrics.CodeCollisions.Inc()
	}

	s.logger.Error("short code space exhausted", zap.String("url", rawURL), zap.Int("attempts", s.maxAttempts))
	return nil, errors.Wrapf(domain.ErrCodeExhausted, "after %d attempts", s.maxAttempts)
}

func (s *LinkService) GetByCode(ctx context.Context, code string) (*domain.Link, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns one page of links, newest first, and the total count.
func (s *LinkService) List(ctx context.Context, page, limit int) ([]domain.Link, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := (page - 1) * limit

	links, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	return links, count, nil
}

var _ ports.LinkService = (*LinkService)(nil)
