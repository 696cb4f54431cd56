package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
)

type fakeLinkRepo struct {
	mu     sync.Mutex
	links  []*domain.Link
	clicks []*domain.Click

	creates    int
	lastLimit  int
	lastOffset int
}

func (f *fakeLinkRepo) Create(_ context.Context, link *domain.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	for _, l := range f.links {
		if l.URL == link.URL || l.Code == link.Code {
			return domain.ErrDuplicate
		}
	}
	link.ID = int64(len(f.links) + 1)
	link.CreatedAt = time.Now()
	link.UpdatedAt = link.CreatedAt
	stored := *link
	f.links = append(f.links, &stored)
	return nil
}

func (f *fakeLinkRepo) find(match func(*domain.Link) bool) (*domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if match(l) {
			out := *l
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLinkRepo) GetByCode(_ context.Context, code string) (*domain.Link, error) {
	return f.find(func(l *domain.Link) bool { return l.Code == code })
}

func (f *fakeLinkRepo) GetByURL(_ context.Context, url string) (*domain.Link, error) {
	return f.find(func(l *domain.Link) bool { return l.URL == url })
}

func (f *fakeLinkRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := f.GetByCode(ctx, code)
	return err == nil, nil
}

func (f *fakeLinkRepo) List(_ context.Context, limit, offset int) ([]domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit, f.lastOffset = limit, offset
	var out []domain.Link
	for i := len(f.links) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.links[i])
	}
	return out, nil
}

func (f *fakeLinkRepo) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.links)), nil
}

func (f *fakeLinkRepo) Dump(_ context.Context) ([]domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Link, 0, len(f.links))
	for _, l := range f.links {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLinkRepo) RecordClick(_ context.Context, click *domain.Click) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l.ID == click.LinkID {
			l.Visits++
			click.ID = int64(len(f.clicks) + 1)
			click.CreatedAt = time.Now()
			stored := *click
			f.clicks = append(f.clicks, &stored)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeLinkRepo) CountClicks(_ context.Context, linkID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.clicks {
		if c.LinkID == linkID {
			n++
		}
	}
	return n, nil
}

func (f *fakeLinkRepo) FindVisitDrift(_ context.Context) ([]domain.VisitDrift, error) {
	return nil, nil
}

func (f *fakeLinkRepo) SyncVisits(_ context.Context, _ int64) error {
	return nil
}

func (f *fakeLinkRepo) Ping(_ context.Context) error {
	return nil
}

type fakeTitles struct {
	mu    sync.Mutex
	title string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeTitles) FetchTitle(ctx context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.title, f.err
}

func (f *fakeTitles) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// sequenceCodes hands out codes in order and repeats the last one.
type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (s *sequenceCodes) Generate(_ string, attempt int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if attempt < len(s.codes) {
		return s.codes[attempt], nil
	}
	return s.codes[len(s.codes)-1], nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users []*domain.User
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username {
			return domain.ErrDuplicate
		}
		if user.ProviderID != "" && u.Provider == user.Provider && u.ProviderID == user.ProviderID {
			return domain.ErrDuplicate
		}
	}
	if user.Provider == "" {
		user.Provider = domain.ProviderLocal
	}
	user.ID = int64(len(f.users) + 1)
	stored := *user
	f.users = append(f.users, &stored)
	return nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) GetUserByProvider(_ context.Context, provider, providerID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Provider == provider && u.ProviderID == providerID {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}
