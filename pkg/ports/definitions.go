package ports

import (
	"context"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
)

// LinkRepository defines storage operations for links and their clicks
type LinkRepository interface {
	Create(ctx context.Context, link *domain.Link) error
	GetByCode(ctx context.Context, code string) (*domain.Link, error)
	GetByURL(ctx context.Context, url string) (*domain.Link, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]domain.Link, error)
	Count(ctx context.Context) (int64, error)
	Dump(ctx context.Context) ([]domain.Link, error) // For migration

	// Clicks
	RecordClick(ctx context.Context, click *domain.Click) error
	CountClicks(ctx context.Context, linkID int64) (int64, error)
	FindVisitDrift(ctx context.Context) ([]domain.VisitDrift, error)
	SyncVisits(ctx context.Context, linkID int64) error

	Ping(ctx context.Context) error
}

// UserRepository defines storage operations for accounts
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByProvider(ctx context.Context, provider, providerID string) (*domain.User, error)
}

// TitleFetcher reads the title of a destination page
type TitleFetcher interface {
	FetchTitle(ctx context.Context, url string) (string, error)
}

// CodeGenerator proposes a short code for a URL. attempt starts at 0 and
// grows on each collision so deterministic generators can vary output.
type CodeGenerator interface {
	Generate(url string, attempt int) (string, error)
}

// LinkService defines the business logic operations
type LinkService interface {
	Resolve(ctx context.Context, code string) (*domain.Link, error)
	RecordClick(ctx context.Context, link *domain.Link, meta domain.VisitMeta) (*domain.Click, error)
	CreateOrFetch(ctx context.Context, rawURL, baseURL string) (*domain.Link, error)
	GetByCode(ctx context.Context, code string) (*domain.Link, error)
	List(ctx context.Context, page, limit int) ([]domain.Link, int64, error)
}

// UserService defines account and credential operations
type UserService interface {
	Signup(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
	UpsertOAuthUser(ctx context.Context, provider, providerID, username string) (*domain.User, error)
}

// SessionIssuer signs and verifies session tokens
type SessionIssuer interface {
	Issue(user *domain.User) (string, error)
	Verify(token string) (*domain.Principal, error)
}
