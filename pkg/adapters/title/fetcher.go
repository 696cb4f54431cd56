// Package title reads the <title> of destination pages.
package title

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

const (
	defaultTimeout = 5 * time.Second
	// only the head of a document is needed
	maxBodyBytes = 1 << 20
	userAgent    = "shortly-title-fetcher/1.0"
)

var ErrNoTitle = errors.New("page has no title")

type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher whose requests never outlive timeout,
// whatever deadline the caller's context carries.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// NewFetcherWithClient is used by tests to point at an httptest server.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

func (f *Fetcher) FetchTitle(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetch page")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	return extractTitle(io.LimitReader(resp.Body, maxBodyBytes))
}

// extractTitle returns the text of the first <title> element with runs
// of whitespace collapsed. An empty element yields an empty title.
func extractTitle(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", ErrNoTitle
			}
			return "", errors.Wrap(z.Err(), "parse page")
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) != "title" {
				continue
			}
			var b strings.Builder
			for z.Next() == html.TextToken {
				b.Write(z.Text())
			}
			return strings.Join(strings.Fields(b.String()), " "), nil
		}
	}
}

var _ ports.TitleFetcher = (*Fetcher)(nil)
