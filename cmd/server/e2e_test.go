package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wadjakorntonsri/shortly/pkg/app"
	"github.com/wadjakorntonsri/shortly/pkg/config"
	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
)

type testEnv struct {
	app    *app.App
	server *httptest.Server
	dest   *httptest.Server
	client *http.Client
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "e2e.db"))
	t.Setenv("JWT_SECRET", "e2e-secret")
	t.Setenv("APP_ENV", "test")
	t.Setenv("REDIS_URL", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "1000")
	cfg, err := config.FromEnv()
	require.NoError(t, err)

	a, err := app.New(cfg, zaptest.NewLogger(t), app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><head><title>Page %s</title></head></html>", r.URL.Path)
	}))
	t.Cleanup(dest.Close)

	server := httptest.NewServer(a.Handler)
	t.Cleanup(server.Close)

	client := server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	user, err := a.Users.Signup(t.Context(), "tester", "password1")
	require.NoError(t, err)
	token, err := a.Sessions.Issue(user)
	require.NoError(t, err)

	return &testEnv{app: a, server: server, dest: dest, client: client, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, authed bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) create(t *testing.T, url string) (*http.Response, domain.Link) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"url": url})
	resp := e.do(t, http.MethodPost, "/links", bytes.NewReader(body), true)
	var link domain.Link
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&link))
	}
	return resp, link
}

func (e *testEnv) linkCount(t *testing.T) int64 {
	n, err := e.app.Repo.Count(t.Context())
	require.NoError(t, err)
	return n
}

func TestIntegration(t *testing.T) {
	env := newTestEnv(t)
	destURL := env.dest.URL + "/article"

	// Create Link
	resp, created := env.create(t, destURL)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, created.Code)
	assert.Equal(t, destURL, created.URL)
	assert.Equal(t, "Page /article", created.Title)
	assert.Zero(t, created.Visits)

	// Visit
	resp = env.do(t, http.MethodGet, "/"+created.Code, nil, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, destURL, resp.Header.Get("Location"))

	// Fetch
	resp = env.do(t, http.MethodGet, "/links/"+created.Code, nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched domain.Link
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	assert.EqualValues(t, 1, fetched.Visits)

	clicks, err := env.app.Repo.CountClicks(t.Context(), created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, clicks)

	// List Links
	resp = env.do(t, http.MethodGet, "/links?page=1&limit=5", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Data  []domain.Link `json:"data"`
		Total int64         `json:"total"`
		Page  int           `json:"page"`
		Limit int           `json:"limit"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)
	require.Len(t, page.Data, 1)
	assert.Equal(t, created.Code, page.Data[0].Code)
}

func TestUnknownCodeRedirectsHome(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.create(t, env.dest.URL+"/a")

	resp := env.do(t, http.MethodGet, "/doesNotExist", nil, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = env.do(t, http.MethodGet, "/nested/path/code", nil, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	// lookups are case sensitive
	if swapped := swapCase(created.Code); swapped != created.Code {
		resp = env.do(t, http.MethodGet, "/"+swapped, nil, false)
		assert.Equal(t, "/", resp.Header.Get("Location"))
	}

	link, err := env.app.Repo.GetByCode(t.Context(), created.Code)
	require.NoError(t, err)
	assert.Zero(t, link.Visits)
	clicks, err := env.app.Repo.CountClicks(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Zero(t, clicks)
}

func TestCreateRejectsInvalidURL(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.create(t, "not a url")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusBadRequest, body.Code)
	assert.Equal(t, domain.ErrInvalidURL.Error(), body.Message)
	assert.Zero(t, env.linkCount(t))
}

func TestCreateTitleFailure(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.create(t, env.dest.URL+"/gone")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, env.linkCount(t))
}

func TestSameURLTwice(t *testing.T) {
	env := newTestEnv(t)

	resp, first := env.create(t, env.dest.URL+"/twice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, second := env.create(t, env.dest.URL+"/twice")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, env.linkCount(t))
}

func TestConcurrentVisits(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.create(t, env.dest.URL+"/popular")

	const n = 25
	var wg sync.WaitGroup
	statuses := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := env.client.Get(env.server.URL + "/" + created.Code)
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)
	for s := range statuses {
		assert.Equal(t, http.StatusFound, s)
	}

	link, err := env.app.Repo.GetByCode(t.Context(), created.Code)
	require.NoError(t, err)
	assert.EqualValues(t, n, link.Visits)
	clicks, err := env.app.Repo.CountClicks(t.Context(), created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n, clicks)
}

func TestGatedRoutes(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/", nil)
	req.Header.Set("Accept", "text/html")
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = env.do(t, http.MethodPost, "/links", strings.NewReader(`{"url":"https://example.com"}`), false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var home struct {
		User *domain.Principal `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&home))
	require.NotNil(t, home.User)
	assert.Equal(t, "tester", home.User.Username)

	resp = env.do(t, http.MethodGet, "/login", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.create(t, env.dest.URL+"/ops")
	env.do(t, http.MethodGet, "/"+created.Code, nil, false)

	resp := env.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `shortly_redirects_total{outcome="hit"}`)
}

func swapCase(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z':
			return r - 'A' + 'a'
		}
		return r
	}, s)
}
