package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/wadjakorntonsri/shortly/pkg/config"
	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

const stateCookie = "oauthstate"

// profile is the identity an OAuth provider reports for a user.
type profile struct {
	ID    string
	Login string
}

type oauthProvider struct {
	config      *oauth2.Config
	userInfoURL string
	decode      func(body []byte) (profile, error)
}

type AuthHandler struct {
	users       ports.UserService
	sessions    ports.SessionIssuer
	providers   map[string]*oauthProvider
	sessionTTL  time.Duration
	frontendURL string
	allowed     []string
	secure      bool
	logger      *zap.Logger
}

func NewAuthHandler(cfg *config.Config, users ports.UserService, sessions ports.SessionIssuer, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &AuthHandler{
		users:       users,
		sessions:    sessions,
		providers:   make(map[string]*oauthProvider),
		sessionTTL:  cfg.SessionTTL,
		frontendURL: cfg.FrontendURL,
		allowed:     cfg.AllowedUsers,
		secure:      cfg.IsProduction(),
		logger:      log,
	}

	if cfg.GitHubEnabled() {
		h.providers[domain.ProviderGitHub] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				RedirectURL:  cfg.GitHubRedirectURL,
				Scopes:       []string{"read:user"},
				Endpoint:     github.Endpoint,
			},
			userInfoURL: "https://api.github.com/user",
			decode:      decodeGitHubUser,
		}
	}
	if cfg.GoogleEnabled() {
		h.providers[domain.ProviderGoogle] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.GoogleRedirectURL,
				Scopes: []string{
					"https://www.googleapis.com/auth/userinfo.email",
					"https://www.googleapis.com/auth/userinfo.profile",
				},
				Endpoint: google.Endpoint,
			},
			userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
			decode:      decodeGoogleUser,
		}
	}
	return h
}

// Providers lists the enabled OAuth providers.
func (h *AuthHandler) Providers() []string {
	names := make([]string, 0, len(h.providers))
	for name := range h.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func readCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if isJSONBody(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errors.Wrap(domain.ErrInvalidInput, err.Error())
		}
		return req, nil
	}
	req.Username = r.FormValue("username")
	req.Password = r.FormValue("password")
	return req, nil
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	req, err := readCredentials(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.startSession(w, user); err != nil {
		writeError(w, h.logger, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := readCredentials(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.logger.Info("login rejected", zap.String("username", req.Username), zap.String("ip", clientIP(r)))
		}
		writeError(w, h.logger, err)
		return
	}

	if err := h.startSession(w, user); err != nil {
		writeError(w, h.logger, err)
		return
	}
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, sessionCookie, "", time.Now().Add(-1*time.Hour))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// OAuthLogin sends the browser to the provider's consent page.
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.providers[r.PathValue("provider")]
	if !ok {
		writeErrorStatus(w, http.StatusNotFound, "unknown auth provider")
		return
	}

	state := uuid.NewString()
	h.setCookie(w, stateCookie, state, time.Now().Add(20*time.Minute))
	http.Redirect(w, r, p.config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, ok := h.providers[name]
	if !ok {
		writeErrorStatus(w, http.StatusNotFound, "unknown auth provider")
		return
	}

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || r.FormValue("state") != state.Value {
		h.logger.Warn("oauth state mismatch", zap.String("provider", name))
		writeErrorStatus(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	h.setCookie(w, stateCookie, "", time.Now().Add(-1*time.Hour))

	token, err := p.config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		h.logger.Error("oauth code exchange failed", zap.String("provider", name), zap.Error(err))
		writeErrorStatus(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	prof, err := h.fetchProfile(r.Context(), p, token)
	if err != nil {
		h.logger.Error("oauth profile fetch failed", zap.String("provider", name), zap.Error(err))
		writeErrorStatus(w, http.StatusBadGateway, "failed getting user info")
		return
	}

	if len(h.allowed) > 0 && !slices.Contains(h.allowed, prof.Login) {
		h.logger.Warn("oauth user not in allowlist", zap.String("provider", name), zap.String("login", prof.Login))
		writeErrorStatus(w, http.StatusForbidden, "access denied")
		return
	}

	user, err := h.users.UpsertOAuthUser(r.Context(), name, prof.ID, prof.Login)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.startSession(w, user); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("oauth login", zap.String("provider", name), zap.String("username", user.Username))
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchProfile(ctx context.Context, p *oauthProvider, token *oauth2.Token) (profile, error) {
	client := p.config.Client(ctx, token)
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return profile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return profile{}, errors.Errorf("user info status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return profile{}, errors.Wrap(err, "decode user info")
	}
	prof, err := p.decode(raw)
	if err != nil {
		return profile{}, err
	}
	if prof.ID == "" || prof.Login == "" {
		return profile{}, errors.New("user info is missing an id or login")
	}
	return prof, nil
}

func decodeGitHubUser(body []byte) (profile, error) {
	var u struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return profile{}, errors.Wrap(err, "decode github user")
	}
	if u.ID == 0 {
		return profile{}, nil
	}
	return profile{ID: fmt.Sprintf("%d", u.ID), Login: u.Login}, nil
}

func decodeGoogleUser(body []byte) (profile, error) {
	var u struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return profile{}, errors.Wrap(err, "decode google user")
	}
	return profile{ID: u.ID, Login: u.Email}, nil
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user *domain.User) error {
	token, err := h.sessions.Issue(user)
	if err != nil {
		return err
	}
	h.setCookie(w, sessionCookie, token, time.Now().Add(h.sessionTTL))
	return nil
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// returnPath is where a successful login lands: the page the form was
// posted from when it is on this host, otherwise the root.
func returnPath(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" {
		return "/"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/"
	}
	if strings.HasPrefix(ref.Path, "//") {
		return "/"
	}
	switch ref.Path {
	case "/login", "/signup":
		return "/"
	}
	return ref.RequestURI()
}
