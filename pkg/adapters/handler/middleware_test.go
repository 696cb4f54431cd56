package handler

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
	"github.com/wadjakorntonsri/shortly/pkg/core/services"
)

func newTestSessions(t *testing.T) *services.SessionManager {
	t.Helper()
	m, err := services.NewSessionManager(services.SessionConfig{Secret: "testservlet"})
	require.NoError(t, err)
	return m
}

func TestRequireSession(t *testing.T) {
	sessions := newTestSessions(t)
	mw := NewMiddleware(sessions, zaptest.NewLogger(t))

	valid, err := sessions.Issue(&domain.User{ID: 1, Username: "alice", Provider: domain.ProviderLocal})
	require.NoError(t, err)

	tests := []struct {
		name             string
		method           string
		accept           string
		cookieValue      string
		bearer           string
		expectedStatus   int
		expectedLocation string
	}{
		{
			name:             "No Cookie - Browser",
			method:           http.MethodGet,
			expectedStatus:   http.StatusSeeOther,
			expectedLocation: "/login",
		},
		{
			name:           "No Cookie - API",
			method:         http.MethodGet,
			accept:         "application/json",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "No Cookie - POST",
			method:         http.MethodPost,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:             "Invalid Cookie - Browser",
			method:           http.MethodGet,
			cookieValue:      "invalid",
			expectedStatus:   http.StatusSeeOther,
			expectedLocation: "/login",
		},
		{
			name:           "Invalid Bearer",
			method:         http.MethodGet,
			bearer:         "invalid",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Foreign Token - API",
			method:         http.MethodGet,
			accept:         "application/json",
			cookieValue:    generateForeignToken(t),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Valid Cookie",
			method:         http.MethodGet,
			cookieValue:    valid,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Valid Bearer",
			method:         http.MethodPost,
			bearer:         valid,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/links", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookie, Value: tt.cookieValue})
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			var seen *domain.Principal
			rr := httptest.NewRecorder()
			handler := mw.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = PrincipalFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedLocation != "" {
				assert.Equal(t, tt.expectedLocation, rr.Header().Get("Location"))
			}
			if tt.expectedStatus == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "alice", seen.Username)
			}
		})
	}
}

func TestRecoverAnswers500(t *testing.T) {
	mw := NewMiddleware(newTestSessions(t), zaptest.NewLogger(t))
	handler := mw.AccessLog(mw.Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal server error")
}

func TestRealIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		expectedIP string
	}{
		{
			name:       "Direct Client",
			remoteAddr: "203.0.113.9:5555",
			expectedIP: "203.0.113.9",
		},
		{
			name:       "Untrusted Peer Spoofing Headers",
			remoteAddr: "203.0.113.9:5555",
			forwarded:  "198.51.100.1",
			realIP:     "198.51.100.2",
			expectedIP: "203.0.113.9",
		},
		{
			name:       "Trusted Proxy",
			remoteAddr: "10.0.0.1:5555",
			forwarded:  "198.51.100.1, 203.0.113.7",
			expectedIP: "203.0.113.7",
		},
		{
			name:       "Trusted Proxy Chain",
			remoteAddr: "10.0.0.1:5555",
			forwarded:  "203.0.113.7, 10.0.0.3",
			expectedIP: "203.0.113.7",
		},
		{
			name:       "Trusted Proxy Real IP",
			remoteAddr: "10.0.0.1:5555",
			realIP:     "203.0.113.8",
			expectedIP: "203.0.113.8",
		},
		{
			name:       "Trusted Proxy Garbage Header",
			remoteAddr: "10.0.0.1:5555",
			forwarded:  "not-an-ip",
			expectedIP: "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := RealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = clientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.expectedIP, got)
		})
	}
}

func generateForeignToken(t *testing.T) string {
	expirationTime := time.Now().Add(5 * time.Minute)
	claims := &jwt.RegisteredClaims{
		Subject:   "test@example.com",
		ExpiresAt: jwt.NewNumericDate(expirationTime),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("not-the-server-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenString
}
