package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu        sync.Mutex
	failStats bool
	authz     []string
	blocked   []string
}

func (f *fakeServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.authz = append(f.authz, req.Header.Get("Authorization"))
			f.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/api/posts/admin/stats", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		fail := f.failStats
		f.mu.Unlock()
		if fail {
			reply(w, http.StatusInternalServerError, map[string]any{"error": "database unavailable"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"stats": map[string]int{"pendingReports": 2, "resolvedReports": 5, "blockedUsers": 1}})
	})
	r.Get("/api/posts/admin/reports", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, map[string]any{
			"reports": []map[string]any{{
				"id": "r1", "postId": "p1", "postAuthorUserId": "u2", "reason": "spam", "status": "pending",
				"reporter": map[string]string{"uid": "u9", "firstName": "Ada", "lastName": "Lovelace"},
			}},
			"pagination": map[string]any{"currentPage": 1, "totalPages": 1, "totalReports": 1, "hasNextPage": false, "hasPrevPage": false},
		})
	})
	r.Get("/api/posts/admin/blocked-users", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, map[string]any{"blockedUsers": []any{}, "pagination": map[string]any{"currentPage": 1, "totalPages": 0, "totalItems": 0}})
	})
	r.Post("/api/posts/admin/users/{userId}/block", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.blocked = append(f.blocked, chi.URLParam(req, "userId"))
		f.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"success": true, "message": "User blocked"})
	})
	return r
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func runCLI(t *testing.T, f *fakeServer, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	args = append([]string{"--base-url", srv.URL, "--log-level", "error"}, args...)
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestStats_JSON(t *testing.T) {
	out, err := runCLI(t, &fakeServer{}, "-o", "json", "stats")
	require.NoError(t, err)

	var got map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got["pendingReports"])
	assert.Equal(t, 1, got["blockedUsers"])
}

func TestReports_Table(t *testing.T) {
	out, err := runCLI(t, &fakeServer{}, "reports", "--limit", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "REPORTER")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "u2")
	assert.Contains(t, out, "page 1 of 1 (1 total)")
}

func TestBlock_SendsToken(t *testing.T) {
	t.Setenv("SPECTRUM_AUTH_TOKEN", "tok")
	f := &fakeServer{}

	out, err := runCLI(t, f, "block", "u2")
	require.NoError(t, err)
	assert.Contains(t, out, "User blocked")

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"u2"}, f.blocked)
	assert.Equal(t, []string{"Bearer tok"}, f.authz)
}

func TestHealth(t *testing.T) {
	out, err := runCLI(t, &fakeServer{}, "-o", "json", "health")
	require.NoError(t, err)

	var report struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "healthy", report.Status)
	assert.ElementsMatch(t, []string{"api", "breaker", "cache", "heap"}, keys(report.Checks))
}

func TestHealth_Unhealthy(t *testing.T) {
	out, err := runCLI(t, &fakeServer{failStats: true}, "health")
	var unhealthy errUnhealthy
	require.ErrorAs(t, err, &unhealthy)
	assert.Contains(t, out, "overall: unhealthy")
	assert.Contains(t, out, "admin API request failed")
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad output", []string{"-o", "yaml", "stats"}, "unknown output format"},
		{"update without fields", []string{"user", "update", "u1"}, "nothing to update"},
		{"status without flag", []string{"user", "status", "u1"}, "--active is required"},
		{"missing argument", []string{"block"}, "accepts 1 arg"},
		{"bad log level", []string{"--log-level", "loud", "stats"}, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, &fakeServer{}, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func adminToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestWhoami(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	t.Setenv("SPECTRUM_AUTH_TOKEN", adminToken(t, jwt.MapClaims{
		"uid": "u1", "email": "ada@example.com", "role": "admin", "exp": exp.Unix(),
	}))

	out, err := runCLI(t, &fakeServer{}, "-o", "json", "whoami")
	require.NoError(t, err)

	var got whoami
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "u1", got.Principal)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, []string{"admin"}, got.Roles)
	assert.True(t, got.Admin)
	assert.True(t, exp.Equal(got.ExpiresAt))
}

func TestWhoami_NonAdminTokenIsReported(t *testing.T) {
	t.Setenv("SPECTRUM_AUTH_TOKEN", adminToken(t, jwt.MapClaims{"sub": "u7", "role": "user"}))

	out, err := runCLI(t, &fakeServer{}, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "u7")
	assert.Contains(t, out, "false")
}

func TestExpiredTokenIsRefused(t *testing.T) {
	t.Setenv("SPECTRUM_AUTH_TOKEN", adminToken(t, jwt.MapClaims{
		"sub": "u1", "role": "admin", "exp": time.Now().Add(-time.Minute).Unix(),
	}))
	f := &fakeServer{}

	_, err := runCLI(t, f, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.authz, "no request sent with an expired token")
}

func TestWhoami_NeedsBearerCredentials(t *testing.T) {
	t.Setenv("SPECTRUM_AUTH_TOKEN", "")
	t.Setenv("SPECTRUM_AUTH_EMAIL", "")
	t.Setenv("SPECTRUM_AUTH_PASSWORD", "")

	_, err := runCLI(t, &fakeServer{}, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whoami needs")
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
