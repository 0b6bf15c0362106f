package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/transport"
)

// fakeAPI is an in-memory admin API.
type fakeAPI struct {
	mu      sync.Mutex
	reports []Report
	posts   []Post
	blocks  []BlockRelation
	users   []User
	calls   map[string]int

	failBlocked  bool
	blockGate    chan struct{}
	blockEntered chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		posts: []Post{
			{ID: "p1", Content: "spam", Author: &Person{UID: "u2"}},
			{ID: "p2", Content: "rude", Author: &Person{UID: "u3"}},
		},
		reports: []Report{
			{ID: "r1", PostID: "p1", PostAuthorUserID: "u2", Reason: "spam", Status: "pending"},
			{ID: "r2", PostID: "p1", PostAuthorUserID: "u2", Reason: "scam", Status: "pending"},
			{ID: "r3", PostID: "p2", PostAuthorUserID: "u3", Reason: "rude", Status: "pending"},
		},
		users: []User{
			{UID: "u1", FirstName: "Ada", Role: "admin"},
			{UID: "u2", FirstName: "Bob"},
			{UID: "u3", FirstName: "Cy"},
		},
		calls: map[string]int{},
	}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/posts/admin", func(r chi.Router) {
		r.Get("/reports", func(w http.ResponseWriter, req *http.Request) {
			f.hit("reports")
			f.mu.Lock()
			var pending []Report
			for _, rep := range f.reports {
				if rep.Pending() {
					pending = append(pending, rep)
				}
			}
			f.mu.Unlock()
			writeJSON(w, http.StatusOK, paginate(req, "reports", pending, "totalReports", "reportsPerPage"))
		})

		r.Get("/blocked-users", func(w http.ResponseWriter, req *http.Request) {
			f.hit("blocked")
			f.mu.Lock()
			fail := f.failBlocked
			blocks := slices.Clone(f.blocks)
			f.mu.Unlock()
			if fail {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, paginate(req, "blockedUsers", blocks, "totalBlockedUsers", "limit"))
		})

		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			f.hit("stats")
			f.mu.Lock()
			var s Stats
			for _, rep := range f.reports {
				if rep.Pending() {
					s.PendingReports++
				} else {
					s.ResolvedReports++
				}
			}
			s.BlockedUsers = len(f.blocks)
			f.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"stats": s})
		})

		r.Get("/all", func(w http.ResponseWriter, req *http.Request) {
			f.hit("posts")
			f.mu.Lock()
			posts := slices.Clone(f.posts)
			f.mu.Unlock()
			writeJSON(w, http.StatusOK, paginate(req, "posts", posts, "totalPosts", "postsPerPage"))
		})

		r.Delete("/posts/{postId}", func(w http.ResponseWriter, req *http.Request) {
			f.hit("deletePost")
			id := chi.URLParam(req, "postId")
			f.mu.Lock()
			defer f.mu.Unlock()
			idx := slices.IndexFunc(f.posts, func(p Post) bool { return p.ID == id })
			if idx < 0 {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "Post not found"})
				return
			}
			f.posts = slices.Delete(f.posts, idx, idx+1)
			resolved := 0
			for i := range f.reports {
				if f.reports[i].PostID == id && f.reports[i].Pending() {
					f.reports[i].Status = "resolved"
					resolved++
				}
			}
			writeJSON(w, http.StatusOK, DeletePostResult{Message: "Post deleted", ReportsResolved: resolved})
		})

		r.Post("/users/{userId}/block", func(w http.ResponseWriter, req *http.Request) {
			f.hit("block")
			id := chi.URLParam(req, "userId")
			var body map[string]string
			_ = json.NewDecoder(req.Body).Decode(&body)

			f.mu.Lock()
			gate, entered := f.blockGate, f.blockEntered
			f.mu.Unlock()
			if entered != nil {
				entered <- struct{}{}
			}
			if gate != nil {
				<-gate
			}

			f.mu.Lock()
			defer f.mu.Unlock()
			f.blocks = append(f.blocks, BlockRelation{
				ID:            "b-" + id,
				BlockerUserID: body["blockerUserId"],
				BlockedUserID: id,
			})
			writeJSON(w, http.StatusOK, Ack{Success: true, Message: "User blocked"})
		})

		r.Delete("/users/{userId}/unblock", func(w http.ResponseWriter, req *http.Request) {
			f.hit("unblock")
			id := chi.URLParam(req, "userId")
			f.mu.Lock()
			defer f.mu.Unlock()
			idx := slices.IndexFunc(f.blocks, func(b BlockRelation) bool { return b.BlockedUserID == id })
			if idx < 0 {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "User is not blocked"})
				return
			}
			f.blocks = slices.Delete(f.blocks, idx, idx+1)
			writeJSON(w, http.StatusOK, Ack{Success: true, Message: "User unblocked"})
		})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/users", func(w http.ResponseWriter, req *http.Request) {
			f.hit("users")
			f.mu.Lock()
			users := slices.Clone(f.users)
			f.mu.Unlock()
			writeJSON(w, http.StatusOK, paginate(req, "users", users, "totalUsers", "usersPerPage"))
		})

		r.Put("/users/{userId}/status", func(w http.ResponseWriter, req *http.Request) {
			f.hit("status")
			id := chi.URLParam(req, "userId")
			var body struct {
				IsActive bool `json:"isActive"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			for i := range f.users {
				if f.users[i].UID == id {
					raw, _ := json.Marshal(body.IsActive)
					_ = f.users[i].IsActive.UnmarshalJSON(raw)
				}
			}
			writeJSON(w, http.StatusOK, Ack{Success: true, Message: "Status updated"})
		})

		r.Post("/admin/register-user", func(w http.ResponseWriter, req *http.Request) {
			f.hit("register")
			var nu NewUser
			if err := json.NewDecoder(req.Body).Decode(&nu); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			u := User{UID: "u" + strconv.Itoa(len(f.users)+1), FirstName: nu.FirstName, LastName: nu.LastName, Email: nu.Email}
			f.users = append(f.users, u)
			writeJSON(w, http.StatusCreated, RegisterResult{Message: "User created", User: u, EmailSent: true})
		})
	})

	return r
}

// paginate mirrors the API's list envelope.
func paginate[T any](req *http.Request, field string, items []T, totalField, perField string) map[string]any {
	page := atoiOr(req.URL.Query().Get("page"), 1)
	limit := atoiOr(req.URL.Query().Get("limit"), 10)
	total := len(items)
	pages := max(1, (total+limit-1)/limit)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	if items == nil {
		items = []T{}
	}
	return map[string]any{
		field: items[start:end],
		"pagination": map[string]any{
			"currentPage": page,
			"totalPages":  pages,
			totalField:    total,
			perField:      limit,
			"hasNextPage": page < pages,
			"hasPrevPage": page > 1,
		},
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testPolicy() cache.Policy {
	p := cache.DefaultPolicy()
	p.SweepInterval = 0
	return p
}

func newTestClient(t *testing.T, api *fakeAPI, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(api.router())
	t.Cleanup(srv.Close)

	reads, writes := transport.NewExecutors(transport.Config{
		Timeout:         2 * time.Second,
		RetryAttempts:   1,
		BreakerFailures: 100,
		BreakerReset:    time.Minute,
	})
	tr, err := transport.New(srv.URL, transport.WithExecutors(reads, writes), transport.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	opts = append([]Option{WithStoreOptions(cache.WithPolicy(testPolicy()))}, opts...)
	c := NewClient(tr, opts...)
	t.Cleanup(c.Close)
	return c
}
