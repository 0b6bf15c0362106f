package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kyptronix/spectrum-admin/cache"
)

// Count is a number the API sends either as an integer or as the array it
// counts, such as a post's likes.
type Count int

// UnmarshalJSON accepts a number, a numeric string, an array or null.
func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*c = 0
	case b[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*c = Count(len(items))
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("count %q: %w", s, err)
		}
		*c = Count(n)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*c = Count(f)
	}
	return nil
}

// Activity is an account flag that counts as active unless the API says
// false.
type Activity struct {
	set   bool
	value bool
}

// Active reports the flag, defaulting to true.
func (a Activity) Active() bool { return !a.set || a.value }

// UnmarshalJSON accepts a boolean or null.
func (a *Activity) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*a = Activity{}
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = Activity{set: true, value: v}
	return nil
}

// MarshalJSON writes the effective value.
func (a Activity) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Active())
}

// Person is the user summary embedded in reports, posts and blocks.
type Person struct {
	UID            string `json:"uid"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// DisplayName returns the full name, the email when no name is set, or
// "Unknown User".
func (p *Person) DisplayName() string {
	if p == nil {
		return "Unknown User"
	}
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		return name
	}
	if p.Email != "" {
		return p.Email
	}
	return "Unknown User"
}

// PostSummary is the reported post as embedded in a report.
type PostSummary struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Likes     Count  `json:"likes"`
	Comments  Count  `json:"comments"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Report is a user report against a post.
type Report struct {
	ID               string       `json:"id"`
	PostID           string       `json:"postId"`
	PostAuthorUserID string       `json:"postAuthorUserId"`
	Reason           string       `json:"reason"`
	Status           string       `json:"status"`
	CreatedAt        string       `json:"createdAt"`
	Reporter         *Person      `json:"reporter,omitempty"`
	PostAuthor       *Person      `json:"postAuthor,omitempty"`
	Post             *PostSummary `json:"post,omitempty"`
}

func (r Report) itemID() string { return r.ID }

// Pending reports whether the report still awaits a decision.
func (r Report) Pending() bool { return r.Status == "pending" }

// AuthorID returns the id of the reported post's author.
func (r Report) AuthorID() string {
	if r.PostAuthor != nil && r.PostAuthor.UID != "" {
		return r.PostAuthor.UID
	}
	return r.PostAuthorUserID
}

// BlockRelation is one admin block.
type BlockRelation struct {
	ID            string  `json:"id"`
	BlockerUserID string  `json:"blockerUserId"`
	BlockedUserID string  `json:"blockedUserId"`
	CreatedAt     string  `json:"createdAt,omitempty"`
	Blocker       *Person `json:"blocker,omitempty"`
	Blocked       *Person `json:"blocked,omitempty"`
}

func (b BlockRelation) itemID() string { return b.ID }

// Stats are the moderation counters.
type Stats struct {
	PendingReports  int `json:"pendingReports"`
	ResolvedReports int `json:"resolvedReports"`
	BlockedUsers    int `json:"blockedUsers"`
}

// TotalReports is pending plus resolved.
func (s Stats) TotalReports() int { return s.PendingReports + s.ResolvedReports }

// Post is a post in the admin post list.
type Post struct {
	ID        string  `json:"id"`
	Title     string  `json:"title,omitempty"`
	Content   string  `json:"content"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	Likes     Count   `json:"likes"`
	Comments  Count   `json:"comments"`
	CreatedAt string  `json:"createdAt,omitempty"`
	Author    *Person `json:"author,omitempty"`
}

func (p Post) itemID() string { return p.ID }

// User is an account in the user list.
type User struct {
	ID               string   `json:"id,omitempty"`
	UID              string   `json:"uid"`
	FirstName        string   `json:"firstName"`
	LastName         string   `json:"lastName"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone,omitempty"`
	Role             string   `json:"role,omitempty"`
	Country          string   `json:"country,omitempty"`
	State            string   `json:"state,omitempty"`
	City             string   `json:"city,omitempty"`
	BusinessCategory string   `json:"businessCategory,omitempty"`
	ProfilePicture   string   `json:"profilePicture,omitempty"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	IsActive         Activity `json:"isActive"`
}

// Key returns the uid, falling back to id.
func (u User) Key() string {
	if u.UID != "" {
		return u.UID
	}
	return u.ID
}

func (u User) itemID() string { return u.Key() }

// IsAdmin reports whether the account has the admin role.
func (u User) IsAdmin() bool { return strings.EqualFold(u.Role, "admin") }

// Name returns the full name or "Unknown User".
func (u User) Name() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return "Unknown User"
}

// NewUser is the body of a registration.
type NewUser struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Password         string `json:"password,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Country          string `json:"country,omitempty"`
	State            string `json:"state,omitempty"`
	City             string `json:"city,omitempty"`
	BusinessCategory string `json:"businessCategory,omitempty"`
}

// Validate checks the fields the API requires.
func (n NewUser) Validate() error {
	if strings.TrimSpace(n.Email) == "" || !strings.Contains(n.Email, "@") {
		return cache.ValidationError("users.register", "a valid email is required")
	}
	if strings.TrimSpace(n.FirstName) == "" {
		return cache.ValidationError("users.register", "first name is required")
	}
	return nil
}

// UserUpdate holds the profile fields to change. Nil fields are left as
// they are.
type UserUpdate struct {
	FirstName        *string `json:"firstName,omitempty"`
	LastName         *string `json:"lastName,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Country          *string `json:"country,omitempty"`
	State            *string `json:"state,omitempty"`
	City             *string `json:"city,omitempty"`
	BusinessCategory *string `json:"businessCategory,omitempty"`
}

// Package is a subscription package.
type Package struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Features    []string `json:"features,omitempty"`
	IsActive    Activity `json:"isActive"`
	CreatedAt   string   `json:"createdAt,omitempty"`
}

func (p Package) itemID() string { return p.ID }

// AnalyticsReport is a generated report.
type AnalyticsReport struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title,omitempty"`
	Status    string          `json:"status,omitempty"`
	CreatedAt string          `json:"createdAt,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (a AnalyticsReport) itemID() string { return a.ID }

// Counters is a loosely shaped set of numeric statistics.
type Counters map[string]float64

// Ack is the reply to a mutation that returns only a message.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeletePostResult is the reply to a post deletion.
type DeletePostResult struct {
	Message         string `json:"message"`
	ReportsResolved int    `json:"reportsResolved"`
}

// RegisterResult is the reply to a user registration.
type RegisterResult struct {
	Message   string `json:"message"`
	User      User   `json:"user"`
	EmailSent bool   `json:"emailSent"`
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items []T
	Page  cache.Descriptor
}

type (
	ReportPage          = Page[Report]
	BlockedUsersPage    = Page[BlockRelation]
	PostPage            = Page[Post]
	UserPage            = Page[User]
	PackagePage         = Page[Package]
	AnalyticsReportPage = Page[AnalyticsReport]
)

// VisibleUsers drops admin accounts. It is a display filter only; the API
// decides who may see what.
func VisibleUsers(users []User) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		if !u.IsAdmin() {
			out = append(out, u)
		}
	}
	return out
}

type identified interface {
	itemID() string
}

// decodePage reads the list under field plus pagination metadata. A
// missing list is empty and missing metadata describes a single page.
func decodePage[T identified](op, field string, raw json.RawMessage, req cache.PageRequest) (Page[T], error) {
	env, err := object(op, raw)
	if err != nil {
		return Page[T]{}, err
	}

	items := []T{}
	if r, ok := env[field]; ok && string(r) != "null" {
		if err := json.Unmarshal(r, &items); err != nil {
			return Page[T]{}, cache.ParseError(op, fmt.Errorf("%s: %w", field, err))
		}
	}
	for i, it := range items {
		if it.itemID() == "" {
			return Page[T]{}, cache.ParseError(op, fmt.Errorf("%s[%d]: missing id", field, i))
		}
	}

	var meta *cache.Meta
	if env != nil {
		if meta, err = cache.MetaFromJSON(raw); err != nil {
			return Page[T]{}, err
		}
	}
	desc, err := cache.Describe(meta, req, len(items))
	if err != nil {
		return Page[T]{}, err
	}
	return Page[T]{Items: items, Page: desc}, nil
}

// decodeList reads an unpaginated list under field.
func decodeList[T identified](op, field string, raw json.RawMessage) ([]T, error) {
	p, err := decodePage[T](op, field, raw, cache.PageRequest{})
	if err != nil {
		return nil, err
	}
	return p.Items, nil
}

// decodeField reads the object under field, or the whole body when the
// field is absent.
func decodeField[T any](op, field string, raw json.RawMessage) (T, error) {
	var out T
	env, err := object(op, raw)
	if err != nil {
		return out, err
	}
	body := []byte(raw)
	if r, ok := env[field]; ok {
		body = r
	}
	if env == nil || string(body) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, cache.ParseError(op, err)
	}
	return out, nil
}

// decodeCounters reads numeric fields from the object under field, or
// from the top level. Non-numeric fields are skipped.
func decodeCounters(op, field string, raw json.RawMessage) (Counters, error) {
	fields, err := decodeField[map[string]json.RawMessage](op, field, raw)
	if err != nil {
		return nil, err
	}
	out := Counters{}
	for k, v := range fields {
		var f float64
		if json.Unmarshal(v, &f) == nil {
			out[k] = f
		}
	}
	return out, nil
}

// object decodes raw as a JSON object. JSON null yields a nil map.
func object(op string, raw json.RawMessage) (map[string]json.RawMessage, error) {
	var env map[string]json.RawMessage
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, cache.ParseError(op, fmt.Errorf("expected a JSON object: %w", err))
	}
	return env, nil
}
