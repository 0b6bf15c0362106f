package admin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/endpoint"
)

func TestCount_Forms(t *testing.T) {
	tests := []struct {
		raw  string
		want Count
	}{
		{`7`, 7},
		{`"12"`, 12},
		{`["a","b","c"]`, 3},
		{`[]`, 0},
		{`null`, 0},
	}
	for _, tt := range tests {
		var c Count
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &c), tt.raw)
		assert.Equal(t, tt.want, c, tt.raw)
	}

	var c Count
	assert.Error(t, json.Unmarshal([]byte(`"many"`), &c))
}

func TestActivity_DefaultsToActive(t *testing.T) {
	var u struct {
		IsActive Activity `json:"isActive"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &u))
	assert.True(t, u.IsActive.Active())

	require.NoError(t, json.Unmarshal([]byte(`{"isActive":false}`), &u))
	assert.False(t, u.IsActive.Active())

	require.NoError(t, json.Unmarshal([]byte(`{"isActive":null}`), &u))
	assert.True(t, u.IsActive.Active())

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"isActive":true}`, string(out))
}

func TestDecodePage_Defaults(t *testing.T) {
	req := cache.PageRequest{Page: 1, Limit: 10}

	p, err := decodePage[Report]("reports.list", "reports", json.RawMessage(`{}`), req)
	require.NoError(t, err)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.Equal(t, 1, p.Page.TotalPages)

	p, err = decodePage[Report]("reports.list", "reports", json.RawMessage(`null`), req)
	require.NoError(t, err)
	assert.Empty(t, p.Items)

	posts, err := decodePage[Post]("posts.list", "posts", json.RawMessage(`{
		"posts": [{"id":"p1","likes":["u1","u2"],"comments":4}],
		"pagination": {"currentPage":1,"totalPages":3,"totalPosts":25,"postsPerPage":10,"hasNextPage":true,"hasPrevPage":false}
	}`), req)
	require.NoError(t, err)
	assert.Equal(t, Count(2), posts.Items[0].Likes)
	assert.Equal(t, Count(4), posts.Items[0].Comments)
	assert.Equal(t, 25, posts.Page.TotalItems)
	assert.True(t, posts.Page.HasNextPage)
}

func TestDecodePage_Errors(t *testing.T) {
	req := cache.PageRequest{Page: 1, Limit: 10}
	tests := []struct {
		name string
		raw  string
	}{
		{"not an object", `[1,2]`},
		{"missing id", `{"reports":[{"reason":"spam"}]}`},
		{"wrong list type", `{"reports":{"id":"r1"}}`},
		{"inconsistent pagination", `{"reports":[{"id":"r1"}],"pagination":{"currentPage":1,"totalPages":1,"totalReports":1,"hasNextPage":true}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodePage[Report]("reports.list", "reports", json.RawMessage(tt.raw), req)
			assert.ErrorIs(t, err, cache.ErrParse)
		})
	}
}

func TestDecodeField(t *testing.T) {
	s, err := decodeField[Stats]("stats.get", "stats", json.RawMessage(`{"stats":{"pendingReports":2,"resolvedReports":5,"blockedUsers":1}}`))
	require.NoError(t, err)
	assert.Equal(t, Stats{PendingReports: 2, ResolvedReports: 5, BlockedUsers: 1}, s)
	assert.Equal(t, 7, s.TotalReports())

	s, err = decodeField[Stats]("stats.get", "stats", json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Zero(t, s)

	counters, err := decodeCounters("users.stats", "stats", json.RawMessage(`{"totalUsers":10,"activeUsers":"8","label":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, Counters{"totalUsers": 10}, counters)
}

func TestPersonDisplayName(t *testing.T) {
	var nobody *Person
	assert.Equal(t, "Unknown User", nobody.DisplayName())
	assert.Equal(t, "a@b.c", (&Person{Email: "a@b.c"}).DisplayName())
	assert.Equal(t, "Ada Lovelace", (&Person{FirstName: "Ada", LastName: "Lovelace", Email: "a@b.c"}).DisplayName())
}

func TestQueryTagger(t *testing.T) {
	q := UsersQuery(cache.PageRequest{})
	tags := q.Tagger().Tags(UserPage{Items: []User{{UID: "u1"}, {ID: "legacy"}}}, nil)
	assert.Equal(t, []cache.Tag{
		cache.Instance("Users", "u1"),
		cache.Instance("Users", "legacy"),
		cache.List("Users"),
	}, tags)

	assert.Equal(t, []cache.Tag{cache.List("Users")}, q.Tagger().Tags(nil, assert.AnError))
	assert.Equal(t, []cache.Tag{cache.Category("Stats")}, StatsQuery().Tagger().Tags(Stats{}, nil))
	assert.Equal(t, endpoint.Params{"page": 1, "limit": 10}, q.Params)
}
