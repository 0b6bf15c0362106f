package cache

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkKeyFor(b *testing.B) {
	params := map[string]any{"page": 3, "limit": 10, "filter": map[string]any{"status": "pending"}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = KeyFor("reports.list", params)
	}
}

func BenchmarkStore_RequestHit(b *testing.B) {
	s := NewStore(WithPolicy(testPolicy()))
	defer s.Close()
	ctx := context.Background()
	fetch := func(context.Context) (any, error) { return "v", nil }
	_, _ = s.Request(ctx, "stats.get:0", nil, fetch)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Request(ctx, "stats.get:0", nil, fetch)
	}
}

func BenchmarkTagIndex_KeysForTags(b *testing.B) {
	ix := NewTagIndex()
	for i := 0; i < 1000; i++ {
		ix.Index(Key(fmt.Sprintf("users.list:%d", i)), []Tag{List("Users"), Instance("Users", fmt.Sprint(i))})
	}
	tags := []Tag{Instance("Users", "500"), List("Posts")}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ix.KeysForTags(tags)
	}
}
