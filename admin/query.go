package admin

import (
	"encoding/json"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/endpoint"
)

// Query describes one cached read: which endpoint to call, how to decode
// the body and which tags the result provides.
type Query[T any] struct {
	Endpoint string
	Params   endpoint.Params

	decode   func(raw json.RawMessage) (T, error)
	provides func(data T) []cache.Tag
	category string
}

// Tagger returns the tags the query's result provides. A failed fetch
// provides only the list tag of the query's category.
func (q Query[T]) Tagger() cache.Tagger {
	return cache.TagFunc(func(data any, err error) []cache.Tag {
		v, ok := data.(T)
		if err != nil || !ok {
			return []cache.Tag{cache.List(q.category)}
		}
		return q.provides(v)
	})
}

// pageTags provides one instance tag per item plus the list tag.
func pageTags[T identified](category string) func(Page[T]) []cache.Tag {
	return func(p Page[T]) []cache.Tag {
		return itemTags(category, p.Items)
	}
}

func itemTags[T identified](category string, items []T) []cache.Tag {
	tags := make([]cache.Tag, 0, len(items)+1)
	for _, it := range items {
		tags = append(tags, cache.Instance(category, it.itemID()))
	}
	return append(tags, cache.List(category))
}

func categoryTag[T any](category string) func(T) []cache.Tag {
	return func(T) []cache.Tag { return []cache.Tag{cache.Category(category)} }
}

func pageQuery[T identified](name, category, field string, page cache.PageRequest) Query[Page[T]] {
	page = page.WithDefaults()
	return Query[Page[T]]{
		Endpoint: name,
		Params:   endpoint.Params{"page": page.Page, "limit": page.Limit},
		decode: func(raw json.RawMessage) (Page[T], error) {
			return decodePage[T](name, field, raw, page)
		},
		provides: pageTags[T](category),
		category: category,
	}
}

// ReportsQuery lists post reports.
func ReportsQuery(page cache.PageRequest) Query[ReportPage] {
	return pageQuery[Report](endpoint.ReportsList, endpoint.CategoryReports, "reports", page)
}

// BlockedUsersQuery lists admin blocks.
func BlockedUsersQuery(page cache.PageRequest) Query[BlockedUsersPage] {
	return pageQuery[BlockRelation](endpoint.BlockedUsersList, endpoint.CategoryBlockedUsers, "blockedUsers", page)
}

// PostsQuery lists all posts.
func PostsQuery(page cache.PageRequest) Query[PostPage] {
	return pageQuery[Post](endpoint.PostsList, endpoint.CategoryPosts, "posts", page)
}

// UsersQuery lists accounts, admins included.
func UsersQuery(page cache.PageRequest) Query[UserPage] {
	return pageQuery[User](endpoint.UsersList, endpoint.CategoryUsers, "users", page)
}

// PackagesQuery lists packages.
func PackagesQuery(page cache.PageRequest) Query[PackagePage] {
	return pageQuery[Package](endpoint.PackagesList, endpoint.CategoryPackages, "packages", page)
}

// AnalyticsReportsQuery lists generated reports.
func AnalyticsReportsQuery(page cache.PageRequest) Query[AnalyticsReportPage] {
	return pageQuery[AnalyticsReport](endpoint.AnalyticsList, endpoint.CategoryAnalyticsReports, "reports", page)
}

// StatsQuery reads the moderation counters.
func StatsQuery() Query[Stats] {
	return Query[Stats]{
		Endpoint: endpoint.StatsGet,
		decode: func(raw json.RawMessage) (Stats, error) {
			return decodeField[Stats](endpoint.StatsGet, "stats", raw)
		},
		provides: categoryTag[Stats](endpoint.CategoryStats),
		category: endpoint.CategoryStats,
	}
}

// UserStatsQuery reads account statistics.
func UserStatsQuery() Query[Counters] {
	return Query[Counters]{
		Endpoint: endpoint.UsersStats,
		decode: func(raw json.RawMessage) (Counters, error) {
			return decodeCounters(endpoint.UsersStats, "stats", raw)
		},
		provides: categoryTag[Counters](endpoint.CategoryStats),
		category: endpoint.CategoryStats,
	}
}

// PackageStatsQuery reads package statistics.
func PackageStatsQuery() Query[Counters] {
	return Query[Counters]{
		Endpoint: endpoint.PackagesStats,
		decode: func(raw json.RawMessage) (Counters, error) {
			return decodeCounters(endpoint.PackagesStats, "stats", raw)
		},
		provides: func(Counters) []cache.Tag { return []cache.Tag{cache.List(endpoint.CategoryPackages)} },
		category: endpoint.CategoryPackages,
	}
}

// ActivePackagesQuery lists packages open for purchase.
func ActivePackagesQuery() Query[[]Package] {
	return Query[[]Package]{
		Endpoint: endpoint.PackagesActive,
		decode: func(raw json.RawMessage) ([]Package, error) {
			return decodeList[Package](endpoint.PackagesActive, "packages", raw)
		},
		provides: func(items []Package) []cache.Tag { return itemTags(endpoint.CategoryPackages, items) },
		category: endpoint.CategoryPackages,
	}
}

// PackageQuery reads one package.
func PackageQuery(id string) Query[Package] {
	return Query[Package]{
		Endpoint: endpoint.PackagesGet,
		Params:   endpoint.Params{"id": id},
		decode: func(raw json.RawMessage) (Package, error) {
			p, err := decodeField[Package](endpoint.PackagesGet, "package", raw)
			if err == nil && p.ID == "" {
				p.ID = id
			}
			return p, err
		},
		provides: func(p Package) []cache.Tag {
			return []cache.Tag{cache.Instance(endpoint.CategoryPackages, p.ID)}
		},
		category: endpoint.CategoryPackages,
	}
}
