package endpoint

import "net/http"

// Tag categories used by the admin API.
const (
	CategoryReports          = "Reports"
	CategoryBlockedUsers     = "BlockedUsers"
	CategoryStats            = "Stats"
	CategoryPosts            = "Posts"
	CategoryUsers            = "Users"
	CategoryPackages         = "Packages"
	CategoryAnalyticsReports = "AnalyticsReports"
)

// Operation names.
const (
	ReportsList        = "reports.list"
	BlockedUsersList   = "blockedUsers.list"
	StatsGet           = "stats.get"
	PostsDelete        = "posts.delete"
	UsersBlock         = "users.block"
	UsersUnblock       = "users.unblock"
	PostsList          = "posts.list"
	UsersList          = "users.list"
	UsersRegister      = "users.register"
	UsersUpdate        = "users.update"
	UsersDelete        = "users.delete"
	UsersStatus        = "users.status"
	UsersStats         = "users.stats"
	PackagesList       = "packages.list"
	PackagesActive     = "packages.active"
	PackagesStats      = "packages.stats"
	PackagesGet        = "packages.get"
	PackagesCreate     = "packages.create"
	PackagesUpdate     = "packages.update"
	PackagesDelete     = "packages.delete"
	AnalyticsList      = "analytics.list"
	AnalyticsUsers     = "analytics.userAnalytics"
	AnalyticsTickets   = "analytics.ticketSummary"
	adminBlockerUserID = "ADMIN_ACTION"
)

// Catalog returns every operation the admin API exposes.
func Catalog() []Def {
	return []Def{
		// Moderation.
		{Name: ReportsList, Method: http.MethodGet, Path: "/api/posts/admin/reports", Category: CategoryReports, Paginated: true},
		{Name: BlockedUsersList, Method: http.MethodGet, Path: "/api/posts/admin/blocked-users", Category: CategoryBlockedUsers, Paginated: true},
		{Name: StatsGet, Method: http.MethodGet, Path: "/api/posts/admin/stats", Category: CategoryStats},
		{Name: PostsList, Method: http.MethodGet, Path: "/api/posts/admin/all", Category: CategoryPosts, Paginated: true},
		{Name: PostsDelete, Method: http.MethodDelete, Path: "/api/posts/admin/posts/{postId}", Category: CategoryPosts, Query: []string{"postAuthorUserId"}},
		{
			Name:     UsersBlock,
			Method:   http.MethodPost,
			Path:     "/api/posts/admin/users/{userId}/block",
			Category: CategoryBlockedUsers,
			Body:     FixedBody(map[string]string{"blockerUserId": adminBlockerUserID}),
		},
		{Name: UsersUnblock, Method: http.MethodDelete, Path: "/api/posts/admin/users/{userId}/unblock", Category: CategoryBlockedUsers},

		// Accounts.
		{Name: UsersList, Method: http.MethodGet, Path: "/api/auth/users", Category: CategoryUsers, Paginated: true},
		{Name: UsersStats, Method: http.MethodGet, Path: "/api/auth/users/stats", Category: CategoryStats},
		{Name: UsersRegister, Method: http.MethodPost, Path: "/api/auth/admin/register-user", Category: CategoryUsers, Body: ParamBody("body")},
		{Name: UsersUpdate, Method: http.MethodPut, Path: "/api/auth/users/{userId}", Category: CategoryUsers, Body: ParamBody("body")},
		{Name: UsersDelete, Method: http.MethodDelete, Path: "/api/auth/users/{userId}", Category: CategoryUsers},
		{Name: UsersStatus, Method: http.MethodPut, Path: "/api/auth/users/{userId}/status", Category: CategoryUsers, Body: FieldsBody("isActive")},

		// Packages.
		{Name: PackagesList, Method: http.MethodGet, Path: "/api/packages", Category: CategoryPackages, Paginated: true},
		{Name: PackagesActive, Method: http.MethodGet, Path: "/api/packages/active/list", Category: CategoryPackages},
		{Name: PackagesStats, Method: http.MethodGet, Path: "/api/packages/stats/overview", Category: CategoryPackages},
		{Name: PackagesGet, Method: http.MethodGet, Path: "/api/packages/{id}", Category: CategoryPackages},
		{Name: PackagesCreate, Method: http.MethodPost, Path: "/api/packages", Category: CategoryPackages, Body: ParamBody("body")},
		{Name: PackagesUpdate, Method: http.MethodPut, Path: "/api/packages/{id}", Category: CategoryPackages, Body: ParamBody("body")},
		{Name: PackagesDelete, Method: http.MethodDelete, Path: "/api/packages/{id}", Category: CategoryPackages},

		// Generated reports.
		{Name: AnalyticsList, Method: http.MethodGet, Path: "/api/reports", Category: CategoryAnalyticsReports, Paginated: true},
		{Name: AnalyticsUsers, Method: http.MethodPost, Path: "/api/reports/generate/user-analytics", Category: CategoryAnalyticsReports, Body: ParamBody("body")},
		{Name: AnalyticsTickets, Method: http.MethodPost, Path: "/api/reports/generate/ticket-summary", Category: CategoryAnalyticsReports, Body: ParamBody("body")},
	}
}
