package admin

import (
	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/endpoint"
)

// Invalidations is what each admin mutation makes stale.
//
// Deleting a post resolves its reports, so reports and stats refetch along
// with the post itself. Blocking resolves reports too; unblocking does not
// reopen them. Profile edits touch one account and the list; registering
// or deleting an account changes the counters as well.
var Invalidations = cache.InvalidationTable{
	endpoint.PostsDelete: {
		Tags:     []cache.Tag{cache.Category(endpoint.CategoryReports), cache.Category(endpoint.CategoryStats)},
		Targeted: []string{endpoint.CategoryPosts},
	},
	endpoint.UsersBlock: {
		Tags: []cache.Tag{
			cache.Category(endpoint.CategoryReports),
			cache.Category(endpoint.CategoryBlockedUsers),
			cache.Category(endpoint.CategoryStats),
		},
	},
	endpoint.UsersUnblock: {
		Tags: []cache.Tag{cache.Category(endpoint.CategoryBlockedUsers), cache.Category(endpoint.CategoryStats)},
	},
	endpoint.UsersRegister: {
		Tags: []cache.Tag{cache.Category(endpoint.CategoryUsers), cache.Category(endpoint.CategoryStats)},
	},
	endpoint.UsersUpdate: {Targeted: []string{endpoint.CategoryUsers}},
	endpoint.UsersDelete: {
		Tags: []cache.Tag{cache.Category(endpoint.CategoryUsers), cache.Category(endpoint.CategoryStats)},
	},
	endpoint.UsersStatus:    {Targeted: []string{endpoint.CategoryUsers}},
	endpoint.PackagesCreate: {Tags: []cache.Tag{cache.Category(endpoint.CategoryPackages)}},
	endpoint.PackagesUpdate: {
		Tags:     []cache.Tag{cache.Category(endpoint.CategoryPackages)},
		Targeted: []string{endpoint.CategoryPackages},
	},
	endpoint.PackagesDelete:   {Tags: []cache.Tag{cache.Category(endpoint.CategoryPackages)}},
	endpoint.AnalyticsUsers:   {Tags: []cache.Tag{cache.List(endpoint.CategoryAnalyticsReports)}},
	endpoint.AnalyticsTickets: {Tags: []cache.Tag{cache.List(endpoint.CategoryAnalyticsReports)}},
}
