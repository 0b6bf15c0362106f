package admin

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/observe"
)

// Section is one independently loaded part of a screen.
type Section[T any] struct {
	Data T
	Err  error
}

// ModerationDashboard is the content moderation screen.
type ModerationDashboard struct {
	Stats        Section[Stats]
	Reports      Section[ReportPage]
	BlockedUsers Section[BlockedUsersPage]
}

// LoadModerationDashboard loads stats, reports and blocks concurrently. A
// failing section does not stop the others; the first error is returned
// alongside the sections that did load.
func (c *Client) LoadModerationDashboard(ctx context.Context, reports, blocked cache.PageRequest) (ModerationDashboard, error) {
	var d ModerationDashboard
	var g errgroup.Group

	g.Go(func() error {
		d.Stats.Data, d.Stats.Err = c.Stats(ctx)
		return c.sectionErr(ctx, "stats", d.Stats.Err)
	})
	g.Go(func() error {
		d.Reports.Data, d.Reports.Err = c.Reports(ctx, reports)
		return c.sectionErr(ctx, "reports", d.Reports.Err)
	})
	g.Go(func() error {
		d.BlockedUsers.Data, d.BlockedUsers.Err = c.BlockedUsers(ctx, blocked)
		return c.sectionErr(ctx, "blocked_users", d.BlockedUsers.Err)
	})

	err := g.Wait()
	return d, err
}

func (c *Client) sectionErr(ctx context.Context, section string, err error) error {
	if err != nil && c.logger != nil {
		c.logger.Warn(ctx, "dashboard section failed", observe.F("section", section), observe.F("error", err))
	}
	return err
}
