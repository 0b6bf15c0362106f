package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kyptronix/spectrum-admin/health"
)

// errUnhealthy makes the process exit with status 2.
type errUnhealthy struct{ status string }

func (e errUnhealthy) Error() string { return "health: " + e.status }

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the admin API, circuit breaker, cache and heap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()

			// Load the moderation dashboard so the cache check has entries
			// to judge.
			first := a.page(1, 0)
			_, _ = a.client.LoadModerationDashboard(ctx, first, first)

			agg := health.NewAggregator(health.AggregatorConfig{Timeout: a.cfg.API.Timeout * 2})
			agg.Register("api", health.NewAPIChecker(a.api, a.cfg.Health.SlowThreshold))
			agg.Register("breaker", health.NewBreakerChecker(a.api.Breaker()))
			agg.Register("cache", health.NewCacheChecker(a.client.Store(), a.cfg.Health.MaxErrorRatio))
			agg.Register("heap", health.NewHeapChecker(a.cfg.Health.MaxHeapMB<<20))

			report := agg.Report(ctx)
			names := agg.CheckerNames()
			err := a.out.print(report, []string{"CHECK", "STATUS", "MESSAGE", "DURATION"}, func() [][]string {
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					c := report.Checks[name]
					msg := c.Message
					if c.Error != "" {
						msg = fmt.Sprintf("%s: %s", msg, c.Error)
					}
					rows = append(rows, []string{name, c.Status, msg, c.Duration})
				}
				return rows
			})
			if err != nil {
				return err
			}
			a.out.footer("overall: %s", report.Status)
			if report.Status == health.StatusUnhealthy.String() {
				return errUnhealthy{status: report.Status}
			}
			return nil
		},
	}
}
