// Package health reports whether the admin client can do its job.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// package ships checkers for the admin API itself (a live stats round
// trip), the shared circuit breaker, the query cache's error ratio and the
// process heap. An Aggregator runs them together and renders a Report:
//
//	agg := health.NewAggregator()
//	agg.Register("api", health.NewAPIChecker(api, time.Second))
//	agg.Register("breaker", health.NewBreakerChecker(api.Breaker()))
//	agg.Register("cache", health.NewCacheChecker(client.Store(), 0.5))
//
//	report := agg.Report(ctx)
//	if report.Status == health.StatusUnhealthy.String() {
//		os.Exit(1)
//	}
package health
