// Package coord shields expensive downstream calls from duplicate work.
//
// A Coordinator offers two complementary tools. De-duplication collapses
// identical concurrent requests; batching collapses requests that arrive
// close together under one key, whatever their arguments.
//
//	c := coord.New(coord.WithDefaultTTL(time.Minute))
//
//	// Concurrent callers share one fetch; the result is reused for 30s.
//	repo, err := coord.Cached(ctx, c, "repo:"+name, 30*time.Second,
//	    func(ctx context.Context) (*Repo, error) { return api.GetRepo(ctx, name) })
//
//	// Calls within the batch window become a single search.
//	hits, err := c.WithBatching(ctx, "search", searchOp, query)
//
// Expired entries stay in memory until CleanupCache or RunCleanup purges
// them.
package coord
