// Package loader loads many independent items with bounded concurrency.
//
// Items are split into consecutive chunks of at most the batch size. The
// items of one chunk load concurrently, and the next chunk starts only after
// the whole chunk finished:
//
//	res := loader.LoadBatched(ctx, paths, agentdef.LoadFile, 5)
//	for _, le := range res.Errors {
//	    log.Printf("skip %v: %v", le.Item, le.Err)
//	}
//
// One item failing never affects the others; it is counted in
// Metrics.Failed and reported in Result.Errors.
package loader
