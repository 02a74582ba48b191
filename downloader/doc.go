// Package downloader abstracts heterogeneous download-client backends
// behind a single capability interface.
//
// The seeding lifecycle manager issues only high-level commands (add,
// remove, list, set-priority) and never touches piece-level transfer
// state. Backends are selected by configuration name, never by type
// switches at call sites.
//
// # Capabilities
//
//   - Add submits a torrent file with category and save-path options
//   - List produces a restartable per-tick snapshot of live metrics
//   - Remove is idempotent: deleting an absent handle succeeds
//   - SetPriority is best-effort and degrades to a logged warning
//
// # Usage
//
//	adapter, err := downloader.New(cfg.Downloader, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	metrics, err := adapter.List(ctx)
//	for _, m := range metrics {
//	    if m.IsActivelySeeding() {
//	        // feed the registry
//	    }
//	}
package downloader
