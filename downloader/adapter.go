package downloader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/s0up4200/ptseed/config"
)

// Adapter is the capability interface every download-client backend
// implements. The capability set is identical regardless of backend;
// degraded capabilities (priority, free space) fail soft, not hard.
type Adapter interface {
	// Type returns the backend name, e.g. "qbittorrent".
	Type() string

	// Add submits a torrent file to the backend.
	Add(ctx context.Context, torrent []byte, opts AddOptions) error

	// List returns a snapshot of live metrics for all torrents in the
	// configured category. Handle (hash) is stable across calls; ordering
	// is not.
	List(ctx context.Context) ([]LiveMetric, error)

	// Remove deletes a torrent, optionally with its data. Removing an
	// already-absent handle is treated as success.
	Remove(ctx context.Context, hash string, deleteData bool) error

	// SetPriority records the lifecycle priority on the backend so the
	// next List reflects it. Best-effort: backends without support log
	// and return nil.
	SetPriority(ctx context.Context, hash string, priority int) error

	// FreeSpace reports free disk space on the backend's download volume.
	// Returns ErrUnsupported when the backend cannot report it.
	FreeSpace(ctx context.Context) (int64, error)
}

// AddOptions control how a torrent is registered with the backend.
type AddOptions struct {
	Category string
	SavePath string
	Paused   bool
}

// New constructs the backend selected by configuration.
func New(cfg config.DownloaderConfig, logger zerolog.Logger) (Adapter, error) {
	switch cfg.Type {
	case "qbittorrent":
		return NewQBittorrent(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported downloader type: %s", cfg.Type)
	}
}
