package downloader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"

	"github.com/s0up4200/ptseed/config"
)

// QBittorrent wraps the qBittorrent Web API behind the Adapter interface.
type QBittorrent struct {
	client   *qbittorrent.Client
	category string
	savePath string
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewQBittorrent creates a qBittorrent adapter and verifies connectivity.
func NewQBittorrent(cfg config.DownloaderConfig, logger zerolog.Logger) (*QBittorrent, error) {
	scheme := "http"
	if cfg.HTTPS {
		scheme = "https"
	}

	client := qbittorrent.NewClient(qbittorrent.Config{
		Host:     fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
	})

	// Test connection by logging in
	if err := client.Login(); err != nil {
		return nil, fmt.Errorf("failed to connect to qBittorrent: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &QBittorrent{
		client:   client,
		category: cfg.Category,
		savePath: cfg.DownloadDir,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// Type implements Adapter.
func (q *QBittorrent) Type() string { return "qbittorrent" }

// Add implements Adapter.
func (q *QBittorrent) Add(ctx context.Context, torrent []byte, opts AddOptions) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	options := map[string]string{}
	if opts.Category != "" {
		options["category"] = opts.Category
	}
	if opts.SavePath != "" {
		options["savepath"] = opts.SavePath
	}
	if opts.Paused {
		options["paused"] = "true"
	}

	if err := q.client.AddTorrentFromMemoryCtx(ctx, torrent, options); err != nil {
		if isTransportError(err) {
			return fmt.Errorf("%w: %s", ErrUnreachable, err)
		}
		return fmt.Errorf("%w: %s", ErrRejected, err)
	}

	return nil
}

// List implements Adapter. Only torrents in the configured category are
// returned so manually added torrents stay out of the managed pool.
func (q *QBittorrent) List(ctx context.Context) ([]LiveMetric, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	torrents, err := q.client.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{
		Category: q.category,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, err)
	}

	q.logger.Debug().Msgf("Retrieved %d torrents from qBittorrent", len(torrents))

	metrics := make([]LiveMetric, 0, len(torrents))
	for _, t := range torrents {
		metrics = append(metrics, LiveMetric{
			Hash:     t.Hash,
			Name:     t.Name,
			Ratio:    t.Ratio,
			SeedTime: time.Duration(t.SeedingTime) * time.Second,
			Size:     t.Size,
			State:    string(t.State),
			Priority: priorityFromTags(strings.Split(t.Tags, ",")),
			AddedOn:  time.Unix(t.AddedOn, 0),
		})
	}

	return metrics, nil
}

// Remove implements Adapter. qBittorrent treats deletion of an unknown hash
// as a no-op, which matches the idempotence contract.
func (q *QBittorrent) Remove(ctx context.Context, hash string, deleteData bool) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if err := q.client.DeleteTorrentsCtx(ctx, []string{hash}, deleteData); err != nil {
		if isTransportError(err) {
			return fmt.Errorf("%w: %s", ErrUnreachable, err)
		}
		// Unknown hash means the torrent is already gone.
		q.logger.Debug().Err(err).Str("hash", hash).Msg("Remove treated as already absent")
		return nil
	}

	return nil
}

// SetPriority implements Adapter. qBittorrent has no per-torrent numeric
// priority field, so the value rides on a tag that List reads back.
func (q *QBittorrent) SetPriority(ctx context.Context, hash string, priority int) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	metrics, err := q.client.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{
		Hashes: []string{hash},
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	if len(metrics) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}

	// Drop any stale priority tags before applying the new one.
	var stale []string
	for _, tag := range strings.Split(metrics[0].Tags, ",") {
		tag = strings.TrimSpace(tag)
		if strings.HasPrefix(tag, priorityTagPrefix) {
			stale = append(stale, tag)
		}
	}
	if len(stale) > 0 {
		if err := q.client.RemoveTagsCtx(ctx, []string{hash}, strings.Join(stale, ",")); err != nil {
			q.logger.Warn().Err(err).Str("hash", hash).Msg("Failed to clear stale priority tags")
		}
	}

	if err := q.client.AddTagsCtx(ctx, []string{hash}, priorityTag(priority)); err != nil {
		// Priority is best-effort; log and carry on.
		q.logger.Warn().Err(err).Str("hash", hash).Int("priority", priority).
			Msg("Failed to set priority tag")
		return nil
	}

	return nil
}

// FreeSpace implements Adapter using the server's reported free space on
// the default save path volume.
func (q *QBittorrent) FreeSpace(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	free, err := q.client.GetFreeSpaceOnDiskCtx(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnreachable, err)
	}

	return free, nil
}

// isTransportError reports whether err looks like a connectivity failure
// rather than a backend rejection.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
