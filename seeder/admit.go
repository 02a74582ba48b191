package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/s0up4200/ptseed/downloader"
	"github.com/s0up4200/ptseed/maketorrent"
	"github.com/s0up4200/ptseed/metrics"
	"github.com/s0up4200/ptseed/registry"
	"github.com/s0up4200/ptseed/site"
)

// Admit runs the full admission pipeline for new content: build the
// torrent file, submit it to the site, read its classification, register
// it, and hand it to the downloader. The record enters the pool in the
// pending state until a tick confirms it.
func (m *Manager) Admit(ctx context.Context, contentPath string) (*registry.Record, error) {
	if m.session == nil {
		return nil, errors.New("admission requires a site session")
	}

	built, err := maketorrent.Build(contentPath, m.cfg.MakeTorrent)
	if err != nil {
		return nil, fmt.Errorf("build torrent: %w", err)
	}

	torrentID, err := m.session.Submit(ctx, built.Data, site.SubmitMeta{Name: built.Name})
	if err != nil {
		return nil, fmt.Errorf("submit to site: %w", err)
	}

	m.logger.Info().
		Str("name", built.Name).
		Str("torrent_id", torrentID).
		Str("hash", built.InfoHash).
		Msg("Torrent submitted to site")

	// Classification is read once, here. Site promotions that expire later
	// do not retroactively change the record.
	classification := registry.ClassDefault
	var classifyErr error
	if c, err := m.session.Classify(ctx, torrentID); err != nil {
		classifyErr = err
		m.logger.Warn().Err(err).Str("torrent_id", torrentID).Msg("Classification unavailable, using default")
	} else {
		classification = registry.Classification(c)
	}

	rec, err := m.registry.Admit(ctx, registry.AdmitParams{
		Hash:           built.InfoHash,
		Name:           built.Name,
		Classification: classification,
		Size:           built.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("register torrent: %w", err)
	}
	metrics.AdmissionsTotal.Inc()

	// Classification retries are exhausted inside the site client; a
	// persistent auth failure poisons the admission.
	if classifyErr != nil && errors.Is(classifyErr, site.ErrAuthExpired) {
		if ok, terr := m.registry.Transition(ctx, rec.Hash, registry.StatePending, registry.StateFailed); terr == nil && ok {
			_ = m.registry.SetLastError(ctx, rec.Hash, classifyErr.Error())
			metrics.FailedTorrentsTotal.Inc()
		}
		return nil, fmt.Errorf("classify torrent: %w", classifyErr)
	}

	err = m.adapter.Add(ctx, built.Data, downloader.AddOptions{
		Category: m.cfg.Downloader.Category,
		SavePath: m.cfg.Downloader.DownloadDir,
		Paused:   !m.cfg.Downloader.AutoStart,
	})
	switch {
	case err == nil:
		m.logger.Info().Str("hash", rec.Hash).Str("name", rec.Name).Msg("Torrent handed to downloader")
	case errors.Is(err, downloader.ErrRejected):
		// Invalid or duplicate on the backend: terminal.
		if ok, terr := m.registry.Transition(ctx, rec.Hash, registry.StatePending, registry.StateFailed); terr == nil && ok {
			_ = m.registry.SetLastError(ctx, rec.Hash, err.Error())
			metrics.FailedTorrentsTotal.Inc()
		}
		return nil, fmt.Errorf("downloader rejected torrent: %w", err)
	default:
		// Unreachable backend: the record stays pending; the tick loop
		// either confirms it or times it out.
		m.logger.Warn().Err(err).Str("hash", rec.Hash).Msg("Downloader add failed, awaiting confirmation or timeout")
	}

	return rec, nil
}
