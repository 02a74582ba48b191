// Package maketorrent builds .torrent files for site submission.
//
// Piece size follows the usual tracker conventions when left at 0: larger
// content gets larger pieces, capped at 8 MiB. Per-file MD5 digests are
// not emitted; config validation rejects include_md5 up front.
package maketorrent

import (
	"bytes"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/s0up4200/ptseed/config"
)

// Result is a finished torrent file plus its identifying hash.
type Result struct {
	Data     []byte
	InfoHash string
	Name     string
	Size     int64
}

// Build creates a torrent file for the content at path using the
// configured tracker, privacy, and piece-size settings.
func Build(path string, cfg config.MakeTorrentConfig) (*Result, error) {
	if cfg.Tracker == "" {
		return nil, fmt.Errorf("tracker announce URL is required")
	}

	totalSize, err := contentSize(path)
	if err != nil {
		return nil, fmt.Errorf("measure content: %w", err)
	}

	pieceLength := cfg.PieceSize
	if pieceLength == 0 {
		pieceLength = autoPieceLength(totalSize)
	}

	info := metainfo.Info{PieceLength: pieceLength}
	if err := info.BuildFromFilePath(path); err != nil {
		return nil, fmt.Errorf("hash content: %w", err)
	}

	if cfg.Private {
		private := true
		info.Private = &private
	}
	info.Source = cfg.Source

	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode info dict: %w", err)
	}

	mi := metainfo.MetaInfo{
		InfoBytes:    infoBytes,
		Announce:     cfg.Tracker,
		Comment:      cfg.Comment,
		CreatedBy:    "ptseed",
		CreationDate: time.Now().Unix(),
	}

	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode torrent: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		InfoHash: mi.HashInfoBytes().HexString(),
		Name:     info.Name,
		Size:     totalSize,
	}, nil
}

// contentSize sums file sizes under path (or the file itself).
func contentSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}

// autoPieceLength picks a piece size keeping piece counts reasonable.
func autoPieceLength(totalSize int64) int64 {
	const (
		kib = 1 << 10
		mib = 1 << 20
		gib = 1 << 30
	)

	switch {
	case totalSize < 512*mib:
		return 256 * kib
	case totalSize < 1*gib:
		return 512 * kib
	case totalSize < 4*gib:
		return 1 * mib
	case totalSize < 8*gib:
		return 2 * mib
	case totalSize < 16*gib:
		return 4 * mib
	default:
		return 8 * mib
	}
}
