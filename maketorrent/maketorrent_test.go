package maketorrent

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/ptseed/config"
)

func writeContent(t *testing.T, name string, size int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644))
	return path
}

func TestBuild(t *testing.T) {
	path := writeContent(t, "episode.mkv", 4096)

	cfg := config.MakeTorrentConfig{
		Tracker: "https://tracker.example.com/announce",
		Private: true,
		Source:  "EXAMPLE",
		Comment: "test upload",
	}

	result, err := Build(path, cfg)
	require.NoError(t, err)

	assert.Equal(t, "episode.mkv", result.Name)
	assert.Equal(t, int64(4096), result.Size)
	assert.Len(t, result.InfoHash, 40)

	// Round-trip through the metainfo parser.
	mi, err := metainfo.Load(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, "https://tracker.example.com/announce", mi.Announce)
	assert.Equal(t, "test upload", mi.Comment)

	info, err := mi.UnmarshalInfo()
	require.NoError(t, err)
	assert.Equal(t, "episode.mkv", info.Name)
	require.NotNil(t, info.Private)
	assert.True(t, *info.Private)
	assert.Equal(t, "EXAMPLE", info.Source)
}

func TestBuildRequiresTracker(t *testing.T) {
	path := writeContent(t, "episode.mkv", 16)

	_, err := Build(path, config.MakeTorrentConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "announce URL")
}

func TestBuildExplicitPieceSize(t *testing.T) {
	path := writeContent(t, "episode.mkv", 1<<16)

	cfg := config.MakeTorrentConfig{
		Tracker:   "https://tracker.example.com/announce",
		PieceSize: 1 << 15,
	}

	result, err := Build(path, cfg)
	require.NoError(t, err)

	mi, err := metainfo.Load(bytes.NewReader(result.Data))
	require.NoError(t, err)
	info, err := mi.UnmarshalInfo()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<15), info.PieceLength)
}

func TestAutoPieceLength(t *testing.T) {
	const (
		mib = int64(1) << 20
		gib = int64(1) << 30
	)

	tests := []struct {
		size int64
		want int64
	}{
		{100 * mib, 256 << 10},
		{700 * mib, 512 << 10},
		{2 * gib, 1 * mib},
		{6 * gib, 2 * mib},
		{12 * gib, 4 * mib},
		{64 * gib, 8 * mib},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, autoPieceLength(tt.size))
	}
}
