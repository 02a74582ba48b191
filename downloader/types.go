package downloader

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LiveMetric is one torrent's observed state from a List snapshot.
type LiveMetric struct {
	Hash     string
	Name     string
	Ratio    float64
	SeedTime time.Duration
	Size     int64
	State    string
	Priority int
	AddedOn  time.Time
}

// IsActivelySeeding checks if the torrent is in a seeding state
func (m LiveMetric) IsActivelySeeding() bool {
	return m.State == "uploading" || m.State == "stalledUP" || m.State == "queuedUP" || m.State == "forcedUP"
}

// priorityTagPrefix marks the tag carrying the lifecycle priority on
// backends without a native priority field.
const priorityTagPrefix = "ptseed:p"

func priorityTag(priority int) string {
	return fmt.Sprintf("%s%d", priorityTagPrefix, priority)
}

// priorityFromTags extracts the lifecycle priority from a tag list.
// Missing or malformed tags yield 0.
func priorityFromTags(tags []string) int {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if !strings.HasPrefix(tag, priorityTagPrefix) {
			continue
		}
		if p, err := strconv.Atoi(strings.TrimPrefix(tag, priorityTagPrefix)); err == nil {
			return p
		}
	}
	return 0
}
