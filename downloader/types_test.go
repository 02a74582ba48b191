package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityFromTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want int
	}{
		{
			name: "priority tag present",
			tags: []string{"pt-auto", "ptseed:p2"},
			want: 2,
		},
		{
			name: "no priority tag",
			tags: []string{"pt-auto", "anime"},
			want: 0,
		},
		{
			name: "negative priority",
			tags: []string{"ptseed:p-1"},
			want: -1,
		},
		{
			name: "malformed tag ignored",
			tags: []string{"ptseed:pabc"},
			want: 0,
		},
		{
			name: "whitespace around tags",
			tags: []string{" pt-auto", " ptseed:p3 "},
			want: 3,
		},
		{
			name: "empty list",
			tags: nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, priorityFromTags(tt.tags))
		})
	}
}

func TestPriorityTagRoundTrip(t *testing.T) {
	for _, p := range []int{0, 1, 5, -2} {
		tag := priorityTag(p)
		assert.Equal(t, p, priorityFromTags([]string{tag}))
	}
}

func TestIsActivelySeeding(t *testing.T) {
	seeding := []string{"uploading", "stalledUP", "queuedUP", "forcedUP"}
	for _, state := range seeding {
		m := LiveMetric{State: state}
		assert.True(t, m.IsActivelySeeding(), state)
	}

	for _, state := range []string{"downloading", "pausedUP", "error", ""} {
		m := LiveMetric{State: state}
		assert.False(t, m.IsActivelySeeding(), state)
	}
}
