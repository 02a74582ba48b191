package site

// Classification is the tracker-assigned promotion state of a torrent.
// It affects ratio accounting on the site and priority weighting in the
// seeding pool.
type Classification string

const (
	ClassificationDefault  Classification = "default"
	ClassificationFree     Classification = "free"
	ClassificationHalfFree Classification = "half_free"
	ClassificationDoubleUp Classification = "double_up"
)

// SubmitMeta carries the upload form fields alongside the torrent file.
type SubmitMeta struct {
	Name        string
	Description string
	Category    string
}
