package entities

import "fmt"

// MediaPlaceholder is shown in place of a media item that failed to load.
const MediaPlaceholder = "/api/placeholder/300/200"

// MediaKey identifies one media item of one vendor.
type MediaKey struct {
	VendorID string `json:"vendor_id"`
	Index    int    `json:"media_index"`
}

func (k MediaKey) String() string {
	return fmt.Sprintf("%s-%d", k.VendorID, k.Index)
}

// MediaFailures records which media items failed to load for a session.
type MediaFailures map[MediaKey]struct{}

// Mark records a failure. Negative indexes are ignored.
func (m MediaFailures) Mark(key MediaKey) {
	if key.Index < 0 || key.VendorID == "" {
		return
	}
	m[key] = struct{}{}
}

// Failed reports whether the item was marked as failed.
func (m MediaFailures) Failed(key MediaKey) bool {
	_, ok := m[key]
	return ok
}

// Keys lists recorded failures.
func (m MediaFailures) Keys() []MediaKey {
	out := make([]MediaKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// ResolveMedia returns the vendor's media with failed items swapped for the
// placeholder. Vendors with no media get a single placeholder.
func (m MediaFailures) ResolveMedia(v *Vendor) []string {
	if len(v.Media) == 0 {
		return []string{MediaPlaceholder}
	}
	out := make([]string, len(v.Media))
	for i, url := range v.Media {
		if m.Failed(MediaKey{VendorID: v.ID, Index: i}) {
			out[i] = MediaPlaceholder
			continue
		}
		out[i] = url
	}
	return out
}
