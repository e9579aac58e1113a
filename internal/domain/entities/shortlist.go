package entities

import "time"

// ShortlistEntry is the denormalised snapshot taken when a vendor is selected.
type ShortlistEntry struct {
	VendorID   string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Image      string    `json:"image,omitempty"`
	Media      []string  `json:"images,omitempty"`
	SelectedAt time.Time `json:"selected_at"`
}

// NewShortlistEntry snapshots a vendor for the review surface.
func NewShortlistEntry(v *Vendor, at time.Time) ShortlistEntry {
	return ShortlistEntry{
		VendorID:   v.ID,
		Name:       v.Name,
		Category:   v.Category,
		Image:      v.PrimaryMedia(),
		Media:      append([]string(nil), v.Media...),
		SelectedAt: at,
	}
}

// ShortlistGroup is one category section of the review view.
type ShortlistGroup struct {
	Category string           `json:"category"`
	Entries  []ShortlistEntry `json:"vendors"`
}

// Shortlist is the set of vendors a session has selected, in selection order.
// It is not safe for concurrent use; the owning session serialises access.
type Shortlist struct {
	order   []string
	entries map[string]ShortlistEntry
}

// NewShortlist creates an empty shortlist.
func NewShortlist() *Shortlist {
	return &Shortlist{entries: make(map[string]ShortlistEntry)}
}

// ShortlistFromEntries restores a shortlist from persisted entries.
func ShortlistFromEntries(entries []ShortlistEntry) *Shortlist {
	s := NewShortlist()
	for _, e := range entries {
		if _, ok := s.entries[e.VendorID]; ok {
			continue
		}
		s.order = append(s.order, e.VendorID)
		s.entries[e.VendorID] = e
	}
	return s
}

// Toggle flips membership for the snapshot's vendor and reports whether the
// vendor is selected afterwards.
func (s *Shortlist) Toggle(entry ShortlistEntry) bool {
	if s.Contains(entry.VendorID) {
		s.Remove(entry.VendorID)
		return false
	}
	s.order = append(s.order, entry.VendorID)
	s.entries[entry.VendorID] = entry
	return true
}

// Remove forces the vendor to unselected. Removing an absent id is a no-op.
func (s *Shortlist) Remove(vendorID string) {
	if _, ok := s.entries[vendorID]; !ok {
		return
	}
	delete(s.entries, vendorID)
	for i, id := range s.order {
		if id == vendorID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether the vendor is selected.
func (s *Shortlist) Contains(vendorID string) bool {
	_, ok := s.entries[vendorID]
	return ok
}

// Len returns the number of selected vendors.
func (s *Shortlist) Len() int {
	return len(s.order)
}

// IDs returns selected vendor ids in selection order.
func (s *Shortlist) IDs() []string {
	return append([]string(nil), s.order...)
}

// Entries returns the snapshots in selection order.
func (s *Shortlist) Entries() []ShortlistEntry {
	out := make([]ShortlistEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// Clear empties the shortlist.
func (s *Shortlist) Clear() {
	s.order = nil
	s.entries = make(map[string]ShortlistEntry)
}

// View groups the selection by top-level category. Groups appear in the
// order their first vendor was selected and entries keep selection order.
func (s *Shortlist) View() []ShortlistGroup {
	var groups []ShortlistGroup
	index := make(map[string]int)
	for _, id := range s.order {
		entry := s.entries[id]
		cat := TopLevelCategory(entry.Category)
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, ShortlistGroup{Category: cat})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	return groups
}
