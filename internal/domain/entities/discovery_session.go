package entities

import "time"

// DiscoverySessionState is the persisted form of a discovery session. The
// vendor collection is not stored; it is re-fetched for the viewport on resume.
type DiscoverySessionState struct {
	ID            string           `json:"id"`
	Filters       FilterState      `json:"filters"`
	Viewport      Viewport         `json:"viewport"`
	Shortlist     []ShortlistEntry `json:"shortlist"`
	MediaFailures []MediaKey       `json:"media_failures,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
