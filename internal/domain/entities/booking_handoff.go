package entities

import "time"

// BookingHandoff is what the checkout collaborator receives on continue-to-booking.
type BookingHandoff struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	VendorIDs []string         `json:"vendor_ids"`
	Entries   []ShortlistEntry `json:"entries"`
	Filters   FilterState      `json:"filters"`
	CreatedAt time.Time        `json:"created_at"`
}

// CategoryGroup is one section of the composed discovery view.
type CategoryGroup struct {
	Category string    `json:"category"`
	Vendors  []*Vendor `json:"vendors"`
}
