package entities

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Vendor represents a local service provider that can be booked for an event.
// Records are read-only for discovery, except Coordinates which is derived once
// from LocationText by geocoding.
type Vendor struct {
	ID               string          `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Category         string          `json:"category" db:"category"`
	LocationText     string          `json:"location" db:"location"`
	Coordinates      *Coordinates    `json:"coordinates,omitempty" db:"-"`
	Price            Price           `json:"price" db:"price"`
	UnavailableDates []CalendarDate  `json:"unavailable_dates" db:"-"`
	Media            []string        `json:"media" db:"-"`
	Facets           map[string]bool `json:"facets,omitempty" db:"-"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SentinelCoordinates is assigned when a location could not be geocoded.
var SentinelCoordinates = Coordinates{Latitude: 0, Longitude: 0}

// IsSentinel reports whether c is the geocoding fallback coordinate.
func (c Coordinates) IsSentinel() bool {
	return c == SentinelCoordinates
}

// HasCoordinates reports whether the vendor carries derived coordinates.
func (v *Vendor) HasCoordinates() bool {
	return v != nil && v.Coordinates != nil
}

// TopLevelCategory returns the group the vendor is listed under.
func (v *Vendor) TopLevelCategory() string {
	return TopLevelCategory(v.Category)
}

// Facet returns the value of a boolean facet. Missing facets are false.
func (v *Vendor) Facet(name string) bool {
	if v.Facets == nil {
		return false
	}
	return v.Facets[name]
}

// IsUnavailableOn reports whether the vendor has blocked the given date.
func (v *Vendor) IsUnavailableOn(date CalendarDate) bool {
	for _, d := range v.UnavailableDates {
		if d == date {
			return true
		}
	}
	return false
}

// WithCoordinates returns a shallow copy of the vendor carrying coords.
func (v *Vendor) WithCoordinates(coords Coordinates) *Vendor {
	clone := *v
	clone.Coordinates = &coords
	return &clone
}

// PrimaryMedia returns the first media URL, or "" when the vendor has none.
func (v *Vendor) PrimaryMedia() string {
	if len(v.Media) == 0 {
		return ""
	}
	return v.Media[0]
}

// Price holds a vendor's advertised price. Display text is kept as given;
// Amount is set only when the text is a plain number (optionally prefixed by
// a currency symbol), which is the only case usable against a budget.
type Price struct {
	Text   string   `json:"-"`
	Amount *float64 `json:"-"`
}

// NewPrice parses display text into a Price.
func NewPrice(text string) Price {
	p := Price{Text: strings.TrimSpace(text)}
	if amount, ok := parseAmount(p.Text); ok {
		p.Amount = &amount
	}
	return p
}

// NumericPrice builds a Price from a number.
func NumericPrice(amount float64) Price {
	return Price{Text: strconv.FormatFloat(amount, 'f', -1, 64), Amount: &amount}
}

// IsNumeric reports whether the price can be compared with a budget.
func (p Price) IsNumeric() bool {
	return p.Amount != nil
}

// String returns the display form of the price.
func (p Price) String() string {
	return p.Text
}

// MarshalJSON emits numbers for numeric prices and strings otherwise.
func (p Price) MarshalJSON() ([]byte, error) {
	if p.Amount != nil && p.Text == strconv.FormatFloat(*p.Amount, 'f', -1, 64) {
		return json.Marshal(*p.Amount)
	}
	return json.Marshal(p.Text)
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (p *Price) UnmarshalJSON(data []byte) error {
	var amount float64
	if err := json.Unmarshal(data, &amount); err == nil {
		*p = NumericPrice(amount)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("price must be a number or string: %w", err)
	}
	*p = NewPrice(text)
	return nil
}

func parseAmount(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	s = strings.TrimLeft(s, "$£€")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(s, 64)
	// NaN and Inf parse but cannot be encoded as JSON numbers.
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, false
	}
	return amount, true
}

// ParseBudget parses a budget ceiling such as "200" or "$1,500".
func ParseBudget(text string) (float64, bool) {
	return parseAmount(text)
}
