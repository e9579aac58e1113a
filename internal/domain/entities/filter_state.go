package entities

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Query parameter names shared by the discovery view.
const (
	QueryParamVibe     = "q"
	QueryParamDate     = "date"
	QueryParamCategory = "category"
	QueryParamLocation = "location"
	QueryParamBudget   = "budget"
	QueryParamFacet    = "facet"
)

// FilterState is the full set of filter dimensions for one discovery session.
// Composition is a pure function of the vendor collection and this value.
type FilterState struct {
	Vibe              string              `json:"vibe,omitempty"`
	CategoryFilter    string              `json:"category,omitempty"`
	LocationSubstring string              `json:"location,omitempty"`
	DateFilter        *CalendarDate       `json:"date,omitempty"`
	BudgetCeiling     *float64            `json:"budget,omitempty"`
	FacetSelections   map[string][]string `json:"facets,omitempty"`
}

// Clone returns a deep copy so callers can mutate without sharing maps.
func (f FilterState) Clone() FilterState {
	out := f
	if f.DateFilter != nil {
		d := *f.DateFilter
		out.DateFilter = &d
	}
	if f.BudgetCeiling != nil {
		b := *f.BudgetCeiling
		out.BudgetCeiling = &b
	}
	if f.FacetSelections != nil {
		out.FacetSelections = make(map[string][]string, len(f.FacetSelections))
		for cat, facets := range f.FacetSelections {
			out.FacetSelections[cat] = append([]string(nil), facets...)
		}
	}
	return out
}

// SelectedFacets returns the facets required for vendors in category.
func (f FilterState) SelectedFacets(category string) []string {
	if f.FacetSelections == nil {
		return nil
	}
	return f.FacetSelections[category]
}

// ToggleFacet adds or removes a facet requirement for a category.
func (f *FilterState) ToggleFacet(category, facet string) {
	if f.FacetSelections == nil {
		f.FacetSelections = make(map[string][]string)
	}
	current := f.FacetSelections[category]
	for i, existing := range current {
		if existing == facet {
			f.FacetSelections[category] = append(current[:i:i], current[i+1:]...)
			if len(f.FacetSelections[category]) == 0 {
				delete(f.FacetSelections, category)
			}
			return
		}
	}
	f.FacetSelections[category] = append(current, facet)
}

// FilterStateFromQuery initialises a FilterState from URL query parameters.
// Unparseable dates and budgets are ignored rather than rejected.
func FilterStateFromQuery(values url.Values) FilterState {
	f := FilterState{
		Vibe:              strings.TrimSpace(values.Get(QueryParamVibe)),
		CategoryFilter:    strings.TrimSpace(values.Get(QueryParamCategory)),
		LocationSubstring: strings.TrimSpace(values.Get(QueryParamLocation)),
	}
	if raw := values.Get(QueryParamDate); raw != "" {
		if d, err := ParseCalendarDate(raw); err == nil {
			f.DateFilter = &d
		}
	}
	if raw := values.Get(QueryParamBudget); raw != "" {
		if b, ok := ParseBudget(raw); ok {
			f.BudgetCeiling = &b
		}
	}
	for _, raw := range values[QueryParamFacet] {
		category, facet, found := strings.Cut(raw, ":")
		if !found || strings.TrimSpace(category) == "" || strings.TrimSpace(facet) == "" {
			continue
		}
		if f.FacetSelections == nil {
			f.FacetSelections = make(map[string][]string)
		}
		f.FacetSelections[strings.TrimSpace(category)] = append(f.FacetSelections[strings.TrimSpace(category)], strings.TrimSpace(facet))
	}
	return f
}

// Query re-emits the FilterState as URL query parameters so the view stays
// bookmarkable. Unset fields are omitted.
func (f FilterState) Query() url.Values {
	values := url.Values{}
	if f.Vibe != "" {
		values.Set(QueryParamVibe, f.Vibe)
	}
	if f.DateFilter != nil {
		values.Set(QueryParamDate, f.DateFilter.String())
	}
	if f.CategoryFilter != "" {
		values.Set(QueryParamCategory, f.CategoryFilter)
	}
	if f.LocationSubstring != "" {
		values.Set(QueryParamLocation, f.LocationSubstring)
	}
	if f.BudgetCeiling != nil {
		values.Set(QueryParamBudget, strconv.FormatFloat(*f.BudgetCeiling, 'f', -1, 64))
	}
	categories := make([]string, 0, len(f.FacetSelections))
	for cat := range f.FacetSelections {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		for _, facet := range f.FacetSelections[cat] {
			values.Add(QueryParamFacet, cat+":"+facet)
		}
	}
	return values
}

// WithinBudget reports whether a vendor's price fits the ceiling. The second
// result is false when either side is not numeric.
func (f FilterState) WithinBudget(v *Vendor) (bool, bool) {
	if f.BudgetCeiling == nil || v == nil || v.Price.Amount == nil {
		return false, false
	}
	return *v.Price.Amount <= *f.BudgetCeiling, true
}
