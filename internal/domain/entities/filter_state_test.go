package entities

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterStateFromQuery(t *testing.T) {
	values, err := url.ParseQuery("q=birthday+cake+in+Queens&date=2025-03-10&category=Cakes+%26+Desserts&location=Queens&budget=200&facet=Cakes+%26+Desserts:delivery")
	require.NoError(t, err)

	f := FilterStateFromQuery(values)
	assert.Equal(t, "birthday cake in Queens", f.Vibe)
	assert.Equal(t, "Cakes & Desserts", f.CategoryFilter)
	assert.Equal(t, "Queens", f.LocationSubstring)
	require.NotNil(t, f.DateFilter)
	assert.Equal(t, CalendarDate{Year: 2025, Month: time.March, Day: 10}, *f.DateFilter)
	require.NotNil(t, f.BudgetCeiling)
	assert.Equal(t, 200.0, *f.BudgetCeiling)
	assert.Equal(t, []string{"delivery"}, f.SelectedFacets("Cakes & Desserts"))
}

func TestFilterStateFromQuery_IgnoresMalformed(t *testing.T) {
	f := FilterStateFromQuery(url.Values{"date": {"next week"}, "budget": {"cheap"}, "facet": {"nocolon"}})
	assert.Nil(t, f.DateFilter)
	assert.Nil(t, f.BudgetCeiling)
	assert.Empty(t, f.FacetSelections)

	for _, budget := range []string{"NaN", "Inf", "-Inf", "+Infinity", "1e999"} {
		f := FilterStateFromQuery(url.Values{"budget": {budget}})
		assert.Nil(t, f.BudgetCeiling, budget)
	}
}

func TestFilterStateQueryRoundTrip(t *testing.T) {
	date := CalendarDate{Year: 2025, Month: time.March, Day: 11}
	budget := 150.5
	f := FilterState{
		Vibe:              "party",
		CategoryFilter:    "Entertainment",
		LocationSubstring: "Bronx",
		DateFilter:        &date,
		BudgetCeiling:     &budget,
		FacetSelections:   map[string][]string{"Entertainment": {"indoor", "travel"}},
	}

	values := f.Query()
	assert.Equal(t, "2025-03-11", values.Get("date"))
	assert.Equal(t, "150.5", values.Get("budget"))
	assert.Equal(t, f, FilterStateFromQuery(values))

	assert.Empty(t, FilterState{}.Query().Encode())
}

func TestFilterStateToggleFacet(t *testing.T) {
	var f FilterState
	f.ToggleFacet("Venue Hire", "outdoor")
	f.ToggleFacet("Venue Hire", "parking")
	assert.Equal(t, []string{"outdoor", "parking"}, f.SelectedFacets("Venue Hire"))

	f.ToggleFacet("Venue Hire", "outdoor")
	assert.Equal(t, []string{"parking"}, f.SelectedFacets("Venue Hire"))

	f.ToggleFacet("Venue Hire", "parking")
	_, present := f.FacetSelections["Venue Hire"]
	assert.False(t, present)
}

func TestFilterStateCloneIsDeep(t *testing.T) {
	budget := 100.0
	f := FilterState{BudgetCeiling: &budget, FacetSelections: map[string][]string{"Transport": {"wifi"}}}
	clone := f.Clone()
	*clone.BudgetCeiling = 50
	clone.FacetSelections["Transport"][0] = "bar"

	assert.Equal(t, 100.0, *f.BudgetCeiling)
	assert.Equal(t, "wifi", f.FacetSelections["Transport"][0])
}

func TestFilterStateWithinBudget(t *testing.T) {
	budget := 200.0
	f := FilterState{BudgetCeiling: &budget}

	within, known := f.WithinBudget(&Vendor{Price: NumericPrice(120)})
	assert.True(t, known)
	assert.True(t, within)

	within, known = f.WithinBudget(&Vendor{Price: NumericPrice(400)})
	assert.True(t, known)
	assert.False(t, within)

	_, known = f.WithinBudget(&Vendor{Price: NewPrice("on request")})
	assert.False(t, known)

	_, known = FilterState{}.WithinBudget(&Vendor{Price: NumericPrice(1)})
	assert.False(t, known)
}
