package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopLevelCategory(t *testing.T) {
	cases := map[string]string{
		"":                             CategoryOther,
		"   ":                          CategoryOther,
		"Cakes & Desserts":             "Cakes & Desserts",
		"Entertainment > DJs":          "Entertainment",
		"Catering & Food>Finger Food":  "Catering & Food",
		" > Orphan":                    CategoryOther,
	}
	for in, want := range cases {
		if got := TopLevelCategory(in); got != want {
			t.Errorf("TopLevelCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSubCategory(t *testing.T) {
	assert.Equal(t, "DJs", SubCategory("Entertainment > DJs"))
	assert.Equal(t, "", SubCategory("Entertainment"))
}

func TestCategoryColor(t *testing.T) {
	assert.Equal(t, "#FFF9C4", CategoryColor("Cakes & Desserts > Cupcakes"))
	assert.Equal(t, "#D7CCC8", CategoryColor(""))
	assert.Equal(t, "#D7CCC8", CategoryColor("Unknown"))
}

func TestPriceJSON(t *testing.T) {
	var numeric Price
	require.NoError(t, json.Unmarshal([]byte(`120`), &numeric))
	require.True(t, numeric.IsNumeric())
	assert.Equal(t, 120.0, *numeric.Amount)

	var text Price
	require.NoError(t, json.Unmarshal([]byte(`"$1,500"`), &text))
	require.True(t, text.IsNumeric())
	assert.Equal(t, 1500.0, *text.Amount)
	assert.Equal(t, "$1,500", text.String())

	var quote Price
	require.NoError(t, json.Unmarshal([]byte(`"from $50 per hour"`), &quote))
	assert.False(t, quote.IsNumeric())

	out, err := json.Marshal(NumericPrice(400))
	require.NoError(t, err)
	assert.Equal(t, `400`, string(out))

	out, err = json.Marshal(NewPrice("POA"))
	require.NoError(t, err)
	assert.Equal(t, `"POA"`, string(out))

	nan := NewPrice("NaN")
	assert.False(t, nan.IsNumeric())
	out, err = json.Marshal(nan)
	require.NoError(t, err)
	assert.Equal(t, `"NaN"`, string(out))
}

func TestCalendarDate(t *testing.T) {
	d, err := ParseCalendarDate("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, CalendarDate{Year: 2025, Month: time.March, Day: 10}, d)
	assert.Equal(t, "2025-03-10", d.String())

	d, err = ParseCalendarDate("2025-03-10T23:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, d.Day)

	_, err = ParseCalendarDate("10/03/2025")
	assert.Error(t, err)

	_, err = NewCalendarDate(2025, time.February, 31)
	assert.Error(t, err)
}

func TestVendorIsUnavailableOn(t *testing.T) {
	v := &Vendor{UnavailableDates: []CalendarDate{{Year: 2025, Month: time.March, Day: 10}}}
	if !v.IsUnavailableOn(CalendarDate{Year: 2025, Month: time.March, Day: 10}) {
		t.Error("expected vendor to be unavailable on 2025-03-10")
	}
	if v.IsUnavailableOn(CalendarDate{Year: 2025, Month: time.March, Day: 11}) {
		t.Error("expected vendor to be available on 2025-03-11")
	}
}

func TestVendorWithCoordinatesDoesNotMutate(t *testing.T) {
	v := &Vendor{ID: "a"}
	clone := v.WithCoordinates(Coordinates{Latitude: 1, Longitude: 2})
	assert.Nil(t, v.Coordinates)
	require.NotNil(t, clone.Coordinates)
	assert.Equal(t, 2.0, clone.Coordinates.Longitude)
}

func TestPointFeatureForSkipsSentinel(t *testing.T) {
	_, ok := PointFeatureFor(&Vendor{ID: "a"})
	assert.False(t, ok)

	_, ok = PointFeatureFor(&Vendor{ID: "b", Coordinates: &Coordinates{}})
	assert.False(t, ok)

	f, ok := PointFeatureFor(&Vendor{ID: "c", Name: "Cake Co", Category: "Cakes & Desserts > Cupcakes", Price: NumericPrice(120), Coordinates: &Coordinates{Latitude: 40.7, Longitude: -73.9}})
	require.True(t, ok)
	assert.Equal(t, "Cakes & Desserts", f.Category)
	assert.Equal(t, -73.9, f.Longitude)

	update := NewMarkerUpdate("s1", DefaultViewport(), []PointFeature{f})
	require.Len(t, update.Features.Features, 1)
	assert.Equal(t, [2]float64{-73.9, 40.7}, update.Features.Features[0].Geometry.Coordinates)
}

func TestMediaFailuresResolve(t *testing.T) {
	failures := MediaFailures{}
	failures.Mark(MediaKey{VendorID: "a", Index: 1})
	failures.Mark(MediaKey{VendorID: "a", Index: -1})

	v := &Vendor{ID: "a", Media: []string{"one.jpg", "two.jpg"}}
	assert.Equal(t, []string{"one.jpg", MediaPlaceholder}, failures.ResolveMedia(v))
	assert.Equal(t, []string{MediaPlaceholder}, failures.ResolveMedia(&Vendor{ID: "b"}))
	assert.Len(t, failures.Keys(), 1)
	assert.Equal(t, "a-1", MediaKey{VendorID: "a", Index: 1}.String())
}
