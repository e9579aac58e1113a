package services

import (
	"testing"
	"time"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
)

func newTestIntentParser(t *testing.T) *IntentParser {
	t.Helper()
	return NewIntentParser(func() time.Time {
		return time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	})
}

// --- Category rules ---

func TestIntent_CategoryRules(t *testing.T) {
	p := newTestIntentParser(t)
	cases := map[string]string{
		"birthday cake in Queens":            "Cakes & Desserts",
		"Desserts for 20 people":             "Cakes & Desserts",
		"finger food for the office":         "Catering & Food",
		"need catering":                      "Catering & Food",
		"street food truck":                  "Catering & Food",
		"games and activities for kids":      "Entertainment",
		"Entertainment for a wedding":        "Entertainment",
		"cake and food and games":            "Cakes & Desserts",
		"catering plus entertainment please": "Catering & Food",
	}
	for text, want := range cases {
		if got := p.Parse(text, ParseModeVibeFilter).CategoryGuess; got != want {
			t.Errorf("Parse(%q).CategoryGuess = %q, want %q", text, got, want)
		}
	}
}

func TestIntent_OtherFallbackOnlyInSearchBar(t *testing.T) {
	p := newTestIntentParser(t)

	if got := p.Parse("a photographer for my party", ParseModeVibeFilter).CategoryGuess; got != "" {
		t.Errorf("vibe filter mode should not guess a category, got %q", got)
	}
	if got := p.Parse("a photographer for my party", ParseModeSearchBar).CategoryGuess; got != entities.CategoryOther {
		t.Errorf("search bar mode should fall back to Other, got %q", got)
	}
	if got := p.Parse("   ", ParseModeSearchBar).CategoryGuess; got != "" {
		t.Errorf("blank text should not guess a category, got %q", got)
	}
}

func TestIntent_KeywordMustBeWholeWord(t *testing.T) {
	p := newTestIntentParser(t)
	if got := p.Parse("seafood pancakes", ParseModeVibeFilter).CategoryGuess; got != "" {
		t.Errorf("expected no category for partial-word matches, got %q", got)
	}
}

// --- Location ---

func TestIntent_Location(t *testing.T) {
	p := newTestIntentParser(t)
	cases := map[string]string{
		"birthday cake in Queens":           "Queens",
		"party IN   staten island ":         "staten island",
		"cake in Brooklyn, NY":              "Brooklyn",
		"cake in Queens next friday":        "Queens",
		"finger food in the Bronx for 30":   "the Bronx",
		"cake delivery":                     "",
		"cabin party":                       "",
		"something in 2025":                 "",
	}
	for text, want := range cases {
		if got := p.Parse(text, ParseModeVibeFilter).LocationGuess; got != want {
			t.Errorf("Parse(%q).LocationGuess = %q, want %q", text, got, want)
		}
	}
}

// --- Dates ---

func TestIntent_NumericDateIsDayFirst(t *testing.T) {
	p := newTestIntentParser(t)
	intent := p.Parse("cake in Queens 10/3/2025", ParseModeVibeFilter)
	if intent.DateGuess == nil {
		t.Fatal("expected a structured date")
	}
	want := entities.CalendarDate{Year: 2025, Month: time.March, Day: 10}
	if *intent.DateGuess != want {
		t.Errorf("DateGuess = %v, want %v", *intent.DateGuess, want)
	}
	if intent.DateText != "10/3/2025" {
		t.Errorf("DateText = %q", intent.DateText)
	}
}

func TestIntent_NumericDateYearCompletion(t *testing.T) {
	p := newTestIntentParser(t)

	intent := p.Parse("party on 4/7", ParseModeVibeFilter)
	if intent.DateGuess == nil || *intent.DateGuess != (entities.CalendarDate{Year: 2025, Month: time.July, Day: 4}) {
		t.Errorf("expected 2025-07-04, got %v", intent.DateGuess)
	}

	intent = p.Parse("party on 4/7/26", ParseModeVibeFilter)
	if intent.DateGuess == nil || intent.DateGuess.Year != 2026 {
		t.Errorf("expected two-digit year to map to 2026, got %v", intent.DateGuess)
	}
}

func TestIntent_NumericDateTakesPrecedence(t *testing.T) {
	p := newTestIntentParser(t)
	intent := p.Parse("next saturday, or 12/04", ParseModeVibeFilter)
	if intent.DateGuess == nil {
		t.Fatal("expected numeric date to win")
	}
	if intent.DateGuess.Month != time.April || intent.DateGuess.Day != 12 {
		t.Errorf("unexpected date %v", *intent.DateGuess)
	}
}

func TestIntent_TextualDateIsRaw(t *testing.T) {
	p := newTestIntentParser(t)

	intent := p.Parse("cake for the 21st March", ParseModeSearchBar)
	if intent.DateGuess != nil {
		t.Errorf("textual dates should not produce a structured date")
	}
	if intent.DateText != "21st March" {
		t.Errorf("DateText = %q, want %q", intent.DateText, "21st March")
	}

	intent = p.Parse("games next friday", ParseModeSearchBar)
	if intent.DateText != "next friday" {
		t.Errorf("DateText = %q, want %q", intent.DateText, "next friday")
	}
}

func TestIntent_InvalidNumericDateGivesNoStructuredDate(t *testing.T) {
	p := newTestIntentParser(t)
	for _, text := range []string{"party 31/02", "party 10/13/2025", "party 1/1/202"} {
		intent := p.Parse(text, ParseModeVibeFilter)
		if intent.DateGuess != nil {
			t.Errorf("Parse(%q) should not produce a date, got %v", text, *intent.DateGuess)
		}
	}
}

func TestIntent_NeverFails(t *testing.T) {
	p := newTestIntentParser(t)
	for _, text := range []string{"", "in", "in ", "99/99/9999", "next", "🎂🎉", "in in in"} {
		_ = p.Parse(text, ParseModeSearchBar)
		_ = p.Parse(text, ParseModeVibeFilter)
	}
}

// --- Apply ---

func TestIntent_ApplyLeavesAbsentDimensions(t *testing.T) {
	p := newTestIntentParser(t)
	base := entities.FilterState{CategoryFilter: "Venue Hire", LocationSubstring: "Bronx"}

	got := p.Parse("something fun in Queens", ParseModeVibeFilter).Apply(base)
	if got.CategoryFilter != "Venue Hire" {
		t.Errorf("category should be untouched, got %q", got.CategoryFilter)
	}
	if got.LocationSubstring != "Queens" {
		t.Errorf("location = %q, want Queens", got.LocationSubstring)
	}
	if base.LocationSubstring != "Bronx" {
		t.Errorf("Apply must not mutate its input")
	}

	got = p.Parse("cake 10/3/2025", ParseModeVibeFilter).Apply(base)
	if got.CategoryFilter != "Cakes & Desserts" || got.DateFilter == nil || got.DateFilter.Day != 10 {
		t.Errorf("unexpected filter state %+v", got)
	}
}
