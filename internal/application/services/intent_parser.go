package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
)

// ParseMode selects how the intent parser treats text that matches no
// category rule.
type ParseMode int

const (
	// ParseModeVibeFilter is the inline vibe box on the results page. An
	// unmatched vibe leaves the category filter untouched.
	ParseModeVibeFilter ParseMode = iota
	// ParseModeSearchBar is the landing search bar. An unmatched query
	// falls back to the Other category.
	ParseModeSearchBar
)

func (m ParseMode) String() string {
	if m == ParseModeSearchBar {
		return "search_bar"
	}
	return "vibe_filter"
}

// Intent is the best-effort reading of a free-text vibe. Every field is
// optional; an empty Intent means nothing was recognised.
type Intent struct {
	CategoryGuess string                 `json:"category,omitempty"`
	LocationGuess string                 `json:"location,omitempty"`
	DateGuess     *entities.CalendarDate `json:"date,omitempty"`
	DateText      string                 `json:"date_text,omitempty"`
}

// HasDate reports whether any date signal was found.
func (i Intent) HasDate() bool {
	return i.DateGuess != nil || i.DateText != ""
}

type categoryRule struct {
	category string
	keywords []string
}

// Evaluated in order; the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{category: "Cakes & Desserts", keywords: []string{"cake", "dessert"}},
	{category: "Catering & Food", keywords: []string{"finger food", "catering", "food"}},
	{category: "Entertainment", keywords: []string{"entertainment", "games", "activities"}},
}

var (
	wordPattern     = regexp.MustCompile(`[\p{L}\p{N}]+`)
	locationPattern = regexp.MustCompile(`(?i)\bin\s+([a-z][a-z\s]*)`)
	numericDate     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	textualDate     = regexp.MustCompile(`(?i)\b(\d{1,2}(?:st|nd|rd|th)?\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*|next\s+\w+)\b`)
)

// Words that end a location phrase: "in Queens next friday" is Queens.
var locationStopWords = map[string]struct{}{
	"next": {}, "this": {}, "on": {}, "for": {}, "with": {}, "by": {},
	"under": {}, "around": {}, "at": {}, "from": {}, "and": {}, "near": {},
	"tomorrow": {}, "today": {}, "tonight": {},
}

// IntentParser turns a vibe into category, location and date guesses. It
// is stateless apart from the clock used to complete year-less dates.
type IntentParser struct {
	now func() time.Time
}

// NewIntentParser creates a parser. A nil clock uses time.Now.
func NewIntentParser(now func() time.Time) *IntentParser {
	if now == nil {
		now = time.Now
	}
	return &IntentParser{now: now}
}

// Parse never fails: anything it cannot read is left empty.
func (p *IntentParser) Parse(text string, mode ParseMode) Intent {
	var intent Intent

	intent.CategoryGuess = matchCategory(text)
	if intent.CategoryGuess == "" && mode == ParseModeSearchBar && strings.TrimSpace(text) != "" {
		intent.CategoryGuess = entities.CategoryOther
	}

	intent.LocationGuess = matchLocation(text)

	if date, raw, ok := p.matchNumericDate(text); ok {
		intent.DateGuess = &date
		intent.DateText = raw
	} else if raw := textualDate.FindString(text); raw != "" {
		intent.DateText = strings.TrimSpace(raw)
	}

	return intent
}

// Apply folds an intent into a filter state. Absent guesses leave the
// corresponding filter as it was.
func (i Intent) Apply(f entities.FilterState) entities.FilterState {
	out := f.Clone()
	if i.CategoryGuess != "" {
		out.CategoryFilter = i.CategoryGuess
	}
	if i.LocationGuess != "" {
		out.LocationSubstring = i.LocationGuess
	}
	if i.DateGuess != nil {
		d := *i.DateGuess
		out.DateFilter = &d
	}
	return out
}

func matchCategory(text string) string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return ""
	}
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if containsPhrase(words, strings.Fields(keyword)) {
				return rule.category
			}
		}
	}
	return ""
}

// containsPhrase matches consecutive words, allowing a plural "s" on the
// last word of the phrase.
func containsPhrase(words, phrase []string) bool {
	n := len(phrase)
	for i := 0; i+n <= len(words); i++ {
		matched := true
		for j, want := range phrase {
			got := words[i+j]
			if got == want {
				continue
			}
			if j == n-1 && got == want+"s" {
				continue
			}
			matched = false
			break
		}
		if matched {
			return true
		}
	}
	return false
}

func matchLocation(text string) string {
	m := locationPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	var kept []string
	for _, word := range strings.Fields(m[1]) {
		if _, stop := locationStopWords[strings.ToLower(word)]; stop {
			break
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// matchNumericDate reads day/month[/year], day first. Invalid calendar
// dates produce no guess.
func (p *IntentParser) matchNumericDate(text string) (entities.CalendarDate, string, bool) {
	m := numericDate.FindStringSubmatch(text)
	if m == nil {
		return entities.CalendarDate{}, "", false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])

	year := p.now().Year()
	if m[3] != "" {
		y, _ := strconv.Atoi(m[3])
		switch len(m[3]) {
		case 2:
			year = 2000 + y
		case 4:
			year = y
		default:
			return entities.CalendarDate{}, "", false
		}
	}

	date, err := entities.NewCalendarDate(year, time.Month(month), day)
	if err != nil {
		return entities.CalendarDate{}, "", false
	}
	return date, m[0], true
}
