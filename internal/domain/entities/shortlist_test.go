package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func entryFor(id, category string) ShortlistEntry {
	return NewShortlistEntry(&Vendor{ID: id, Name: "Vendor " + id, Category: category, Media: []string{id + ".jpg"}}, time.Unix(0, 0))
}

func TestShortlistToggleParity(t *testing.T) {
	for toggles := 0; toggles <= 6; toggles++ {
		s := NewShortlist()
		for i := 0; i < toggles; i++ {
			s.Toggle(entryFor("x", "Transport"))
		}
		if got, want := s.Contains("x"), toggles%2 == 1; got != want {
			t.Errorf("after %d toggles Contains = %v, want %v", toggles, got, want)
		}
	}
}

func TestShortlistRemoveAlwaysUnselects(t *testing.T) {
	s := NewShortlist()
	s.Remove("x")
	assert.False(t, s.Contains("x"))

	s.Toggle(entryFor("x", "Transport"))
	s.Remove("x")
	assert.False(t, s.Contains("x"))
	assert.Equal(t, 0, s.Len())

	s.Remove("x")
	assert.False(t, s.Contains("x"))
}

func TestShortlistViewGroupsByCategory(t *testing.T) {
	s := NewShortlist()
	s.Toggle(entryFor("a", "Cakes & Desserts > Cupcakes"))
	s.Toggle(entryFor("b", "Entertainment > DJs"))
	s.Toggle(entryFor("c", "Cakes & Desserts"))
	s.Toggle(entryFor("d", ""))
	s.Remove("b")

	view := s.View()
	if assert.Len(t, view, 2) {
		assert.Equal(t, "Cakes & Desserts", view[0].Category)
		assert.Equal(t, "a", view[0].Entries[0].VendorID)
		assert.Equal(t, "c", view[0].Entries[1].VendorID)
		assert.Equal(t, CategoryOther, view[1].Category)
		assert.Equal(t, "d.jpg", view[1].Entries[0].Image)
	}
	assert.Equal(t, []string{"a", "c", "d"}, s.IDs())
}

func TestShortlistFromEntriesDeduplicates(t *testing.T) {
	s := ShortlistFromEntries([]ShortlistEntry{entryFor("a", "Transport"), entryFor("a", "Transport"), entryFor("b", "Venue Hire")})
	assert.Equal(t, []string{"a", "b"}, s.IDs())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.View())
}
