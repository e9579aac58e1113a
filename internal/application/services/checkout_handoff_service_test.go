package services

import (
	"context"
	"testing"
	"time"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCheckoutHandoff(t *testing.T) {
	selectedAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []entities.ShortlistEntry{
		{VendorID: "a", Name: "Old Name", Category: "Cakes & Desserts", SelectedAt: selectedAt},
		{VendorID: "gone", Name: "Gone Vendor", Category: "Transport", SelectedAt: selectedAt},
	}

	t.Run("delivers ids and refreshed snapshots", func(t *testing.T) {
		repo := new(MockVendorRepository)
		checkout := new(MockCheckoutProvider)
		svc := NewCheckoutHandoffService(repo, checkout)

		repo.On("GetByIDs", mock.Anything, []string{"a", "gone"}).Return([]*entities.Vendor{
			{ID: "a", Name: "New Name", Category: "Cakes & Desserts > Cupcakes", Media: []string{"a.jpg"}},
		}, nil)
		checkout.On("HandOff", mock.Anything, mock.MatchedBy(func(h *entities.BookingHandoff) bool {
			return h.SessionID == "s1" && len(h.VendorIDs) == 2 && h.ID != ""
		})).Return(nil)

		handoff, err := svc.HandOff(context.Background(), "s1", entries, entities.FilterState{CategoryFilter: "Cakes & Desserts"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "gone"}, handoff.VendorIDs)
		assert.Equal(t, "New Name", handoff.Entries[0].Name)
		assert.Equal(t, "a.jpg", handoff.Entries[0].Image)
		assert.Equal(t, selectedAt, handoff.Entries[0].SelectedAt)
		assert.Equal(t, "Gone Vendor", handoff.Entries[1].Name)
		assert.Equal(t, "Cakes & Desserts", handoff.Filters.CategoryFilter)
		checkout.AssertExpectations(t)
	})

	t.Run("empty shortlist is rejected", func(t *testing.T) {
		svc := NewCheckoutHandoffService(new(MockVendorRepository), new(MockCheckoutProvider))
		_, err := svc.HandOff(context.Background(), "s1", nil, entities.FilterState{})
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	})

	t.Run("checkout failure is returned", func(t *testing.T) {
		repo := new(MockVendorRepository)
		checkout := new(MockCheckoutProvider)
		svc := NewCheckoutHandoffService(repo, checkout)

		repo.On("GetByIDs", mock.Anything, mock.Anything).Return([]*entities.Vendor{}, nil)
		checkout.On("HandOff", mock.Anything, mock.Anything).Return(apperrors.NewUnavailableError("no checkout consumer"))

		_, err := svc.HandOff(context.Background(), "s1", entries, entities.FilterState{})
		assert.Equal(t, apperrors.ErrorTypeUnavailable, apperrors.TypeOf(err))
	})

	t.Run("without a provider the handoff is only logged", func(t *testing.T) {
		repo := new(MockVendorRepository)
		repo.On("GetByIDs", mock.Anything, mock.Anything).Return([]*entities.Vendor{}, nil)
		svc := NewCheckoutHandoffService(repo, nil)

		handoff, err := svc.HandOff(context.Background(), "s1", entries, entities.FilterState{})
		require.NoError(t, err)
		assert.Len(t, handoff.Entries, 2)
	})
}
