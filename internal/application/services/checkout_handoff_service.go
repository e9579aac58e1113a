package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	"github.com/partaibook/vendor-discovery/internal/loaders"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
	"github.com/rs/zerolog/log"
)

// CheckoutHandoffService passes a session's shortlist to the checkout
// collaborator. The shortlist itself is left untouched.
type CheckoutHandoffService struct {
	vendors  repositories.VendorRepository
	checkout providers.CheckoutProvider
	now      func() time.Time
}

// NewCheckoutHandoffService creates a new checkout handoff service. A nil
// checkout provider logs handoffs instead of delivering them.
func NewCheckoutHandoffService(vendors repositories.VendorRepository, checkout providers.CheckoutProvider) *CheckoutHandoffService {
	return &CheckoutHandoffService{
		vendors:  vendors,
		checkout: checkout,
		now:      time.Now,
	}
}

// HandOff refreshes the entry snapshots from the vendor store and delivers
// ids plus snapshots to checkout. Entries whose vendor has since vanished
// keep the snapshot taken at selection time.
func (s *CheckoutHandoffService) HandOff(ctx context.Context, sessionID string, entries []entities.ShortlistEntry, filters entities.FilterState) (*entities.BookingHandoff, error) {
	if len(entries) == 0 {
		return nil, apperrors.NewValidationError("shortlist is empty")
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.VendorID
	}

	fresh, err := s.loadVendors(ctx, ids)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load shortlisted vendors", err)
	}
	byID := make(map[string]*entities.Vendor, len(fresh))
	for _, v := range fresh {
		byID[v.ID] = v
	}

	snapshots := make([]entities.ShortlistEntry, len(entries))
	for i, e := range entries {
		snapshots[i] = e
		if v, ok := byID[e.VendorID]; ok {
			refreshed := entities.NewShortlistEntry(v, e.SelectedAt)
			snapshots[i] = refreshed
		}
	}

	handoff := &entities.BookingHandoff{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		VendorIDs: ids,
		Entries:   snapshots,
		Filters:   filters.Clone(),
		CreatedAt: s.now(),
	}

	if s.checkout == nil {
		log.Info().
			Str("handoff_id", handoff.ID).
			Str("session_id", sessionID).
			Strs("vendor_ids", ids).
			Msg("No checkout provider configured, handoff logged only")
		return handoff, nil
	}

	if err := s.checkout.HandOff(ctx, handoff); err != nil {
		return nil, err
	}
	return handoff, nil
}

func (s *CheckoutHandoffService) loadVendors(ctx context.Context, ids []string) ([]*entities.Vendor, error) {
	l := loaders.For(ctx)
	if l == nil {
		l = loaders.NewLoaders(s.vendors)
	}
	return l.LoadVendors(ctx, ids)
}
