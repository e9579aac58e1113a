package loaders

import (
	"context"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains the request-scoped dataloaders
type Loaders struct {
	VendorLoader *dataloader.Loader[string, *entities.Vendor]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(vendorRepo repositories.VendorRepository) *Loaders {
	return &Loaders{
		VendorLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Vendor] {
			results := make([]*dataloader.Result[*entities.Vendor], len(keys))
			vendors, err := vendorRepo.GetByIDs(ctx, keys)

			vendorMap := make(map[string]*entities.Vendor)
			if err == nil {
				for _, v := range vendors {
					vendorMap[v.ID] = v
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.Vendor]{Error: err}
				} else if v, ok := vendorMap[key]; ok {
					results[i] = &dataloader.Result[*entities.Vendor]{Data: v}
				} else {
					results[i] = &dataloader.Result[*entities.Vendor]{Error: apperrors.NewNotFoundError("vendor " + key)}
				}
			}
			return results
		}),
	}
}

// For returns the loaders for a given context, or nil if none are attached
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches fresh loaders to every request so batching and
// caching never leak across requests
func Middleware(vendorRepo repositories.VendorRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(vendorRepo))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadVendors loads vendors by id through the batched loader. Missing ids
// are skipped; any other failure is returned.
func (l *Loaders) LoadVendors(ctx context.Context, ids []string) ([]*entities.Vendor, error) {
	vendors, errs := l.VendorLoader.LoadMany(ctx, ids)()

	out := make([]*entities.Vendor, 0, len(ids))
	for i := range ids {
		if i < len(errs) && errs[i] != nil {
			if apperrors.IsNotFound(errs[i]) {
				continue
			}
			return nil, errs[i]
		}
		if i < len(vendors) && vendors[i] != nil {
			out = append(out, vendors[i])
		}
	}
	return out, nil
}
