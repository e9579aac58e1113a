package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	tsclient "github.com/partaibook/vendor-discovery/internal/infrastructure/clients/typesense"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
)

const maxPerPage = 250

// TypesenseAdapter implements vendor geo search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.VendorSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a geocoded vendor. Vendors without usable coordinates are
// not indexed; the database query picks them up instead.
func (a *TypesenseAdapter) Index(ctx context.Context, vendor *entities.Vendor) error {
	document, ok := buildVendorDocument(vendor)
	if !ok {
		return nil
	}

	_, err := a.client.Client().Collection(tsclient.VendorsCollection).Documents().Upsert(ctx, document)
	if err != nil {
		return apperrors.NewExternalError(fmt.Sprintf("failed to index vendor %s", vendor.ID), err)
	}
	return nil
}

// Delete removes a vendor from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.VendorsCollection).Document(id).Delete(ctx)
	if err != nil {
		return apperrors.NewExternalError("failed to delete vendor from index", err)
	}
	return nil
}

// SearchIDsWithinBounds returns ids of indexed vendors inside the viewport
func (a *TypesenseAdapter) SearchIDsWithinBounds(ctx context.Context, viewport entities.Viewport, limit int) ([]string, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}

	params := &api.SearchCollectionParams{
		Q:             pointer.String("*"),
		QueryBy:       pointer.String("name"),
		FilterBy:      pointer.String(buildViewportFilter(viewport)),
		IncludeFields: pointer.String("id"),
		PerPage:       pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.VendorsCollection).Documents().Search(ctx, params)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to search vendors", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func buildVendorDocument(vendor *entities.Vendor) (map[string]interface{}, bool) {
	if vendor == nil || !vendor.HasCoordinates() || vendor.Coordinates.IsSentinel() {
		return nil, false
	}

	document := map[string]interface{}{
		"id":            vendor.ID,
		"name":          vendor.Name,
		"category":      vendor.TopLevelCategory(),
		"location_text": vendor.LocationText,
		"location":      []float64{vendor.Coordinates.Latitude, vendor.Coordinates.Longitude},
		"created_at":    vendor.CreatedAt.Unix(),
	}
	if sub := entities.SubCategory(vendor.Category); sub != "" {
		document["sub_category"] = sub
	}
	if vendor.Price.Amount != nil {
		document["price"] = *vendor.Price.Amount
	}
	if facets := enabledFacets(vendor.Facets); len(facets) > 0 {
		document["facets"] = facets
	}
	return document, true
}

func enabledFacets(facets map[string]bool) []string {
	out := make([]string, 0, len(facets))
	for name, enabled := range facets {
		if enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// buildViewportFilter renders the viewport as a geopoint polygon filter. Boxes
// crossing the antimeridian become two polygons joined with OR.
func buildViewportFilter(viewport entities.Viewport) string {
	if viewport.CrossesAntimeridian() {
		west := entities.Viewport{South: viewport.South, North: viewport.North, West: viewport.West, East: 180}
		east := entities.Viewport{South: viewport.South, North: viewport.North, West: -180, East: viewport.East}
		return polygonFilter(west) + " || " + polygonFilter(east)
	}
	return polygonFilter(viewport)
}

func polygonFilter(viewport entities.Viewport) string {
	points := viewport.Polygon()
	parts := make([]string, 0, len(points)*2)
	for _, p := range points {
		parts = append(parts, formatCoord(p[0]), formatCoord(p[1]))
	}
	return "location:(" + strings.Join(parts, ", ") + ")"
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
