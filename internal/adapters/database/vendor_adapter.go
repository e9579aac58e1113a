package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/clients/postgres"
	"github.com/partaibook/vendor-discovery/internal/infrastructure/observability"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
)

const vendorsTable = "vendors"

var vendorColumns = []interface{}{
	"id", "name", "category", "location", "latitude", "longitude",
	"price", "unavailable_dates", "media", "facets", "created_at",
}

// VendorAdapter implements the VendorRepository interface on PostgreSQL
type VendorAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

var _ repositories.VendorRepository = (*VendorAdapter)(nil)

// NewVendorAdapter creates a new vendor adapter
func NewVendorAdapter(client *postgres.Client, metrics *observability.Metrics) *VendorAdapter {
	return &VendorAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// FetchAll returns every vendor ordered by creation time
func (a *VendorAdapter) FetchAll(ctx context.Context) ([]*entities.Vendor, error) {
	ds := a.db.From(vendorsTable).Select(vendorColumns...).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())
	return a.query(ctx, "fetch_all", ds)
}

// FetchWithinBounds returns vendors inside the viewport and vendors that have
// not been geocoded yet, so the caller can geocode and place them.
func (a *VendorAdapter) FetchWithinBounds(ctx context.Context, viewport entities.Viewport) ([]*entities.Vendor, error) {
	if err := viewport.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	ds := a.db.From(vendorsTable).Select(vendorColumns...).
		Where(goqu.Or(
			goqu.And(
				goqu.C("latitude").Gte(viewport.South),
				goqu.C("latitude").Lte(viewport.North),
				longitudeCondition(viewport),
			),
			goqu.C("latitude").IsNull(),
		)).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())
	return a.query(ctx, "fetch_within_bounds", ds)
}

func longitudeCondition(viewport entities.Viewport) exp.Expression {
	if viewport.CrossesAntimeridian() {
		return goqu.Or(
			goqu.C("longitude").Gte(viewport.West),
			goqu.C("longitude").Lte(viewport.East),
		)
	}
	return goqu.And(
		goqu.C("longitude").Gte(viewport.West),
		goqu.C("longitude").Lte(viewport.East),
	)
}

// FetchMissingCoordinates returns vendors that have never been geocoded
func (a *VendorAdapter) FetchMissingCoordinates(ctx context.Context, limit int) ([]*entities.Vendor, error) {
	ds := a.db.From(vendorsTable).Select(vendorColumns...).
		Where(goqu.C("latitude").IsNull()).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return a.query(ctx, "fetch_missing_coordinates", ds)
}

// GetByIDs retrieves vendors by id in the order requested; unknown ids are skipped
func (a *VendorAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Vendor, error) {
	if len(ids) == 0 {
		return []*entities.Vendor{}, nil
	}

	ds := a.db.From(vendorsTable).Select(vendorColumns...).Where(goqu.Ex{"id": ids})
	vendors, err := a.query(ctx, "get_by_ids", ds)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.Vendor, len(vendors))
	for _, v := range vendors {
		byID[v.ID] = v
	}
	ordered := make([]*entities.Vendor, 0, len(vendors))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			ordered = append(ordered, v)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// UpdateCoordinates stores geocoded coordinates once. A vendor that already
// has coordinates is left untouched.
func (a *VendorAdapter) UpdateCoordinates(ctx context.Context, vendorID string, coords entities.Coordinates) error {
	ds := a.db.Update(vendorsTable).
		Set(goqu.Record{
			"latitude":  coords.Latitude,
			"longitude": coords.Longitude,
		}).
		Where(goqu.Ex{"id": vendorID, "latitude": nil})

	query, args, err := ds.ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build coordinate update", err)
	}

	start := time.Now()
	result, err := a.client.DB().ExecContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, "update_coordinates", time.Since(start))
	if err != nil {
		return apperrors.NewInternalError("failed to update vendor coordinates", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		log.Debug().Str("vendor_id", vendorID).Msg("coordinates already set, write skipped")
	}
	return nil
}

// Upsert inserts a vendor or refreshes its listing fields. Stored
// coordinates are kept; incoming coordinates only fill a missing pair.
func (a *VendorAdapter) Upsert(ctx context.Context, vendor *entities.Vendor) error {
	record, err := vendorRecord(vendor)
	if err != nil {
		return err
	}

	ds := a.db.Insert(vendorsTable).Rows(record).OnConflict(goqu.DoUpdate("id", goqu.Record{
		"name":              goqu.L("EXCLUDED.name"),
		"category":          goqu.L("EXCLUDED.category"),
		"location":          goqu.L("EXCLUDED.location"),
		"price":             goqu.L("EXCLUDED.price"),
		"unavailable_dates": goqu.L("EXCLUDED.unavailable_dates"),
		"media":             goqu.L("EXCLUDED.media"),
		"facets":            goqu.L("EXCLUDED.facets"),
		"latitude":          goqu.L("COALESCE(vendors.latitude, EXCLUDED.latitude)"),
		"longitude":         goqu.L("COALESCE(vendors.longitude, EXCLUDED.longitude)"),
	}))

	query, args, err := ds.ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build vendor upsert", err)
	}

	start := time.Now()
	_, err = a.client.DB().ExecContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, "upsert", time.Since(start))
	if err != nil {
		return apperrors.NewInternalError("failed to upsert vendor", err)
	}
	return nil
}

func vendorRecord(v *entities.Vendor) (goqu.Record, error) {
	if v == nil || v.ID == "" || v.Name == "" {
		return nil, apperrors.NewValidationError("vendor id and name are required")
	}

	facets := v.Facets
	if facets == nil {
		facets = map[string]bool{}
	}
	facetsJSON, err := json.Marshal(facets)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode vendor facets", err)
	}

	dates := make([]string, 0, len(v.UnavailableDates))
	for _, d := range v.UnavailableDates {
		dates = append(dates, d.String())
	}
	media := v.Media
	if media == nil {
		media = []string{}
	}

	created := v.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	record := goqu.Record{
		"id":                v.ID,
		"name":              v.Name,
		"category":          v.Category,
		"location":          v.LocationText,
		"latitude":          nil,
		"longitude":         nil,
		"price":             v.Price.String(),
		"unavailable_dates": pq.Array(dates),
		"media":             pq.Array(media),
		"facets":            string(facetsJSON),
		"created_at":        created,
	}
	// The sentinel is never stored.
	if v.HasCoordinates() && !v.Coordinates.IsSentinel() {
		record["latitude"] = v.Coordinates.Latitude
		record["longitude"] = v.Coordinates.Longitude
	}
	return record, nil
}

func (a *VendorAdapter) query(ctx context.Context, operation string, ds *goqu.SelectDataset) ([]*entities.Vendor, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build vendor query", err)
	}

	start := time.Now()
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, operation, time.Since(start))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query vendors", err)
	}
	defer rows.Close()

	vendors := []*entities.Vendor{}
	for rows.Next() {
		vendor, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, vendor)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate vendors", err)
	}

	return vendors, nil
}

func scanVendor(rows *sql.Rows) (*entities.Vendor, error) {
	var (
		vendor     entities.Vendor
		lat, lon   sql.NullFloat64
		price      string
		dates      []string
		facetsJSON []byte
	)

	err := rows.Scan(
		&vendor.ID,
		&vendor.Name,
		&vendor.Category,
		&vendor.LocationText,
		&lat,
		&lon,
		&price,
		pq.Array(&dates),
		pq.Array(&vendor.Media),
		&facetsJSON,
		&vendor.CreatedAt,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan vendor", err)
	}

	if lat.Valid && lon.Valid {
		vendor.Coordinates = &entities.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	vendor.Price = entities.NewPrice(price)

	for _, raw := range dates {
		d, err := entities.ParseCalendarDate(raw)
		if err != nil {
			log.Warn().Str("vendor_id", vendor.ID).Str("date", raw).Msg("skipping malformed unavailable date")
			continue
		}
		vendor.UnavailableDates = append(vendor.UnavailableDates, d)
	}

	if len(facetsJSON) > 0 {
		if err := json.Unmarshal(facetsJSON, &vendor.Facets); err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("invalid facets for vendor %s", vendor.ID), err)
		}
	}

	return &vendor, nil
}
