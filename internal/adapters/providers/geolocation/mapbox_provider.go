package geolocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"resty.dev/v3"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
)

const (
	mapboxBaseURL          = "https://api.mapbox.com"
	mapboxGeocodePath      = "/geocoding/v5/mapbox.places/{address}.json"
	defaultGeocodeCacheTTL = 30 * 24 * time.Hour
	defaultHTTPTimeout     = 8 * time.Second
	geocodeCachePrefix     = "geo:v3:geocode:"
)

// MapboxProvider implements GeolocationProvider with the Mapbox places API.
// Successful lookups are cached by normalised address.
type MapboxProvider struct {
	accessToken string
	client      *resty.Client
	cache       providers.CacheProvider
	cacheTTL    time.Duration
}

var _ providers.GeolocationProvider = (*MapboxProvider)(nil)

// MapboxOptions overrides transport details, mostly for tests.
type MapboxOptions struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// NewMapboxProvider creates a Mapbox geocoder. cache may be nil.
func NewMapboxProvider(accessToken string, cache providers.CacheProvider, opts MapboxOptions) *MapboxProvider {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = mapboxBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultGeocodeCacheTTL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	return &MapboxProvider{
		accessToken: accessToken,
		client:      client,
		cache:       cache,
		cacheTTL:    opts.CacheTTL,
	}
}

type mapboxResponse struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

// Geocode resolves an address to the first matching feature's centre.
// It returns nil without error when Mapbox has no match.
func (p *MapboxProvider) Geocode(ctx context.Context, address string) (*entities.Coordinates, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("address is required")
	}

	cacheKey := geocodeCachePrefix + hashKey(strings.ToLower(trimmed))
	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var coords entities.Coordinates
			if err := json.Unmarshal(cached, &coords); err == nil && !coords.IsSentinel() {
				return &coords, nil
			}
		}
	}

	var body mapboxResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("address", trimmed).
		SetQueryParams(map[string]string{
			"access_token": p.accessToken,
			"limit":        "1",
		}).
		SetResult(&body).
		Get(mapboxGeocodePath)
	if err != nil {
		return nil, apperrors.NewExternalError("mapbox geocode request failed", err)
	}
	if resp.IsError() {
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("mapbox geocode returned %d", resp.StatusCode()),
			fmt.Errorf("%s", truncate(resp.String(), 200)),
		)
	}

	if len(body.Features) == 0 || len(body.Features[0].Center) < 2 {
		return nil, nil
	}

	coords := entities.Coordinates{
		Longitude: body.Features[0].Center[0],
		Latitude:  body.Features[0].Center[1],
	}

	if p.cache != nil {
		if payload, err := json.Marshal(coords); err == nil {
			if err := p.cache.Set(ctx, cacheKey, payload, p.cacheTTL); err != nil {
				log.Warn().Err(err).Msg("failed to cache geocode result")
			}
		}
	}

	return &coords, nil
}

// Close releases the HTTP client.
func (p *MapboxProvider) Close() error {
	return p.client.Close()
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
