package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/partaibook/vendor-discovery/pkg/config"
	"github.com/partaibook/vendor-discovery/pkg/retry"
)

const (
	VendorsCollection = "vendors"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.Do(context.Background(), retry.DefaultConfig(), "Typesense", func(ctx context.Context) error {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_, err := client.Health(healthCtx, 2*time.Second)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// NewClientFromTypesense wraps an existing typesense client without probing it.
func NewClientFromTypesense(client *typesense.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// VendorSchema is the collection schema for geocoded vendors.
func VendorSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: VendorsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "category", Type: "string", Facet: pointer.True()},
			{Name: "sub_category", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "location_text", Type: "string"},
			{Name: "location", Type: "geopoint"},
			{Name: "price", Type: "float", Optional: pointer.True()},
			{Name: "facets", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}
}

// InitSchema ensures the vendors collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == VendorsCollection {
			log.Debug().Str("collection", VendorsCollection).Msg("typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, VendorSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", VendorsCollection).Msg("created typesense collection")
	return nil
}

// DropSchema deletes the vendors collection, ignoring a missing collection.
func (c *Client) DropSchema(ctx context.Context) error {
	if _, err := c.client.Collection(VendorsCollection).Delete(ctx); err != nil {
		log.Warn().Err(err).Str("collection", VendorsCollection).Msg("drop collection failed")
	}
	return nil
}
