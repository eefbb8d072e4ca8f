package registry

import (
	"context"

	"github.com/modelpark/registry/pkg/asset"
)

// Repository is the persistence port for assets, their tags, and their
// dependency edges. Implementations must keep the (name, version) pair
// unique and must persist an asset together with its tags and edges
// atomically.
type Repository interface {
	// Create persists a new asset. A uniqueness violation on the
	// (name, version) pair returns a KindAlreadyExists error.
	Create(ctx context.Context, a *asset.Asset) error
	// FindByID returns the asset or a KindNotFound error.
	FindByID(ctx context.Context, id asset.ID) (*asset.Asset, error)
	// FindByNameAndVersion returns the asset or a KindNotFound error.
	FindByNameAndVersion(ctx context.Context, name, version string) (*asset.Asset, error)
	// FindByIDs returns the assets that exist, in no particular order.
	// Missing IDs are silently skipped.
	FindByIDs(ctx context.Context, ids []asset.ID) ([]*asset.Asset, error)
	// Search returns a page of assets matching the query.
	Search(ctx context.Context, q SearchQuery) (*SearchResults, error)
	// Update replaces a persisted asset's mutable state.
	Update(ctx context.Context, a *asset.Asset) error
	// Delete removes an asset and its tags and edges, or returns a
	// KindNotFound error.
	Delete(ctx context.Context, id asset.ID) error

	// ListVersions returns every registered version of a name, unordered.
	ListVersions(ctx context.Context, name string) ([]*asset.Asset, error)
	// ListDependencies returns the asset's direct outgoing references in
	// declaration order.
	ListDependencies(ctx context.Context, id asset.ID) ([]asset.Reference, error)
	// ListReverseDependencies returns the assets that directly depend on the
	// given one. Transitive dependents are not included.
	ListReverseDependencies(ctx context.Context, id asset.ID) ([]*asset.Asset, error)

	// AddTag attaches a tag, ignoring duplicates.
	AddTag(ctx context.Context, id asset.ID, tag string) error
	// RemoveTag detaches a tag if present.
	RemoveTag(ctx context.Context, id asset.ID, tag string) error
	// GetTags returns the asset's tags.
	GetTags(ctx context.Context, id asset.ID) ([]string, error)
	// ListAllTags returns every distinct tag in the registry, sorted.
	ListAllTags(ctx context.Context) ([]string, error)

	// AddDependency records an edge with an optional version constraint.
	AddDependency(ctx context.Context, id asset.ID, dep asset.Reference, constraint string) error
	// RemoveDependency removes an edge.
	RemoveDependency(ctx context.Context, id asset.ID, dep asset.Reference) error

	// CountAssets returns the total number of registered assets.
	CountAssets(ctx context.Context) (int64, error)
	// CountByType returns per-type asset counts keyed by type string.
	CountByType(ctx context.Context) (map[string]int64, error)
	// HealthCheck pings the underlying store.
	HealthCheck(ctx context.Context) error
}

// EventStore is the append-only audit trail port.
type EventStore interface {
	// Append persists one event.
	Append(ctx context.Context, ev *asset.Event) error
	// AppendBatch persists events in order, atomically where the backend
	// supports it.
	AppendBatch(ctx context.Context, evs []*asset.Event) error
	// Query returns a page of events matching the query, newest first.
	Query(ctx context.Context, q EventQuery) (*EventResults, error)
	// AssetEvents returns the newest events for one asset, newest first.
	AssetEvents(ctx context.Context, id asset.ID, limit int) ([]*asset.Event, error)
	// LatestEvent returns the most recent event for an asset, or nil when
	// the asset has none.
	LatestEvent(ctx context.Context, id asset.ID) (*asset.Event, error)
	// CountEvents returns the total number of stored events.
	CountEvents(ctx context.Context) (int64, error)
	// CountByType returns per-name event counts.
	CountByType(ctx context.Context) (map[string]int64, error)
	// HealthCheck pings the underlying store.
	HealthCheck(ctx context.Context) error
}
