// Package search answers read-side queries over the registry: filtered
// asset searches, tag and type lookups, and dependency graph expansion.
package search

import (
	"context"
	"log/slog"

	"github.com/Masterminds/semver/v3"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/registry"
)

// Service executes read-only queries against the repository.
type Service struct {
	repo registry.Repository
	log  *slog.Logger
}

// NewService wires a search service. A nil logger falls back to
// slog.Default.
func NewService(repo registry.Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

// Search normalizes the query and returns the matching page of assets.
func (s *Service) Search(ctx context.Context, q registry.SearchQuery) (*registry.SearchResults, error) {
	return s.repo.Search(ctx, q.Normalize())
}

// GetAsset returns one asset by ID.
func (s *Service) GetAsset(ctx context.Context, id asset.ID) (*asset.Asset, error) {
	return s.repo.FindByID(ctx, id)
}

// GetAssetByNameVersion returns one asset by its exact name and version.
// The version must parse as semver.
func (s *Service) GetAssetByNameVersion(ctx context.Context, name, version string) (*asset.Asset, error) {
	if _, err := semver.NewVersion(version); err != nil {
		return nil, registry.InvalidInput("invalid version %q: %v", version, err)
	}
	return s.repo.FindByNameAndVersion(ctx, name, version)
}

// ListAllTags returns every distinct tag in the registry, sorted.
func (s *Service) ListAllTags(ctx context.Context) ([]string, error) {
	return s.repo.ListAllTags(ctx)
}

// SearchByTags returns the assets carrying all of the given tags. An empty
// tag list matches nothing.
func (s *Service) SearchByTags(ctx context.Context, tags []string) ([]*asset.Asset, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	results, err := s.Search(ctx, registry.SearchQuery{Tags: tags, IncludeDeprecated: true})
	if err != nil {
		return nil, err
	}
	return results.Assets, nil
}

// AssetsByType returns the assets of one type.
func (s *Service) AssetsByType(ctx context.Context, t asset.Type) ([]*asset.Asset, error) {
	results, err := s.Search(ctx, registry.SearchQuery{Types: []asset.Type{t}, IncludeDeprecated: true})
	if err != nil {
		return nil, err
	}
	return results.Assets, nil
}

// ReverseDependencies returns the assets that directly depend on the given
// one. Transitive dependents are not expanded.
func (s *Service) ReverseDependencies(ctx context.Context, id asset.ID) ([]*asset.Asset, error) {
	return s.repo.ListReverseDependencies(ctx, id)
}

// GraphRequest selects the root and depth of a dependency graph expansion.
// A MaxDepth of zero or less expands without limit.
type GraphRequest struct {
	Root     asset.ID
	MaxDepth int
}

// GraphNode is one asset in an expanded dependency graph.
type GraphNode struct {
	AssetID         asset.ID   `json:"asset_id"`
	Name            string     `json:"name"`
	Version         string     `json:"version"`
	Depth           int        `json:"depth"`
	Dependencies    []asset.ID `json:"dependencies"`
	DependencyCount int        `json:"dependency_count"`
}

// Graph is the result of a dependency graph expansion. Truncated is set
// when the depth limit cut off unexpanded dependencies.
type Graph struct {
	Root      asset.ID    `json:"root"`
	Nodes     []GraphNode `json:"nodes"`
	Truncated bool        `json:"truncated"`
}

type graphItem struct {
	id    asset.ID
	depth int
}

// DependencyGraph expands the dependency graph below the root breadth
// first, visiting each asset once. Missing transitive dependencies are
// skipped; a missing root is a KindNotFound error. Loose name@constraint
// references are reported in the node's count but not expanded.
func (s *Service) DependencyGraph(ctx context.Context, req GraphRequest) (*Graph, error) {
	limited := req.MaxDepth > 0
	visited := mapset.NewThreadUnsafeSet[asset.ID]()
	queue := []graphItem{{id: req.Root, depth: 0}}

	graph := &Graph{Root: req.Root, Nodes: []GraphNode{}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if limited && item.depth >= req.MaxDepth {
			continue
		}
		if visited.Contains(item.id) {
			continue
		}
		visited.Add(item.id)

		a, err := s.repo.FindByID(ctx, item.id)
		switch {
		case err == nil:
		case registry.IsKind(err, registry.KindNotFound):
			if item.depth == 0 {
				return nil, err
			}
			// A dangling edge below the root is not worth failing the
			// whole expansion for.
			s.log.Warn("dependency graph references missing asset", "asset_id", item.id.String())
			continue
		default:
			return nil, err
		}

		refs, err := s.repo.ListDependencies(ctx, item.id)
		if err != nil {
			return nil, err
		}
		depIDs := make([]asset.ID, 0, len(refs))
		for _, ref := range refs {
			if depID, ok := ref.ByID(); ok {
				depIDs = append(depIDs, depID)
			}
		}

		graph.Nodes = append(graph.Nodes, GraphNode{
			AssetID:         item.id,
			Name:            a.Metadata.Name,
			Version:         a.Metadata.Version.String(),
			Depth:           item.depth,
			Dependencies:    depIDs,
			DependencyCount: len(refs),
		})

		if limited && item.depth == req.MaxDepth-1 && len(depIDs) > 0 {
			graph.Truncated = true
		}
		for _, depID := range depIDs {
			if !visited.Contains(depID) {
				queue = append(queue, graphItem{id: depID, depth: item.depth + 1})
			}
		}
	}
	return graph, nil
}
