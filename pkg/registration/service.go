// Package registration orchestrates the asset lifecycle: it drives
// validation, dependency and cycle checks, persistence, and audit events
// for register, update, and delete operations.
package registration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/graph"
	"github.com/modelpark/registry/pkg/registry"
	"github.com/modelpark/registry/pkg/validation"
)

const eventSource = "registration"

// Service is the registration orchestrator. All collaborators are injected;
// the service holds no mutable state and is safe for concurrent use.
type Service struct {
	repo      registry.Repository
	events    registry.EventStore
	validator *validation.Service
	log       *slog.Logger
}

// NewService wires a registration service. A nil logger falls back to
// slog.Default.
func NewService(repo registry.Repository, events registry.EventStore, validator *validation.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, events: events, validator: validator, log: log}
}

// Register validates and persists a new asset version. The flow is
// fail-fast: duplicate check, input parsing, dependency resolution, cycle
// check, then policy validation, and nothing is written until all of them
// pass. Validation warnings are returned, not fatal.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	correlationID := uuid.New().String()
	log := s.log.With("correlation_id", correlationID, "name", req.Name, "version", req.Version)

	// Duplicate check first so the common error is also the cheapest.
	_, err := s.repo.FindByNameAndVersion(ctx, req.Name, req.Version)
	switch {
	case err == nil:
		return nil, registry.AlreadyExists(req.Name, req.Version)
	case registry.IsKind(err, registry.KindNotFound):
	default:
		return nil, err
	}

	candidate, err := s.buildCandidate(req)
	if err != nil {
		return nil, err
	}

	dependencies, err := s.resolveDependencies(ctx, candidate)
	if err != nil {
		return nil, err
	}

	if len(dependencies) > 0 {
		if err := s.checkCycles(ctx, candidate, dependencies, correlationID, req.Actor); err != nil {
			return nil, err
		}
	}

	result, err := s.validator.ValidateAllPolicies(ctx, candidate)
	if err != nil {
		return nil, err
	}
	// Existence already failed fast above; this pass contributes the
	// non-fatal dependency findings to the response.
	result.Merge(s.validator.ValidateDependencies(ctx, candidate))
	if !result.Valid() {
		return nil, result.Err()
	}

	if err := s.repo.Create(ctx, candidate); err != nil {
		return nil, err
	}

	// Audit events are best-effort: the asset is already durable.
	events := make([]*asset.Event, 0, len(candidate.Dependencies)+1)
	for _, ref := range candidate.Dependencies {
		payload := asset.DependencyAdded{AssetID: candidate.ID}
		if depID, ok := ref.ByID(); ok {
			id := depID
			payload.DependencyID = &id
		} else if name, _, ok := ref.ByNameVersion(); ok {
			payload.DependencyName = name
		}
		events = append(events, s.newEvent(payload, correlationID, req.Actor))
	}
	events = append(events, s.newEvent(asset.AssetRegistered{
		AssetID:   candidate.ID,
		AssetName: candidate.Metadata.Name,
		Version:   candidate.Metadata.Version.String(),
		AssetType: candidate.Type,
	}, correlationID, req.Actor))
	if err := s.events.AppendBatch(ctx, events); err != nil {
		log.Error("append registration events", "error", err)
	}

	log.Info("asset registered", "asset_id", candidate.ID.String(), "warnings", len(result.Warnings))
	return &RegisterResponse{
		Asset:         candidate,
		Warnings:      result.Warnings,
		CorrelationID: correlationID,
	}, nil
}

// buildCandidate assembles the unpersisted asset from the request.
func (s *Service) buildCandidate(req RegisterRequest) (*asset.Asset, error) {
	assetType := asset.DefaultType()
	if req.AssetType != "" {
		parsed, err := asset.ParseType(req.AssetType)
		if err != nil {
			return nil, registry.InvalidInput("asset type: %v", err)
		}
		assetType = parsed
	}

	metaBuilder, err := asset.NewMetadataBuilder(req.Name, req.Version)
	if err != nil {
		return nil, registry.InvalidInput("%v", err)
	}
	metaBuilder.Description(req.Description).
		License(req.License).
		ContentType(req.ContentType).
		Tags(req.Tags...)
	for key, value := range req.Annotations {
		metaBuilder.Annotation(key, value)
	}
	if req.SizeBytes != nil {
		metaBuilder.SizeBytes(*req.SizeBytes)
	}
	meta, err := metaBuilder.Build()
	if err != nil {
		return nil, registry.ValidationFailed("%v", err)
	}

	algorithm, err := asset.ParseHashAlgorithm(req.Checksum.Algorithm)
	if err != nil {
		return nil, registry.InvalidInput("%v", err)
	}
	checksum, err := asset.NewChecksum(algorithm, req.Checksum.Value)
	if err != nil {
		return nil, registry.InvalidInput("%v", err)
	}

	storage, err := asset.NewStorageLocation(req.Storage.Backend, req.Storage.Path)
	if err != nil {
		return nil, registry.ValidationFailed("storage: %v", err)
	}

	builder := asset.NewBuilder(assetType).
		Metadata(meta).
		Storage(storage).
		Checksum(checksum)
	if req.Provenance != nil {
		if err := req.Provenance.Validate(); err != nil {
			return nil, registry.ValidationFailed("provenance: %v", err)
		}
		builder.Provenance(*req.Provenance)
	}
	for _, spec := range req.Dependencies {
		ref, err := spec.toReference()
		if err != nil {
			return nil, err
		}
		builder.Dependency(ref)
	}

	candidate, err := builder.Build()
	if err != nil {
		return nil, registry.ValidationFailed("%v", err)
	}
	return candidate, nil
}

// resolveDependencies loads every ID-referenced dependency, failing on the
// first one that does not exist.
func (s *Service) resolveDependencies(ctx context.Context, candidate *asset.Asset) ([]*asset.Asset, error) {
	var resolved []*asset.Asset
	for _, ref := range candidate.Dependencies {
		depID, ok := ref.ByID()
		if !ok {
			continue
		}
		dep, err := s.repo.FindByID(ctx, depID)
		if err != nil {
			if registry.IsKind(err, registry.KindNotFound) {
				return nil, registry.DependencyNotFound(ref.String())
			}
			return nil, err
		}
		resolved = append(resolved, dep)
	}
	return resolved, nil
}

// checkCycles builds a point-in-time graph of the candidate's edges plus
// every resolved dependency's persisted edges and rejects the registration
// when it contains a cycle. Concurrent registrations are resolved by the
// repository's uniqueness constraint, not here.
func (s *Service) checkCycles(ctx context.Context, candidate *asset.Asset, dependencies []*asset.Asset, correlationID, actor string) error {
	g := graph.New()
	g.AddAsset(candidate)

	// Walk outward from the direct dependencies so transitive chains are in
	// the snapshot too.
	seen := map[asset.ID]bool{candidate.ID: true}
	work := dependencies
	for len(work) > 0 {
		dep := work[0]
		work = work[1:]
		if seen[dep.ID] {
			continue
		}
		seen[dep.ID] = true
		g.AddAsset(dep)

		for _, ref := range dep.Dependencies {
			depID, ok := ref.ByID()
			if !ok || seen[depID] {
				continue
			}
			next, err := s.repo.FindByID(ctx, depID)
			if err != nil {
				if registry.IsKind(err, registry.KindNotFound) {
					continue
				}
				return err
			}
			work = append(work, next)
		}
	}

	err := g.DetectCycles()
	if err == nil {
		return nil
	}

	var re *registry.Error
	if errors.As(err, &re) && re.Kind == registry.KindCircularDependency {
		ev := s.newEvent(asset.CircularDependencyDetected{Cycle: re.Cycle}, correlationID, actor)
		if appendErr := s.events.Append(ctx, ev); appendErr != nil {
			s.log.Error("append cycle event", "error", appendErr)
		}
	}
	return err
}

// Update applies a partial mutation, re-validates, persists, and emits one
// AssetUpdated event naming the logical fields that changed.
func (s *Service) Update(ctx context.Context, id asset.ID, req UpdateRequest) (*UpdateResponse, error) {
	correlationID := uuid.New().String()

	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tracker := newFieldTracker()

	if req.Description != nil && *req.Description != a.Metadata.Description {
		a.Metadata.Description = *req.Description
		tracker.mark("description")
	}
	if req.License != nil && *req.License != a.Metadata.License {
		a.Metadata.License = *req.License
		tracker.mark("license")
	}

	for _, tag := range req.AddTags {
		if !a.Metadata.HasTag(tag) {
			a.Metadata.Tags = append(a.Metadata.Tags, tag)
			tracker.mark("tags")
		}
	}
	if len(req.RemoveTags) > 0 {
		remove := make(map[string]bool, len(req.RemoveTags))
		for _, tag := range req.RemoveTags {
			remove[tag] = true
		}
		kept := a.Metadata.Tags[:0]
		for _, tag := range a.Metadata.Tags {
			if remove[tag] {
				tracker.mark("tags")
			} else {
				kept = append(kept, tag)
			}
		}
		a.Metadata.Tags = kept
	}

	if len(req.SetAnnotations) > 0 && a.Metadata.Annotations == nil {
		a.Metadata.Annotations = make(map[string]string)
	}
	for key, value := range req.SetAnnotations {
		if existing, ok := a.Metadata.Annotations[key]; !ok || existing != value {
			a.Metadata.Annotations[key] = value
			tracker.mark("annotations")
		}
	}
	for _, key := range req.RemoveAnnotations {
		if _, ok := a.Metadata.Annotations[key]; ok {
			delete(a.Metadata.Annotations, key)
			tracker.mark("annotations")
		}
	}

	if req.Status != nil {
		status, err := asset.ParseStatus(*req.Status)
		if err != nil {
			return nil, registry.InvalidInput("%v", err)
		}
		if status != a.Status {
			a.SetStatus(status)
			tracker.mark("status")
		}
	}

	fields := tracker.fields()
	if len(fields) == 0 {
		return &UpdateResponse{Asset: a, UpdatedFields: nil, CorrelationID: correlationID}, nil
	}

	result, err := s.validator.ValidateAsset(ctx, a, validation.Request{})
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, result.Err()
	}

	a.Touch()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	ev := s.newEvent(asset.AssetUpdated{
		AssetID:       a.ID,
		AssetName:     a.Metadata.Name,
		UpdatedFields: fields,
	}, correlationID, req.Actor)
	if err := s.events.Append(ctx, ev); err != nil {
		s.log.Error("append update event", "asset_id", a.ID.String(), "error", err)
	}

	return &UpdateResponse{
		Asset:         a,
		UpdatedFields: fields,
		Warnings:      result.Warnings,
		CorrelationID: correlationID,
	}, nil
}

// Delete removes an asset unless other assets still depend on it directly.
func (s *Service) Delete(ctx context.Context, id asset.ID, actor string) error {
	correlationID := uuid.New().String()

	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	dependents, err := s.repo.ListReverseDependencies(ctx, id)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		names := make([]string, len(dependents))
		for i, dep := range dependents {
			names[i] = dep.FullName()
		}
		return registry.NotPermitted("asset %s is required by %d other asset(s): %v", a.FullName(), len(dependents), names)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	ev := s.newEvent(asset.AssetDeleted{AssetID: a.ID, AssetName: a.Metadata.Name}, correlationID, actor)
	if err := s.events.Append(ctx, ev); err != nil {
		s.log.Error("append delete event", "asset_id", a.ID.String(), "error", err)
	}

	s.log.Info("asset deleted", "asset", a.FullName(), "correlation_id", correlationID)
	return nil
}

func (s *Service) newEvent(payload asset.EventType, correlationID, actor string) *asset.Event {
	ev := asset.NewEvent(payload).WithCorrelationID(correlationID).WithSource(eventSource)
	if actor != "" {
		ev.WithActor(actor)
	}
	return ev
}

// fieldTracker records changed logical fields once each, in first-change
// order.
type fieldTracker struct {
	seen  map[string]bool
	order []string
}

func newFieldTracker() *fieldTracker {
	return &fieldTracker{seen: make(map[string]bool)}
}

func (f *fieldTracker) mark(field string) {
	if !f.seen[field] {
		f.seen[field] = true
		f.order = append(f.order, field)
	}
}

func (f *fieldTracker) fields() []string {
	return f.order
}
