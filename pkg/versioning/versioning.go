// Package versioning implements semantic-version queries over registered
// assets: listing and ordering versions, resolving constraint expressions,
// conflict checks, and deprecation.
package versioning

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/registry"
)

// Annotation keys used by deprecation bookkeeping.
const (
	AnnotationDeprecationReason  = "deprecation_reason"
	AnnotationAlternativeVersion = "alternative_version"
)

// Service answers version queries against the repository and records
// lifecycle transitions in the event store.
type Service struct {
	repo   registry.Repository
	events registry.EventStore
	log    *slog.Logger
}

// NewService wires a versioning service. A nil logger falls back to
// slog.Default.
func NewService(repo registry.Repository, events registry.EventStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, events: events, log: log}
}

// ListVersions returns every version of a name, newest version first.
// Deprecated versions are filtered out unless includeDeprecated is set.
func (s *Service) ListVersions(ctx context.Context, name string, includeDeprecated bool) ([]*asset.Asset, error) {
	assets, err := s.repo.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	if !includeDeprecated {
		filtered := assets[:0]
		for _, a := range assets {
			if !a.IsDeprecated() {
				filtered = append(filtered, a)
			}
		}
		assets = filtered
	}
	sortDescending(assets)
	return assets, nil
}

// Latest returns the highest Active version of a name, or a KindNotFound
// error when none exists. Deprecated and archived versions never win even
// when they are numerically newer.
func (s *Service) Latest(ctx context.Context, name string) (*asset.Asset, error) {
	assets, err := s.repo.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	var latest *asset.Asset
	for _, a := range assets {
		if !a.IsActive() {
			continue
		}
		if latest == nil || a.Metadata.Version.GreaterThan(latest.Metadata.Version) {
			latest = a
		}
	}
	if latest == nil {
		return nil, registry.NotFound("no active version of %s", name)
	}
	return latest, nil
}

// ConflictResult reports whether a (name, version) pair is already taken.
type ConflictResult struct {
	Conflict bool      `json:"conflict"`
	Existing *asset.ID `json:"existing_id,omitempty"`
}

// CheckConflict reports whether the exact (name, version) pair is already
// registered. Overlapping constraint ranges are not conflicts; only an
// exact duplicate is.
func (s *Service) CheckConflict(ctx context.Context, name, version string) (*ConflictResult, error) {
	if _, err := semver.NewVersion(version); err != nil {
		return nil, registry.InvalidInput("parse version %q: %v", version, err)
	}
	existing, err := s.repo.FindByNameAndVersion(ctx, name, version)
	if err != nil {
		if registry.IsKind(err, registry.KindNotFound) {
			return &ConflictResult{Conflict: false}, nil
		}
		return nil, err
	}
	return &ConflictResult{Conflict: true, Existing: &existing.ID}, nil
}

// FindByRequirement returns the versions of a name satisfying a semver
// constraint expression such as "^1.2" or ">=2.0.0, <3", newest first.
func (s *Service) FindByRequirement(ctx context.Context, name, constraint string) ([]*asset.Asset, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, registry.InvalidInput("parse constraint %q: %v", constraint, err)
	}
	assets, err := s.repo.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	matching := assets[:0]
	for _, a := range assets {
		if c.Check(a.Metadata.Version) {
			matching = append(matching, a)
		}
	}
	sortDescending(matching)
	return matching, nil
}

// Deprecate transitions an asset to Deprecated, recording the reason and a
// suggested alternative version as annotations, and emits an
// AssetStatusChanged event. Deprecating an already deprecated asset is an
// error.
func (s *Service) Deprecate(ctx context.Context, id asset.ID, reason, alternative string) (*asset.Asset, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsDeprecated() {
		return nil, registry.InvalidInput("asset %s is already deprecated", a.FullName())
	}

	old := a.Status
	a.SetStatus(asset.StatusDeprecated)
	if reason != "" || alternative != "" {
		if a.Metadata.Annotations == nil {
			a.Metadata.Annotations = make(map[string]string)
		}
	}
	if reason != "" {
		a.Metadata.Annotations[AnnotationDeprecationReason] = reason
	}
	if alternative != "" {
		a.Metadata.Annotations[AnnotationAlternativeVersion] = alternative
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	ev := asset.NewEvent(asset.AssetStatusChanged{
		AssetID:   a.ID,
		OldStatus: old,
		NewStatus: asset.StatusDeprecated,
	}).WithSource("versioning")
	if err := s.events.Append(ctx, ev); err != nil {
		s.log.Error("append status change event", "asset_id", a.ID.String(), "error", err)
	}

	s.log.Info("asset deprecated", "asset", a.FullName(), "reason", reason)
	return a, nil
}

// DeprecationInfo describes why and when an asset was deprecated.
type DeprecationInfo struct {
	DeprecatedAt time.Time `json:"deprecated_at"`
	Reason       string    `json:"reason,omitempty"`
	Alternative  string    `json:"alternative,omitempty"`
}

// Deprecation returns deprecation details for an asset, or nil when the
// asset is not deprecated.
func (s *Service) Deprecation(ctx context.Context, id asset.ID) (*DeprecationInfo, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsDeprecated() || a.DeprecatedAt == nil {
		return nil, nil
	}
	info := &DeprecationInfo{DeprecatedAt: *a.DeprecatedAt}
	info.Reason, _ = a.Metadata.Annotation(AnnotationDeprecationReason)
	info.Alternative, _ = a.Metadata.Annotation(AnnotationAlternativeVersion)
	return info, nil
}

func sortDescending(assets []*asset.Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].Metadata.Version.GreaterThan(assets[j].Metadata.Version)
	})
}

// NextMajor returns the next major version with minor and patch reset.
func NextMajor(v *semver.Version) semver.Version { return v.IncMajor() }

// NextMinor returns the next minor version with patch reset.
func NextMinor(v *semver.Version) semver.Version { return v.IncMinor() }

// NextPatch returns the next patch version.
func NextPatch(v *semver.Version) semver.Version { return v.IncPatch() }

// IsBreakingChange reports whether moving from one version to another bumps
// the major version.
func IsBreakingChange(from, to *semver.Version) bool {
	return to.Major() > from.Major()
}

// IsFeatureAddition reports whether the move keeps the major version and
// bumps the minor one.
func IsFeatureAddition(from, to *semver.Version) bool {
	return to.Major() == from.Major() && to.Minor() > from.Minor()
}

// IsPatchUpdate reports whether the move only bumps the patch version.
func IsPatchUpdate(from, to *semver.Version) bool {
	return to.Major() == from.Major() && to.Minor() == from.Minor() && to.Patch() > from.Patch()
}

// IsPrerelease reports whether the version carries a prerelease suffix.
func IsPrerelease(v *semver.Version) bool {
	return v.Prerelease() != ""
}

// HasBuildMetadata reports whether the version carries build metadata.
func HasBuildMetadata(v *semver.Version) bool {
	return v.Metadata() != ""
}

// ParseConstraint validates a constraint expression.
func ParseConstraint(expr string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("parse constraint %q: %w", expr, err)
	}
	return c, nil
}
