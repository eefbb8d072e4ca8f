// Package asset defines the domain model of the registry: assets and their
// identity, metadata, integrity checksums, storage locations, provenance,
// dependency references, and the event vocabulary describing changes to
// them.
package asset

import (
	"fmt"
	"time"
)

// Asset is the aggregate root: one registered, versioned artifact together
// with everything the registry knows about it.
type Asset struct {
	ID           ID              `json:"id"`
	Type         Type            `json:"asset_type"`
	Metadata     Metadata        `json:"metadata"`
	Status       Status          `json:"status"`
	Storage      StorageLocation `json:"storage"`
	Checksum     Checksum        `json:"checksum"`
	Provenance   *Provenance     `json:"provenance,omitempty"`
	Dependencies []Reference     `json:"dependencies,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeprecatedAt *time.Time      `json:"deprecated_at,omitempty"`
}

// FullName renders the asset's "name@version" identity.
func (a *Asset) FullName() string {
	return fmt.Sprintf("%s@%s", a.Metadata.Name, a.Metadata.Version)
}

// IsActive reports whether the asset is in the Active state.
func (a *Asset) IsActive() bool {
	return a.Status == StatusActive
}

// IsDeprecated reports whether the asset is in the Deprecated state.
func (a *Asset) IsDeprecated() bool {
	return a.Status == StatusDeprecated
}

// IsCompliant reports whether the asset has not been flagged by a policy.
func (a *Asset) IsCompliant() bool {
	return a.Status != StatusNonCompliant
}

// SetStatus transitions the asset to a new lifecycle state. The first
// transition into Deprecated stamps DeprecatedAt; later transitions leave it
// untouched so the original deprecation time survives.
func (a *Asset) SetStatus(status Status) {
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	if status == StatusDeprecated && a.DeprecatedAt == nil {
		t := a.UpdatedAt
		a.DeprecatedAt = &t
	}
}

// AddDependency appends a dependency reference, preserving declaration
// order.
func (a *Asset) AddDependency(ref Reference) {
	a.Dependencies = append(a.Dependencies, ref)
	a.UpdatedAt = time.Now().UTC()
}

// SetProvenance attaches or replaces the provenance record.
func (a *Asset) SetProvenance(p Provenance) {
	clone := p.Clone()
	a.Provenance = &clone
	a.UpdatedAt = time.Now().UTC()
}

// Touch bumps the modification timestamp.
func (a *Asset) Touch() {
	a.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	out := *a
	out.Metadata = a.Metadata.Clone()
	if a.Provenance != nil {
		p := a.Provenance.Clone()
		out.Provenance = &p
	}
	if a.Dependencies != nil {
		out.Dependencies = append([]Reference(nil), a.Dependencies...)
	}
	if a.DeprecatedAt != nil {
		t := *a.DeprecatedAt
		out.DeprecatedAt = &t
	}
	return &out
}

// Builder assembles a new Asset. Build assigns a fresh ID and timestamps and
// validates every component.
type Builder struct {
	asset Asset
	err   error
}

// NewBuilder starts building an asset of the given type.
func NewBuilder(t Type) *Builder {
	return &Builder{asset: Asset{Type: t, Status: StatusActive}}
}

// Metadata sets the asset metadata.
func (b *Builder) Metadata(m Metadata) *Builder {
	b.asset.Metadata = m.Clone()
	return b
}

// Storage sets the storage location.
func (b *Builder) Storage(l StorageLocation) *Builder {
	b.asset.Storage = l
	return b
}

// Checksum sets the content checksum.
func (b *Builder) Checksum(c Checksum) *Builder {
	b.asset.Checksum = c
	return b
}

// Provenance attaches a provenance record.
func (b *Builder) Provenance(p Provenance) *Builder {
	clone := p.Clone()
	b.asset.Provenance = &clone
	return b
}

// Dependency appends a dependency reference.
func (b *Builder) Dependency(ref Reference) *Builder {
	b.asset.Dependencies = append(b.asset.Dependencies, ref)
	return b
}

// Status overrides the initial lifecycle state, which defaults to Active.
func (b *Builder) Status(s Status) *Builder {
	b.asset.Status = s
	return b
}

// Build validates the assembled asset and stamps identity and timestamps.
func (b *Builder) Build() (*Asset, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.asset.Type.Validate(); err != nil {
		return nil, err
	}
	if err := b.asset.Metadata.Validate(); err != nil {
		return nil, err
	}
	if err := b.asset.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := b.asset.Checksum.Algorithm.Validate(); err != nil {
		return nil, fmt.Errorf("checksum: %w", err)
	}
	if b.asset.Provenance != nil {
		if err := b.asset.Provenance.Validate(); err != nil {
			return nil, err
		}
	}
	if err := b.asset.Status.Validate(); err != nil {
		return nil, err
	}

	out := b.asset
	out.ID = NewID()
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now
	if out.Status == StatusDeprecated {
		t := now
		out.DeprecatedAt = &t
	}
	return &out, nil
}
