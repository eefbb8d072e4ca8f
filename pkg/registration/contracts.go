package registration

import (
	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/registry"
	"github.com/modelpark/registry/pkg/validation"
)

// ChecksumSpec names a digest in a registration request.
type ChecksumSpec struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// DependencySpec names one dependency in a registration request. Either
// AssetID or the Name/Version pair must be set.
type DependencySpec struct {
	AssetID    string `json:"asset_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

// toReference converts the spec to a domain reference.
func (d DependencySpec) toReference() (asset.Reference, error) {
	if d.AssetID != "" {
		id, err := asset.ParseID(d.AssetID)
		if err != nil {
			return asset.Reference{}, registry.InvalidInput("dependency asset id: %v", err)
		}
		return asset.RefByID(id), nil
	}
	ref, err := asset.RefByNameVersion(d.Name, d.Version)
	if err != nil {
		return asset.Reference{}, registry.InvalidInput("dependency reference: %v", err)
	}
	return ref, nil
}

// RegisterRequest carries everything needed to register a new asset
// version.
type RegisterRequest struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	AssetType   string            `json:"asset_type,omitempty"`
	Description string            `json:"description,omitempty"`
	License     string            `json:"license,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	SizeBytes   *uint64           `json:"size_bytes,omitempty"`

	Storage      asset.StorageLocation `json:"storage"`
	Checksum     ChecksumSpec          `json:"checksum"`
	Provenance   *asset.Provenance     `json:"provenance,omitempty"`
	Dependencies []DependencySpec      `json:"dependencies,omitempty"`

	// Actor is recorded on audit events.
	Actor string `json:"actor,omitempty"`
}

// RegisterResponse returns the persisted asset and non-blocking validation
// findings.
type RegisterResponse struct {
	Asset         *asset.Asset         `json:"asset"`
	Warnings      []validation.Warning `json:"warnings,omitempty"`
	CorrelationID string               `json:"correlation_id"`
}

// UpdateRequest carries a partial mutation. Nil and empty fields leave the
// asset untouched.
type UpdateRequest struct {
	Description       *string           `json:"description,omitempty"`
	License           *string           `json:"license,omitempty"`
	AddTags           []string          `json:"add_tags,omitempty"`
	RemoveTags        []string          `json:"remove_tags,omitempty"`
	SetAnnotations    map[string]string `json:"set_annotations,omitempty"`
	RemoveAnnotations []string          `json:"remove_annotations,omitempty"`
	Status            *string           `json:"status,omitempty"`

	Actor string `json:"actor,omitempty"`
}

// UpdateResponse returns the updated asset and the logical fields that
// changed.
type UpdateResponse struct {
	Asset         *asset.Asset         `json:"asset"`
	UpdatedFields []string             `json:"updated_fields"`
	Warnings      []validation.Warning `json:"warnings,omitempty"`
	CorrelationID string               `json:"correlation_id"`
}
