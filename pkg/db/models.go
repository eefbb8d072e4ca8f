package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/modelpark/registry/pkg/asset"
)

// JSONStringMap is a custom GORM type for map[string]string stored as JSON.
type JSONStringMap map[string]string

// Scan implements the sql.Scanner interface for JSONStringMap.
func (m *JSONStringMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONStringMap: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONStringMap.
func (m JSONStringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// AssetRecord is the persisted form of an asset. Searchable fields get their
// own columns; nested structures are stored as JSON.
type AssetRecord struct {
	ID          string  `gorm:"primaryKey;column:id;type:varchar(26)"`
	AssetType   string  `gorm:"column:asset_type;index;not null"`
	Name        string  `gorm:"column:name;uniqueIndex:idx_assets_name_version,priority:1;not null"`
	Version     string  `gorm:"column:version;uniqueIndex:idx_assets_name_version,priority:2;not null"`
	Status      string  `gorm:"column:status;index;not null"`
	Description string  `gorm:"column:description"`
	License     string  `gorm:"column:license"`
	ContentType string  `gorm:"column:content_type"`
	SizeBytes   *uint64 `gorm:"column:size_bytes"`

	Annotations JSONStringMap `gorm:"column:annotations;type:text"`

	StorageKind string `gorm:"column:storage_kind;index"`
	StorageJSON string `gorm:"column:storage;type:text;not null"`

	ChecksumAlgorithm string `gorm:"column:checksum_algorithm;not null"`
	ChecksumValue     string `gorm:"column:checksum_value;not null"`

	Author         string  `gorm:"column:author;index"`
	ProvenanceJSON *string `gorm:"column:provenance;type:text"`

	CreatedAt    time.Time  `gorm:"column:created_at;index"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
	DeprecatedAt *time.Time `gorm:"column:deprecated_at"`
}

// TableName implements the gorm Tabler interface.
func (AssetRecord) TableName() string { return "assets" }

// AssetTagRecord is one tag attached to an asset.
type AssetTagRecord struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	AssetID string `gorm:"column:asset_id;uniqueIndex:idx_asset_tags_asset_tag,priority:1;index;not null"`
	Tag     string `gorm:"column:tag;uniqueIndex:idx_asset_tags_asset_tag,priority:2;index;not null"`
}

// TableName implements the gorm Tabler interface.
func (AssetTagRecord) TableName() string { return "asset_tags" }

// AssetDependencyRecord is one dependency edge. Either DependencyID or the
// DependencyName/DependencyVersion pair is set, matching the two reference
// forms. Position keeps declaration order.
type AssetDependencyRecord struct {
	ID                uint64  `gorm:"primaryKey;autoIncrement"`
	AssetID           string  `gorm:"column:asset_id;index;not null"`
	DependencyID      *string `gorm:"column:dependency_id;index"`
	DependencyName    string  `gorm:"column:dependency_name"`
	DependencyVersion string  `gorm:"column:dependency_version"`
	Constraint        string  `gorm:"column:version_constraint"`
	Position          int     `gorm:"column:position;not null"`
}

// TableName implements the gorm Tabler interface.
func (AssetDependencyRecord) TableName() string { return "asset_dependencies" }

// EventRecord is one audit trail entry. The typed payload is stored as JSON
// next to the indexed envelope columns.
type EventRecord struct {
	ID            uint64        `gorm:"primaryKey;autoIncrement"`
	Name          string        `gorm:"column:event_name;index;not null"`
	AssetID       *string       `gorm:"column:asset_id;index"`
	Payload       string        `gorm:"column:payload;type:text;not null"`
	Timestamp     time.Time     `gorm:"column:timestamp;index;not null"`
	CorrelationID string        `gorm:"column:correlation_id;index"`
	Actor         string        `gorm:"column:actor;index"`
	Source        string        `gorm:"column:source"`
	Context       JSONStringMap `gorm:"column:context;type:text"`
}

// TableName implements the gorm Tabler interface.
func (EventRecord) TableName() string { return "registry_events" }

// toAssetRecord flattens a domain asset into its record row. Tags and
// dependency edges live in their own tables.
func toAssetRecord(a *asset.Asset) (*AssetRecord, error) {
	storageJSON, err := json.Marshal(a.Storage)
	if err != nil {
		return nil, fmt.Errorf("encode storage location: %w", err)
	}

	record := &AssetRecord{
		ID:                a.ID.String(),
		AssetType:         a.Type.String(),
		Name:              a.Metadata.Name,
		Version:           a.Metadata.Version.String(),
		Status:            a.Status.String(),
		Description:       a.Metadata.Description,
		License:           a.Metadata.License,
		ContentType:       a.Metadata.ContentType,
		SizeBytes:         a.Metadata.SizeBytes,
		Annotations:       JSONStringMap(a.Metadata.Annotations),
		StorageKind:       a.Storage.Backend.Kind(),
		StorageJSON:       string(storageJSON),
		ChecksumAlgorithm: a.Checksum.Algorithm.String(),
		ChecksumValue:     a.Checksum.Value,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
		DeprecatedAt:      a.DeprecatedAt,
	}

	if a.Provenance != nil {
		provJSON, err := json.Marshal(a.Provenance)
		if err != nil {
			return nil, fmt.Errorf("encode provenance: %w", err)
		}
		s := string(provJSON)
		record.ProvenanceJSON = &s
		record.Author = a.Provenance.Author
	}
	return record, nil
}

// toDomain rebuilds a domain asset from its record row plus tag and edge
// rows.
func (r *AssetRecord) toDomain(tags []AssetTagRecord, deps []AssetDependencyRecord) (*asset.Asset, error) {
	id, err := asset.ParseID(r.ID)
	if err != nil {
		return nil, err
	}
	assetType, err := asset.ParseType(r.AssetType)
	if err != nil {
		return nil, err
	}
	status, err := asset.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	version, err := semver.NewVersion(r.Version)
	if err != nil {
		return nil, fmt.Errorf("decode version %q: %w", r.Version, err)
	}
	algorithm, err := asset.ParseHashAlgorithm(r.ChecksumAlgorithm)
	if err != nil {
		return nil, err
	}
	checksum, err := asset.NewChecksum(algorithm, r.ChecksumValue)
	if err != nil {
		return nil, err
	}

	var storage asset.StorageLocation
	if err := json.Unmarshal([]byte(r.StorageJSON), &storage); err != nil {
		return nil, fmt.Errorf("decode storage location: %w", err)
	}

	a := &asset.Asset{
		ID:     id,
		Type:   assetType,
		Status: status,
		Metadata: asset.Metadata{
			Name:        r.Name,
			Version:     version,
			Description: r.Description,
			License:     r.License,
			ContentType: r.ContentType,
			SizeBytes:   r.SizeBytes,
			Annotations: map[string]string(r.Annotations),
		},
		Storage:      storage,
		Checksum:     checksum,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		DeprecatedAt: r.DeprecatedAt,
	}

	if r.ProvenanceJSON != nil {
		var prov asset.Provenance
		if err := json.Unmarshal([]byte(*r.ProvenanceJSON), &prov); err != nil {
			return nil, fmt.Errorf("decode provenance: %w", err)
		}
		a.Provenance = &prov
	}

	for _, tag := range tags {
		a.Metadata.Tags = append(a.Metadata.Tags, tag.Tag)
	}

	for _, dep := range deps {
		ref, err := dep.toReference()
		if err != nil {
			return nil, err
		}
		a.Dependencies = append(a.Dependencies, ref)
	}
	return a, nil
}

func (d *AssetDependencyRecord) toReference() (asset.Reference, error) {
	if d.DependencyID != nil {
		depID, err := asset.ParseID(*d.DependencyID)
		if err != nil {
			return asset.Reference{}, err
		}
		return asset.RefByID(depID), nil
	}
	return asset.RefByNameVersion(d.DependencyName, d.DependencyVersion)
}

func toDependencyRecord(assetID string, ref asset.Reference, constraint string, position int) AssetDependencyRecord {
	record := AssetDependencyRecord{
		AssetID:    assetID,
		Constraint: constraint,
		Position:   position,
	}
	if depID, ok := ref.ByID(); ok {
		s := depID.String()
		record.DependencyID = &s
	} else if name, version, ok := ref.ByNameVersion(); ok {
		record.DependencyName = name
		record.DependencyVersion = version
	}
	return record
}

// toEventRecord flattens an event into its row form.
func toEventRecord(ev *asset.Event) (*EventRecord, error) {
	payload, err := json.Marshal(ev.Type)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}
	record := &EventRecord{
		Name:          ev.Name(),
		Payload:       string(payload),
		Timestamp:     ev.Timestamp,
		CorrelationID: ev.CorrelationID,
		Actor:         ev.Actor,
		Source:        ev.Source,
		Context:       JSONStringMap(ev.Context),
	}
	if subject, ok := ev.Subject(); ok {
		s := subject.String()
		record.AssetID = &s
	}
	return record, nil
}

// toDomain rebuilds an event from its row.
func (r *EventRecord) toDomain() (*asset.Event, error) {
	payload, err := asset.UnmarshalEventType(r.Name, []byte(r.Payload))
	if err != nil {
		return nil, err
	}
	return &asset.Event{
		Type:          payload,
		Timestamp:     r.Timestamp,
		CorrelationID: r.CorrelationID,
		Actor:         r.Actor,
		Source:        r.Source,
		Context:       map[string]string(r.Context),
	}, nil
}
