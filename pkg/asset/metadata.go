package asset

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Field length limits enforced at construction and by the validation
// service.
const (
	MaxNameLen          = 255
	MaxTagLen           = 100
	MaxAnnotationKeyLen = 255
)

// Metadata describes a versioned asset: its identity, licensing,
// classification tags, and free-form annotations.
type Metadata struct {
	Name        string            `json:"name"`
	Version     *semver.Version   `json:"version"`
	Description string            `json:"description,omitempty"`
	License     string            `json:"license,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	SizeBytes   *uint64           `json:"size_bytes,omitempty"`
}

// NewMetadata creates metadata with the required name and version and
// validates them.
func NewMetadata(name, version string) (Metadata, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return Metadata{}, fmt.Errorf("parse version %q: %w", version, err)
	}
	m := Metadata{Name: name, Version: v}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Validate checks the structural rules for metadata fields.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("asset name must not be empty")
	}
	if len(m.Name) > MaxNameLen {
		return fmt.Errorf("asset name exceeds %d characters", MaxNameLen)
	}
	if m.Version == nil {
		return fmt.Errorf("asset version must be set")
	}
	if m.License != "" && strings.TrimSpace(m.License) == "" {
		return fmt.Errorf("license must not be blank when set")
	}
	if m.ContentType != "" && !strings.Contains(m.ContentType, "/") {
		return fmt.Errorf("content type %q is not a valid MIME type", m.ContentType)
	}
	for _, tag := range m.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("tags must not be empty")
		}
		if len(tag) > MaxTagLen {
			return fmt.Errorf("tag %q exceeds %d characters", tag, MaxTagLen)
		}
	}
	for key := range m.Annotations {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("annotation keys must not be empty")
		}
		if len(key) > MaxAnnotationKeyLen {
			return fmt.Errorf("annotation key %q exceeds %d characters", key, MaxAnnotationKeyLen)
		}
	}
	return nil
}

// HasTag reports whether the metadata carries the given tag.
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Annotation returns the value for an annotation key and whether it is set.
func (m Metadata) Annotation(key string) (string, bool) {
	v, ok := m.Annotations[key]
	return v, ok
}

// Clone returns a deep copy so callers can mutate tags and annotations
// without aliasing.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.Annotations != nil {
		out.Annotations = make(map[string]string, len(m.Annotations))
		for k, v := range m.Annotations {
			out.Annotations[k] = v
		}
	}
	if m.SizeBytes != nil {
		size := *m.SizeBytes
		out.SizeBytes = &size
	}
	return out
}

// MetadataBuilder assembles Metadata field by field. Build validates the
// result.
type MetadataBuilder struct {
	m Metadata
}

// NewMetadataBuilder starts a builder for the required name and version.
func NewMetadataBuilder(name, version string) (*MetadataBuilder, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", version, err)
	}
	return &MetadataBuilder{m: Metadata{Name: name, Version: v}}, nil
}

// Description sets the free-form description.
func (b *MetadataBuilder) Description(d string) *MetadataBuilder {
	b.m.Description = d
	return b
}

// License sets the SPDX license expression.
func (b *MetadataBuilder) License(l string) *MetadataBuilder {
	b.m.License = l
	return b
}

// ContentType sets the MIME content type.
func (b *MetadataBuilder) ContentType(ct string) *MetadataBuilder {
	b.m.ContentType = ct
	return b
}

// Tag appends a classification tag.
func (b *MetadataBuilder) Tag(tag string) *MetadataBuilder {
	b.m.Tags = append(b.m.Tags, tag)
	return b
}

// Tags appends multiple classification tags.
func (b *MetadataBuilder) Tags(tags ...string) *MetadataBuilder {
	b.m.Tags = append(b.m.Tags, tags...)
	return b
}

// Annotation sets a free-form annotation.
func (b *MetadataBuilder) Annotation(key, value string) *MetadataBuilder {
	if b.m.Annotations == nil {
		b.m.Annotations = make(map[string]string)
	}
	b.m.Annotations[key] = value
	return b
}

// SizeBytes records the artifact size.
func (b *MetadataBuilder) SizeBytes(n uint64) *MetadataBuilder {
	b.m.SizeBytes = &n
	return b
}

// Build validates and returns the metadata.
func (b *MetadataBuilder) Build() (Metadata, error) {
	if err := b.m.Validate(); err != nil {
		return Metadata{}, err
	}
	return b.m.Clone(), nil
}
