package asset

import (
	"fmt"
	"strings"
)

// Type classifies what kind of artifact an asset is. The predefined kinds
// cover the common registry contents; Custom allows extension without a
// schema change.
type Type struct {
	kind   string
	custom string
}

// Predefined asset types.
var (
	TypeModel     = Type{kind: "model"}
	TypePipeline  = Type{kind: "pipeline"}
	TypeTestSuite = Type{kind: "test_suite"}
	TypePolicy    = Type{kind: "policy"}
	TypeDataset   = Type{kind: "dataset"}
)

// CustomType creates a user-defined asset type. The name must be non-empty.
func CustomType(name string) (Type, error) {
	if strings.TrimSpace(name) == "" {
		return Type{}, fmt.Errorf("custom asset type name must not be empty")
	}
	return Type{kind: "custom", custom: name}, nil
}

// ParseType maps a string form back to a Type. Unknown names become custom
// types.
func ParseType(s string) (Type, error) {
	switch s {
	case "model":
		return TypeModel, nil
	case "pipeline":
		return TypePipeline, nil
	case "test_suite":
		return TypeTestSuite, nil
	case "policy":
		return TypePolicy, nil
	case "dataset":
		return TypeDataset, nil
	default:
		return CustomType(s)
	}
}

// IsCustom reports whether the type is user-defined.
func (t Type) IsCustom() bool {
	return t.kind == "custom"
}

// Validate checks that the type is one of the known kinds and, for custom
// types, that a name is present.
func (t Type) Validate() error {
	switch t.kind {
	case "model", "pipeline", "test_suite", "policy", "dataset":
		return nil
	case "custom":
		if strings.TrimSpace(t.custom) == "" {
			return fmt.Errorf("custom asset type name must not be empty")
		}
		return nil
	case "":
		return fmt.Errorf("asset type is not set")
	default:
		return fmt.Errorf("unknown asset type %q", t.kind)
	}
}

func (t Type) String() string {
	if t.kind == "custom" {
		return t.custom
	}
	return t.kind
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DefaultType is the type assumed when a registration request does not name
// one.
func DefaultType() Type {
	return TypeModel
}

// Status is the lifecycle state of an asset.
type Status string

const (
	// StatusActive marks an asset available for general use.
	StatusActive Status = "active"
	// StatusDeprecated marks an asset discouraged for new consumers.
	StatusDeprecated Status = "deprecated"
	// StatusArchived marks an asset retained for record keeping only.
	StatusArchived Status = "archived"
	// StatusNonCompliant marks an asset that failed a policy check.
	StatusNonCompliant Status = "non_compliant"
)

// ParseStatus maps a string form back to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusDeprecated, StatusArchived, StatusNonCompliant:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown asset status %q", s)
	}
}

func (s Status) String() string {
	return string(s)
}

// Validate checks that the status is one of the known states.
func (s Status) Validate() error {
	_, err := ParseStatus(string(s))
	return err
}
