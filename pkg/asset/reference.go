package asset

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Reference points at another asset, either by its stable ID or loosely by
// name and version expression. Graph algorithms only follow ID references;
// name references are informational until resolved.
type Reference struct {
	id      ID
	name    string
	version string
	hasID   bool
}

// RefByID creates a reference to a concrete registered asset.
func RefByID(id ID) Reference {
	return Reference{id: id, hasID: true}
}

// RefByNameVersion creates a loose reference by name and version
// expression. Both parts must be non-empty.
func RefByNameVersion(name, version string) (Reference, error) {
	if strings.TrimSpace(name) == "" {
		return Reference{}, fmt.Errorf("reference name must not be empty")
	}
	if strings.TrimSpace(version) == "" {
		return Reference{}, fmt.Errorf("reference version must not be empty")
	}
	return Reference{name: name, version: version}, nil
}

// ByID reports the referenced ID when the reference is an ID reference.
func (r Reference) ByID() (ID, bool) {
	return r.id, r.hasID
}

// ByNameVersion reports the name and version when the reference is a loose
// one.
func (r Reference) ByNameVersion() (name, version string, ok bool) {
	if r.hasID {
		return "", "", false
	}
	return r.name, r.version, true
}

// IsZero reports whether the reference was never initialized.
func (r Reference) IsZero() bool {
	return !r.hasID && r.name == ""
}

func (r Reference) String() string {
	if r.hasID {
		return "id:" + r.id.String()
	}
	return r.name + "@" + r.version
}

type referenceJSON struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.hasID {
		return json.Marshal(referenceJSON{ID: r.id.String()})
	}
	return json.Marshal(referenceJSON{Name: r.name, Version: r.version})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Reference) UnmarshalJSON(data []byte) error {
	var raw referenceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ID != "" {
		id, err := ParseID(raw.ID)
		if err != nil {
			return err
		}
		*r = RefByID(id)
		return nil
	}
	ref, err := RefByNameVersion(raw.Name, raw.Version)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
