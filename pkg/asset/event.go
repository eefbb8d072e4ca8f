package asset

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names in stored and serialized form.
const (
	EventNameRegistered     = "asset_registered"
	EventNameUpdated        = "asset_updated"
	EventNameDeleted        = "asset_deleted"
	EventNameStatusChanged  = "asset_status_changed"
	EventNameDownloaded     = "asset_downloaded"
	EventNameChecksumOK     = "checksum_verified"
	EventNameChecksumFailed = "checksum_failed"
	EventNamePolicy         = "policy_validated"
	EventNameDepAdded       = "dependency_added"
	EventNameCycleDetected  = "circular_dependency_detected"
	EventNameCustom         = "custom"
)

// EventType is one concrete thing that happened to an asset. Implementations
// are plain payload structs; the Name discriminator is what gets indexed in
// the event store.
type EventType interface {
	// Name returns the snake_case event discriminator.
	Name() string
	// Subject returns the asset the event is about, when it is about one.
	Subject() (ID, bool)
}

// AssetRegistered records a successful registration.
type AssetRegistered struct {
	AssetID   ID     `json:"asset_id"`
	AssetName string `json:"name"`
	Version   string `json:"version"`
	AssetType Type   `json:"asset_type"`
}

func (e AssetRegistered) Name() string { return EventNameRegistered }
func (e AssetRegistered) Subject() (ID, bool) { return e.AssetID, true }

// AssetUpdated records a mutation, naming the logical fields that changed.
type AssetUpdated struct {
	AssetID       ID       `json:"asset_id"`
	AssetName     string   `json:"name"`
	UpdatedFields []string `json:"updated_fields"`
}

func (e AssetUpdated) Name() string { return EventNameUpdated }
func (e AssetUpdated) Subject() (ID, bool) { return e.AssetID, true }

// AssetDeleted records a deletion.
type AssetDeleted struct {
	AssetID   ID     `json:"asset_id"`
	AssetName string `json:"name"`
}

func (e AssetDeleted) Name() string { return EventNameDeleted }
func (e AssetDeleted) Subject() (ID, bool) { return e.AssetID, true }

// AssetStatusChanged records a lifecycle transition.
type AssetStatusChanged struct {
	AssetID   ID     `json:"asset_id"`
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
}

func (e AssetStatusChanged) Name() string { return EventNameStatusChanged }
func (e AssetStatusChanged) Subject() (ID, bool) { return e.AssetID, true }

// AssetDownloaded records a download, optionally attributing it.
type AssetDownloaded struct {
	AssetID    ID     `json:"asset_id"`
	Downloader string `json:"downloader,omitempty"`
}

func (e AssetDownloaded) Name() string { return EventNameDownloaded }
func (e AssetDownloaded) Subject() (ID, bool) { return e.AssetID, true }

// ChecksumVerified records the outcome of an integrity verification.
type ChecksumVerified struct {
	AssetID   ID            `json:"asset_id"`
	Success   bool          `json:"success"`
	Algorithm HashAlgorithm `json:"algorithm"`
}

func (e ChecksumVerified) Name() string { return EventNameChecksumOK }
func (e ChecksumVerified) Subject() (ID, bool) { return e.AssetID, true }

// ChecksumFailed records an integrity mismatch with both digests.
type ChecksumFailed struct {
	AssetID  ID     `json:"asset_id"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (e ChecksumFailed) Name() string { return EventNameChecksumFailed }
func (e ChecksumFailed) Subject() (ID, bool) { return e.AssetID, true }

// PolicyValidated records a single policy evaluation.
type PolicyValidated struct {
	AssetID    ID     `json:"asset_id"`
	PolicyName string `json:"policy_name"`
	Passed     bool   `json:"passed"`
	Message    string `json:"message,omitempty"`
}

func (e PolicyValidated) Name() string { return EventNamePolicy }
func (e PolicyValidated) Subject() (ID, bool) { return e.AssetID, true }

// DependencyAdded records one dependency edge. Exactly one of DependencyID
// and DependencyName is set, mirroring the two reference forms.
type DependencyAdded struct {
	AssetID        ID     `json:"asset_id"`
	DependencyID   *ID    `json:"dependency_id,omitempty"`
	DependencyName string `json:"dependency_name,omitempty"`
}

func (e DependencyAdded) Name() string { return EventNameDepAdded }
func (e DependencyAdded) Subject() (ID, bool) { return e.AssetID, true }

// CircularDependencyDetected records a rejected registration cycle, in edge
// order.
type CircularDependencyDetected struct {
	Cycle []ID `json:"cycle"`
}

func (e CircularDependencyDetected) Name() string { return EventNameCycleDetected }

func (e CircularDependencyDetected) Subject() (ID, bool) {
	if len(e.Cycle) == 0 {
		return ID{}, false
	}
	return e.Cycle[0], true
}

// CustomEvent carries an extension event with arbitrary payload.
type CustomEvent struct {
	EventName string         `json:"name"`
	Data      map[string]any `json:"data,omitempty"`
}

func (e CustomEvent) Name() string { return EventNameCustom }
func (e CustomEvent) Subject() (ID, bool) { return ID{}, false }

// IsCritical reports whether the event signals integrity or graph corruption
// and should alert operators.
func IsCritical(e EventType) bool {
	switch e.(type) {
	case ChecksumFailed, *ChecksumFailed:
		return true
	case CircularDependencyDetected, *CircularDependencyDetected:
		return true
	default:
		return false
	}
}

// Event is the audit trail entry: a typed payload plus tracing envelope.
type Event struct {
	Type          EventType         `json:"-"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Actor         string            `json:"actor,omitempty"`
	Source        string            `json:"source,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
}

// NewEvent wraps a payload in an envelope stamped with the current time.
func NewEvent(t EventType) *Event {
	return &Event{Type: t, Timestamp: time.Now().UTC()}
}

// WithCorrelationID tags the event with a request correlation id.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithActor tags the event with the acting principal.
func (e *Event) WithActor(actor string) *Event {
	e.Actor = actor
	return e
}

// WithSource tags the event with the emitting component.
func (e *Event) WithSource(source string) *Event {
	e.Source = source
	return e
}

// WithContext attaches one context key/value pair.
func (e *Event) WithContext(key, value string) *Event {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// Name returns the event discriminator of the payload.
func (e *Event) Name() string {
	return e.Type.Name()
}

// Subject returns the asset the event is about, when it is about one.
func (e *Event) Subject() (ID, bool) {
	return e.Type.Subject()
}

type eventJSON struct {
	Event         string            `json:"event"`
	Payload       json.RawMessage   `json:"payload"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Actor         string            `json:"actor,omitempty"`
	Source        string            `json:"source,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
}

// MarshalJSON serializes the event with a name discriminator.
func (e *Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventJSON{
		Event:         e.Type.Name(),
		Payload:       payload,
		Timestamp:     e.Timestamp,
		CorrelationID: e.CorrelationID,
		Actor:         e.Actor,
		Source:        e.Source,
		Context:       e.Context,
	})
}

// UnmarshalJSON restores the concrete payload from the discriminator.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t, err := UnmarshalEventType(raw.Event, raw.Payload)
	if err != nil {
		return err
	}
	e.Type = t
	e.Timestamp = raw.Timestamp
	e.CorrelationID = raw.CorrelationID
	e.Actor = raw.Actor
	e.Source = raw.Source
	e.Context = raw.Context
	return nil
}

// UnmarshalEventType decodes an event payload given its name discriminator.
func UnmarshalEventType(name string, payload []byte) (EventType, error) {
	decode := func(v EventType) (EventType, error) {
		if err := json.Unmarshal(payload, v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", name, err)
		}
		return v, nil
	}
	switch name {
	case EventNameRegistered:
		t, err := decode(&AssetRegistered{})
		if err != nil {
			return nil, err
		}
		return *t.(*AssetRegistered), nil
	case EventNameUpdated:
		t, err := decode(&AssetUpdated{})
		if err != nil {
			return nil, err
		}
		return *t.(*AssetUpdated), nil
	case EventNameDeleted:
		t, err := decode(&AssetDeleted{})
		if err != nil {
			return nil, err
		}
		return *t.(*AssetDeleted), nil
	case EventNameStatusChanged:
		t, err := decode(&AssetStatusChanged{})
		if err != nil {
			return nil, err
		}
		return *t.(*AssetStatusChanged), nil
	case EventNameDownloaded:
		t, err := decode(&AssetDownloaded{})
		if err != nil {
			return nil, err
		}
		return *t.(*AssetDownloaded), nil
	case EventNameChecksumOK:
		t, err := decode(&ChecksumVerified{})
		if err != nil {
			return nil, err
		}
		return *t.(*ChecksumVerified), nil
	case EventNameChecksumFailed:
		t, err := decode(&ChecksumFailed{})
		if err != nil {
			return nil, err
		}
		return *t.(*ChecksumFailed), nil
	case EventNamePolicy:
		t, err := decode(&PolicyValidated{})
		if err != nil {
			return nil, err
		}
		return *t.(*PolicyValidated), nil
	case EventNameDepAdded:
		t, err := decode(&DependencyAdded{})
		if err != nil {
			return nil, err
		}
		return *t.(*DependencyAdded), nil
	case EventNameCycleDetected:
		t, err := decode(&CircularDependencyDetected{})
		if err != nil {
			return nil, err
		}
		return *t.(*CircularDependencyDetected), nil
	case EventNameCustom:
		t, err := decode(&CustomEvent{})
		if err != nil {
			return nil, err
		}
		return *t.(*CustomEvent), nil
	default:
		return nil, fmt.Errorf("unknown event name %q", name)
	}
}
