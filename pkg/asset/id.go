package asset

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is the unique identifier of a registered asset. IDs are ULIDs, so they
// sort lexicographically in creation order and never collide in practice.
type ID struct {
	value ulid.ULID
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID generates a fresh ID from the current time and a cryptographic
// entropy source. The source is monotonic, so IDs minted within the same
// millisecond still sort in creation order. Safe for concurrent use.
func NewID() ID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ID{value: ulid.MustNew(ulid.Timestamp(time.Now()), entropy)}
}

// ParseID parses the canonical 26-character ULID string form of an ID.
func ParseID(s string) (ID, error) {
	v, err := ulid.ParseStrict(s)
	if err != nil {
		return ID{}, fmt.Errorf("parse asset id %q: %w", s, err)
	}
	return ID{value: v}, nil
}

// MustParseID is ParseID that panics on invalid input. For tests and
// compile-time constants only.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether the ID is the zero value (never a valid asset ID).
func (id ID) IsZero() bool {
	return id.value == ulid.ULID{}
}

// Time returns the timestamp component of the ID.
func (id ID) Time() time.Time {
	return time.UnixMilli(int64(id.value.Time())).UTC()
}

func (id ID) String() string {
	return id.value.String()
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as plain
// ULID strings in JSON and map keys.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.value.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
