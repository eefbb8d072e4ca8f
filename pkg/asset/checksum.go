package asset

import (
	"fmt"
	"strings"
)

// HashAlgorithm identifies a supported content hash function. All supported
// algorithms produce 32-byte digests, so every checksum value is 64 hex
// characters.
type HashAlgorithm string

const (
	// HashSHA256 is SHA-256 from the SHA-2 family.
	HashSHA256 HashAlgorithm = "SHA256"
	// HashSHA3 is SHA3-256.
	HashSHA3 HashAlgorithm = "SHA3-256"
	// HashBLAKE3 is BLAKE3 with its default 256-bit output.
	HashBLAKE3 HashAlgorithm = "BLAKE3"
)

// checksumHexLen is the expected hex length for every supported algorithm.
const checksumHexLen = 64

// ParseHashAlgorithm maps a string form back to a HashAlgorithm. Matching is
// case-insensitive and accepts SHA3_256 as an alias for SHA3-256.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch strings.ToUpper(s) {
	case "SHA256", "SHA-256":
		return HashSHA256, nil
	case "SHA3-256", "SHA3_256", "SHA3":
		return HashSHA3, nil
	case "BLAKE3":
		return HashBLAKE3, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", s)
	}
}

// Validate checks that the algorithm is a supported one.
func (a HashAlgorithm) Validate() error {
	switch a {
	case HashSHA256, HashSHA3, HashBLAKE3:
		return nil
	default:
		return fmt.Errorf("unknown hash algorithm %q", string(a))
	}
}

func (a HashAlgorithm) String() string {
	return string(a)
}

// Checksum is a content digest paired with the algorithm that produced it.
// The value is always stored as lowercase hex.
type Checksum struct {
	Algorithm HashAlgorithm `json:"algorithm"`
	Value     string        `json:"value"`
}

// NewChecksum builds a Checksum from an algorithm and a hex digest string.
// The value is normalized to lowercase and must be exactly 64 hex
// characters.
func NewChecksum(algorithm HashAlgorithm, value string) (Checksum, error) {
	if err := algorithm.Validate(); err != nil {
		return Checksum{}, err
	}
	normalized := strings.ToLower(value)
	if len(normalized) != checksumHexLen {
		return Checksum{}, fmt.Errorf("checksum value must be %d hex characters, got %d", checksumHexLen, len(normalized))
	}
	for _, c := range normalized {
		if !isHexDigit(c) {
			return Checksum{}, fmt.Errorf("checksum value contains non-hex character %q", c)
		}
	}
	return Checksum{Algorithm: algorithm, Value: normalized}, nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

// Verify reports whether other matches this checksum exactly. A digest
// computed with a different algorithm never matches, even if the hex value
// is identical.
func (c Checksum) Verify(other Checksum) bool {
	return c.Algorithm == other.Algorithm && c.Value == other.Value
}

// VerifyHex reports whether the raw hex digest matches this checksum's
// value. Comparison is case-insensitive.
func (c Checksum) VerifyHex(hexValue string) bool {
	return c.Value == strings.ToLower(hexValue)
}

// String renders the checksum as "ALGORITHM:value".
func (c Checksum) String() string {
	return fmt.Sprintf("%s:%s", c.Algorithm, c.Value)
}

// ParseChecksum parses the "ALGORITHM:value" form produced by String.
func ParseChecksum(s string) (Checksum, error) {
	algo, value, ok := strings.Cut(s, ":")
	if !ok {
		return Checksum{}, fmt.Errorf("checksum %q is not in ALGORITHM:value form", s)
	}
	parsed, err := ParseHashAlgorithm(algo)
	if err != nil {
		return Checksum{}, err
	}
	return NewChecksum(parsed, value)
}
