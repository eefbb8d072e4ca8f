// Package integrity computes and verifies asset content checksums and keeps
// the audit trail informed about verification outcomes.
package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/registry"
)

// Compute hashes data with the given algorithm and returns the checksum.
func Compute(data []byte, algorithm asset.HashAlgorithm) (asset.Checksum, error) {
	var digest [32]byte
	switch algorithm {
	case asset.HashSHA256:
		digest = sha256.Sum256(data)
	case asset.HashSHA3:
		digest = sha3.Sum256(data)
	case asset.HashBLAKE3:
		digest = blake3.Sum256(data)
	default:
		return asset.Checksum{}, registry.InvalidInput("unknown hash algorithm %q", string(algorithm))
	}
	return asset.NewChecksum(algorithm, hex.EncodeToString(digest[:]))
}

// ComputeSHA256 hashes data with SHA-256.
func ComputeSHA256(data []byte) asset.Checksum {
	c, _ := Compute(data, asset.HashSHA256)
	return c
}

// ComputeSHA3 hashes data with SHA3-256.
func ComputeSHA3(data []byte) asset.Checksum {
	c, _ := Compute(data, asset.HashSHA3)
	return c
}

// ComputeBLAKE3 hashes data with BLAKE3.
func ComputeBLAKE3(data []byte) asset.Checksum {
	c, _ := Compute(data, asset.HashBLAKE3)
	return c
}

// VerifyData hashes data with the expected checksum's algorithm and reports
// whether the digests match.
func VerifyData(data []byte, expected asset.Checksum) (bool, error) {
	computed, err := Compute(data, expected.Algorithm)
	if err != nil {
		return false, err
	}
	return expected.Verify(computed), nil
}

// Service verifies checksums against persisted assets and records the
// outcomes in the event store.
type Service struct {
	repo   registry.Repository
	events registry.EventStore
	log    *slog.Logger
}

// NewService wires an integrity service. A nil logger falls back to
// slog.Default.
func NewService(repo registry.Repository, events registry.EventStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, events: events, log: log}
}

// VerifyResult reports the outcome of a verification against a persisted
// asset.
type VerifyResult struct {
	AssetID  asset.ID       `json:"asset_id"`
	Expected asset.Checksum `json:"expected"`
	Actual   asset.Checksum `json:"actual"`
	Verified bool           `json:"verified"`
}

// VerifyAgainstAsset compares a computed checksum with the one stored for
// the asset and emits a ChecksumVerified or ChecksumFailed event. Event
// append failures are logged but never change the verification outcome.
func (s *Service) VerifyAgainstAsset(ctx context.Context, id asset.ID, computed asset.Checksum) (*VerifyResult, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	verified := a.Checksum.Verify(computed)
	var ev asset.EventType
	if verified {
		ev = asset.ChecksumVerified{AssetID: id, Success: true, Algorithm: computed.Algorithm}
	} else {
		ev = asset.ChecksumFailed{AssetID: id, Expected: a.Checksum.String(), Actual: computed.String()}
		s.log.Warn("checksum verification failed",
			"asset_id", id.String(),
			"expected", a.Checksum.String(),
			"actual", computed.String())
	}
	s.appendEvent(ctx, asset.NewEvent(ev).WithSource("integrity"))

	return &VerifyResult{
		AssetID:  id,
		Expected: a.Checksum,
		Actual:   computed,
		Verified: verified,
	}, nil
}

// VerifyData hashes the supplied bytes with the asset's stored algorithm and
// verifies the result against the asset.
func (s *Service) VerifyData(ctx context.Context, id asset.ID, data []byte) (*VerifyResult, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	computed, err := Compute(data, a.Checksum.Algorithm)
	if err != nil {
		return nil, err
	}
	return s.VerifyAgainstAsset(ctx, id, computed)
}

// UpdateChecksum replaces an asset's stored checksum, for example after the
// artifact was re-uploaded, and emits an AssetUpdated event.
func (s *Service) UpdateChecksum(ctx context.Context, id asset.ID, checksum asset.Checksum) (*asset.Asset, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Checksum = checksum
	a.Touch()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, asset.NewEvent(asset.AssetUpdated{
		AssetID:       a.ID,
		AssetName:     a.Metadata.Name,
		UpdatedFields: []string{"checksum"},
	}).WithSource("integrity"))

	return a, nil
}

func (s *Service) appendEvent(ctx context.Context, ev *asset.Event) {
	if err := s.events.Append(ctx, ev); err != nil {
		s.log.Error("append integrity event", "event", ev.Name(), "error", err)
	}
}

// FormatSize renders a byte count for log and policy messages.
func FormatSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
