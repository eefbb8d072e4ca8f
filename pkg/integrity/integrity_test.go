package integrity

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/db"
	"github.com/modelpark/registry/pkg/registry"
)

// Digests of "hello world".
const (
	helloSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	helloSHA3   = "644bcc7e564373040999aac89e7622f3ca71fba1d972fd94a31c3bfbf24e3938"
	helloBLAKE3 = "d74981efa70a0c880b8d8c1985d075dbcbf679b99a5f9914e5aaf96b831a9e24"
)

func newFixture(t *testing.T) (*Service, *db.Repository, *db.EventStore) {
	t.Helper()
	handle, err := db.Open(db.Options{Driver: db.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(handle))
	repo := db.NewRepository(handle)
	events := db.NewEventStore(handle)
	return NewService(repo, events, nil), repo, events
}

func storedAsset(t *testing.T, repo *db.Repository, checksum asset.Checksum) *asset.Asset {
	t.Helper()
	meta, err := asset.NewMetadata("llama", "1.0.0")
	require.NoError(t, err)
	meta.License = "Apache-2.0"
	storage, err := asset.NewStorageLocation(asset.S3Backend{Bucket: "b", Region: "r"}, "p")
	require.NoError(t, err)
	a, err := asset.NewBuilder(asset.TypeModel).Metadata(meta).Storage(storage).Checksum(checksum).Build()
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), a))
	return a
}

func TestCompute_KnownVectors(t *testing.T) {
	data := []byte("hello world")

	tests := []struct {
		algorithm asset.HashAlgorithm
		want      string
	}{
		{asset.HashSHA256, helloSHA256},
		{asset.HashSHA3, helloSHA3},
		{asset.HashBLAKE3, helloBLAKE3},
	}
	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			c, err := Compute(data, tt.algorithm)
			require.NoError(t, err)
			assert.Equal(t, tt.algorithm, c.Algorithm)
			assert.Equal(t, tt.want, c.Value)
		})
	}

	_, err := Compute(data, asset.HashAlgorithm("md5"))
	assert.True(t, registry.IsKind(err, registry.KindInvalidInput))
}

func TestComputeHelpers(t *testing.T) {
	data := []byte("hello world")
	assert.Equal(t, helloSHA256, ComputeSHA256(data).Value)
	assert.Equal(t, helloSHA3, ComputeSHA3(data).Value)
	assert.Equal(t, helloBLAKE3, ComputeBLAKE3(data).Value)
}

func TestVerifyData_Standalone(t *testing.T) {
	expected, err := asset.NewChecksum(asset.HashSHA256, helloSHA256)
	require.NoError(t, err)

	ok, err := VerifyData([]byte("hello world"), expected)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyData([]byte("hello world!"), expected)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyAgainstAsset(t *testing.T) {
	svc, repo, events := newFixture(t)
	ctx := context.Background()

	stored, err := asset.NewChecksum(asset.HashSHA256, helloSHA256)
	require.NoError(t, err)
	a := storedAsset(t, repo, stored)

	result, err := svc.VerifyAgainstAsset(ctx, a.ID, ComputeSHA256([]byte("hello world")))
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, a.ID, result.AssetID)
	assert.Equal(t, stored, result.Expected)

	latest, err := events.LatestEvent(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, asset.EventNameChecksumOK, latest.Name())
	payload := latest.Type.(asset.ChecksumVerified)
	assert.True(t, payload.Success)
	assert.Equal(t, asset.HashSHA256, payload.Algorithm)
	assert.Equal(t, "integrity", latest.Source)
}

func TestVerifyAgainstAsset_Mismatch(t *testing.T) {
	svc, repo, events := newFixture(t)
	ctx := context.Background()

	stored, err := asset.NewChecksum(asset.HashSHA256, helloSHA256)
	require.NoError(t, err)
	a := storedAsset(t, repo, stored)

	tampered := ComputeSHA256([]byte("tampered"))
	result, err := svc.VerifyAgainstAsset(ctx, a.ID, tampered)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, tampered, result.Actual)

	latest, err := events.LatestEvent(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, asset.EventNameChecksumFailed, latest.Name())
	payload := latest.Type.(asset.ChecksumFailed)
	assert.Equal(t, stored.String(), payload.Expected)
	assert.Equal(t, tampered.String(), payload.Actual)
	assert.True(t, asset.IsCritical(latest.Type))
}

func TestVerifyAgainstAsset_CrossAlgorithm(t *testing.T) {
	svc, repo, _ := newFixture(t)
	ctx := context.Background()

	stored, err := asset.NewChecksum(asset.HashSHA256, helloSHA256)
	require.NoError(t, err)
	a := storedAsset(t, repo, stored)

	// Same content hashed with a different algorithm does not verify.
	result, err := svc.VerifyAgainstAsset(ctx, a.ID, ComputeBLAKE3([]byte("hello world")))
	require.NoError(t, err)
	assert.False(t, result.Verified)
}

func TestServiceVerifyData(t *testing.T) {
	svc, repo, _ := newFixture(t)
	ctx := context.Background()

	stored, err := asset.NewChecksum(asset.HashBLAKE3, helloBLAKE3)
	require.NoError(t, err)
	a := storedAsset(t, repo, stored)

	result, err := svc.VerifyData(ctx, a.ID, []byte("hello world"))
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, asset.HashBLAKE3, result.Actual.Algorithm)

	result, err = svc.VerifyData(ctx, a.ID, []byte("hello"))
	require.NoError(t, err)
	assert.False(t, result.Verified)
}

func TestVerify_UnknownAsset(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.VerifyData(ctx, asset.NewID(), []byte("hello world"))
	assert.True(t, registry.IsKind(err, registry.KindNotFound))

	_, err = svc.VerifyAgainstAsset(ctx, asset.NewID(), ComputeSHA256(nil))
	assert.True(t, registry.IsKind(err, registry.KindNotFound))
}

func TestUpdateChecksum(t *testing.T) {
	svc, repo, events := newFixture(t)
	ctx := context.Background()

	stored, err := asset.NewChecksum(asset.HashSHA256, helloSHA256)
	require.NoError(t, err)
	a := storedAsset(t, repo, stored)

	replacement := ComputeSHA3([]byte("hello world"))
	updated, err := svc.UpdateChecksum(ctx, a.ID, replacement)
	require.NoError(t, err)
	assert.Equal(t, replacement, updated.Checksum)

	persisted, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement, persisted.Checksum)
	assert.False(t, persisted.UpdatedAt.Before(a.UpdatedAt))

	latest, err := events.LatestEvent(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, asset.EventNameUpdated, latest.Name())
	payload := latest.Type.(asset.AssetUpdated)
	assert.Equal(t, []string{"checksum"}, payload.UpdatedFields)
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{512, "512 B"},
		{1 << 10, "1.0 KiB"},
		{5 << 20, "5.0 MiB"},
		{10 << 30, "10.0 GiB"},
		{3 << 40, "3.0 TiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.bytes))
	}

	assert.True(t, strings.HasSuffix(FormatSize(1536), "KiB"))
}
