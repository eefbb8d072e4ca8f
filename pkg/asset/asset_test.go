package asset

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorage(t *testing.T) StorageLocation {
	t.Helper()
	loc, err := NewStorageLocation(S3Backend{Bucket: "models", Region: "us-east-1"}, "llama/7b/weights.bin")
	require.NoError(t, err)
	return loc
}

func testChecksum(t *testing.T) Checksum {
	t.Helper()
	c, err := NewChecksum(HashSHA256, helloWorldSHA256)
	require.NoError(t, err)
	return c
}

func buildTestAsset(t *testing.T, name, version string) *Asset {
	t.Helper()
	meta, err := NewMetadata(name, version)
	require.NoError(t, err)
	a, err := NewBuilder(TypeModel).
		Metadata(meta).
		Storage(testStorage(t)).
		Checksum(testChecksum(t)).
		Build()
	require.NoError(t, err)
	return a
}

func TestBuilder_Defaults(t *testing.T) {
	a := buildTestAsset(t, "llama", "1.2.3")

	assert.False(t, a.ID.IsZero())
	assert.Equal(t, StatusActive, a.Status)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
	assert.Nil(t, a.DeprecatedAt)
	assert.Equal(t, "llama@1.2.3", a.FullName())
	assert.True(t, a.IsActive())
	assert.True(t, a.IsCompliant())
}

func TestBuilder_FreshIDs(t *testing.T) {
	a := buildTestAsset(t, "llama", "1.0.0")
	b := buildTestAsset(t, "llama", "1.0.1")
	assert.NotEqual(t, a.ID, b.ID)
	// ULIDs generated later never sort before earlier ones.
	assert.Less(t, a.ID.String(), b.ID.String())
}

func TestNewID_SortsInCreationOrder(t *testing.T) {
	// Back-to-back IDs land in the same millisecond; the monotonic
	// entropy source must still keep them strictly ordered.
	prev := NewID()
	for i := 0; i < 1000; i++ {
		next := NewID()
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestNewID_ConcurrentUnique(t *testing.T) {
	const n = 64
	ids := make([]ID, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range ids {
		go func(i int) {
			defer wg.Done()
			ids[i] = NewID()
		}(i)
	}
	wg.Wait()

	seen := make(map[ID]struct{}, n)
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestBuilder_RejectsInvalidMetadata(t *testing.T) {
	meta := Metadata{Name: strings.Repeat("x", MaxNameLen+1)}
	_, err := NewBuilder(TypeModel).
		Metadata(meta).
		Storage(testStorage(t)).
		Checksum(testChecksum(t)).
		Build()
	assert.Error(t, err)
}

func TestSetStatus_DeprecatedAtIsSticky(t *testing.T) {
	a := buildTestAsset(t, "llama", "1.0.0")

	a.SetStatus(StatusDeprecated)
	require.NotNil(t, a.DeprecatedAt)
	first := *a.DeprecatedAt

	time.Sleep(2 * time.Millisecond)
	a.SetStatus(StatusActive)
	a.SetStatus(StatusDeprecated)
	assert.Equal(t, first, *a.DeprecatedAt)
}

func TestSetStatus_BumpsUpdatedAt(t *testing.T) {
	a := buildTestAsset(t, "llama", "1.0.0")
	before := a.UpdatedAt
	time.Sleep(2 * time.Millisecond)
	a.SetStatus(StatusArchived)
	assert.True(t, a.UpdatedAt.After(before))
	assert.False(t, a.UpdatedAt.Before(a.CreatedAt))
}

func TestAddDependency_PreservesOrder(t *testing.T) {
	a := buildTestAsset(t, "pipeline", "1.0.0")
	first := RefByID(NewID())
	second := RefByID(NewID())
	a.AddDependency(first)
	a.AddDependency(second)
	require.Len(t, a.Dependencies, 2)
	assert.Equal(t, first, a.Dependencies[0])
	assert.Equal(t, second, a.Dependencies[1])
}

func TestAsset_JSONRoundTrip(t *testing.T) {
	a := buildTestAsset(t, "llama", "2.0.0")
	a.Metadata.Tags = []string{"nlp", "llm"}
	prov, err := NewProvenanceBuilder().
		SourceRepo("https://github.com/example/llama").
		CommitHash(strings.Repeat("a", 40)).
		Build()
	require.NoError(t, err)
	a.SetProvenance(prov)
	a.AddDependency(RefByID(NewID()))

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var back Asset
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a.ID, back.ID)
	assert.Equal(t, a.Metadata.Name, back.Metadata.Name)
	assert.True(t, a.Metadata.Version.Equal(back.Metadata.Version))
	assert.Equal(t, a.Checksum, back.Checksum)
	assert.Equal(t, a.Storage.GetURI(), back.Storage.GetURI())
	assert.Equal(t, a.Dependencies, back.Dependencies)
	require.NotNil(t, back.Provenance)
	assert.True(t, back.Provenance.IsComplete())
}

func TestType_ParseAndValidate(t *testing.T) {
	for in, want := range map[string]Type{
		"model":      TypeModel,
		"pipeline":   TypePipeline,
		"test_suite": TypeTestSuite,
		"policy":     TypePolicy,
		"dataset":    TypeDataset,
	} {
		got, err := ParseType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, in, got.String())
	}

	custom, err := ParseType("embedding")
	require.NoError(t, err)
	assert.True(t, custom.IsCustom())
	assert.Equal(t, "embedding", custom.String())

	_, err = CustomType("  ")
	assert.Error(t, err)
	assert.Error(t, Type{}.Validate())
	assert.Equal(t, TypeModel, DefaultType())
}

func TestStatus_Parse(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusDeprecated, StatusArchived, StatusNonCompliant} {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("retired")
	assert.Error(t, err)
}

func TestReference_Forms(t *testing.T) {
	id := NewID()
	byID := RefByID(id)
	gotID, ok := byID.ByID()
	require.True(t, ok)
	assert.Equal(t, id, gotID)
	_, _, loose := byID.ByNameVersion()
	assert.False(t, loose)
	assert.Equal(t, "id:"+id.String(), byID.String())

	byName, err := RefByNameVersion("tokenizer", "^1.0")
	require.NoError(t, err)
	name, version, ok := byName.ByNameVersion()
	require.True(t, ok)
	assert.Equal(t, "tokenizer", name)
	assert.Equal(t, "^1.0", version)
	assert.Equal(t, "tokenizer@^1.0", byName.String())

	_, err = RefByNameVersion("", "1.0.0")
	assert.Error(t, err)
	_, err = RefByNameVersion("tokenizer", "")
	assert.Error(t, err)
}

func TestStorageLocation_URIs(t *testing.T) {
	tests := []struct {
		name    string
		backend StorageBackend
		path    string
		want    string
	}{
		{"s3", S3Backend{Bucket: "models", Region: "us-east-1"}, "a/b.bin", "s3://models/a/b.bin"},
		{"gcs", GCSBackend{Bucket: "models", ProjectID: "proj"}, "a/b.bin", "gs://models/a/b.bin"},
		{"azure", AzureBlobBackend{AccountName: "acct", Container: "models"}, "a/b.bin", "https://acct.blob.core.windows.net/models/a/b.bin"},
		{"minio", MinIOBackend{Bucket: "models", Endpoint: "http://minio:9000"}, "a/b.bin", "http://minio:9000/models/a/b.bin"},
		{"filesystem", FileSystemBackend{BasePath: "/var/registry"}, "a/b.bin", "file:///var/registry/a/b.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := NewStorageLocation(tt.backend, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.GetURI())

			data, err := json.Marshal(loc)
			require.NoError(t, err)
			var back StorageLocation
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.want, back.GetURI())
			assert.Equal(t, tt.backend.Kind(), back.Backend.Kind())
		})
	}
}

func TestStorageLocation_Rejects(t *testing.T) {
	_, err := NewStorageLocation(S3Backend{Region: "us-east-1"}, "a")
	assert.Error(t, err)
	_, err = NewStorageLocation(MinIOBackend{Bucket: "b"}, "a")
	assert.Error(t, err)
	_, err = NewStorageLocation(FileSystemBackend{BasePath: "/x"}, " ")
	assert.Error(t, err)
	_, err = NewStorageLocation(nil, "a")
	assert.Error(t, err)
}

func TestProvenance_Validate(t *testing.T) {
	tests := []struct {
		name    string
		repo    string
		commit  string
		wantErr bool
	}{
		{"https repo", "https://github.com/x/y", strings.Repeat("a", 40), false},
		{"ssh repo", "ssh://git.example.com/x", strings.Repeat("f", 64), false},
		{"git at", "git@github.com:x/y.git", "", false},
		{"bad scheme", "ftp://example.com/x", "", true},
		{"short commit", "", "abc123", true},
		{"non-hex commit", "", strings.Repeat("g", 40), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Provenance{SourceRepo: tt.repo, CommitHash: tt.commit, CreatedAt: time.Now()}
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProvenance_IsComplete(t *testing.T) {
	p := NewProvenance()
	assert.False(t, p.IsComplete())
	p.SourceRepo = "https://github.com/x/y"
	assert.False(t, p.IsComplete())
	p.CommitHash = strings.Repeat("a", 40)
	assert.True(t, p.IsComplete())
}
