package registration

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/db"
	"github.com/modelpark/registry/pkg/registry"
	"github.com/modelpark/registry/pkg/validation"
)

const testDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

type fixture struct {
	repo    *db.Repository
	events  *db.EventStore
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	handle, err := db.Open(db.Options{Driver: db.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(handle))

	repo := db.NewRepository(handle)
	events := db.NewEventStore(handle)
	validator := validation.NewService(repo, events, nil)
	return &fixture{
		repo:    repo,
		events:  events,
		service: NewService(repo, events, validator, nil),
	}
}

func testStorage() asset.StorageLocation {
	return asset.StorageLocation{
		Backend: asset.S3Backend{Bucket: "models", Region: "us-east-1"},
		Path:    "artifact.bin",
	}
}

func registerRequest(name, version string) RegisterRequest {
	return RegisterRequest{
		Name:     name,
		Version:  version,
		License:  "Apache-2.0",
		Storage:  testStorage(),
		Checksum: ChecksumSpec{Algorithm: "SHA256", Value: testDigest},
		Actor:    "alice",
	}
}

func (f *fixture) register(t *testing.T, req RegisterRequest) *asset.Asset {
	t.Helper()
	resp, err := f.service.Register(context.Background(), req)
	require.NoError(t, err)
	return resp.Asset
}

func TestRegister_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := registerRequest("llama", "1.0.0")
	req.Description = "a model"
	req.Tags = []string{"llm"}
	resp, err := f.service.Register(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, resp.Asset)
	assert.NotEmpty(t, resp.CorrelationID)
	assert.Equal(t, asset.StatusActive, resp.Asset.Status)
	assert.Equal(t, asset.TypeModel, resp.Asset.Type)
	assert.Equal(t, "s3://models/artifact.bin", resp.Asset.Storage.GetURI())

	persisted, err := f.repo.FindByNameAndVersion(ctx, "llama", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, resp.Asset.ID, persisted.ID)

	// Policy evaluations plus the registration land in the audit trail.
	events, err := f.events.AssetEvents(ctx, resp.Asset.ID, 10)
	require.NoError(t, err)
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name()
	}
	assert.Contains(t, names, asset.EventNameRegistered)
	assert.Contains(t, names, asset.EventNamePolicy)
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, registerRequest("llama", "1.0.0"))

	_, err := f.service.Register(context.Background(), registerRequest("llama", "1.0.0"))
	require.Error(t, err)
	assert.True(t, registry.IsKind(err, registry.KindAlreadyExists))
}

func TestRegister_DefaultTypeAndWarnings(t *testing.T) {
	f := newFixture(t)

	req := registerRequest("unlicensed", "1.0.0")
	req.License = ""
	resp, err := f.service.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, asset.TypeModel, resp.Asset.Type)

	// License policy warns but never blocks.
	var licenseWarning bool
	for _, w := range resp.Warnings {
		if w.Field == "license" {
			licenseWarning = true
		}
	}
	assert.True(t, licenseWarning)
}

func TestRegister_SizePolicyBlocks(t *testing.T) {
	f := newFixture(t)

	huge := uint64(11) << 30
	req := registerRequest("big", "1.0.0")
	req.SizeBytes = &huge
	_, err := f.service.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, registry.IsKind(err, registry.KindValidationFailed))

	// Nothing was written.
	_, err = f.repo.FindByNameAndVersion(context.Background(), "big", "1.0.0")
	assert.True(t, registry.IsKind(err, registry.KindNotFound))
}

func TestRegister_WithDependencies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := f.register(t, registerRequest("base", "1.0.0"))

	req := registerRequest("app", "1.0.0")
	req.Dependencies = []DependencySpec{{AssetID: base.ID.String()}}
	resp, err := f.service.Register(ctx, req)
	require.NoError(t, err)
	require.Len(t, resp.Asset.Dependencies, 1)

	deps, err := f.repo.ListDependencies(ctx, resp.Asset.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)

	events, err := f.events.AssetEvents(ctx, resp.Asset.ID, 10)
	require.NoError(t, err)
	var depAdded bool
	for _, ev := range events {
		if payload, ok := ev.Type.(asset.DependencyAdded); ok {
			depAdded = true
			require.NotNil(t, payload.DependencyID)
			assert.Equal(t, base.ID, *payload.DependencyID)
		}
	}
	assert.True(t, depAdded)
}

func TestRegister_MissingDependency(t *testing.T) {
	f := newFixture(t)

	req := registerRequest("app", "1.0.0")
	req.Dependencies = []DependencySpec{{AssetID: asset.NewID().String()}}
	_, err := f.service.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, registry.IsKind(err, registry.KindDependencyNotFound))
}

func TestRegister_LooseDependencyIsNotResolved(t *testing.T) {
	f := newFixture(t)

	req := registerRequest("app", "1.0.0")
	req.Dependencies = []DependencySpec{{Name: "tokenizer", Version: "^1.0"}}
	resp, err := f.service.Register(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Asset.Dependencies, 1)
}

func TestRegister_ManyDependenciesWarns(t *testing.T) {
	f := newFixture(t)

	req := registerRequest("kitchen-sink", "1.0.0")
	for i := 0; i < 101; i++ {
		req.Dependencies = append(req.Dependencies,
			DependencySpec{Name: fmt.Sprintf("dep-%d", i), Version: "^1.0"})
	}
	resp, err := f.service.Register(context.Background(), req)
	require.NoError(t, err)

	var depWarning bool
	for _, w := range resp.Warnings {
		if w.Field == "dependencies" {
			depWarning = true
		}
	}
	assert.True(t, depWarning)
}

func TestRegister_RejectsCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Persist a pre-existing a <-> b cycle behind the orchestrator's back.
	a := f.register(t, registerRequest("a", "1.0.0"))
	b := f.register(t, registerRequest("b", "1.0.0"))
	require.NoError(t, f.repo.AddDependency(ctx, a.ID, asset.RefByID(b.ID), ""))
	require.NoError(t, f.repo.AddDependency(ctx, b.ID, asset.RefByID(a.ID), ""))

	req := registerRequest("c", "1.0.0")
	req.Dependencies = []DependencySpec{{AssetID: a.ID.String()}}
	_, err := f.service.Register(ctx, req)
	require.Error(t, err)
	assert.True(t, registry.IsKind(err, registry.KindCircularDependency))

	// The rejected asset was never persisted, but the detection was audited.
	_, err = f.repo.FindByNameAndVersion(ctx, "c", "1.0.0")
	assert.True(t, registry.IsKind(err, registry.KindNotFound))

	results, err := f.events.Query(ctx, registry.EventQuery{Names: []string{asset.EventNameCycleDetected}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), results.Total)
}

func TestRegister_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := registerRequest("x", "not-a-version")
	_, err := f.service.Register(ctx, bad)
	assert.True(t, registry.IsKind(err, registry.KindInvalidInput))

	bad = registerRequest("x", "1.0.0")
	bad.Checksum = ChecksumSpec{Algorithm: "MD5", Value: testDigest}
	_, err = f.service.Register(ctx, bad)
	assert.True(t, registry.IsKind(err, registry.KindInvalidInput))
}

func TestUpdate_TracksFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, registerRequest("llama", "1.0.0"))

	desc := "new description"
	status := asset.StatusDeprecated.String()
	resp, err := f.service.Update(ctx, a.ID, UpdateRequest{
		Description: &desc,
		AddTags:     []string{"llm", "llm"},
		Status:      &status,
		Actor:       "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"description", "tags", "status"}, resp.UpdatedFields)
	assert.Equal(t, asset.StatusDeprecated, resp.Asset.Status)
	require.NotNil(t, resp.Asset.DeprecatedAt)

	persisted, err := f.repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new description", persisted.Metadata.Description)
	assert.Equal(t, []string{"llm"}, persisted.Metadata.Tags)

	events, err := f.events.Query(ctx, registry.EventQuery{Names: []string{asset.EventNameUpdated}})
	require.NoError(t, err)
	require.Len(t, events.Events, 1)
	payload := events.Events[0].Type.(asset.AssetUpdated)
	assert.Equal(t, []string{"description", "tags", "status"}, payload.UpdatedFields)
	assert.Equal(t, "bob", events.Events[0].Actor)
}

func TestUpdate_NoChangesNoEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, registerRequest("llama", "1.0.0"))
	before, err := f.events.CountEvents(ctx)
	require.NoError(t, err)

	resp, err := f.service.Update(ctx, a.ID, UpdateRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.UpdatedFields)

	after, err := f.events.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdate_Annotations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, registerRequest("llama", "1.0.0"))

	resp, err := f.service.Update(ctx, a.ID, UpdateRequest{
		SetAnnotations: map[string]string{"team": "platform"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"annotations"}, resp.UpdatedFields)

	resp, err = f.service.Update(ctx, a.ID, UpdateRequest{
		RemoveAnnotations: []string{"team", "missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"annotations"}, resp.UpdatedFields)

	persisted, err := f.repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	_, ok := persisted.Metadata.Annotation("team")
	assert.False(t, ok)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Update(context.Background(), asset.NewID(), UpdateRequest{})
	assert.True(t, registry.IsKind(err, registry.KindNotFound))
}

func TestDelete_BlockedByDependents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := f.register(t, registerRequest("base", "1.0.0"))
	req := registerRequest("app", "1.0.0")
	req.Dependencies = []DependencySpec{{AssetID: base.ID.String()}}
	app := f.register(t, req)

	err := f.service.Delete(ctx, base.ID, "alice")
	require.Error(t, err)
	assert.True(t, registry.IsKind(err, registry.KindNotPermitted))

	// Deleting the dependent first unblocks the base.
	require.NoError(t, f.service.Delete(ctx, app.ID, "alice"))
	require.NoError(t, f.service.Delete(ctx, base.ID, "alice"))

	results, err := f.events.Query(ctx, registry.EventQuery{Names: []string{asset.EventNameDeleted}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), results.Total)
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture(t)
	err := f.service.Delete(context.Background(), asset.NewID(), "alice")
	assert.True(t, registry.IsKind(err, registry.KindNotFound))
}
