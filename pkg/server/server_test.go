package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/db"
	"github.com/modelpark/registry/pkg/integrity"
	"github.com/modelpark/registry/pkg/registration"
	"github.com/modelpark/registry/pkg/search"
	"github.com/modelpark/registry/pkg/validation"
	"github.com/modelpark/registry/pkg/versioning"
)

const testDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	handle, err := db.Open(db.Options{Driver: db.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(handle))

	repo := db.NewRepository(handle)
	events := db.NewEventStore(handle)
	validator := validation.NewService(repo, events, nil)

	return New(Config{}, Services{
		Registration: registration.NewService(repo, events, validator, nil),
		Search:       search.NewService(repo, nil),
		Versioning:   versioning.NewService(repo, events, nil),
		Integrity:    integrity.NewService(repo, events, nil),
		Repo:         repo,
		Events:       events,
	}, nil)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func registerBody(name, version string) registration.RegisterRequest {
	storage, _ := asset.NewStorageLocation(asset.S3Backend{Bucket: "models", Region: "us-east-1"}, name)
	return registration.RegisterRequest{
		Name:     name,
		Version:  version,
		License:  "Apache-2.0",
		Tags:     []string{"nlp"},
		Storage:  storage,
		Checksum: registration.ChecksumSpec{Algorithm: "sha256", Value: testDigest},
		Actor:    "alice",
	}
}

func registerAsset(t *testing.T, s *Server, name, version string) *asset.Asset {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/api/v1/assets", registerBody(name, version))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[registration.RegisterResponse](t, rec)
	return resp.Asset
}

func TestRegisterAndGet(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/assets", registerBody("llama", "1.0.0"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[registration.RegisterResponse](t, rec)
	require.NotNil(t, resp.Asset)
	assert.False(t, resp.Asset.ID.IsZero())
	assert.NotEmpty(t, resp.CorrelationID)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets/"+resp.Asset.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decodeBody[asset.Asset](t, rec)
	assert.Equal(t, "llama", fetched.Metadata.Name)
	assert.Equal(t, "1.0.0", fetched.Metadata.Version.String())
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)
	registerAsset(t, s, "llama", "1.0.0")

	rec := doRequest(t, s, http.MethodPost, "/api/v1/assets", registerBody("llama", "1.0.0"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	body := registerBody("bert", "not-semver")
	rec = doRequest(t, s, http.MethodPost, "/api/v1/assets", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetAssetErrors(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/assets/"+asset.NewID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets/not-a-ulid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	s := newTestServer(t)
	registerAsset(t, s, "llama", "1.0.0")
	registerAsset(t, s, "bert", "1.0.0")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/assets?q=lla", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[searchResponse](t, rec)
	require.Len(t, resp.Assets, 1)
	assert.Equal(t, "llama", resp.Assets[0].Metadata.Name)
	assert.Equal(t, int64(1), resp.Total)
	assert.False(t, resp.HasMore)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets?tag=nlp&limit=1", nil)
	resp = decodeBody[searchResponse](t, rec)
	assert.Len(t, resp.Assets, 1)
	assert.Equal(t, int64(2), resp.Total)
	assert.True(t, resp.HasMore)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets?type=model", nil)
	resp = decodeBody[searchResponse](t, rec)
	assert.Equal(t, int64(2), resp.Total)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets?limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets?type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := registerAsset(t, s, "llama", "1.0.0")

	desc := "updated description"
	rec := doRequest(t, s, http.MethodPatch, "/api/v1/assets/"+a.ID.String(),
		registration.UpdateRequest{Description: &desc, AddTags: []string{"production"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[registration.UpdateResponse](t, rec)
	assert.Equal(t, []string{"description", "tags"}, resp.UpdatedFields)
	assert.Equal(t, desc, resp.Asset.Metadata.Description)
}

func TestDeleteEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := registerAsset(t, s, "llama", "1.0.0")

	rec := doRequest(t, s, http.MethodDelete, "/api/v1/assets/"+a.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets/"+a.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteBlockedByDependents(t *testing.T) {
	s := newTestServer(t)
	base := registerAsset(t, s, "base", "1.0.0")

	body := registerBody("top", "1.0.0")
	body.Dependencies = []registration.DependencySpec{{AssetID: base.ID.String()}}
	rec := doRequest(t, s, http.MethodPost, "/api/v1/assets", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/assets/"+base.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDependencyGraphEndpoint(t *testing.T) {
	s := newTestServer(t)
	base := registerAsset(t, s, "base", "1.0.0")

	body := registerBody("top", "1.0.0")
	body.Dependencies = []registration.DependencySpec{{AssetID: base.ID.String()}}
	rec := doRequest(t, s, http.MethodPost, "/api/v1/assets", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	top := decodeBody[registration.RegisterResponse](t, rec).Asset

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets/"+top.ID.String()+"/dependencies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	graph := decodeBody[search.Graph](t, rec)
	assert.Equal(t, top.ID, graph.Root)
	assert.Len(t, graph.Nodes, 2)
	assert.False(t, graph.Truncated)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets/"+top.ID.String()+"/dependencies?max_depth=1", nil)
	graph = decodeBody[search.Graph](t, rec)
	assert.Len(t, graph.Nodes, 1)
	assert.True(t, graph.Truncated)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/assets/"+base.ID.String()+"/dependents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAssetEventsEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := registerAsset(t, s, "llama", "1.0.0")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/assets/"+a.ID.String()+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[eventsResponse](t, rec)
	require.NotEmpty(t, resp.Events)

	names := make([]string, 0, len(resp.Events))
	for _, ev := range resp.Events {
		names = append(names, ev.Name())
	}
	assert.Contains(t, names, asset.EventNameRegistered)

	rec = doRequest(t, s, http.MethodGet,
		fmt.Sprintf("/api/v1/assets/%s/events?name=%s", a.ID, asset.EventNameRegistered), nil)
	resp = decodeBody[eventsResponse](t, rec)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "alice", resp.Events[0].Actor)
}

func TestVerifyEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := registerAsset(t, s, "llama", "1.0.0")

	rec := doRequest(t, s, http.MethodPost, "/api/v1/assets/"+a.ID.String()+"/verify",
		verifyRequest{Algorithm: "sha256", Value: testDigest})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[integrity.VerifyResult](t, rec)
	assert.True(t, result.Verified)

	// The stored digest is SHA256("hello world"), so raw bytes verify too.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/assets/"+a.ID.String()+"/verify",
		verifyRequest{Data: base64.StdEncoding.EncodeToString([]byte("hello world"))})
	require.Equal(t, http.StatusOK, rec.Code)
	result = decodeBody[integrity.VerifyResult](t, rec)
	assert.True(t, result.Verified)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/assets/"+a.ID.String()+"/verify",
		verifyRequest{Data: base64.StdEncoding.EncodeToString([]byte("tampered"))})
	result = decodeBody[integrity.VerifyResult](t, rec)
	assert.False(t, result.Verified)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/assets/"+a.ID.String()+"/verify",
		verifyRequest{Algorithm: "md5", Value: testDigest})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChecksumEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/checksums",
		checksumRequest{Algorithm: "sha256", Data: base64.StdEncoding.EncodeToString([]byte("hello world"))})
	require.Equal(t, http.StatusOK, rec.Code)
	checksum := decodeBody[asset.Checksum](t, rec)
	assert.Equal(t, asset.HashSHA256, checksum.Algorithm)
	assert.Equal(t, testDigest, checksum.Value)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/checksums",
		checksumRequest{Algorithm: "sha256", Data: "not base64!!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVersionsEndpoints(t *testing.T) {
	s := newTestServer(t)
	registerAsset(t, s, "llama", "1.0.0")
	registerAsset(t, s, "llama", "1.2.0")
	registerAsset(t, s, "llama", "2.0.0")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/versions/llama", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[versionsResponse](t, rec)
	require.Equal(t, 3, resp.Total)
	assert.Equal(t, "2.0.0", resp.Versions[0].Metadata.Version.String())

	rec = doRequest(t, s, http.MethodGet, "/api/v1/versions/llama?constraint=%5E1.0", nil)
	resp = decodeBody[versionsResponse](t, rec)
	assert.Equal(t, 2, resp.Total)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/versions/llama?latest=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decodeBody[asset.Asset](t, rec)
	assert.Equal(t, "2.0.0", latest.Metadata.Version.String())

	rec = doRequest(t, s, http.MethodGet, "/api/v1/versions/llama/1.2.0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exact := decodeBody[asset.Asset](t, rec)
	assert.Equal(t, "1.2.0", exact.Metadata.Version.String())

	rec = doRequest(t, s, http.MethodGet, "/api/v1/versions/llama/9.9.9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/versions/llama/conflict",
		conflictRequest{Version: "1.0.0"})
	require.Equal(t, http.StatusOK, rec.Code)
	conflict := decodeBody[versioning.ConflictResult](t, rec)
	assert.True(t, conflict.Conflict)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/versions/llama/conflict",
		conflictRequest{Version: "9.9.9"})
	conflict = decodeBody[versioning.ConflictResult](t, rec)
	assert.False(t, conflict.Conflict)
}

func TestDeprecateEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := registerAsset(t, s, "llama", "1.0.0")

	rec := doRequest(t, s, http.MethodPost, "/api/v1/assets/"+a.ID.String()+"/deprecate",
		deprecateRequest{Reason: "superseded", AlternativeVersion: "2.0.0"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deprecated := decodeBody[asset.Asset](t, rec)
	assert.Equal(t, asset.StatusDeprecated, deprecated.Status)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/assets/"+a.ID.String()+"/deprecate",
		deprecateRequest{Reason: "again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTagsEndpoint(t *testing.T) {
	s := newTestServer(t)
	registerAsset(t, s, "llama", "1.0.0")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{"nlp"}, resp["tags"])
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[healthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["repository"])
	assert.Equal(t, "ok", resp.Checks["events"])
}
