package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/integrity"
	"github.com/modelpark/registry/pkg/registration"
	"github.com/modelpark/registry/pkg/registry"
	"github.com/modelpark/registry/pkg/search"
	"github.com/modelpark/registry/pkg/versioning"
)

// registerHandler returns a handler that registers a new asset version.
func registerHandler(svc *registration.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registration.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		req.Actor = extractActor(r, req.Actor)

		resp, err := svc.Register(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// searchHandler returns a handler that lists assets matching the query
// string filters.
func searchHandler(svc *search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseSearchQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		results, err := svc.Search(r.Context(), q)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, searchResponse{
			Assets:  results.Assets,
			Total:   results.Total,
			Limit:   results.Limit,
			Offset:  results.Offset,
			HasMore: results.HasMore(),
		})
	}
}

type searchResponse struct {
	Assets  []*asset.Asset `json:"assets"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

func parseSearchQuery(r *http.Request) (registry.SearchQuery, error) {
	values := r.URL.Query()
	q := registry.SearchQuery{
		Text:           values.Get("q"),
		Author:         values.Get("author"),
		StorageBackend: values.Get("storage_backend"),
		Tags:           splitParam(values["tag"]),
		SortBy:         registry.SortField(values.Get("sort_by")),
		Order:          registry.SortOrder(values.Get("sort_order")),
	}
	for _, raw := range splitParam(values["type"]) {
		t, err := asset.ParseType(raw)
		if err != nil {
			return q, fmt.Errorf("invalid type %q", raw)
		}
		q.Types = append(q.Types, t)
	}
	for _, raw := range splitParam(values["status"]) {
		status, err := asset.ParseStatus(raw)
		if err != nil {
			return q, fmt.Errorf("invalid status %q", raw)
		}
		q.Statuses = append(q.Statuses, status)
	}
	if v := values.Get("include_deprecated"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("invalid include_deprecated %q", v)
		}
		q.IncludeDeprecated = include
	}
	var err error
	if q.Limit, err = queryInt(values.Get("limit")); err != nil {
		return q, fmt.Errorf("invalid limit %q", values.Get("limit"))
	}
	if q.Offset, err = queryInt(values.Get("offset")); err != nil {
		return q, fmt.Errorf("invalid offset %q", values.Get("offset"))
	}
	return q, nil
}

// splitParam flattens repeated query parameters and comma-separated
// values into one list.
func splitParam(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// getAssetHandler returns a handler that fetches one asset by ID.
func getAssetHandler(svc *search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		a, err := svc.GetAsset(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// updateHandler returns a handler that applies a partial asset mutation.
func updateHandler(svc *registration.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		var req registration.UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		req.Actor = extractActor(r, req.Actor)

		resp, err := svc.Update(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// deleteHandler returns a handler that removes an asset. Assets with
// dependents cannot be removed.
func deleteHandler(svc *registration.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id, extractActor(r, "")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// dependencyGraphHandler returns a handler that expands an asset's
// dependency graph, optionally depth-limited via max_depth.
func dependencyGraphHandler(svc *search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		maxDepth, err := queryInt(r.URL.Query().Get("max_depth"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_depth")
			return
		}
		graph, err := svc.DependencyGraph(r.Context(), search.GraphRequest{Root: id, MaxDepth: maxDepth})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, graph)
	}
}

// dependentsHandler returns a handler that lists the assets directly
// depending on the given one.
func dependentsHandler(svc *search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		dependents, err := svc.ReverseDependencies(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dependents": dependents})
	}
}

// assetEventsHandler returns a handler that pages through an asset's audit
// trail, newest first.
func assetEventsHandler(events registry.EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		values := r.URL.Query()
		q := registry.EventQuery{
			AssetID: &id,
			Names:   splitParam(values["name"]),
			Actor:   values.Get("actor"),
		}
		var err error
		if q.Limit, err = queryInt(values.Get("limit")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if q.Offset, err = queryInt(values.Get("offset")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}

		results, err := events.Query(r.Context(), q.Normalize())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, eventsResponse{
			Events:  results.Events,
			Total:   results.Total,
			Limit:   results.Limit,
			Offset:  results.Offset,
			HasMore: results.HasMore(),
		})
	}
}

type eventsResponse struct {
	Events  []*asset.Event `json:"events"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

type verifyRequest struct {
	Algorithm string `json:"algorithm,omitempty"`
	Value     string `json:"value,omitempty"`
	// Data carries raw content, base64-encoded, to hash server side.
	Data string `json:"data,omitempty"`
}

// verifyHandler returns a handler that verifies a digest, or uploaded
// bytes, against an asset's stored checksum.
func verifyHandler(svc *integrity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		if req.Data != "" {
			data, err := base64.StdEncoding.DecodeString(req.Data)
			if err != nil {
				writeError(w, http.StatusBadRequest, "data is not valid base64")
				return
			}
			result, err := svc.VerifyData(r.Context(), id, data)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
			return
		}

		algorithm, err := asset.ParseHashAlgorithm(req.Algorithm)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		checksum, err := asset.NewChecksum(algorithm, req.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		result, err := svc.VerifyAgainstAsset(r.Context(), id, checksum)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type checksumRequest struct {
	Algorithm string `json:"algorithm"`
	// Data is the content to hash, base64-encoded.
	Data string `json:"data"`
}

// checksumHandler returns a handler that computes a digest over uploaded
// bytes without touching any asset.
func checksumHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checksumRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "data is not valid base64")
			return
		}
		algorithm, err := asset.ParseHashAlgorithm(req.Algorithm)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		checksum, err := integrity.Compute(data, algorithm)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checksum)
	}
}

type deprecateRequest struct {
	Reason             string `json:"reason,omitempty"`
	AlternativeVersion string `json:"alternative_version,omitempty"`
}

// deprecateHandler returns a handler that marks an asset deprecated.
func deprecateHandler(svc *versioning.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		var req deprecateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		a, err := svc.Deprecate(r.Context(), id, req.Reason, req.AlternativeVersion)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// tagsHandler returns a handler that lists every distinct tag.
func tagsHandler(svc *search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := svc.ListAllTags(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"tags": tags})
	}
}

type versionsResponse struct {
	Name     string         `json:"name"`
	Versions []*asset.Asset `json:"versions"`
	Total    int            `json:"total"`
}

// listVersionsHandler returns a handler that lists the versions of a name,
// optionally filtered by a semver constraint or reduced to the latest
// active version.
func listVersionsHandler(svc *versioning.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		values := r.URL.Query()

		if latest, _ := strconv.ParseBool(values.Get("latest")); latest {
			a, err := svc.Latest(r.Context(), name)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, a)
			return
		}

		var assets []*asset.Asset
		var err error
		if constraint := values.Get("constraint"); constraint != "" {
			assets, err = svc.FindByRequirement(r.Context(), name, constraint)
		} else {
			include, _ := strconv.ParseBool(values.Get("include_deprecated"))
			assets, err = svc.ListVersions(r.Context(), name, include)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, versionsResponse{Name: name, Versions: assets, Total: len(assets)})
	}
}

// getByNameVersionHandler returns a handler that fetches one asset by its
// exact name and version.
func getByNameVersionHandler(svc *search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		version := chi.URLParam(r, "version")
		a, err := svc.GetAssetByNameVersion(r.Context(), name, version)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

type conflictRequest struct {
	Version string `json:"version"`
}

// conflictHandler returns a handler that reports whether a name and
// version pair is already taken.
func conflictHandler(svc *versioning.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var req conflictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		result, err := svc.CheckConflict(r.Context(), name, req.Version)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// parseID reads the {id} route parameter, writing a 400 on malformed IDs.
func parseID(w http.ResponseWriter, r *http.Request) (asset.ID, bool) {
	id, err := asset.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid asset id: %v", err))
		return asset.ID{}, false
	}
	return id, true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a service layer error onto its REST status code.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, registry.HTTPStatus(err), err.Error())
}
