package registry

import (
	"time"

	"github.com/modelpark/registry/pkg/asset"
)

// Pagination defaults and caps, shared by searches and event queries.
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 1000
	DefaultEventLimit  = 100
	MaxEventLimit      = 1000
)

// SortField names an asset column results can be ordered by.
type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
	SortByName      SortField = "name"
	SortByVersion   SortField = "version"
	SortBySize      SortField = "size_bytes"
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SearchQuery filters and pages the asset catalog. The zero value matches
// everything except deprecated assets, newest first.
type SearchQuery struct {
	// Text matches a substring of the name or description.
	Text string
	// Types restricts results to the named asset types.
	Types []asset.Type
	// Tags restricts results to assets carrying every listed tag.
	Tags []string
	// Author matches the provenance author.
	Author string
	// StorageBackend matches the backend kind ("s3", "gcs", ...).
	StorageBackend string
	// Statuses restricts results to the listed lifecycle states.
	Statuses []asset.Status
	// IncludeDeprecated widens the default active-leaning filter.
	IncludeDeprecated bool

	Limit  int
	Offset int
	SortBy SortField
	Order  SortOrder
}

// Normalize fills in defaults and clamps the page size.
func (q SearchQuery) Normalize() SearchQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		q.Limit = MaxSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	if q.Order == "" {
		q.Order = SortDesc
	}
	return q
}

// SearchResults is one page of a search.
type SearchResults struct {
	Assets []*asset.Asset `json:"assets"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// HasMore reports whether another page exists past this one.
func (r *SearchResults) HasMore() bool {
	return int64(r.Offset+len(r.Assets)) < r.Total
}

// EventQuery filters and pages the audit trail.
type EventQuery struct {
	// AssetID restricts results to one asset's events.
	AssetID *asset.ID
	// Names restricts results to the listed event discriminators.
	Names []string
	// Actor matches the recorded acting principal.
	Actor string
	// After and Before bound the event timestamp, exclusive.
	After  *time.Time
	Before *time.Time

	Limit  int
	Offset int
}

// Normalize fills in defaults and clamps the page size.
func (q EventQuery) Normalize() EventQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultEventLimit
	}
	if q.Limit > MaxEventLimit {
		q.Limit = MaxEventLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// EventResults is one page of the audit trail, newest first.
type EventResults struct {
	Events []*asset.Event `json:"events"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// HasMore reports whether another page exists past this one.
func (r *EventResults) HasMore() bool {
	return int64(r.Offset+len(r.Events)) < r.Total
}
