package registry

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpark/registry/pkg/asset"
)

func TestErrorKinds(t *testing.T) {
	err := AlreadyExists("llama", "1.0.0")
	assert.Equal(t, KindAlreadyExists, KindOf(err))
	assert.Equal(t, "llama", err.Name)
	assert.Equal(t, "1.0.0", err.Version)
	assert.Contains(t, err.Error(), "llama@1.0.0")

	assert.True(t, IsKind(err, KindAlreadyExists))
	assert.False(t, IsKind(err, KindNotFound))
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := DatabaseError("find asset", cause)
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("register: %w", err)
	assert.Equal(t, KindDatabase, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindDatabase))
}

func TestErrorIsMatchesOnKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("asset %s not found", "x"))
	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.False(t, errors.Is(err, &Error{Kind: KindDatabase}))
}

func TestCircularDependencyMessage(t *testing.T) {
	a, b := asset.NewID(), asset.NewID()
	err := CircularDependency([]asset.ID{a, b, a})
	require.Len(t, err.Cycle, 3)
	assert.Contains(t, err.Error(), a.String()+" -> "+b.String()+" -> "+a.String())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{AlreadyExists("a", "1.0.0"), http.StatusConflict},
		{VersionConflict("a", "1.0.0"), http.StatusConflict},
		{ValidationFailed("bad name"), http.StatusUnprocessableEntity},
		{CircularDependency(nil), http.StatusUnprocessableEntity},
		{DependencyNotFound("id:x"), http.StatusUnprocessableEntity},
		{PolicyFailed("size", "too big"), http.StatusUnprocessableEntity},
		{InvalidInput("bad json"), http.StatusBadRequest},
		{NotPermitted("has dependents"), http.StatusForbidden},
		{DatabaseError("query", errors.New("down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestSearchQueryNormalize(t *testing.T) {
	q := SearchQuery{}.Normalize()
	assert.Equal(t, DefaultSearchLimit, q.Limit)
	assert.Equal(t, SortByCreatedAt, q.SortBy)
	assert.Equal(t, SortDesc, q.Order)

	q = SearchQuery{Limit: 5000, Offset: -2}.Normalize()
	assert.Equal(t, MaxSearchLimit, q.Limit)
	assert.Equal(t, 0, q.Offset)
}

func TestResultsHasMore(t *testing.T) {
	page := make([]*asset.Asset, 50)
	r := SearchResults{Assets: page, Total: 120, Offset: 50}
	assert.True(t, r.HasMore())
	r.Offset = 70
	assert.False(t, r.HasMore())

	er := EventResults{Events: nil, Total: 0, Offset: 0}
	assert.False(t, er.HasMore())
}
