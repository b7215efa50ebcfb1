package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID string `json:"id"`
}

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want List[item]
	}{
		{
			name: "envelope with paginated data",
			raw:  `{"code":"OK","data":{"items":[{"id":"a"},{"id":"b"}],"total":42,"page":3,"page_size":2}}`,
			want: List[item]{Items: []item{{"a"}, {"b"}}, Total: 42, Page: 3, PageSize: 2},
		},
		{
			name: "envelope with paginated data falls back to meta",
			raw:  `{"code":"OK","data":{"items":[{"id":"a"}]},"meta":{"total":9,"page":2,"page_size":5}}`,
			want: List[item]{Items: []item{{"a"}}, Total: 9, Page: 2, PageSize: 5},
		},
		{
			name: "envelope with paginated data and zero meta total",
			raw:  `{"code":"OK","data":{"items":[{"id":"a"},{"id":"b"}]},"meta":{"total":0}}`,
			want: List[item]{Items: []item{{"a"}, {"b"}}, Total: 2, Page: 1, PageSize: 20},
		},
		{
			name: "envelope with bare array and meta",
			raw:  `{"code":"OK","data":[{"id":"a"}],"meta":{"total":100,"page":4,"page_size":1}}`,
			want: List[item]{Items: []item{{"a"}}, Total: 100, Page: 4, PageSize: 1},
		},
		{
			name: "envelope with bare array keeps explicit zero total",
			raw:  `{"code":"OK","data":[{"id":"a"}],"meta":{"total":0}}`,
			want: List[item]{Items: []item{{"a"}}, Total: 0, Page: 1, PageSize: 20},
		},
		{
			name: "envelope with bare array without meta",
			raw:  `{"code":"OK","data":[{"id":"a"},{"id":"b"},{"id":"c"}]}`,
			want: List[item]{Items: []item{{"a"}, {"b"}, {"c"}}, Total: 3, Page: 1, PageSize: 20},
		},
		{
			name: "top-level items",
			raw:  `{"items":[{"id":"x"}],"total":7}`,
			want: List[item]{Items: []item{{"x"}}, Total: 7, Page: 1, PageSize: 20},
		},
		{
			name: "top-level items with null paging",
			raw:  `{"items":[],"total":null,"page":null}`,
			want: List[item]{Items: []item{}, Total: 0, Page: 1, PageSize: 20},
		},
		{
			name: "bare array",
			raw:  `[{"id":"x"},{"id":"y"}]`,
			want: List[item]{Items: []item{{"x"}, {"y"}}, Total: 2, Page: 1, PageSize: 20},
		},
		{
			name: "envelope with unexpected data",
			raw:  `{"code":"OK","data":{"user":{"id":"x"}}}`,
			want: List[item]{Items: []item{}, Total: 0, Page: 1, PageSize: 20},
		},
		{
			name: "scalar",
			raw:  `"nope"`,
			want: List[item]{Items: []item{}, Total: 0, Page: 1, PageSize: 20},
		},
		{
			name: "empty",
			raw:  ``,
			want: List[item]{Items: []item{}, Total: 0, Page: 1, PageSize: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeList[item](json.RawMessage(tt.raw), 1, 20)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeList_BadItems(t *testing.T) {
	_, err := NormalizeList[item](json.RawMessage(`{"items":[1,2]}`), 1, 20)
	assert.Error(t, err)
}

func TestGetList_UsesParamsAsFallback(t *testing.T) {
	var query string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeJSON(w, http.StatusOK, `{"code":"OK","data":[{"id":"w1"}]}`)
	})

	list, err := GetList[item](context.Background(), client, "/admin/workspaces",
		WithParams(Params{"page": 5, "page_size": 50, "search": nil}))
	require.NoError(t, err)

	assert.Equal(t, "page=5&page_size=50", query)
	assert.Equal(t, List[item]{Items: []item{{"w1"}}, Total: 1, Page: 5, PageSize: 50}, list)
}
