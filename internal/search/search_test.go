package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/foodshop/internal/models"
)

type recorded struct {
	method string
	path   string
	body   string
}

func fakeES(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*Index, *[]recorded) {
	t.Helper()

	var (
		mu   sync.Mutex
		seen []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, recorded{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
			return
		}
		handle(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "", "")
	require.NoError(t, err)
	return NewIndex(client, "products"), &seen
}

func TestIndex_UpsertAndRemove(t *testing.T) {
	t.Parallel()

	idx, seen := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"result":"created"}`)
	})

	p := &models.Product{ID: 5, SupplierID: 2, Name: "Soup", Description: "hot", Price: decimal.NewFromInt(3)}
	require.NoError(t, idx.Upsert(context.Background(), p))
	require.NoError(t, idx.Remove(context.Background(), 5))

	var upsert, remove *recorded
	for i := range *seen {
		r := &(*seen)[i]
		switch r.method {
		case http.MethodPut, http.MethodPost:
			if strings.HasPrefix(r.path, "/products/_doc/") {
				upsert = r
			}
		case http.MethodDelete:
			remove = r
		}
	}
	require.NotNil(t, upsert)
	assert.Equal(t, "/products/_doc/5", upsert.path)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(upsert.body), &doc))
	assert.Equal(t, "Soup", doc["name"])
	assert.EqualValues(t, 2, doc["supplier_id"])

	require.NotNil(t, remove)
	assert.Equal(t, "/products/_doc/5", remove.path)
}

func TestIndex_Search(t *testing.T) {
	t.Parallel()

	idx, seen := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":2},"hits":[{"_source":{"id":9}},{"_source":{"id":4}}]}}`)
	})

	total, ids, err := idx.Search(context.Background(), "soup", 3, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []uint{9, 4}, ids)

	last := (*seen)[len(*seen)-1]
	assert.Equal(t, "/products/_search", last.path)
	assert.Contains(t, last.body, `"multi_match"`)
	assert.Contains(t, last.body, `"supplier_id":3`)
}

func TestIndex_SearchError(t *testing.T) {
	t.Parallel()

	idx, _ := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	})

	_, _, err := idx.Search(context.Background(), "soup", 0, 0, 10)
	assert.Error(t, err)
}
