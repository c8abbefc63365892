package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketplace/internal/models"
)

func TestDecodeHits(t *testing.T) {
	body := `{"hits":{"total":{"value":2},"hits":[{"_source":{"id":7,"name":"a"}},{"_source":{"id":3,"name":"b"}}]}}`
	total, ids, err := decodeHits(strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, []uint{7, 3}, ids)
}

func TestQueryBody_FiltersActive(t *testing.T) {
	b, err := json.Marshal(queryBody("phone", 0, 10))
	require.NoError(t, err)
	require.Contains(t, string(b), `"term":{"active":true}`)
	require.Contains(t, string(b), `"from":0`)
}

func TestESIndex_IndexAndSearch(t *testing.T) {
	var indexed string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/products/_doc/"):
			b, _ := io.ReadAll(r.Body)
			indexed = string(b)
			_, _ = w.Write([]byte(`{"result":"created"}`))
		case strings.HasSuffix(r.URL.Path, "/_search"):
			_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_source":{"id":42}}]}}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	idx := &ESIndex{es: client, index: "products"}

	require.NoError(t, idx.IndexProduct(context.Background(), &models.Product{ID: 42, Name: "Phone", SKU: "P-1", Active: true}))
	require.Contains(t, indexed, `"sku":"P-1"`)

	total, ids, err := idx.Search(context.Background(), "phone", 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, []uint{42}, ids)
}
