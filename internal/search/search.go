package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type Config struct {
	URL      string
	User     string
	Password string
	Index    string
}

// Document is what the products index stores.
type Document struct {
	ID          uint   `json:"id"`
	VendorID    uint   `json:"vendorId"`
	CategoryID  *uint  `json:"categoryId,omitempty"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Active      bool   `json:"active"`
}

func DocumentFrom(p *models.Product) Document {
	return Document{
		ID:          p.ID,
		VendorID:    p.VendorID,
		CategoryID:  p.CategoryID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Active:      p.Active,
	}
}

type Index interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
	// Search returns matching product ids in relevance order.
	Search(ctx context.Context, query string, from, size int) (int64, []uint, error)
}

type ESIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewClient(cfg Config) (*ESIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: %s: %s", res.Status(), body)
	}

	index := cfg.Index
	if index == "" {
		index = "products"
	}
	return &ESIndex{es: client, index: index}, nil
}

func (s *ESIndex) IndexProduct(ctx context.Context, p *models.Product) error {
	body, err := json.Marshal(DocumentFrom(p))
	if err != nil {
		return err
	}
	res, err := s.es.Index(s.index, bytes.NewReader(body),
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch: index: %s", res.Status())
	}
	return nil
}

func (s *ESIndex) DeleteProduct(ctx context.Context, id uint) error {
	res, err := s.es.Delete(s.index, strconv.FormatUint(uint64(id), 10), s.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: delete: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elasticsearch: delete: %s", res.Status())
	}
	return nil
}

func (s *ESIndex) Search(ctx context.Context, query string, from, size int) (int64, []uint, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(queryBody(query, from, size)); err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: encode query: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("elasticsearch: search: %s", res.Status())
	}
	return decodeHits(res.Body)
}

func queryBody(query string, from, size int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     query,
						"fields":    []string{"name^2", "description", "sku"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]any{"term": map[string]any{"active": true}},
			},
		},
		"from": from,
		"size": size,
	}
}

func decodeHits(r io.Reader) (int64, []uint, error) {
	var out struct {
		Hits struct {
			Total struct{ Value int64 }        `json:"total"`
			Hits  []struct{ Source Document } `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return 0, nil, err
	}
	ids := make([]uint, len(out.Hits.Hits))
	for i, h := range out.Hits.Hits {
		ids[i] = h.Source.ID
	}
	return out.Hits.Total.Value, ids, nil
}
