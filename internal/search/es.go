package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/util"
)

const DefaultIndex = "products"

const indexMapping = `{
  "mappings": {
    "properties": {
      "name":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "description": {"type": "text"},
      "price":       {"type": "double"},
      "quantity":    {"type": "integer"},
      "image":       {"type": "keyword", "index": false},
      "createdAt":   {"type": "date"},
      "updatedAt":   {"type": "date"}
    }
  }
}`

// document is the indexed shape; the product id lives in the hit's _id.
type document struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ESIndex struct {
	ES   *elasticsearch.Client
	Name string
}

func NewESIndex(client *elasticsearch.Client, name string) *ESIndex {
	if name == "" {
		name = DefaultIndex
	}
	return &ESIndex{ES: client, Name: name}
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("%s error: %s: %s", op, res.Status(), strings.TrimSpace(string(body)))
}

// EnsureIndex creates the index with its mapping unless it already exists.
func (s *ESIndex) EnsureIndex(ctx context.Context) error {
	res, err := s.ES.Indices.Exists([]string{s.Name}, s.ES.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = s.ES.Indices.Create(s.Name,
		s.ES.Indices.Create.WithContext(ctx),
		s.ES.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func (s *ESIndex) Index(ctx context.Context, p models.Product) error {
	body, err := json.Marshal(document{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Image:       p.Image,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("index encode: %w", err)
	}

	res, err := s.ES.Index(s.Name, bytes.NewReader(body),
		s.ES.Index.WithContext(ctx),
		s.ES.Index.WithDocumentID(p.ID),
	)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index", res)
	}
	return nil
}

func (s *ESIndex) Delete(ctx context.Context, id string) error {
	res, err := s.ES.Delete(s.Name, id, s.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}
	return nil
}

func (s *ESIndex) Search(ctx context.Context, query string, page util.Page) (int64, []models.Product, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description"},
				"fuzziness": "AUTO",
			},
		},
	}
	if !page.All() {
		body["from"] = page.Offset
		body["size"] = page.Limit
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search encode: %w", err)
	}

	res, err := s.ES.Search(
		s.ES.Search.WithContext(ctx),
		s.ES.Search.WithIndex(s.Name),
		s.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, responseError("search", res)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string   `json:"_id"`
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("search decode: %w", err)
	}

	prods := make([]models.Product, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		prods[i] = models.Product{
			ID:          hit.ID,
			Name:        hit.Source.Name,
			Description: hit.Source.Description,
			Price:       hit.Source.Price,
			Quantity:    hit.Source.Quantity,
			Image:       hit.Source.Image,
			CreatedAt:   hit.Source.CreatedAt,
			UpdatedAt:   hit.Source.UpdatedAt,
		}
	}
	return r.Hits.Total.Value, prods, nil
}
