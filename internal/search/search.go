package search

import (
	"context"
	"strings"

	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/util"
)

// Index keeps a searchable copy of the catalog.
type Index interface {
	Index(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, page util.Page) (int64, []models.Product, error)
}

// RepoSearch answers queries straight from the repository when no search
// cluster is configured. Index and Delete have nothing to maintain.
type RepoSearch struct {
	Repo repo.Repository
}

func (s *RepoSearch) Index(context.Context, models.Product) error { return nil }
func (s *RepoSearch) Delete(context.Context, string) error         { return nil }

func (s *RepoSearch) Search(ctx context.Context, query string, page util.Page) (int64, []models.Product, error) {
	all, err := s.Repo.List(ctx, util.Page{})
	if err != nil {
		return 0, nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	hits := make([]models.Product, 0)
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			hits = append(hits, p)
		}
	}

	total := int64(len(hits))
	if page.All() {
		return total, hits, nil
	}
	if page.Offset < 0 || page.Offset >= len(hits) {
		return total, []models.Product{}, nil
	}
	end := min(page.Offset+page.Limit, len(hits))
	return total, hits[page.Offset:end], nil
}
