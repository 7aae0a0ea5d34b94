package repo

import (
	"context"
	"errors"

	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/util"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrInvalidRecord = models.ErrInvalidRecord
)

// Repository is the product collection. Unknown or malformed ids are ErrNotFound.
type Repository interface {
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
	List(ctx context.Context, page util.Page) ([]models.Product, error)
	Count(ctx context.Context) (int64, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id string) (*models.Product, error)
}
