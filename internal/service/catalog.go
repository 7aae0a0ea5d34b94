package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skotchmaster/product_catalog/internal/metrics"
	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/mykafka"
	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/search"
	"github.com/Skotchmaster/product_catalog/internal/tracing"
	"github.com/Skotchmaster/product_catalog/internal/util"
	"github.com/Skotchmaster/product_catalog/pkg/logging"
)

// ImageRemover deletes a stored image by its public path.
type ImageRemover interface {
	Remove(publicPath string) error
}

// CatalogService runs product operations against the repository and keeps
// images, the search index and the event stream in step with it. Only the
// repository result decides success; the rest is logged on failure.
type CatalogService struct {
	Repo   repo.Repository
	Images ImageRemover
	Events mykafka.Publisher
	Index  search.Index
}

func NewCatalogService(r repo.Repository, images ImageRemover, events mykafka.Publisher, index search.Index) *CatalogService {
	if events == nil {
		events = mykafka.Nop{}
	}
	if index == nil {
		index = &search.RepoSearch{Repo: r}
	}
	return &CatalogService{Repo: r, Images: images, Events: events, Index: index}
}

func start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracing.Tracer().Start(ctx, "CatalogService."+name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// DiscardImage removes an uploaded image that no record points to.
func (s *CatalogService) DiscardImage(ctx context.Context, publicPath string) {
	if s.Images == nil || publicPath == "" {
		return
	}
	if err := s.Images.Remove(publicPath); err != nil {
		logging.FromContext(ctx).Warn("image_cleanup_error", "image", publicPath, "error", err.Error())
	}
}

func (s *CatalogService) afterWrite(ctx context.Context, eventType string, p *models.Product) {
	l := logging.FromContext(ctx).With("service", "catalog", "product_id", p.ID)

	var err error
	if eventType == mykafka.EventDeleted {
		err = s.Index.Delete(ctx, p.ID)
	} else {
		err = s.Index.Index(ctx, *p)
	}
	if err != nil {
		l.Warn("search_index_error", "event", eventType, "error", err.Error())
	}

	// Delivered events are counted by the publisher; only refused ones here.
	if err := s.Events.PublishEvent(ctx, mykafka.NewProductEvent(eventType, p)); err != nil {
		metrics.RecordEvent(eventType, err)
		l.Warn("publish_event_error", "event", eventType, "error", err.Error())
	}
}

// Create stores p. The image p points to is removed when the store refuses it.
func (s *CatalogService) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	ctx, span := start(ctx, "Create")
	defer span.End()

	created, err := s.Repo.Create(ctx, p)
	if err != nil {
		s.DiscardImage(ctx, p.Image)
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("product.id", created.ID))

	s.afterWrite(ctx, mykafka.EventCreated, created)
	return created, nil
}

func (s *CatalogService) List(ctx context.Context, page util.Page) ([]models.Product, error) {
	ctx, span := start(ctx, "List")
	defer span.End()

	items, err := s.Repo.List(ctx, page)
	if err != nil {
		return nil, fail(span, err)
	}
	return items, nil
}

func (s *CatalogService) Count(ctx context.Context) (int64, error) {
	ctx, span := start(ctx, "Count")
	defer span.End()

	total, err := s.Repo.Count(ctx)
	if err != nil {
		return 0, fail(span, err)
	}
	return total, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := start(ctx, "Get", attribute.String("product.id", id))
	defer span.End()

	p, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	return p, nil
}

// Update applies patch. A replacement image is removed again if the update
// fails; after success the image it replaced is removed.
func (s *CatalogService) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	ctx, span := start(ctx, "Update", attribute.String("product.id", id))
	defer span.End()

	var previous string
	if patch.Image != nil {
		current, err := s.Repo.Get(ctx, id)
		if err != nil {
			s.DiscardImage(ctx, *patch.Image)
			return nil, fail(span, err)
		}
		previous = current.Image
	}

	updated, err := s.Repo.Update(ctx, id, patch)
	if err != nil {
		if patch.Image != nil {
			s.DiscardImage(ctx, *patch.Image)
		}
		return nil, fail(span, err)
	}
	if previous != "" && previous != updated.Image {
		s.DiscardImage(ctx, previous)
	}

	s.afterWrite(ctx, mykafka.EventUpdated, updated)
	return updated, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := start(ctx, "Delete", attribute.String("product.id", id))
	defer span.End()

	deleted, err := s.Repo.Delete(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	s.DiscardImage(ctx, deleted.Image)

	s.afterWrite(ctx, mykafka.EventDeleted, deleted)
	return deleted, nil
}

// Search queries the index and falls back to a repository scan when the
// index cannot answer.
func (s *CatalogService) Search(ctx context.Context, query string, page util.Page) (int64, []models.Product, error) {
	ctx, span := start(ctx, "Search", attribute.String("search.query", query))
	defer span.End()

	total, items, err := s.Index.Search(ctx, query, page)
	if err == nil {
		return total, items, nil
	}
	if _, isRepo := s.Index.(*search.RepoSearch); isRepo {
		return 0, nil, fail(span, err)
	}

	logging.FromContext(ctx).Warn("search_index_error", "reason", "fallback_to_repo", "error", err.Error())
	fallback := &search.RepoSearch{Repo: s.Repo}
	total, items, err = fallback.Search(ctx, query, page)
	if err != nil {
		return 0, nil, fail(span, err)
	}
	return total, items, nil
}
