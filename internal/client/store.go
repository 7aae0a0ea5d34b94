package client

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/Skotchmaster/product_catalog/internal/models"
)

const (
	MsgFillAllFields = "Please fill in all fields."
	MsgSomethingWent = "Something went wrong."
	MsgCreateFailed  = "Failed to create product."
	MsgFetched       = "Products loaded"
	MsgCreated       = "Product created successfully"
)

// Result is the outcome every store operation reports to the caller.
type Result struct {
	Success bool
	Message string
}

func ok(msg string) Result   { return Result{Success: true, Message: msg} }
func fail(msg string) Result { return Result{Success: false, Message: msg} }

// ProductDraft is the editable state of a form before it is submitted.
type ProductDraft struct {
	Name        string
	Description string
	Price       string
	Quantity    string
	Image       models.ImageRef
}

// DraftFrom fills a draft from a stored product.
func DraftFrom(p models.Product) ProductDraft {
	return ProductDraft{
		Name:        p.Name,
		Description: p.Description,
		Price:       strconv.FormatFloat(p.Price, 'f', -1, 64),
		Quantity:    strconv.Itoa(p.Quantity),
		Image:       models.StoredImage(p.Image),
	}
}

func (d ProductDraft) fields() Fields {
	return Fields{
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		Price:       strings.TrimSpace(d.Price),
		Quantity:    strings.TrimSpace(d.Quantity),
	}
}

// Complete reports whether every field has a value and an image is selected.
func (d ProductDraft) Complete() bool {
	f := d.fields()
	return f.Name != "" && f.Description != "" && f.Price != "" && f.Quantity != "" && d.Image.IsPending()
}

// Store owns the local product list. It changes only through its methods and
// readers get copies.
type Store struct {
	api    *APIClient
	logger *slog.Logger

	mu       sync.RWMutex
	products []models.Product
}

func NewStore(api *APIClient, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{api: api, logger: logger, products: []models.Product{}}
}

// failure turns an operation error into a Result. Server envelopes keep
// their message; anything else is reported generically.
func (s *Store) failure(op string, err error, fallback string) Result {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		s.logger.Warn(op+"_error", "status", apiErr.Status, "reason", apiErr.Message)
		if apiErr.Message == "" {
			return fail(fallback)
		}
		return fail(apiErr.Message)
	}
	s.logger.Error(op+"_error", "error", err.Error())
	return fail(MsgSomethingWent)
}

func (s *Store) FetchAll(ctx context.Context) Result {
	items, err := s.api.List(ctx)
	if err != nil {
		return s.failure("fetch_products", err, MsgSomethingWent)
	}

	s.mu.Lock()
	s.products = items
	s.mu.Unlock()
	return ok(MsgFetched)
}

// Get loads one product from the server and refreshes it in the local list.
func (s *Store) Get(ctx context.Context, id string) (models.Product, Result) {
	p, err := s.api.Get(ctx, id)
	if err != nil {
		return models.Product{}, s.failure("get_product", err, MsgSomethingWent)
	}

	s.mu.Lock()
	found := false
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i] = *p
			found = true
		}
	}
	if !found {
		s.products = append(s.products, *p)
	}
	s.mu.Unlock()
	return *p, ok("")
}

func (s *Store) Create(ctx context.Context, d ProductDraft) Result {
	image, pending := d.Image.Pending()
	if !pending || !d.Complete() {
		return fail(MsgFillAllFields)
	}

	created, msg, err := s.api.Create(ctx, d.fields(), image)
	if err != nil {
		return s.failure("create_product", err, MsgCreateFailed)
	}

	s.mu.Lock()
	s.products = append(s.products, *created)
	s.mu.Unlock()
	if msg == "" {
		msg = MsgCreated
	}
	return ok(msg)
}

// Update sends a multipart request when the draft holds a newly selected
// image and JSON otherwise.
func (s *Store) Update(ctx context.Context, id string, d ProductDraft) Result {
	var (
		updated *models.Product
		msg     string
		err     error
	)
	if image, pending := d.Image.Pending(); pending {
		updated, msg, err = s.api.UpdateMultipart(ctx, id, d.fields(), image)
	} else {
		updated, msg, err = s.api.UpdateJSON(ctx, id, d.fields())
	}
	if err != nil {
		return s.failure("update_product", err, MsgSomethingWent)
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i] = *updated
		}
	}
	s.mu.Unlock()
	return ok(msg)
}

func (s *Store) Remove(ctx context.Context, id string) Result {
	msg, err := s.api.Delete(ctx, id)
	if err != nil {
		return s.failure("delete_product", err, MsgSomethingWent)
	}

	s.mu.Lock()
	kept := s.products[:0]
	for _, p := range s.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.products = kept
	s.mu.Unlock()
	return ok(msg)
}

// Search queries the server without touching the local list.
func (s *Store) Search(ctx context.Context, q string) ([]models.Product, int64, Result) {
	if strings.TrimSpace(q) == "" {
		return nil, 0, fail("query is required")
	}
	items, total, err := s.api.Search(ctx, q)
	if err != nil {
		return nil, 0, s.failure("search_products", err, MsgSomethingWent)
	}
	return items, total, ok("")
}

func (s *Store) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *Store) Lookup(id string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// ImageURL resolves a stored image path for display.
func (s *Store) ImageURL(path string) string { return s.api.ImageURL(path) }
