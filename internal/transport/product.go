package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/util"
)

const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldQuantity    = "quantity"
	FieldImage       = "image"
)

// CreateRequest holds the raw text fields of a multipart create.
type CreateRequest struct {
	Name        string `form:"name"        validate:"required"`
	Description string `form:"description" validate:"required"`
	Price       string `form:"price"       validate:"required,numeric"`
	Quantity    string `form:"quantity"    validate:"required,numeric"`
}

// ProductInput is a create request after typed parsing.
type ProductInput struct {
	Name        string  `json:"name"        validate:"required"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price"       validate:"gte=0"`
	Quantity    int     `json:"quantity"    validate:"gte=0"`
}

func (in ProductInput) Product(image string) *models.Product {
	return &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Image:       image,
	}
}

func CreateFromValues(vals url.Values) CreateRequest {
	return CreateRequest{
		Name:        strings.TrimSpace(vals.Get(FieldName)),
		Description: strings.TrimSpace(vals.Get(FieldDescription)),
		Price:       strings.TrimSpace(vals.Get(FieldPrice)),
		Quantity:    strings.TrimSpace(vals.Get(FieldQuantity)),
	}
}

// ParseCreate validates a create request. Any absent value, including the
// image, yields a *ValidationError carrying MissingFieldsMessage.
func ParseCreate(req CreateRequest, hasImage bool) (ProductInput, error) {
	if err := check(req); err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return ProductInput{}, err
		}
		if !hasImage {
			ve.Fields = append(ve.Fields, FieldError{Field: FieldImage, Reason: ReasonMissing})
		}
		if ve.Has(ReasonMissing) {
			ve.Summary = MissingFieldsMessage
		}
		return ProductInput{}, ve
	}
	if !hasImage {
		return ProductInput{}, Missing(FieldImage)
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		return ProductInput{}, err
	}
	qty, err := parseQuantity(req.Quantity)
	if err != nil {
		return ProductInput{}, err
	}

	in := ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Quantity:    qty,
	}
	if err := check(in); err != nil {
		return ProductInput{}, err
	}
	return in, nil
}

// UpdateRequest holds the raw fields of an update; nil means absent.
type UpdateRequest struct {
	Name        *string `form:"name"        validate:"omitnil,min=1"`
	Description *string `form:"description" validate:"omitnil,min=1"`
	Price       *string `form:"price"       validate:"omitnil,numeric"`
	Quantity    *string `form:"quantity"    validate:"omitnil,numeric"`
}

func present(vals url.Values, key string) *string {
	v, ok := vals[key]
	if !ok || len(v) == 0 {
		return nil
	}
	s := strings.TrimSpace(v[0])
	return &s
}

func UpdateFromValues(vals url.Values) UpdateRequest {
	return UpdateRequest{
		Name:        present(vals, FieldName),
		Description: present(vals, FieldDescription),
		Price:       present(vals, FieldPrice),
		Quantity:    present(vals, FieldQuantity),
	}
}

// numberText accepts a JSON number or a JSON string and keeps its text.
// Number tokens are rewritten in plain decimal form, so 1e2 reads as 100.
type numberText string

func (n *numberText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = numberText(s)
		return nil
	}
	if v, err := strconv.ParseFloat(string(b), 64); err == nil {
		*n = numberText(strconv.FormatFloat(v, 'f', -1, 64))
		return nil
	}
	*n = numberText(b)
	return nil
}

// DecodeUpdateJSON reads a JSON update body. Unknown keys, including _id and
// image, are ignored; images only change through a multipart upload.
func DecodeUpdateJSON(r io.Reader) (UpdateRequest, error) {
	var body struct {
		Name        *string     `json:"name"`
		Description *string     `json:"description"`
		Price       *numberText `json:"price"`
		Quantity    *numberText `json:"quantity"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return UpdateRequest{}, nil
		}
		return UpdateRequest{}, fmt.Errorf("decode update body: %w", err)
	}

	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		t := strings.TrimSpace(*s)
		return &t
	}
	text := func(n *numberText) *string {
		if n == nil {
			return nil
		}
		s := string(*n)
		return trim(&s)
	}
	return UpdateRequest{
		Name:        trim(body.Name),
		Description: trim(body.Description),
		Price:       text(body.Price),
		Quantity:    text(body.Quantity),
	}, nil
}

// ParseUpdate validates the present fields and builds a patch.
func ParseUpdate(req UpdateRequest) (models.ProductPatch, error) {
	if err := check(req); err != nil {
		return models.ProductPatch{}, err
	}

	patch := models.ProductPatch{Name: req.Name, Description: req.Description}
	if req.Price != nil {
		price, err := parsePrice(*req.Price)
		if err != nil {
			return models.ProductPatch{}, err
		}
		if price < 0 {
			return models.ProductPatch{}, &ValidationError{Fields: []FieldError{{Field: FieldPrice, Reason: ReasonNegative}}}
		}
		patch.Price = &price
	}
	if req.Quantity != nil {
		qty, err := parseQuantity(*req.Quantity)
		if err != nil {
			return models.ProductPatch{}, err
		}
		if qty < 0 {
			return models.ProductPatch{}, &ValidationError{Fields: []FieldError{{Field: FieldQuantity, Reason: ReasonNegative}}}
		}
		patch.Quantity = &qty
	}
	return patch, nil
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ValidationError{Fields: []FieldError{{Field: FieldPrice, Reason: ReasonNotANumber}}}
	}
	return v, nil
}

func parseQuantity(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Fields: []FieldError{{Field: FieldQuantity, Reason: ReasonNotANumber}}}
	}
	return v, nil
}

type ProductEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Product *models.Product `json:"product,omitempty"`
	Data    *models.Product `json:"data,omitempty"`
}

type ListEnvelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Data    []models.Product `json:"data"`
	Meta    *util.Meta       `json:"meta,omitempty"`
	Total   *int64           `json:"total,omitempty"`
}

type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
