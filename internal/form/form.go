package form

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Skotchmaster/product_catalog/internal/client"
	"github.com/Skotchmaster/product_catalog/internal/models"
)

const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldQuantity    = "quantity"
)

// Fields lists the editable text fields in display order.
var Fields = []string{FieldName, FieldDescription, FieldPrice, FieldQuantity}

var labels = map[string]string{
	FieldName:        "Product Name",
	FieldDescription: "Description",
	FieldPrice:       "Price",
	FieldQuantity:    "Quantity",
}

// Label is the prompt shown for a field.
func Label(field string) string { return labels[field] }

type Creator interface {
	Create(ctx context.Context, d client.ProductDraft) client.Result
}

type Updater interface {
	Update(ctx context.Context, id string, d client.ProductDraft) client.Result
}

type draftState struct {
	draft client.ProductDraft
}

func (s *draftState) Set(field, value string) error {
	switch field {
	case FieldName:
		s.draft.Name = value
	case FieldDescription:
		s.draft.Description = value
	case FieldPrice:
		s.draft.Price = value
	case FieldQuantity:
		s.draft.Quantity = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// SelectImage holds the file for the next submit; nothing is read yet.
func (s *draftState) SelectImage(f models.PendingFile) {
	s.draft.Image = models.PendingImage(f)
}

func (s *draftState) Draft() client.ProductDraft { return s.draft }

func (s *draftState) value(field string) string {
	switch field {
	case FieldName:
		return s.draft.Name
	case FieldDescription:
		return s.draft.Description
	case FieldPrice:
		return s.draft.Price
	case FieldQuantity:
		return s.draft.Quantity
	}
	return ""
}

func (s *draftState) render(w io.Writer, title, action string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", title)
	for _, f := range Fields {
		fmt.Fprintf(tw, "  %s:\t%s\n", Label(f), s.value(f))
	}
	fmt.Fprintf(tw, "  Image:\t%s\n", s.draft.Image)
	fmt.Fprintf(tw, "  [%s]\n", action)
	return tw.Flush()
}

// CreateForm is the draft of a new product.
type CreateForm struct {
	draftState
	store Creator
}

func NewCreateForm(store Creator) *CreateForm {
	return &CreateForm{store: store}
}

// Submit hands the draft to the store and clears it only when the store
// reports success.
func (f *CreateForm) Submit(ctx context.Context) client.Result {
	res := f.store.Create(ctx, f.draft)
	if res.Success {
		f.draft = client.ProductDraft{}
	}
	return res
}

func (f *CreateForm) Render(w io.Writer) error {
	return f.render(w, "Create New Product", "Add Product")
}

// EditForm is the draft of an existing product, seeded from the record.
type EditForm struct {
	draftState
	id    string
	store Updater
}

func NewEditForm(store Updater, p models.Product) *EditForm {
	return &EditForm{
		draftState: draftState{draft: client.DraftFrom(p)},
		id:         p.ID,
		store:      store,
	}
}

func (f *EditForm) ID() string { return f.id }

// Submit sends the draft; on success the draft becomes the updated record
// as the store now holds it.
func (f *EditForm) Submit(ctx context.Context) client.Result {
	res := f.store.Update(ctx, f.id, f.draft)
	if !res.Success {
		return res
	}
	if l, ok := f.store.(interface {
		Lookup(id string) (models.Product, bool)
	}); ok {
		if p, found := l.Lookup(f.id); found {
			f.draft = client.DraftFrom(p)
			return res
		}
	}
	// without a lookup the submitted values stand; a sent image is now stored
	if _, pending := f.draft.Image.Pending(); pending {
		f.draft.Image = models.ImageRef{}
	}
	return res
}

func (f *EditForm) Render(w io.Writer) error {
	return f.render(w, "Update Product", "Update")
}

// RenderCard prints a product as a card; imageURL resolves the stored path.
func RenderCard(w io.Writer, p models.Product, imageURL func(string) string) error {
	img := p.Image
	if imageURL != nil {
		img = imageURL(p.Image)
	}
	if img == "" {
		img = "(no image)"
	}

	var b strings.Builder
	rule := strings.Repeat("-", 40)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	fmt.Fprintf(&b, "Price: $%.2f\n", p.Price)
	fmt.Fprintf(&b, "Quantity: %d\n", p.Quantity)
	fmt.Fprintf(&b, "Image: %s\n", img)
	fmt.Fprintf(&b, "ID: %s\n", p.ID)
	_, err := io.WriteString(w, b.String())
	return err
}
