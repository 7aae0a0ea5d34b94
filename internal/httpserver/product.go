package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/service"
	"github.com/Skotchmaster/product_catalog/internal/transport"
	"github.com/Skotchmaster/product_catalog/internal/upload"
	"github.com/Skotchmaster/product_catalog/internal/util"
	"github.com/Skotchmaster/product_catalog/pkg/logging"
)

const (
	MsgCreated     = "Product created successfully"
	MsgUpdated     = "Product updated"
	MsgDeleted     = "Product deleted"
	MsgNotFound    = "Product not found"
	MsgServerError = "Server Error"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

// formValues returns the text fields of a multipart or urlencoded body.
func formValues(c echo.Context) url.Values {
	req := c.Request()
	if req.MultipartForm != nil {
		return req.MultipartForm.Value
	}
	vals, err := c.FormParams()
	if err != nil {
		return url.Values{}
	}
	return vals
}

func badRequest(l *slog.Logger, event string, err error) error {
	var ve *transport.ValidationError
	if errors.As(err, &ve) {
		l.Warn(event, "status", http.StatusBadRequest, "reason", ve.Error())
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message()).SetInternal(err)
	}
	l.Warn(event, "status", http.StatusBadRequest, "reason", "invalid body", "error", err.Error())
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
}

func serverError(l *slog.Logger, event string, err error) error {
	l.Error(event, "status", http.StatusInternalServerError, "error", err.Error())
	return echo.NewHTTPError(http.StatusInternalServerError, MsgServerError).SetInternal(err)
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_product")

	file, hasFile := upload.FromContext(c)
	in, err := transport.ParseCreate(transport.CreateFromValues(formValues(c)), hasFile)
	if err != nil {
		if hasFile {
			h.Svc.DiscardImage(ctx, file.Path)
		}
		return badRequest(l, "create_product_error", err)
	}

	created, err := h.Svc.Create(ctx, in.Product(file.Path))
	if err != nil {
		if errors.Is(err, repo.ErrInvalidRecord) {
			return badRequest(l, "create_product_error", transport.Missing())
		}
		return serverError(l, "create_product_error", err)
	}

	l.Info("create_product_success", "product_id", created.ID)
	return c.JSON(http.StatusCreated, transport.ProductEnvelope{
		Success: true,
		Message: MsgCreated,
		Product: created,
	})
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get_products")

	pageParam, sizeParam := c.QueryParam("page"), c.QueryParam("size")
	if pageParam == "" && sizeParam == "" {
		items, err := h.Svc.List(ctx, util.Page{})
		if err != nil {
			return serverError(l, "get_products_error", err)
		}
		return c.JSON(http.StatusOK, transport.ListEnvelope{Success: true, Data: items})
	}

	page, p := util.Calculate(
		util.ParseIntDefault(pageParam, 1),
		util.ParseIntDefault(sizeParam, util.DefaultPageSize),
	)
	total, err := h.Svc.Count(ctx)
	if err != nil {
		return serverError(l, "get_products_error", err)
	}
	items, err := h.Svc.List(ctx, p)
	if err != nil {
		return serverError(l, "get_products_error", err)
	}

	meta := util.NewMeta(page, p, total)
	return c.JSON(http.StatusOK, transport.ListEnvelope{Success: true, Data: items, Meta: &meta})
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get_product")

	prod, err := h.Svc.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("get_product_error", "status", http.StatusNotFound, "reason", "product not found")
			return echo.NewHTTPError(http.StatusNotFound, MsgNotFound)
		}
		return serverError(l, "get_product_error", err)
	}
	return c.JSON(http.StatusOK, transport.ProductEnvelope{Success: true, Data: prod})
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get(echo.HeaderContentType)), echo.MIMEApplicationJSON)
}

func (h *CatalogHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_product")
	id := c.Param("id")

	file, hasFile := upload.FromContext(c)
	discard := func() {
		if hasFile {
			h.Svc.DiscardImage(ctx, file.Path)
		}
	}

	var (
		req transport.UpdateRequest
		err error
	)
	if isJSON(c.Request()) {
		req, err = transport.DecodeUpdateJSON(c.Request().Body)
	} else {
		req = transport.UpdateFromValues(formValues(c))
	}
	if err != nil {
		discard()
		return badRequest(l, "update_product_error", err)
	}

	patch, err := transport.ParseUpdate(req)
	if err != nil {
		discard()
		return badRequest(l, "update_product_error", err)
	}
	if hasFile {
		patch.Image = &file.Path
	}

	updated, err := h.Svc.Update(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			l.Warn("update_product_error", "status", http.StatusNotFound, "reason", "product not found", "product_id", id)
			return echo.NewHTTPError(http.StatusNotFound, MsgNotFound)
		case errors.Is(err, repo.ErrInvalidRecord):
			return badRequest(l, "update_product_error", err)
		}
		return serverError(l, "update_product_error", err)
	}

	l.Info("update_product_success", "product_id", id)
	return c.JSON(http.StatusOK, transport.ProductEnvelope{
		Success: true,
		Message: MsgUpdated,
		Data:    updated,
	})
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete_product")
	id := c.Param("id")

	if _, err := h.Svc.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("delete_product_error", "status", http.StatusNotFound, "reason", "product not found", "product_id", id)
			return echo.NewHTTPError(http.StatusNotFound, MsgNotFound)
		}
		return serverError(l, "delete_product_error", err)
	}

	l.Info("delete_product_success", "product_id", id)
	return c.JSON(http.StatusOK, transport.MessageEnvelope{Success: true, Message: MsgDeleted})
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search_products")

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		l.Warn("search_products_error", "status", http.StatusBadRequest, "reason", "empty query")
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	_, p := util.Calculate(
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize),
	)
	total, items, err := h.Svc.Search(ctx, q, p)
	if err != nil {
		return serverError(l, "search_products_error", err)
	}
	return c.JSON(http.StatusOK, transport.ListEnvelope{Success: true, Data: items, Total: &total})
}
