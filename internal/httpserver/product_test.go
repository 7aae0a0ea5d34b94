package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/service"
	"github.com/Skotchmaster/product_catalog/internal/transport"
	"github.com/Skotchmaster/product_catalog/internal/upload"
	"github.com/Skotchmaster/product_catalog/internal/util"
	"github.com/Skotchmaster/product_catalog/pkg/db"
	"github.com/Skotchmaster/product_catalog/pkg/logging"
	"github.com/Skotchmaster/product_catalog/pkg/tokens"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image")

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	Repo   *repo.GormRepo
	Images *upload.ImageStore
}

func newTestEnv(t *testing.T, secret []byte) *testEnv {
	t.Helper()
	dir := t.TempDir()

	gdb, err := db.Open(context.Background(), "sqlite://"+filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	r, err := repo.NewGormRepo(gdb)
	require.NoError(t, err)

	images, err := upload.NewImageStore(filepath.Join(dir, "uploads"), upload.DefaultMaxBytes)
	require.NoError(t, err)

	svc := service.NewCatalogService(r, images, nil, nil)
	e := New(&Deps{
		CatalogHandler: &CatalogHTTP{Svc: svc},
		Images:         images,
		JWTSecret:      secret,
		Logger:         logging.NewWithWriter(io.Discard, "error"),
	})
	return &testEnv{T: t, E: e, Repo: r, Images: images}
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) multipart(method, target string, fields map[string]string, file *filePart, header http.Header) *httptest.ResponseRecorder {
	env.T.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(env.T, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(env.T, err)
		_, err = pw.Write(file.data)
		require.NoError(env.T, err)
	}
	require.NoError(env.T, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	for k, v := range header {
		req.Header[k] = v
	}
	return env.do(req)
}

func (env *testEnv) doJSON(method, target string, body any) *httptest.ResponseRecorder {
	env.T.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(env.T, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return env.do(req)
}

func (env *testEnv) count() int64 {
	env.T.Helper()
	n, err := env.Repo.Count(context.Background())
	require.NoError(env.T, err)
	return n
}

func (env *testEnv) uploads() []string {
	env.T.Helper()
	entries, err := os.ReadDir(env.Images.Dir)
	require.NoError(env.T, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func validFields() map[string]string {
	return map[string]string{
		"name":        "Desk lamp",
		"description": "warm light",
		"price":       "19.99",
		"quantity":    "4",
	}
}

func pngPart() *filePart {
	return &filePart{name: "lamp.png", contentType: "image/png", data: pngBytes}
}

func (env *testEnv) create() *models.Product {
	env.T.Helper()
	rec := env.multipart(http.MethodPost, "/api/products/upload", validFields(), pngPart(), nil)
	require.Equal(env.T, http.StatusCreated, rec.Code, rec.Body.String())

	var resp transport.ProductEnvelope
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(env.T, resp.Product)
	return resp.Product
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) transport.MessageEnvelope {
	t.Helper()
	var resp transport.MessageEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateProduct_ImageIsServed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.multipart(http.MethodPost, "/api/products/upload", validFields(), pngPart(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp transport.ProductEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, MsgCreated, resp.Message)
	require.NotNil(t, resp.Product)
	require.NotEmpty(t, resp.Product.ID)
	require.True(t, strings.HasPrefix(resp.Product.Image, "/uploads/"))

	img := env.do(httptest.NewRequest(http.MethodGet, resp.Product.Image, nil))
	require.Equal(t, http.StatusOK, img.Code)
	require.Equal(t, pngBytes, img.Body.Bytes())
}

func TestCreateProduct_MissingFields(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, field := range []string{"name", "description", "price", "quantity"} {
		t.Run(field, func(t *testing.T) {
			fields := validFields()
			delete(fields, field)
			rec := env.multipart(http.MethodPost, "/api/products/upload", fields, pngPart(), nil)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeMessage(t, rec)
			require.False(t, resp.Success)
			require.Equal(t, transport.MissingFieldsMessage, resp.Message)
		})
	}

	t.Run("image", func(t *testing.T) {
		rec := env.multipart(http.MethodPost, "/api/products/upload", validFields(), nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, transport.MissingFieldsMessage, decodeMessage(t, rec).Message)
	})

	require.Zero(t, env.count())
	require.Empty(t, env.uploads())
}

func TestCreateProduct_MalformedNumber(t *testing.T) {
	env := newTestEnv(t, nil)
	fields := validFields()
	fields["price"] = "cheap"

	rec := env.multipart(http.MethodPost, "/api/products/upload", fields, pngPart(), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "price must be a number", decodeMessage(t, rec).Message)
	require.Zero(t, env.count())
	require.Empty(t, env.uploads())
}

func TestCreateProduct_RejectsGIF(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.multipart(http.MethodPost, "/api/products/upload", validFields(),
		&filePart{name: "lamp.gif", contentType: "image/gif", data: []byte("GIF89a")}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeMessage(t, rec)
	require.False(t, resp.Success)
	require.Equal(t, upload.UnsupportedTypeMessage, resp.Message)
	require.Empty(t, env.uploads())
	require.Zero(t, env.count())
}

func TestCreateProduct_RejectsOversizedImage(t *testing.T) {
	env := newTestEnv(t, nil)

	big := bytes.Repeat([]byte{0xAB}, upload.DefaultMaxBytes+1)
	rec := env.multipart(http.MethodPost, "/api/products/upload", validFields(),
		&filePart{name: "big.png", contentType: "image/png", data: big}, nil)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.False(t, decodeMessage(t, rec).Success)
	require.Zero(t, env.count())
	require.Empty(t, env.uploads())
}

func TestGetProducts_RoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transport.ListEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Nil(t, resp.Meta)

	matches := 0
	for _, p := range resp.Data {
		if p.ID == created.ID {
			matches++
			assert.Equal(t, "Desk lamp", p.Name)
			assert.Equal(t, "warm light", p.Description)
			assert.Equal(t, 19.99, p.Price)
			assert.Equal(t, 4, p.Quantity)
			assert.Equal(t, created.Image, p.Image)
		}
	}
	require.Equal(t, 1, matches)
}

func TestGetProducts_EmptyAndPaged(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())

	for range 3 {
		env.create()
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/products?page=2&size=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transport.ListEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.EqualValues(t, 3, resp.Meta.Total)
	assert.EqualValues(t, 2, resp.Meta.TotalPages)
	assert.True(t, resp.Meta.HasPrev)
	assert.False(t, resp.Meta.HasNext)
}

func TestGetProducts_HugePage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.create()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/products?page=9223372036854775807&size=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transport.ListEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, util.MaxPage, resp.Meta.Page)
	assert.False(t, resp.Meta.HasNext)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/products/search?q=lamp&page=9223372036854775807", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)
	require.NotNil(t, resp.Total)
	assert.EqualValues(t, 1, *resp.Total)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/products/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp transport.ProductEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, created.ID, resp.Data.ID)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/products/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, MsgNotFound, decodeMessage(t, rec).Message)
}

func TestUpdateProduct_PriceOnlyKeepsImage(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create()

	rec := env.doJSON(http.MethodPut, "/api/products/"+created.ID, map[string]any{"price": "25.5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp transport.ProductEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, MsgUpdated, resp.Message)
	require.Equal(t, 25.5, resp.Data.Price)
	require.Equal(t, created.Image, resp.Data.Image)
	require.Equal(t, created.Name, resp.Data.Name)

	rec = env.multipart(http.MethodPut, "/api/products/"+created.ID, map[string]string{"quantity": "9"}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 9, resp.Data.Quantity)
	require.Equal(t, 25.5, resp.Data.Price)
	require.Equal(t, created.Image, resp.Data.Image)
}

func TestUpdateProduct_ReplacesImage(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create()
	oldName := filepath.Base(created.Image)

	rec := env.multipart(http.MethodPut, "/api/products/"+created.ID, map[string]string{"name": "Floor lamp"},
		&filePart{name: "new.jpg", contentType: "image/jpeg", data: []byte("jpeg-bytes")}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp transport.ProductEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Floor lamp", resp.Data.Name)
	require.NotEqual(t, created.Image, resp.Data.Image)
	require.True(t, strings.HasSuffix(resp.Data.Image, ".jpg"))

	files := env.uploads()
	require.Equal(t, []string{filepath.Base(resp.Data.Image)}, files)
	require.NotContains(t, files, oldName)
}

func TestUpdateProduct_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create()

	rec := env.doJSON(http.MethodPut, "/api/products/missing", map[string]any{"price": 3})
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeMessage(t, rec)
	require.False(t, resp.Success)
	require.Equal(t, MsgNotFound, resp.Message)

	rec = env.multipart(http.MethodPut, "/api/products/missing", nil, pngPart(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, []string{filepath.Base(created.Image)}, env.uploads())

	rec = env.doJSON(http.MethodPut, "/api/products/"+created.ID, map[string]any{"quantity": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "quantity must not be negative", decodeMessage(t, rec).Message)

	req := httptest.NewRequest(http.MethodPut, "/api/products/"+created.ID, strings.NewReader(`{"price":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = env.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create()

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/api/products/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeMessage(t, rec)
	require.False(t, resp.Success)
	require.EqualValues(t, 1, env.count())

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/products/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeMessage(t, rec)
	require.True(t, resp.Success)
	require.Equal(t, MsgDeleted, resp.Message)
	require.Zero(t, env.count())
	require.Empty(t, env.uploads())
}

func TestSearchProducts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.create()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/products/search?q=lamp", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp transport.ListEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Total)
	require.EqualValues(t, 1, *resp.Total)
	require.Len(t, resp.Data, 1)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/products/search", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteGuard(t *testing.T) {
	secret := []byte("test_secret")
	env := newTestEnv(t, secret)

	rec := env.multipart(http.MethodPost, "/api/products/upload", validFields(), pngPart(), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, decodeMessage(t, rec).Success)
	require.Empty(t, env.uploads())

	token, err := tokens.NewAccessToken(secret, "admin", tokens.RoleAdmin, time.Minute)
	require.NoError(t, err)
	rec = env.multipart(http.MethodPost, "/api/products/upload", validFields(), pngPart(),
		http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	require.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	require.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)
	require.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}
