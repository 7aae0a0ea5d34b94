package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/Skotchmaster/product_catalog/internal/models"
)

// APIError is a failure envelope returned by the catalog server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog api: status %d: %s", e.Status, e.Message)
}

// Fields are the text values of a create or update request.
type Fields struct {
	Name        string
	Description string
	Price       string
	Quantity    string
}

func (f Fields) values() [][2]string {
	return [][2]string{
		{"name", f.Name},
		{"description", f.Description},
		{"price", f.Price},
		{"quantity", f.Quantity},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Product *models.Product `json:"product"`
	Data    json.RawMessage `json:"data"`
	Total   *int64          `json:"total"`
}

type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewAPIClient(serverURL, token string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(serverURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *APIClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}

func decodeProducts(raw json.RawMessage) ([]models.Product, error) {
	items := make([]models.Product, 0)
	if len(raw) == 0 || string(raw) == "null" {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return items, nil
}

func decodeProduct(raw json.RawMessage) (*models.Product, error) {
	var p models.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	return &p, nil
}

// multipartBody encodes fields and an optional image; the part carries the
// declared content type so the server can check it.
func multipartBody(fields Fields, image *models.PendingFile) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range fields.values() {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if image != nil {
		rc, err := image.Open()
		if err != nil {
			return nil, "", fmt.Errorf("open image: %w", err)
		}
		defer rc.Close()

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, image.Name))
		h.Set("Content-Type", image.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, rc); err != nil {
			return nil, "", fmt.Errorf("read image: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *APIClient) List(ctx context.Context) ([]models.Product, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/products", "", nil)
	if err != nil {
		return nil, err
	}
	return decodeProducts(env.Data)
}

func (c *APIClient) Get(ctx context.Context, id string) (*models.Product, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), "", nil)
	if err != nil {
		return nil, err
	}
	return decodeProduct(env.Data)
}

// Create uploads a new product; the returned message is the server's.
func (c *APIClient) Create(ctx context.Context, fields Fields, image models.PendingFile) (*models.Product, string, error) {
	body, ct, err := multipartBody(fields, &image)
	if err != nil {
		return nil, "", err
	}
	env, err := c.do(ctx, http.MethodPost, "/api/products/upload", ct, body)
	if err != nil {
		return nil, "", err
	}
	if env.Product == nil {
		return nil, "", fmt.Errorf("create response without product")
	}
	return env.Product, env.Message, nil
}

// UpdateJSON sends the text fields only; the stored image is kept.
func (c *APIClient) UpdateJSON(ctx context.Context, id string, fields Fields) (*models.Product, string, error) {
	payload := map[string]string{}
	for _, kv := range fields.values() {
		payload[kv[0]] = kv[1]
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode update: %w", err)
	}
	return c.update(ctx, id, "application/json", bytes.NewReader(data))
}

// UpdateMultipart sends the text fields with a replacement image.
func (c *APIClient) UpdateMultipart(ctx context.Context, id string, fields Fields, image models.PendingFile) (*models.Product, string, error) {
	body, ct, err := multipartBody(fields, &image)
	if err != nil {
		return nil, "", err
	}
	return c.update(ctx, id, ct, body)
}

func (c *APIClient) update(ctx context.Context, id, contentType string, body io.Reader) (*models.Product, string, error) {
	env, err := c.do(ctx, http.MethodPut, "/api/products/"+url.PathEscape(id), contentType, body)
	if err != nil {
		return nil, "", err
	}
	p, err := decodeProduct(env.Data)
	if err != nil {
		return nil, "", err
	}
	return p, env.Message, nil
}

func (c *APIClient) Delete(ctx context.Context, id string) (string, error) {
	env, err := c.do(ctx, http.MethodDelete, "/api/products/"+url.PathEscape(id), "", nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *APIClient) Search(ctx context.Context, q string) ([]models.Product, int64, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/products/search?q="+url.QueryEscape(q), "", nil)
	if err != nil {
		return nil, 0, err
	}
	items, err := decodeProducts(env.Data)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(items))
	if env.Total != nil {
		total = *env.Total
	}
	return items, total, nil
}

// ImageURL resolves a stored image path against the server root.
func (c *APIClient) ImageURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}
