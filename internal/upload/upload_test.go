package upload

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct {
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, fields map[string]string, file *part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+file.filename+`"`)
		h.Set("Content-Type", file.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/products/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func newTestStore(t *testing.T, maxBytes int64) *ImageStore {
	t.Helper()
	s, err := NewImageStore(filepath.Join(t.TempDir(), "uploads"), maxBytes)
	require.NoError(t, err)
	return s
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func run(t *testing.T, s *ImageStore, req *http.Request) (UploadedFile, bool, bool, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var (
		got    UploadedFile
		ok     bool
		called bool
	)
	err := s.Single("image")(func(c echo.Context) error {
		called = true
		got, ok = FromContext(c)
		return nil
	})(c)
	return got, ok, called, err
}

func requireHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
	return he
}

func TestSingle_AcceptsPNG(t *testing.T) {
	s := newTestStore(t, DefaultMaxBytes)
	req := multipartRequest(t, map[string]string{"name": "lamp"}, &part{filename: "Lamp.PNG", contentType: "image/png", data: []byte("png-data")})

	got, ok, called, err := run(t, s, req)
	require.NoError(t, err)
	require.True(t, called)
	require.True(t, ok)

	assert.True(t, strings.HasPrefix(got.Path, PublicPrefix))
	assert.True(t, strings.HasSuffix(got.Name, ".png"))
	assert.Equal(t, int64(8), got.Size)
	assert.Equal(t, "image/png", got.ContentType)
	assert.Regexp(t, `^\d+-\d+\.png$`, got.Name)

	data, err := os.ReadFile(filepath.Join(s.Dir, got.Name))
	require.NoError(t, err)
	assert.Equal(t, "png-data", string(data))
}

func TestSingle_RejectsDisallowedTypes(t *testing.T) {
	tests := []struct {
		name string
		file part
	}{
		{name: "gif extension", file: part{filename: "cat.gif", contentType: "image/gif", data: []byte("gif")}},
		{name: "png name with gif type", file: part{filename: "cat.png", contentType: "image/gif", data: []byte("gif")}},
		{name: "jpeg type with txt name", file: part{filename: "cat.txt", contentType: "image/jpeg", data: []byte("txt")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, DefaultMaxBytes)
			file := tt.file
			_, _, called, err := run(t, s, multipartRequest(t, nil, &file))

			he := requireHTTPError(t, err, http.StatusBadRequest)
			assert.Equal(t, UnsupportedTypeMessage, he.Message)
			assert.False(t, called)
			assert.Empty(t, dirEntries(t, s.Dir))
		})
	}
}

func TestSingle_RejectsOversizedPart(t *testing.T) {
	s := newTestStore(t, 1024)
	req := multipartRequest(t, nil, &part{filename: "big.png", contentType: "image/png", data: bytes.Repeat([]byte("x"), 2048)})

	_, _, called, err := run(t, s, req)
	requireHTTPError(t, err, http.StatusRequestEntityTooLarge)
	assert.False(t, called)
	assert.Empty(t, dirEntries(t, s.Dir))
}

func TestSingle_RejectsByContentLength(t *testing.T) {
	s := newTestStore(t, 1024)
	req := multipartRequest(t, nil, &part{filename: "huge.png", contentType: "image/png", data: bytes.Repeat([]byte("x"), formAllowance+4096)})
	require.Greater(t, req.ContentLength, s.MaxBytes+formAllowance)

	_, _, called, err := run(t, s, req)
	he := requireHTTPError(t, err, http.StatusRequestEntityTooLarge)
	assert.Equal(t, "File too large. Maximum size is 1024 bytes", he.Message)
	assert.False(t, called)
	assert.Empty(t, dirEntries(t, s.Dir))
}

func TestSingle_PassThrough(t *testing.T) {
	s := newTestStore(t, DefaultMaxBytes)

	req := httptest.NewRequest(http.MethodPut, "/api/products/1", strings.NewReader(`{"price":3}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	_, ok, called, err := run(t, s, req)
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, ok)

	_, ok, called, err = run(t, s, multipartRequest(t, map[string]string{"price": "3"}, nil))
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, ok)
}

func TestImageStore_Remove(t *testing.T) {
	s := newTestStore(t, DefaultMaxBytes)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "1-2.png"), []byte("x"), 0o644))

	require.NoError(t, s.Remove("/uploads/1-2.png"))
	assert.Empty(t, dirEntries(t, s.Dir))
	require.NoError(t, s.Remove("/uploads/1-2.png"))

	assert.ErrorIs(t, s.Remove("/etc/passwd"), ErrOutsideUploads)
	assert.ErrorIs(t, s.Remove("/uploads/../secret"), ErrOutsideUploads)
	assert.ErrorIs(t, s.Remove("/uploads/.."), ErrOutsideUploads)
}

func TestTooLargeMessage(t *testing.T) {
	s := &ImageStore{MaxBytes: DefaultMaxBytes}
	assert.Equal(t, "File too large. Maximum size is 5 MB", s.TooLargeMessage())
}
