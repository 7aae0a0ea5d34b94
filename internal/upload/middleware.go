package upload

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/internal/metrics"
	"github.com/Skotchmaster/product_catalog/pkg/logging"
)

const (
	contextKey = "upload.file"

	// formAllowance covers the text fields and multipart framing next to the file.
	formAllowance = 1 << 20
	memoryLimit   = 1 << 20
)

// FromContext returns the file accepted by Single, if any.
func FromContext(c echo.Context) (UploadedFile, bool) {
	f, ok := c.Get(contextKey).(UploadedFile)
	return f, ok
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get(echo.HeaderContentType)), echo.MIMEMultipartForm)
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || errors.Is(err, ErrTooLarge)
}

// Single accepts at most one image in field. Non multipart requests and
// multipart requests without that field pass through untouched; the handler
// decides whether the image is required.
func (s *ImageStore) Single(field string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isMultipart(req) {
				return next(c)
			}
			l := logging.FromContext(req.Context()).With("middleware", "upload")

			limit := s.MaxBytes + formAllowance
			if req.ContentLength > limit {
				metrics.RecordUpload(metrics.UploadRejectedSize)
				l.Warn("upload_rejected", "status", http.StatusRequestEntityTooLarge, "reason", "content_length", "bytes", req.ContentLength)
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, s.TooLargeMessage())
			}
			req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)

			if err := req.ParseMultipartForm(memoryLimit); err != nil {
				if tooLarge(err) {
					metrics.RecordUpload(metrics.UploadRejectedSize)
					l.Warn("upload_rejected", "status", http.StatusRequestEntityTooLarge, "reason", "body_limit")
					return echo.NewHTTPError(http.StatusRequestEntityTooLarge, s.TooLargeMessage())
				}
				return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body").SetInternal(err)
			}
			defer func() {
				if err := req.MultipartForm.RemoveAll(); err != nil {
					l.Warn("upload_cleanup_error", "error", err.Error())
				}
			}()

			files := req.MultipartForm.File[field]
			if len(files) == 0 {
				return next(c)
			}

			saved, err := s.Save(files[0])
			switch {
			case errors.Is(err, ErrUnsupportedType):
				metrics.RecordUpload(metrics.UploadRejectedType)
				l.Warn("upload_rejected", "status", http.StatusBadRequest, "reason", "type", "filename", files[0].Filename)
				return echo.NewHTTPError(http.StatusBadRequest, UnsupportedTypeMessage)
			case errors.Is(err, ErrTooLarge):
				metrics.RecordUpload(metrics.UploadRejectedSize)
				l.Warn("upload_rejected", "status", http.StatusRequestEntityTooLarge, "reason", "part_size", "bytes", files[0].Size)
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, s.TooLargeMessage())
			case err != nil:
				l.Error("upload_save_error", "status", http.StatusInternalServerError, "error", err.Error())
				return err
			}

			metrics.RecordUpload(metrics.UploadAccepted)
			l.Debug("upload_accepted", "file", saved.Name, "bytes", saved.Size)
			c.Set(contextKey, saved)
			return next(c)
		}
	}
}
