package upload

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultMaxBytes = 5 << 20
	PublicPrefix    = "/uploads/"

	UnsupportedTypeMessage = "Only .jpg, .jpeg, and .png files are allowed"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
	ErrOutsideUploads  = errors.New("path is not an uploaded image")
)

var (
	allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	allowedCT  = map[string]bool{"image/jpeg": true, "image/jpg": true, "image/png": true}
)

// UploadedFile describes an accepted image after it was written to disk.
type UploadedFile struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
}

// ImageStore writes accepted images into Dir and serves them under PublicPrefix.
type ImageStore struct {
	Dir      string
	MaxBytes int64
}

func NewImageStore(dir string, maxBytes int64) (*ImageStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{Dir: dir, MaxBytes: maxBytes}, nil
}

// TooLargeMessage is the client facing text for an oversized upload.
func (s *ImageStore) TooLargeMessage() string {
	if s.MaxBytes%(1<<20) == 0 {
		return fmt.Sprintf("File too large. Maximum size is %d MB", s.MaxBytes>>20)
	}
	return fmt.Sprintf("File too large. Maximum size is %d bytes", s.MaxBytes)
}

// Check validates the declared name, type and size of a part without reading it.
func (s *ImageStore) Check(fh *multipart.FileHeader) (ext string, contentType string, err error) {
	ext = strings.ToLower(filepath.Ext(filepath.Base(fh.Filename)))
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(fh.Header.Get("Content-Type"), ";", 2)[0]))
	if !allowedExt[ext] || !allowedCT[contentType] {
		return "", "", ErrUnsupportedType
	}
	if fh.Size > s.MaxBytes {
		return "", "", ErrTooLarge
	}
	return ext, contentType, nil
}

func newName(ext string) string {
	return fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.IntN(1_000_000_000), ext)
}

// Save checks fh and copies it into the upload directory under a fresh name.
func (s *ImageStore) Save(fh *multipart.FileHeader) (UploadedFile, error) {
	ext, ct, err := s.Check(fh)
	if err != nil {
		return UploadedFile{}, err
	}

	src, err := fh.Open()
	if err != nil {
		return UploadedFile{}, fmt.Errorf("open part: %w", err)
	}
	defer src.Close()

	var (
		dst  *os.File
		name string
	)
	for range 3 {
		name = newName(ext)
		dst, err = os.OpenFile(filepath.Join(s.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if !errors.Is(err, os.ErrExist) {
			break
		}
	}
	if err != nil {
		return UploadedFile{}, fmt.Errorf("create image file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, s.MaxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.MaxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		if errors.Is(err, ErrTooLarge) {
			return UploadedFile{}, err
		}
		return UploadedFile{}, fmt.Errorf("write image file: %w", err)
	}

	return UploadedFile{
		Name:        name,
		Path:        PublicPrefix + name,
		Size:        n,
		ContentType: ct,
	}, nil
}

// Remove deletes a stored image by its public path. A missing file is not an error.
func (s *ImageStore) Remove(publicPath string) error {
	if !strings.HasPrefix(publicPath, PublicPrefix) {
		return ErrOutsideUploads
	}
	name := path.Base(publicPath)
	if name != strings.TrimPrefix(publicPath, PublicPrefix) || name == "." || name == ".." {
		return ErrOutsideUploads
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
