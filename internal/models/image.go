package models

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

type imageKind uint8

const (
	imageNone imageKind = iota
	imagePending
	imageStored
)

// PendingFile is a local image selected for upload but not yet sent.
type PendingFile struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// PendingFromPath builds a PendingFile that reads path lazily at submit time.
func PendingFromPath(path string) (PendingFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return PendingFile{}, fmt.Errorf("select image: %w", err)
	}
	if info.IsDir() {
		return PendingFile{}, fmt.Errorf("select image: %s is a directory", path)
	}
	name := filepath.Base(path)
	return PendingFile{
		Name:        name,
		ContentType: ContentTypeFor(name),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// ContentTypeFor guesses the declared content type from the file extension.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ImageRef is either nothing, a pending local file, or a stored server path.
type ImageRef struct {
	kind    imageKind
	pending PendingFile
	path    string
}

func PendingImage(f PendingFile) ImageRef {
	return ImageRef{kind: imagePending, pending: f}
}

func StoredImage(path string) ImageRef {
	if path == "" {
		return ImageRef{}
	}
	return ImageRef{kind: imageStored, path: path}
}

func (r ImageRef) IsEmpty() bool   { return r.kind == imageNone }
func (r ImageRef) IsPending() bool { return r.kind == imagePending }

func (r ImageRef) Pending() (PendingFile, bool) {
	return r.pending, r.kind == imagePending
}

func (r ImageRef) StoredPath() (string, bool) {
	return r.path, r.kind == imageStored
}

func (r ImageRef) String() string {
	switch r.kind {
	case imagePending:
		return "Selected: " + r.pending.Name
	case imageStored:
		return r.path
	}
	return "(none)"
}
