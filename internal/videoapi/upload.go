package videoapi

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Upload is a user supplied file. Open is called once per request so a
// retried stage re-reads the content from the start.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileUpload returns an Upload backed by a local file.
func FileUpload(path string) *Upload {
	return &Upload{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// ReaderUpload wraps in-memory content.
func ReaderUpload(name string, content string) *Upload {
	return &Upload{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

// Validate checks the upload can be read without consuming it.
func (u *Upload) Validate() error {
	if u == nil {
		return fmt.Errorf("no file supplied")
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("upload has no file name")
	}
	if u.Open == nil {
		return fmt.Errorf("upload %s has no content", u.Name)
	}
	rc, err := u.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", u.Name, err)
	}
	return rc.Close()
}
