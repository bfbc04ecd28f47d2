// Package uploads saves client file attachments to disk and hands back the
// path that message events reference.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrExtensionNotAllowed is returned for uploads whose extension is outside
// the configured allowlist.
var ErrExtensionNotAllowed = errors.New("uploads: file extension not allowed")

// FileStore saves uploaded files under a base directory.
type FileStore struct {
	basePath   string
	extensions map[string]struct{}
}

// NewFileStore creates the base directory if missing. allowedExtensions are
// matched case-insensitively, without the leading dot.
func NewFileStore(basePath string, allowedExtensions []string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("uploads: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	extensions := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			extensions[ext] = struct{}{}
		}
	}

	return &FileStore{basePath: basePath, extensions: extensions}, nil
}

// Save writes the uploaded content to disk under a collision-free name and
// returns the stored path for the client to reference in message events.
func (f *FileStore) Save(filename string, r io.Reader) (string, error) {
	name := safeFilename(filename)
	if !f.allowed(name) {
		return "", ErrExtensionNotAllowed
	}

	target := filepath.Join(f.basePath, uuid.NewString()+"_"+name)
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return target, nil
}

func (f *FileStore) allowed(name string) bool {
	if len(f.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, ok := f.extensions[ext]
	return ok
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload"
	}
	return name
}
