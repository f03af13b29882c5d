// Package uploads is the blob store adapter for report and profile
// images. Validation happens before any byte is written.
package uploads

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"safemap/apperrors"

	"github.com/apex/log"
)

const (
	// MaxReportImageBytes is the size ceiling for report images.
	MaxReportImageBytes = 5 * 1024 * 1024
	// MaxProfileImageBytes is the size ceiling for profile images.
	MaxProfileImageBytes = 2 * 1024 * 1024
)

// Store writes validated images under a local directory and hands back
// URLs rooted at the configured base path.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates the uploads directory if needed.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// SaveReportImage stores an image for a report and returns its URL.
func (s *Store) SaveReportImage(reportID, fileName, contentType string, r io.Reader, size int64) (string, error) {
	if err := validateImage(contentType, size, MaxReportImageBytes); err != nil {
		return "", err
	}
	return s.save(path.Join("reports", reportID), fileName, r)
}

// SaveProfileImage stores a profile picture and returns its URL.
func (s *Store) SaveProfileImage(userID, fileName, contentType string, r io.Reader, size int64) (string, error) {
	if err := validateImage(contentType, size, MaxProfileImageBytes); err != nil {
		return "", err
	}
	return s.save(path.Join("profiles", userID), fileName, r)
}

// Delete removes a previously stored blob by its URL. Absence is benign.
func (s *Store) Delete(url string) error {
	rel := strings.TrimPrefix(url, s.baseURL+"/")
	if rel == url || strings.Contains(rel, "..") {
		return apperrors.NewValidation("url", "not an uploads URL")
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

func (s *Store) save(subdir, fileName string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), sanitizeName(fileName))
	dir := filepath.Join(s.dir, filepath.FromSlash(subdir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating blob dir: %w", err)
	}

	dst := filepath.Join(dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("writing blob: %w", err)
	}

	url := s.baseURL + "/" + path.Join(subdir, name)
	log.Debugf("Stored blob %s", url)
	return url, nil
}

func validateImage(contentType string, size, maxSize int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		return apperrors.NewValidation("file", "only image files are allowed")
	}
	if size <= 0 {
		return apperrors.NewValidation("file", "empty upload")
	}
	if size > maxSize {
		return apperrors.NewValidation("file", fmt.Sprintf("file size must be less than %dMB", maxSize/(1024*1024)))
	}
	return nil
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
