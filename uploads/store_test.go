package uploads

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"safemap/apperrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestSaveReportImage(t *testing.T) {
	store := newTestStore(t)
	data := []byte("fake png bytes")

	url, err := store.SaveReportImage("r-1", "photo.png", "image/png", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("SaveReportImage() error = %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/reports/r-1/") {
		t.Errorf("url = %q, want it under /uploads/reports/r-1/", url)
	}
}

func TestSaveRejectsNonImage(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SaveReportImage("r-1", "notes.txt", "text/plain", strings.NewReader("hi"), 2)
	if !apperrors.IsValidation(err) {
		t.Errorf("SaveReportImage() error = %v, want validation error", err)
	}
}

func TestSaveRejectsOversize(t *testing.T) {
	store := newTestStore(t)

	testCases := []struct {
		name string
		save func() error
	}{
		{
			name: "report image over 5MB",
			save: func() error {
				_, err := store.SaveReportImage("r-1", "big.jpg", "image/jpeg",
					strings.NewReader(""), MaxReportImageBytes+1)
				return err
			},
		}, {
			name: "profile image over 2MB",
			save: func() error {
				_, err := store.SaveProfileImage("u-1", "big.jpg", "image/jpeg",
					strings.NewReader(""), MaxProfileImageBytes+1)
				return err
			},
		},
	}

	for _, tc := range testCases {
		if err := tc.save(); !apperrors.IsValidation(err) {
			t.Errorf("%s: error = %v, want validation error", tc.name, err)
		}
	}
}

func TestProfileImageUnderReportCeilingStillRejected(t *testing.T) {
	store := newTestStore(t)

	// 3MB is fine for a report image but over the 2MB profile ceiling.
	size := int64(3 * 1024 * 1024)
	if _, err := store.SaveProfileImage("u-1", "p.jpg", "image/jpeg", strings.NewReader(""), size); !apperrors.IsValidation(err) {
		t.Errorf("SaveProfileImage() error = %v, want validation error", err)
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, "/uploads")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	data := []byte("img")
	url, err := store.SaveProfileImage("u-1", "avatar.png", "image/png", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("SaveProfileImage() error = %v", err)
	}

	if err := store.Delete(url); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	rel := strings.TrimPrefix(url, "/uploads/")
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); !os.IsNotExist(err) {
		t.Error("blob still exists after Delete()")
	}

	// Deleting again is benign.
	if err := store.Delete(url); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestDeleteRejectsForeignURL(t *testing.T) {
	store := newTestStore(t)

	if err := store.Delete("/etc/passwd"); !apperrors.IsValidation(err) {
		t.Errorf("Delete() of a foreign URL = %v, want validation error", err)
	}
}

func TestSanitizeName(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"photo.png", "photo.png"},
		{"../../etc/passwd", "passwd"},
		{"my photo (1).jpg", "my_photo__1_.jpg"},
		{"", "upload"},
	}

	for _, tc := range testCases {
		if got := sanitizeName(tc.in); got != tc.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
