package profile

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestSave_ReplacesOtherExtensions(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewPhotoStore(fs)

	if _, err := s.Save("U01SOCP", "image/png", []byte("png")); err != nil {
		t.Fatalf("Save png: %v", err)
	}
	name, err := s.Save("U01SOCP", "image/jpeg", []byte("jpg"))
	if err != nil {
		t.Fatalf("Save jpeg: %v", err)
	}
	if name != "profile_photos/U01SOCP.jpg" {
		t.Errorf("name = %q", name)
	}
	if ok, _ := afero.Exists(fs, "profile_photos/U01SOCP.png"); ok {
		t.Error("old png should be removed")
	}
	if ok, _ := afero.Exists(fs, "profile_photos/U01SOCP.jpg.tmp"); ok {
		t.Error("temp file should not remain")
	}

	f, mimeType, err := s.Open("U01SOCP")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if mimeType != "image/jpeg" || string(data) != "jpg" {
		t.Errorf("Open = %q %q", mimeType, data)
	}
}

func TestSave_UnsupportedType(t *testing.T) {
	s := NewPhotoStore(afero.NewMemMapFs())
	if _, err := s.Save("U01SOCP", "image/gif", []byte("gif")); err == nil {
		t.Fatal("Save should reject gif")
	}
}

func TestOpen_NoPhoto(t *testing.T) {
	s := NewPhotoStore(afero.NewMemMapFs())
	if _, _, err := s.Open("U01SOCP"); !errors.Is(err, ErrNoPhoto) {
		t.Errorf("err = %v, want ErrNoPhoto", err)
	}
}

func TestReadLimited(t *testing.T) {
	data, ok, err := ReadLimited(strings.NewReader("12345"), 5)
	if err != nil || !ok || string(data) != "12345" {
		t.Errorf("at limit = %q %v %v", data, ok, err)
	}
	_, ok, err = ReadLimited(bytes.NewReader(make([]byte, 6)), 5)
	if err != nil || ok {
		t.Errorf("over limit ok = %v, err = %v", ok, err)
	}
}
