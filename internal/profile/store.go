// Package profile stores profile photos on a pluggable filesystem.
package profile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
)

// PhotoDir is the directory under the store root that holds profile photos.
const PhotoDir = "profile_photos"

// Extensions maps each accepted MIME type to its file extension.
var Extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ErrNoPhoto is returned by Open when the person has no stored photo.
var ErrNoPhoto = errors.New("no profile photo")

// PhotoStore keeps at most one photo per portal id.
type PhotoStore struct {
	fs afero.Fs
}

// NewPhotoStore returns a store rooted at fs.
func NewPhotoStore(fs afero.Fs) *PhotoStore {
	return &PhotoStore{fs: fs}
}

// NewOsPhotoStore returns a store rooted at dir on the local filesystem.
func NewOsPhotoStore(dir string) *PhotoStore {
	return NewPhotoStore(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Save writes data as the person's photo and removes any photo stored under another extension.
// Returns the stored path relative to the store root.
func (s *PhotoStore) Save(socPortalID, mimeType string, data []byte) (string, error) {
	ext, ok := Extensions[mimeType]
	if !ok {
		return "", fmt.Errorf("unsupported photo type %q", mimeType)
	}
	if err := s.fs.MkdirAll(PhotoDir, 0o755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}
	name := path.Join(PhotoDir, socPortalID+"."+ext)
	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("commit photo: %w", err)
	}
	for _, other := range Extensions {
		if other == ext {
			continue
		}
		if err := s.fs.Remove(path.Join(PhotoDir, socPortalID+"."+other)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("remove old photo: %w", err)
		}
	}
	return name, nil
}

// Open returns the person's photo and its MIME type. The caller closes the file.
func (s *PhotoStore) Open(socPortalID string) (afero.File, string, error) {
	for mimeType, ext := range Extensions {
		f, err := s.fs.Open(path.Join(PhotoDir, socPortalID+"."+ext))
		if err == nil {
			return f, mimeType, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", err
		}
	}
	return nil, "", ErrNoPhoto
}

// ReadLimited reads at most limit bytes from r. It reports false when r holds more than limit bytes.
func ReadLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return nil, false, nil
	}
	return data, true, nil
}
