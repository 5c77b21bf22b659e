package localfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/ports"
)

// LocalFS stores objects as files under root. Object keys are slash
// separated and may not escape root.
type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) path(objectKey string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(objectKey))
	if objectKey == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", apperrors.ValidationField("object_key", "invalid object key").WithField("object_key", objectKey)
	}
	return filepath.Join(l.root, clean), nil
}

// Put writes to a temp file beside the destination and renames it into
// place, so a reader never sees a partial video.
func (l *LocalFS) Put(ctx context.Context, key, contentType string, r io.Reader) (ports.Object, error) {
	dst, err := l.path(key)
	if err != nil {
		return ports.Object{}, err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ports.Object{}, apperrors.Wrap(err, "localfs.put", "create directory")
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return ports.Object{}, apperrors.Wrap(err, "localfs.put", "create file")
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		return ports.Object{}, apperrors.Wrap(err, "localfs.put", "write file").WithField("object_key", key)
	}
	if contentType == "" {
		contentType = contentTypeFor(dst)
	}
	return ports.Object{Key: key, ContentType: contentType, Size: n}, nil
}

func (l *LocalFS) Get(ctx context.Context, key string) (ports.Object, error) {
	p, err := l.path(key)
	if err != nil {
		return ports.Object{}, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return ports.Object{}, apperrors.NotFound("object", key)
	}
	if err != nil {
		return ports.Object{}, apperrors.Wrap(err, "localfs.get", "open file")
	}

	obj := ports.Object{Key: key, ContentType: contentTypeFor(p), Body: f}
	if st, err := f.Stat(); err == nil {
		obj.Size = st.Size()
	}
	if obj.ContentType == "" {
		head := make([]byte, 512)
		n, _ := f.Read(head)
		_, _ = f.Seek(0, io.SeekStart)
		obj.ContentType = http.DetectContentType(head[:n])
	}
	return obj, nil
}

// mediaTypes covers extensions the system mime table may not know.
var mediaTypes = map[string]string{
	".mp4": "video/mp4",
	".mp3": "audio/mpeg",
	".srt": "application/x-subrip",
	".jpg": "image/jpeg",
	".png": "image/png",
}

func contentTypeFor(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

func (l *LocalFS) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrap(err, "localfs.delete", "remove file")
	}
	return nil
}

// Ping creates the root if needed, so a fresh volume passes.
func (l *LocalFS) Ping(ctx context.Context) error {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "localfs.ping", "storage root not writable")
	}
	return nil
}
