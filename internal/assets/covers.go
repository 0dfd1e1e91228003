package assets

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"path"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"musicnerd/internal/logging"
)

// DefaultCoverSize is the edge length covers are scaled to.
const DefaultCoverSize = 250

// MissingCoverError reports a cover file that could not be found.
type MissingCoverError struct {
	Key      string
	Filename string
}

func (e *MissingCoverError) Error() string {
	return fmt.Sprintf("cover %q for key %q not found", e.Filename, e.Key)
}

// Resolver turns image keys into scaled cover images.
// Not safe for concurrent use; the UI calls it from its update loop.
type Resolver struct {
	table  *Table
	covers fs.FS
	size   int
	log    *zap.Logger
	cache  map[string]image.Image
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSize sets the edge length covers are scaled to.
func WithSize(px int) Option {
	return func(r *Resolver) {
		if px > 0 {
			r.size = px
		}
	}
}

// WithLogger sends diagnostics to l instead of the assets log category.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// NewResolver creates a resolver reading cover files from covers.
func NewResolver(table *Table, covers fs.FS, opts ...Option) *Resolver {
	r := &Resolver{
		table:  table,
		covers: covers,
		size:   DefaultCoverSize,
		log:    logging.Get(logging.CategoryAssets).Zap(),
		cache:  make(map[string]image.Image),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Size returns the edge length of resolved covers.
func (r *Resolver) Size() int {
	return r.size
}

// Filename maps key through the table. A key with no mapping is used as the
// filename itself and mapped is false. An empty key yields "".
func (r *Resolver) Filename(key string) (name string, mapped bool) {
	if key == "" {
		return "", false
	}
	if name, ok := r.table.Lookup(key); ok && name != "" {
		return name, true
	}
	r.log.Warn("image key has no mapping, using it as filename", zap.String("key", key))
	return key, false
}

// Cover returns the scaled cover for key. It returns (nil, nil) when key is
// empty. A missing or undecodable file is logged and returned as an error;
// callers clear the image panel.
func (r *Resolver) Cover(key string) (image.Image, error) {
	name, _ := r.Filename(key)
	if name == "" {
		return nil, nil
	}
	if img, ok := r.cache[name]; ok {
		return img, nil
	}

	if r.covers == nil {
		err := &MissingCoverError{Key: key, Filename: name}
		r.log.Warn("no cover directory configured", zap.String("key", key), zap.String("file", name))
		return nil, err
	}

	clean := path.Clean(name)
	if !fs.ValidPath(clean) {
		err := &MissingCoverError{Key: key, Filename: name}
		r.log.Warn("cover path outside cover directory", zap.String("key", key), zap.String("file", name))
		return nil, err
	}

	f, err := r.covers.Open(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = &MissingCoverError{Key: key, Filename: name}
		}
		r.log.Warn("cover file not found", zap.String("key", key), zap.String("file", name), zap.Error(err))
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		r.log.Warn("cover file could not be decoded", zap.String("file", name), zap.Error(err))
		return nil, fmt.Errorf("decode cover %s: %w", name, err)
	}

	img := Scale(src, r.size, r.size)
	r.cache[name] = img
	return img, nil
}

// Scale resizes src to w×h with Catmull-Rom resampling. Aspect ratio is not kept.
func Scale(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
