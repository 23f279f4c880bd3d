// Package textureio decodes image files into texture descriptors.
//
// PNG, JPEG, GIF, BMP, TIFF and WebP are supported. Pixels are converted to
// RGBA8, or kept as R8 for grayscale images, and stored bottom row first.
package textureio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/gogpu/gfxcore/device"
	"github.com/gogpu/gfxcore/internal/workpool"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupported is returned for data no registered decoder recognizes.
var ErrUnsupported = errors.New("textureio: unsupported image format")

// Extensions lists the file extensions LoadDir picks up.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Option configures decoding.
type Option func(*options)

type options struct {
	maxSize int
	noFlip  bool
}

// WithMaxSize scales images whose larger side exceeds n down to n, keeping
// the aspect ratio.
func WithMaxSize(n int) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithoutFlip keeps the top row first.
func WithoutFlip() Option {
	return func(o *options) {
		o.noFlip = true
	}
}

// Decode reads an image from r and returns a 2D texture descriptor called
// name.
func Decode(name string, r io.Reader, opts ...Option) (device.TextureDescriptor, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	img, _, err := image.Decode(r)
	if errors.Is(err, image.ErrFormat) {
		return device.TextureDescriptor{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	if err != nil {
		return device.TextureDescriptor{}, fmt.Errorf("textureio: decode %s: %w", name, err)
	}
	img = scale(img, o.maxSize)

	desc := device.TextureDescriptor{Name: name, Target: device.Texture2D}
	var stride int
	switch src := img.(type) {
	case *image.Gray:
		g := toGray(src)
		desc.Pixels, desc.Channels, stride = g.Pix, 1, g.Stride
	default:
		rgba := toRGBA(img)
		desc.Pixels, desc.Channels, stride = rgba.Pix, 4, rgba.Stride
	}
	b := img.Bounds()
	desc.Width = uint32(b.Dx())  // #nosec G115 -- image bounds are non-negative
	desc.Height = uint32(b.Dy()) // #nosec G115 -- image bounds are non-negative
	if !o.noFlip {
		FlipVertical(desc.Pixels, stride)
	}
	return desc, nil
}

func scale(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}
	nw, nh := maxSize, maxSize
	if w > h {
		nh = max(1, h*maxSize/w)
	} else {
		nw = max(1, w*maxSize/h)
	}
	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(image.Rect(0, 0, nw, nh))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, nw, nh))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// toRGBA returns img as a tightly packed RGBA image with its origin at 0,0.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func toGray(img *image.Gray) *image.Gray {
	b := img.Bounds()
	if b.Min == (image.Point{}) && img.Stride == b.Dx() {
		return img
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// FlipVertical reverses the row order of pix in place.
func FlipVertical(pix []byte, stride int) {
	if stride <= 0 {
		return
	}
	rows := len(pix) / stride
	tmp := make([]byte, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// TextureName is the file name of path without directory and extension.
func TextureName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFile decodes the image at path. The texture is named by TextureName.
func LoadFile(path string, opts ...Option) (device.TextureDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return device.TextureDescriptor{}, fmt.Errorf("textureio: %w", err)
	}
	return Decode(TextureName(path), bytes.NewReader(data), opts...)
}

// LoadDir decodes every image in dir with a known extension. Files are
// decoded in parallel; the result keeps directory order.
func LoadDir(dir string, opts ...Option) ([]device.TextureDescriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("textureio: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && supported(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}

	out := make([]device.TextureDescriptor, len(paths))
	jobs := make([]func() error, len(paths))
	for i, path := range paths {
		jobs[i] = func() (err error) {
			out[i], err = LoadFile(path, opts...)
			return err
		}
	}
	pool := workpool.New(min(len(paths), runtime.GOMAXPROCS(0)))
	defer pool.Close()
	if err := pool.Run(jobs); err != nil {
		return nil, err
	}
	return out, nil
}

func supported(file string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(file)))
}
