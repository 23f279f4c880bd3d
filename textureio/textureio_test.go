package textureio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/gfxcore/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// twoRows is a 2x2 image with a red top row and a blue bottom row.
func twoRows() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	img.Set(0, 0, red)
	img.Set(1, 0, red)
	img.Set(0, 1, blue)
	img.Set(1, 1, blue)
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeFlipsRows(t *testing.T) {
	desc, err := Decode("rows", bytes.NewReader(encodePNG(t, twoRows())))
	require.NoError(t, err)

	assert.Equal(t, "rows", desc.Name)
	assert.Equal(t, device.Texture2D, desc.Target)
	assert.Equal(t, uint32(2), desc.Width)
	assert.Equal(t, uint32(2), desc.Height)
	assert.Equal(t, 4, desc.Channels)
	require.Len(t, desc.Pixels, 16)
	assert.Equal(t, []byte{0, 0, 255, 255}, desc.Pixels[0:4], "bottom row first")
	assert.Equal(t, []byte{255, 0, 0, 255}, desc.Pixels[8:12])

	desc, err = Decode("rows", bytes.NewReader(encodePNG(t, twoRows())), WithoutFlip())
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0, 255}, desc.Pixels[0:4])
}

func TestDecodeBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, twoRows()))

	desc, err := Decode("rows", &buf)
	require.NoError(t, err)
	assert.Equal(t, 4, desc.Channels)
	assert.Equal(t, []byte{0, 0, 255, 255}, desc.Pixels[0:4])
}

func TestDecodeGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.Pix = []byte{1, 2, 3, 4, 5, 6}

	desc, err := Decode("mask", bytes.NewReader(encodePNG(t, img)))
	require.NoError(t, err)
	assert.Equal(t, 1, desc.Channels)
	assert.Equal(t, []byte{4, 5, 6, 1, 2, 3}, desc.Pixels)
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode("text", strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDecodeMaxSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	desc, err := Decode("wide", bytes.NewReader(encodePNG(t, img)), WithMaxSize(4))
	require.NoError(t, err)
	assert.Equal(t, uint32(4), desc.Width)
	assert.Equal(t, uint32(2), desc.Height)
	assert.Len(t, desc.Pixels, 4*2*4)

	desc, err = Decode("wide", bytes.NewReader(encodePNG(t, img)), WithMaxSize(16))
	require.NoError(t, err)
	assert.Equal(t, uint32(8), desc.Width)
}

func TestFlipVertical(t *testing.T) {
	pix := []byte{1, 1, 2, 2, 3, 3}
	FlipVertical(pix, 2)
	assert.Equal(t, []byte{3, 3, 2, 2, 1, 1}, pix)
	FlipVertical(pix, 0)
	assert.Equal(t, []byte{3, 3, 2, 2, 1, 1}, pix)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brick.png"), encodePNG(t, twoRows()), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	descs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "brick", descs[0].Name)

	_, err = LoadFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
	assert.Equal(t, "brick", TextureName("/a/b/brick.png"))
}
