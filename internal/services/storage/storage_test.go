package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProfileImageShrinksWideImages(t *testing.T) {
	out, err := ProfileImage(pngBytes(t, 1024, 512), 256)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestProfileImageKeepsSmallImages(t *testing.T) {
	out, err := ProfileImage(pngBytes(t, 100, 50), 256)
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestProfileImageRejectsGarbage(t *testing.T) {
	_, err := ProfileImage([]byte("not an image"), 256)
	assert.Error(t, err)
}

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, "http://api.test/")

	u, err := s.Put(context.Background(), "../workers/w1/photo.jpg", "image/jpeg", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/uploads/workers/w1/photo.jpg", u)

	b, err := os.ReadFile(filepath.Join(dir, "workers", "w1", "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))
}
