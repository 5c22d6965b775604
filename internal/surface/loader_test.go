package surface

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "slide_001.jpg")
	writeJPEG(t, good)
	bad := filepath.Join(dir, "slide_002.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))

	ctx := context.Background()
	assert.NoError(t, FileLoader{}.Load(ctx, good))
	assert.Error(t, FileLoader{}.Load(ctx, bad))
	assert.Error(t, FileLoader{}.Load(ctx, filepath.Join(dir, "slide_003.jpg")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, FileLoader{}.Load(cancelled, good), context.Canceled)
}
