package surface

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"

	// Decoders for the formats a converter may emit.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// FileLoader checks that a slide image exists and has a decodable header.
type FileLoader struct{}

// Load opens path and decodes the image configuration.
func (FileLoader) Load(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open slide image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("failed to decode slide image %s: %w", path, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("slide image %s has no pixels", path)
	}
	return nil
}
