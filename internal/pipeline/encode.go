package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w %s: %v", ErrOutputDir, dir, err)
	}
	return nil
}

// writeJPEG encodes img at quality into dir/name and returns the written size.
// Nothing but pixels is written, so every output is metadata free.
func writeJPEG(img image.Image, dir, name string, quality int) (string, int64, error) {
	if quality < 0 || quality > 100 {
		return "", 0, fmt.Errorf("%w: %d", ErrInvalidQuality, quality)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", ErrEncode, name, err)
	}

	fullPath := filepath.Join(dir, name)
	if err := os.WriteFile(fullPath, buf.Bytes(), 0o644); err != nil {
		return "", 0, fmt.Errorf("write output file %s: %w", fullPath, err)
	}
	return fullPath, int64(buf.Len()), nil
}
