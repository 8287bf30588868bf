package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/imglab/internal/metadata"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Buffer is a decoded image together with the metadata it was stored with.
// A stage that holds a Buffer owns it; Clone hands out an independent copy.
type Buffer struct {
	Pixels   *image.NRGBA
	Name     string
	Format   string
	Source   []byte
	ICC      []byte
	Exif     *metadata.Exif
	XMP      []byte
	Comments []string
	Declared metadata.ColorSpace

	normalized bool
}

// DecodeBytes decodes an encoded image. Unreadable metadata is ignored.
func DecodeBytes(name string, data []byte) (*Buffer, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}

	container, _ := metadata.Extract(data)

	return &Buffer{
		Pixels:   imaging.Clone(img),
		Name:     name,
		Format:   format,
		Source:   data,
		ICC:      container.ICC,
		Exif:     container.Exif,
		XMP:      container.XMP,
		Comments: container.Comments,
		Declared: container.ColorSpace(),
	}, nil
}

// NewBuffer wraps already decoded pixels with no metadata.
func NewBuffer(name string, img image.Image) *Buffer {
	return &Buffer{Pixels: imaging.Clone(img), Name: name}
}

func (b *Buffer) Clone() *Buffer {
	c := *b
	c.Pixels = imaging.Clone(b.Pixels)
	c.Source = cloneBytes(b.Source)
	c.ICC = cloneBytes(b.ICC)
	c.Exif = b.Exif.Clone()
	c.XMP = cloneBytes(b.XMP)
	c.Comments = append([]string(nil), b.Comments...)
	return &c
}

// SetExif attaches exif to the buffer, replacing what was there.
func (b *Buffer) SetExif(exif *metadata.Exif) {
	b.Exif = exif
}

// Strip removes every metadata block. The pixels are kept.
func (b *Buffer) Strip() {
	b.ICC = nil
	b.Exif = nil
	b.XMP = nil
	b.Comments = nil
}

func (b *Buffer) Width() int {
	return b.Pixels.Bounds().Dx()
}

func (b *Buffer) Height() int {
	return b.Pixels.Bounds().Dy()
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
