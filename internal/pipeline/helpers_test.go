package pipeline

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/imglab/internal/metadata"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestProcessor(t testing.TB, opts Options) *Processor {
	t.Helper()

	p, err := NewProcessor(testLogger(), opts)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return p
}

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}
	return img
}

// noisyImage has enough high-frequency detail that JPEG size tracks quality.
func noisyImage(w, h int) *image.NRGBA {
	img := gradientImage(w, h)
	seed := uint32(2463534242)
	for i := 0; i < len(img.Pix); i += 4 {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		img.Pix[i] = uint8(int(img.Pix[i])/2 + int(seed&0x7F))
		img.Pix[i+1] = uint8(int(img.Pix[i+1])/2 + int(seed>>8&0x7F))
	}
	return img
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func writeTestPNG(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write source png: %v", err)
	}
	return path
}

func decodeTestImage(t testing.TB, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}
	return img
}

// jpegWithExif encodes img as a JPEG and inserts tiff as an APP1 Exif segment
// right after SOI.
func jpegWithExif(t testing.TB, img image.Image, tiff []byte) []byte {
	t.Helper()

	var enc bytes.Buffer
	if err := jpeg.Encode(&enc, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("encode source jpeg: %v", err)
	}
	data := enc.Bytes()

	segment := make([]byte, 4, 4+6+len(tiff))
	segment[0], segment[1] = 0xFF, 0xE1
	binary.BigEndian.PutUint16(segment[2:], uint16(2+6+len(tiff)))
	segment = append(segment, "Exif\x00\x00"...)
	segment = append(segment, tiff...)

	out := append([]byte(nil), data[:2]...)
	out = append(out, segment...)
	return append(out, data[2:]...)
}

// testExif builds a little-endian EXIF payload with an orientation, an
// optional ColorSpace sub-IFD and an optional IFD1 thumbnail.
func testExif(t testing.TB, orientation, colorSpace uint16, thumb []byte) *metadata.Exif {
	t.Helper()
	le := binary.LittleEndian

	entries := 1
	if colorSpace != 0 {
		entries++
	}
	ifd0 := 8
	sub := ifd0 + 2 + 12*entries + 4
	ifd1 := sub
	if colorSpace != 0 {
		ifd1 += 2 + 12 + 4
	}
	thumbAt := ifd1 + 2 + 24 + 4

	buf := make([]byte, thumbAt+len(thumb))
	copy(buf, "II")
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], uint32(ifd0))

	entry := func(pos int, tag, typ uint16, value uint32) {
		le.PutUint16(buf[pos:], tag)
		le.PutUint16(buf[pos+2:], typ)
		le.PutUint32(buf[pos+4:], 1)
		if typ == 3 {
			le.PutUint16(buf[pos+8:], uint16(value))
		} else {
			le.PutUint32(buf[pos+8:], value)
		}
	}

	le.PutUint16(buf[ifd0:], uint16(entries))
	entry(ifd0+2, 0x0112, 3, uint32(orientation))
	if colorSpace != 0 {
		entry(ifd0+14, 0x8769, 4, uint32(sub))
		le.PutUint16(buf[sub:], 1)
		entry(sub+2, 0xA001, 3, uint32(colorSpace))
	}
	if len(thumb) > 0 {
		le.PutUint32(buf[ifd0+2+12*entries:], uint32(ifd1))
		le.PutUint16(buf[ifd1:], 2)
		entry(ifd1+2, 0x0201, 4, uint32(thumbAt))
		entry(ifd1+14, 0x0202, 4, uint32(len(thumb)))
		copy(buf[thumbAt:], thumb)
	}

	exif, err := metadata.ParseExif(buf)
	if err != nil {
		t.Fatalf("parse test exif: %v", err)
	}
	return exif
}
