package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

const xmpKeyword = "XML:com.adobe.xmp"

func extractPNG(data []byte) (Container, error) {
	c := Container{Format: "png"}

	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		chunkType := string(data[pos+4 : pos+8])
		if length < 0 || pos+12+length > len(data) {
			return c, fmt.Errorf("png chunk %s: %w", chunkType, ErrTruncated)
		}
		body := data[pos+8 : pos+8+length]

		switch chunkType {
		case "iCCP":
			profile, err := inflateICCP(body)
			if err == nil {
				c.ICC = profile
			}
		case "sRGB":
			c.SRGBChunk = true
		case "eXIf":
			exif, err := ParseExif(body)
			if err == nil {
				c.Exif = exif
			}
		case "iTXt":
			if keyword, text, ok := splitITXt(body); ok && keyword == xmpKeyword {
				c.XMP = text
			}
		case "tEXt":
			if keyword, text, ok := bytes.Cut(body, []byte{0}); ok && string(keyword) == "Comment" {
				c.Comments = append(c.Comments, string(text))
			}
		case "IEND":
			return c, nil
		}

		pos += 12 + length
	}
	return c, nil
}

// inflateICCP decodes "name\0 method zlib-data".
func inflateICCP(body []byte) ([]byte, error) {
	nul := bytes.IndexByte(body, 0)
	if nul < 0 || nul+2 > len(body) {
		return nil, ErrTruncated
	}
	zr, err := zlib.NewReader(bytes.NewReader(body[nul+2:]))
	if err != nil {
		return nil, fmt.Errorf("inflate iCCP: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// splitITXt returns the keyword and uncompressed text of an iTXt chunk.
func splitITXt(body []byte) (string, []byte, bool) {
	keyword, rest, ok := bytes.Cut(body, []byte{0})
	if !ok || len(rest) < 2 || rest[0] != 0 {
		return "", nil, false
	}
	rest = rest[2:]
	// language tag and translated keyword
	for i := 0; i < 2; i++ {
		_, rest, ok = bytes.Cut(rest, []byte{0})
		if !ok {
			return "", nil, false
		}
	}
	return string(keyword), append([]byte(nil), rest...), true
}
