package metadata

import (
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1
	markerAPP2 = 0xE2
	markerCOM  = 0xFE
)

var (
	exifHeader = []byte("Exif\x00\x00")
	xmpHeader  = []byte("http://ns.adobe.com/xap/1.0/\x00")
	iccHeader  = []byte("ICC_PROFILE\x00")
)

type iccChunk struct {
	seq  int
	data []byte
}

// extractJPEG walks the marker segments up to the start of scan.
func extractJPEG(data []byte) (Container, error) {
	c := Container{Format: "jpeg"}
	var chunks []iccChunk

	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return c, fmt.Errorf("jpeg marker at offset %d: %w", pos, ErrTruncated)
		}
		marker := data[pos+1]
		if marker == 0xFF {
			pos++
			continue
		}
		if marker == markerSOS || marker == markerEOI {
			break
		}
		if (marker >= 0xD0 && marker <= 0xD7) || marker == markerSOI {
			pos += 2
			continue
		}

		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if length < 2 || pos+2+length > len(data) {
			return c, fmt.Errorf("jpeg segment 0x%X: %w", marker, ErrTruncated)
		}
		segment := data[pos+4 : pos+2+length]

		switch marker {
		case markerAPP1:
			switch {
			case hasPrefix(segment, exifHeader) && c.Exif == nil:
				exif, err := ParseExif(segment[len(exifHeader):])
				if err == nil {
					c.Exif = exif
				}
			case hasPrefix(segment, xmpHeader):
				c.XMP = append([]byte(nil), segment[len(xmpHeader):]...)
			}
		case markerAPP2:
			if hasPrefix(segment, iccHeader) && len(segment) > len(iccHeader)+2 {
				chunks = append(chunks, iccChunk{
					seq:  int(segment[len(iccHeader)]),
					data: segment[len(iccHeader)+2:],
				})
			}
		case markerCOM:
			c.Comments = append(c.Comments, string(segment))
		}

		pos += 2 + length
	}

	if len(chunks) > 0 {
		sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
		for _, ch := range chunks {
			c.ICC = append(c.ICC, ch.data...)
		}
	}
	return c, nil
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}
