package metadata

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	tagOrientation     = 0x0112
	tagExifIFD         = 0x8769
	tagColorSpace      = 0xA001
	tagInteropIFD      = 0xA005
	tagInteropIndex    = 0x0001
	tagThumbnailOffset = 0x0201
	tagThumbnailLength = 0x0202

	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeUndefined = 7
	typeSLong     = 9
	typeSRational = 10

	exifColorSpaceSRGB         = 1
	exifColorSpaceUncalibrated = 0xFFFF
)

// Exif is a parsed TIFF structure from an EXIF payload. The raw bytes are kept
// so edits (orientation reset, thumbnail removal) can be written back.
type Exif struct {
	raw   []byte
	order binary.ByteOrder

	orientation    int
	orientationPos int

	colorSpace   int
	interopIndex string

	thumbnailOffset uint32
	thumbnailLength uint32
	nextIFDPos      int
}

// ParseExif parses a TIFF header and IFD0, following the EXIF, interop and
// IFD1 (thumbnail) links.
func ParseExif(tiff []byte) (*Exif, error) {
	if len(tiff) < 8 {
		return nil, ErrInvalidTIFF
	}

	var order binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		order = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("byte order %q: %w", tiff[:2], ErrInvalidTIFF)
	}
	if order.Uint16(tiff[2:4]) != 42 {
		return nil, fmt.Errorf("magic number: %w", ErrInvalidTIFF)
	}

	e := &Exif{
		raw:            append([]byte(nil), tiff...),
		order:          order,
		orientationPos: -1,
		nextIFDPos:     -1,
	}

	ifd0 := int(order.Uint32(tiff[4:8]))
	next, err := e.walkIFD(ifd0, 0, e.visitIFD0)
	if err != nil {
		return nil, err
	}
	if next > 0 {
		// IFD1 describes the embedded thumbnail.
		if _, err := e.walkIFD(next, 0, e.visitIFD1); err != nil {
			e.thumbnailOffset, e.thumbnailLength = 0, 0
		}
	}
	return e, nil
}

type ifdEntry struct {
	tag      uint16
	typ      uint16
	count    uint32
	valuePos int
}

// walkIFD calls visit for every entry and returns the offset of the next IFD.
func (e *Exif) walkIFD(offset, depth int, visit func(ifdEntry, int)) (int, error) {
	if depth > 4 {
		return 0, nil
	}
	if offset < 8 || offset+2 > len(e.raw) {
		return 0, fmt.Errorf("ifd offset %d: %w", offset, ErrInvalidTIFF)
	}

	n := int(e.order.Uint16(e.raw[offset : offset+2]))
	pos := offset + 2
	for i := 0; i < n; i++ {
		if pos+12 > len(e.raw) {
			return 0, fmt.Errorf("ifd entry %d: %w", i, ErrTruncated)
		}
		entry := ifdEntry{
			tag:      e.order.Uint16(e.raw[pos : pos+2]),
			typ:      e.order.Uint16(e.raw[pos+2 : pos+4]),
			count:    e.order.Uint32(e.raw[pos+4 : pos+8]),
			valuePos: pos + 8,
		}
		if typeSize(entry.typ)*int(entry.count) > 4 {
			entry.valuePos = int(e.order.Uint32(e.raw[pos+8 : pos+12]))
		}
		visit(entry, depth)
		pos += 12
	}

	if pos+4 > len(e.raw) {
		return 0, nil
	}
	if depth == 0 && e.nextIFDPos < 0 {
		e.nextIFDPos = pos
	}
	return int(e.order.Uint32(e.raw[pos : pos+4])), nil
}

func (e *Exif) visitIFD0(entry ifdEntry, depth int) {
	switch entry.tag {
	case tagOrientation:
		if v, ok := e.uintValue(entry); ok {
			e.orientation = int(v)
			e.orientationPos = entry.valuePos
		}
	case tagExifIFD:
		if v, ok := e.uintValue(entry); ok {
			e.walkSubIFD(int(v), depth+1)
		}
	case tagColorSpace:
		if v, ok := e.uintValue(entry); ok {
			e.colorSpace = int(v)
		}
	case tagInteropIFD:
		if v, ok := e.uintValue(entry); ok {
			e.walkSubIFD(int(v), depth+1)
		}
	case tagInteropIndex:
		if entry.typ == typeASCII {
			e.interopIndex = e.asciiValue(entry)
		}
	}
}

// walkSubIFD follows EXIF and interop pointers. Nested walks never touch the
// IFD0 chain pointer.
func (e *Exif) walkSubIFD(offset, depth int) {
	_, _ = e.walkIFD(offset, depth, e.visitIFD0)
}

func (e *Exif) visitIFD1(entry ifdEntry, _ int) {
	switch entry.tag {
	case tagThumbnailOffset:
		if v, ok := e.uintValue(entry); ok {
			e.thumbnailOffset = v
		}
	case tagThumbnailLength:
		if v, ok := e.uintValue(entry); ok {
			e.thumbnailLength = v
		}
	}
}

func (e *Exif) uintValue(entry ifdEntry) (uint32, bool) {
	p := entry.valuePos
	switch entry.typ {
	case typeByte, typeUndefined:
		if p+1 <= len(e.raw) {
			return uint32(e.raw[p]), true
		}
	case typeShort:
		if p+2 <= len(e.raw) {
			return uint32(e.order.Uint16(e.raw[p : p+2])), true
		}
	case typeLong, typeSLong:
		if p+4 <= len(e.raw) {
			return e.order.Uint32(e.raw[p : p+4]), true
		}
	}
	return 0, false
}

func (e *Exif) asciiValue(entry ifdEntry) string {
	end := entry.valuePos + int(entry.count)
	if entry.valuePos < 0 || end > len(e.raw) {
		return ""
	}
	return strings.TrimRight(string(e.raw[entry.valuePos:end]), "\x00 ")
}

func typeSize(typ uint16) int {
	switch typ {
	case typeShort:
		return 2
	case typeLong, typeSLong:
		return 4
	case typeRational, typeSRational:
		return 8
	default:
		return 1
	}
}

// Orientation returns the EXIF orientation (1-8), or 1 when absent or invalid.
func (e *Exif) Orientation() int {
	if e == nil || e.orientation < 1 || e.orientation > 8 {
		return 1
	}
	return e.orientation
}

// ResetOrientation rewrites the orientation tag to 1 (top-left).
func (e *Exif) ResetOrientation() {
	if e == nil || e.orientationPos < 0 {
		return
	}
	e.orientation = 1
	e.order.PutUint16(e.raw[e.orientationPos:e.orientationPos+2], 1)
}

// ColorSpace maps the EXIF ColorSpace and InteropIndex tags.
func (e *Exif) ColorSpace() ColorSpace {
	if e == nil {
		return ColorSpaceUnspecified
	}
	if e.interopIndex == "R03" {
		return ColorSpaceAdobeRGB
	}
	switch e.colorSpace {
	case exifColorSpaceSRGB:
		return ColorSpaceSRGB
	case exifColorSpaceUncalibrated:
		return ColorSpaceUncalibrated
	default:
		return ColorSpaceUnspecified
	}
}

func (e *Exif) ThumbnailOffset() uint32 {
	if e == nil {
		return 0
	}
	return e.thumbnailOffset
}

func (e *Exif) ThumbnailLength() uint32 {
	if e == nil {
		return 0
	}
	return e.thumbnailLength
}

// HasThumbnail reports whether IFD1 points at embedded thumbnail data.
func (e *Exif) HasThumbnail() bool {
	return e.ThumbnailOffset() != 0 && e.ThumbnailLength() != 0
}

// RemoveThumbnail unlinks IFD1 and drops the thumbnail bytes when they sit at
// the end of the payload. Only this copy is changed.
func (e *Exif) RemoveThumbnail() {
	if e == nil || !e.HasThumbnail() {
		return
	}
	end := int(e.thumbnailOffset) + int(e.thumbnailLength)
	if end == len(e.raw) {
		e.raw = e.raw[:e.thumbnailOffset]
	}
	if e.nextIFDPos >= 0 && e.nextIFDPos+4 <= len(e.raw) {
		e.order.PutUint32(e.raw[e.nextIFDPos:e.nextIFDPos+4], 0)
	}
	e.thumbnailOffset, e.thumbnailLength = 0, 0
}

// Bytes returns a copy of the TIFF payload.
func (e *Exif) Bytes() []byte {
	if e == nil {
		return nil
	}
	return append([]byte(nil), e.raw...)
}

func (e *Exif) Clone() *Exif {
	if e == nil {
		return nil
	}
	c := *e
	c.raw = append([]byte(nil), e.raw...)
	return &c
}
