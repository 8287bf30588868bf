package colorspace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidProfile     = errors.New("colorspace: invalid icc profile")
	ErrUnsupportedProfile = errors.New("colorspace: unsupported icc profile")
)

const iccHeaderSize = 128

// ParseICC reads a matrix/TRC RGB ICC profile. LUT-based and non-RGB
// profiles return ErrUnsupportedProfile.
func ParseICC(data []byte) (*Profile, error) {
	if len(data) < iccHeaderSize+4 {
		return nil, ErrInvalidProfile
	}
	if string(data[36:40]) != "acsp" {
		return nil, fmt.Errorf("missing acsp signature: %w", ErrInvalidProfile)
	}
	if space := string(data[16:20]); space != "RGB " {
		return nil, fmt.Errorf("data colour space %q: %w", space, ErrUnsupportedProfile)
	}

	tags, err := readTagTable(data)
	if err != nil {
		return nil, err
	}

	var columns [3][3]float64
	for i, sig := range []string{"rXYZ", "gXYZ", "bXYZ"} {
		body, ok := tags[sig]
		if !ok {
			return nil, fmt.Errorf("missing %s tag: %w", sig, ErrUnsupportedProfile)
		}
		xyz, err := readXYZ(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sig, err)
		}
		columns[i] = xyz
	}

	var curves [3]Curve
	for i, sig := range []string{"rTRC", "gTRC", "bTRC"} {
		body, ok := tags[sig]
		if !ok {
			return nil, fmt.Errorf("missing %s tag: %w", sig, ErrUnsupportedProfile)
		}
		c, err := readCurve(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sig, err)
		}
		curves[i] = c
	}

	m := mat.NewDense(3, 3, []float64{
		columns[0][0], columns[1][0], columns[2][0],
		columns[0][1], columns[1][1], columns[2][1],
		columns[0][2], columns[1][2], columns[2][2],
	})
	return &Profile{Name: "embedded", toXYZ: m, curves: curves}, nil
}

func readTagTable(data []byte) (map[string][]byte, error) {
	count := int(binary.BigEndian.Uint32(data[iccHeaderSize : iccHeaderSize+4]))
	table := iccHeaderSize + 4
	if count < 0 || table+count*12 > len(data) {
		return nil, fmt.Errorf("tag table: %w", ErrInvalidProfile)
	}

	tags := make(map[string][]byte, count)
	for i := 0; i < count; i++ {
		entry := data[table+i*12 : table+i*12+12]
		sig := string(entry[0:4])
		offset := int(binary.BigEndian.Uint32(entry[4:8]))
		size := int(binary.BigEndian.Uint32(entry[8:12]))
		if offset < 0 || size < 0 || offset+size > len(data) {
			return nil, fmt.Errorf("tag %s out of bounds: %w", sig, ErrInvalidProfile)
		}
		tags[sig] = data[offset : offset+size]
	}
	return tags, nil
}

func readXYZ(body []byte) ([3]float64, error) {
	if len(body) < 20 || string(body[0:4]) != "XYZ " {
		return [3]float64{}, ErrInvalidProfile
	}
	return [3]float64{
		s15Fixed16(body[8:12]),
		s15Fixed16(body[12:16]),
		s15Fixed16(body[16:20]),
	}, nil
}

func readCurve(body []byte) (Curve, error) {
	if len(body) < 12 {
		return nil, ErrInvalidProfile
	}
	switch string(body[0:4]) {
	case "curv":
		n := int(binary.BigEndian.Uint32(body[8:12]))
		if len(body) < 12+2*n {
			return nil, ErrInvalidProfile
		}
		switch n {
		case 0:
			return gammaCurve(1), nil
		case 1:
			return gammaCurve(float64(binary.BigEndian.Uint16(body[12:14])) / 256), nil
		}
		table := make(tableCurve, n)
		for i := range table {
			table[i] = float64(binary.BigEndian.Uint16(body[12+2*i:14+2*i])) / 65535
		}
		return table, nil
	case "para":
		kind := int(binary.BigEndian.Uint16(body[8:10]))
		counts := []int{1, 3, 4, 5, 7}
		if kind < 0 || kind >= len(counts) || len(body) < 12+4*counts[kind] {
			return nil, fmt.Errorf("parametric curve type %d: %w", kind, ErrUnsupportedProfile)
		}
		var params [7]float64
		for i := 0; i < counts[kind]; i++ {
			params[i] = s15Fixed16(body[12+4*i : 16+4*i])
		}
		return parametricCurve{
			kind: kind,
			g:    params[0],
			a:    params[1],
			b:    params[2],
			c:    params[3],
			d:    params[4],
			e:    params[5],
			f:    params[6],
		}, nil
	default:
		return nil, fmt.Errorf("curve type %q: %w", body[0:4], ErrUnsupportedProfile)
	}
}

func s15Fixed16(b []byte) float64 {
	return float64(int32(binary.BigEndian.Uint32(b))) / 65536
}

// Equal reports whether two profiles describe the same space within the
// precision of ICC fixed-point values.
func (p *Profile) Equal(other *Profile) bool {
	if p == nil || other == nil {
		return p == other
	}
	if !mat.EqualApprox(p.toXYZ, other.toXYZ, 2e-3) {
		return false
	}
	for i := range p.curves {
		for _, v := range []float64{0.05, 0.25, 0.5, 0.75, 0.95} {
			if math.Abs(p.curves[i].Linear(v)-other.curves[i].Linear(v)) > 2e-3 {
				return false
			}
		}
	}
	return true
}
