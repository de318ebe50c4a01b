package grid

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nilsmagnus/grib/griblib"
)

// GRIB2Decoder decodes GRIB2 files on a regular lat/lon grid (template 3.0),
// which is what MRMS 2-D products ship on.
type GRIB2Decoder struct{}

// NewGRIB2Decoder creates a GRIB2Decoder.
func NewGRIB2Decoder() *GRIB2Decoder {
	return &GRIB2Decoder{}
}

// Decode parses every message in the file into a Variable, in file order.
// The reference time of the first message becomes the set time.
func (d *GRIB2Decoder) Decode(ctx context.Context, path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open grid file: %w", ErrDecode, err)
	}
	defer f.Close()

	messages, err := griblib.ReadMessages(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: file contains no messages", ErrDecode)
	}

	set := &Set{}
	for idx, m := range messages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		v, err := messageToVariable(m)
		if err != nil {
			return nil, fmt.Errorf("%w: message %d: %w", ErrDecode, idx, err)
		}
		set.Vars = append(set.Vars, v)

		if idx == 0 {
			ref := referenceTime(m.Section1.ReferenceTime)
			set.Time = &ref
		}
	}
	return set, nil
}

// messageToVariable reshapes one message's flat data into a row-major grid
// with axes derived from the grid definition corners.
func messageToVariable(m *griblib.Message) (Variable, error) {
	def, ok := m.Section3.Definition.(*griblib.Grid0)
	if !ok {
		return Variable{}, fmt.Errorf("unsupported grid definition template %d", m.Section3.TemplateNumber)
	}

	ni := int(def.Ni)
	nj := int(def.Nj)
	if ni <= 0 || nj <= 0 {
		return Variable{}, fmt.Errorf("degenerate grid %dx%d", ni, nj)
	}
	data := m.Section7.Data
	if len(data) < ni*nj {
		return Variable{}, fmt.Errorf("data length %d short of %dx%d grid", len(data), nj, ni)
	}

	// Corner coordinates are microdegrees. Deriving the step from the corners
	// rather than the increment fields sidesteps scanning-mode sign handling.
	la1 := float64(def.La1) / 1e6
	la2 := float64(def.La2) / 1e6
	lo1 := float64(def.Lo1) / 1e6
	lo2 := float64(def.Lo2) / 1e6

	lats := axis(la1, la2, nj)
	lons := axis(lo1, lo2, ni)

	values := make([][]float64, nj)
	for j := 0; j < nj; j++ {
		row := make([]float64, ni)
		base := j * ni
		for i := 0; i < ni; i++ {
			row[i] = float64(data[base+i])
		}
		values[j] = row
	}

	name, units := productIdentity(int(m.Section0.Discipline),
		int(m.Section4.ProductDefinitionTemplate.ParameterCategory),
		int(m.Section4.ProductDefinitionTemplate.ParameterNumber))
	return Variable{
		Name:   name,
		Attrs:  Attributes{"units": units},
		Lats:   lats,
		Lons:   lons,
		Values: values,
	}, nil
}

// referenceTime converts the section 1 calendar fields to a UTC time.Time.
// GRIB2 reference times carry no zone; the convention is UTC.
func referenceTime(rt griblib.Time) time.Time {
	return time.Date(int(rt.Year), time.Month(rt.Month), int(rt.Day),
		int(rt.Hour), int(rt.Minute), int(rt.Second), 0, time.UTC)
}

// axis builds n evenly spaced coordinates from first to last inclusive.
func axis(first, last float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = first
		return out
	}
	step := (last - first) / float64(n-1)
	for k := 0; k < n; k++ {
		out[k] = first + float64(k)*step
	}
	return out
}

// productIdentity maps GRIB2 parameter coordinates to a variable name and
// units. Discipline 209 is the NOAA MRMS local table, where the 2-D mosaic
// products are reflectivities; discipline 0 category 16 is the standard
// radar-reflectivity category.
func productIdentity(discipline, category, number int) (name, units string) {
	switch {
	case discipline == 209:
		return fmt.Sprintf("DZ_MRMS_%d_%d", category, number), "dBZ"
	case discipline == 0 && category == 16:
		return fmt.Sprintf("Reflectivity_%d", number), "dB"
	default:
		return fmt.Sprintf("VAR_%d_%d_%d", discipline, category, number), ""
	}
}
