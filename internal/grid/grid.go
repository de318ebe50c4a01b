// Package grid models a decoded coordinate grid and the decoding capability
// the pipeline depends on. The binary format itself is an external concern
// behind the Decoder interface, so tests run on synthetic grids.
package grid

import (
	"context"
	"errors"
	"time"
)

// ErrDecode marks a grid file the decoder cannot parse.
var ErrDecode = errors.New("grid decode failed")

// Attributes is variable metadata (units, long_name). Missing keys resolve to
// an explicit per-field default rather than failing.
type Attributes map[string]string

// Get returns the value for key, or def when the key is absent or empty.
func (a Attributes) Get(key, def string) string {
	if a == nil {
		return def
	}
	if v, ok := a[key]; ok && v != "" {
		return v
	}
	return def
}

// Variable is a named 2-D data array with its two coordinate axes.
// Values is row-major: Values[i][j] sits at (Lats[i], Lons[j]).
type Variable struct {
	Name   string
	Attrs  Attributes
	Lats   []float64
	Lons   []float64
	Values [][]float64
}

// Set is the decoded content of one grid file. Vars preserves the file's
// variable order; Time is the product reference time when the file carries one.
type Set struct {
	Vars []Variable
	Time *time.Time
}

// Decoder parses a decompressed grid file.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Set, error)
}
