// Package transform turns a decoded grid into the point-list payload served
// to map frontends: pick the reflectivity variable, downsample by a fixed
// stride, drop sentinel values, and normalize longitudes.
package transform

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/radarweather/radar-service/internal/grid"
	"github.com/radarweather/radar-service/internal/models"
)

// ErrNoVariables is returned when the decoded set carries no data variables.
var ErrNoVariables = errors.New("decoded grid has no data variables")

// nameMatchers select the reflectivity variable. Matching is case-sensitive:
// "DZ" is the radar community's reflectivity abbreviation and appears
// uppercase in product names.
var nameMatchers = []string{"Reflectivity", "DZ"}

// Config holds transformation parameters.
type Config struct {
	// Stride samples every Nth cell along both axes. 20 cuts the payload
	// ~400x, coarse enough for map rendering and kind to the wire.
	Stride int
	// Threshold excludes sentinel values: points survive only when strictly
	// greater. Nil means the -50 default, which drops -99/-999 missing-data
	// markers while keeping real low reflectivity readings. An explicit 0 is
	// honored, not treated as unset.
	Threshold *float64
	// LongName is the fallback long_name when the variable carries none.
	LongName string
}

// Transformer assembles RadarPayloads from decoded grid sets.
type Transformer struct {
	stride    int
	threshold float64
	longName  string
}

// New creates a Transformer, applying defaults for zero config values.
func New(cfg Config) *Transformer {
	if cfg.Stride <= 0 {
		cfg.Stride = 20
	}
	threshold := -50.0
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	if cfg.LongName == "" {
		cfg.LongName = "Reflectivity at Lowest Altitude"
	}
	return &Transformer{
		stride:    cfg.Stride,
		threshold: threshold,
		longName:  cfg.LongName,
	}
}

// Transform builds the payload from set. sourceURL becomes metadata.source.
//
// NaN cells are zeroed before the threshold filter runs, so they come through
// as value-0 points rather than being dropped. That ordering is deliberate
// and matches the upstream product behavior; do not swap the two steps.
func (t *Transformer) Transform(set *grid.Set, sourceURL string) (models.RadarPayload, error) {
	if set == nil || len(set.Vars) == 0 {
		return models.RadarPayload{}, fmt.Errorf("transform: %w", ErrNoVariables)
	}

	v := selectVariable(set.Vars)

	points := make([]models.RadarPoint, 0)
	for i := 0; i < len(v.Values) && i < len(v.Lats); i += t.stride {
		row := v.Values[i]
		for j := 0; j < len(row) && j < len(v.Lons); j += t.stride {
			val := row[j]
			if math.IsNaN(val) {
				val = 0
			}
			if val > t.threshold {
				points = append(points, models.RadarPoint{
					Lat:   v.Lats[i],
					Lon:   normalizeLongitude(v.Lons[j]),
					Value: val,
				})
			}
		}
	}

	timestamp := ""
	if set.Time != nil {
		timestamp = set.Time.UTC().Format(time.RFC3339)
	}

	return models.RadarPayload{
		Timestamp: timestamp,
		Metadata: models.Metadata{
			Units:    v.Attrs.Get("units", ""),
			LongName: v.Attrs.Get("long_name", t.longName),
			Source:   sourceURL,
		},
		Points: points,
	}, nil
}

// selectVariable returns the first variable whose name contains a
// reflectivity marker, falling back to the first variable in file order.
func selectVariable(vars []grid.Variable) grid.Variable {
	for _, v := range vars {
		for _, marker := range nameMatchers {
			if strings.Contains(v.Name, marker) {
				return v
			}
		}
	}
	return vars[0]
}

// normalizeLongitude converts a [0, 360) longitude to [-180, 180).
func normalizeLongitude(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}
