package motion

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PlatypusBytes/GoShake/pkg/units"
)

// InputUnit names the unit an acceleration record was recorded in, before
// it is normalized to g for use by TimeSeriesMotion.
type InputUnit int

const (
	Gravity InputUnit = iota
	CentimetersPerSecondSquared
	InchesPerSecondSquared
)

// scale returns the multiplier converting a value in unit u to g, given the
// active unit system's gravity (expressed in meters/s^2 equivalents for the
// cm/s^2 and in/s^2 cases).
func (u InputUnit) scale(gravityMetersPerSec2 float64) (float64, error) {
	switch u {
	case Gravity:
		return 1, nil
	case CentimetersPerSecondSquared:
		return 1.0 / (gravityMetersPerSec2 * 100), nil
	case InchesPerSecondSquared:
		return 1.0 / (gravityMetersPerSec2 * 39.3701), nil
	default:
		return 0, fmt.Errorf("motion: unknown input unit %d", u)
	}
}

// Layout describes a free-form text acceleration table: how many header
// lines to skip, which data column to read (for row-major tables) or which
// values are laid out column-wise, and the record's scaling.
type Layout struct {
	HeaderLines int
	DataColumn  int // 0-based column index, used when Orientation == RowMajor
	Orientation Orientation
	Unit        InputUnit
	Scale       float64 // additional multiplicative factor, applied after Unit conversion; 0 defaults to 1
	Dt          float64
}

// Orientation selects how multi-value lines are read.
type Orientation int

const (
	// RowMajor reads one value per line, at DataColumn.
	RowMajor Orientation = iota
	// ColumnMajor reads whitespace-separated values across each line,
	// concatenating all lines in order.
	ColumnMajor
)

// LoadTimeSeries reads a free-form text acceleration table per layout,
// normalizes it to g, and constructs a TimeSeriesMotion in the given unit
// system.
//
// The file format itself is external to the propagation core (spec §6); this
// loader is the thin adapter that turns it into the real sequence the core
// consumes.
func LoadTimeSeries(u units.UnitSystem, r io.Reader, layout Layout) (*TimeSeriesMotion, error) {
	if layout.Dt <= 0 {
		return nil, fmt.Errorf("motion: layout time step must be positive")
	}
	scale := layout.Scale
	if scale == 0 {
		scale = 1
	}
	gravityMetric := u.Gravity
	if u.Length == units.Feet {
		gravityMetric *= 0.3048
	}
	unitScale, err := layout.Unit.scale(gravityMetric)
	if err != nil {
		return nil, err
	}
	scale *= unitScale

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)

	var raw []float64
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= layout.HeaderLines {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch layout.Orientation {
		case RowMajor:
			if layout.DataColumn >= len(fields) {
				return nil, fmt.Errorf("motion: line %d has no column %d", lineNo, layout.DataColumn)
			}
			v, err := strconv.ParseFloat(fields[layout.DataColumn], 64)
			if err != nil {
				return nil, fmt.Errorf("motion: line %d: %w", lineNo, err)
			}
			raw = append(raw, v)
		case ColumnMajor:
			for _, f := range fields {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, fmt.Errorf("motion: line %d: %w", lineNo, err)
				}
				raw = append(raw, v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("motion: reading record: %w", err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("motion: record has fewer than 2 samples")
	}

	accelG := make([]float64, len(raw))
	for i, v := range raw {
		accelG[i] = v * scale
	}
	return NewTimeSeriesMotion(u, accelG, layout.Dt)
}
