// Package project loads a serialized project document — the external JSON
// object named in spec §6 — and turns it into the in-memory structures the
// core consumes: a Profile, a list of Motions, an iteration Mode, and the
// enabled output specifications. JSON parsing itself is external to the
// core; this package is the thin adapter.
package project

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PlatypusBytes/GoShake/internal/driver"
	"github.com/PlatypusBytes/GoShake/internal/extract"
	"github.com/PlatypusBytes/GoShake/internal/iterator"
	"github.com/PlatypusBytes/GoShake/internal/motion"
	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/internal/propagator"
	"github.com/PlatypusBytes/GoShake/pkg/numerics"
	"github.com/PlatypusBytes/GoShake/pkg/units"
)

// Document is the on-disk JSON shape of a project file.
type Document struct {
	Iterator struct {
		Type              string  `json:"type"` // "linear_elastic", "eql", "fdm"
		MaxIterations     int     `json:"max_iterations"`
		ErrorTolerance    float64 `json:"error_tolerance_pct"`
		StrainRatio       float64 `json:"strain_ratio"`
		UseSmoothSpectrum bool    `json:"use_smooth_spectrum"`
	} `json:"iterator"`

	Units struct {
		Gravity float64 `json:"gravity"`
		Length  string  `json:"length_unit"`
	} `json:"units"`

	Profile struct {
		SubLayers []struct {
			Thickness       float64        `json:"thickness"`
			Density         float64        `json:"density"`
			ShearVel        float64        `json:"shear_vel"`
			Damping         float64        `json:"damping_pct"`
			DampingMin      float64        `json:"damping_min_pct"`
			StrainPct       []float64      `json:"curve_strain_pct"`
			ModulusRatio    []float64      `json:"curve_mod_ratio"`
			DampingCurvePct []float64      `json:"curve_damping_pct"`
		} `json:"sub_layers"`
		Bedrock struct {
			Density  float64 `json:"density"`
			ShearVel float64 `json:"shear_vel"`
			Damping  float64 `json:"damping_pct"`
		} `json:"bedrock"`
	} `json:"profile"`

	Motions []struct {
		Path        string  `json:"path"`
		HeaderLines int     `json:"header_lines"`
		DataColumn  int     `json:"data_column"`
		ColumnMajor bool    `json:"column_major"`
		Unit        string  `json:"unit"` // "g", "cm/s2", "in/s2"
		Scale       float64 `json:"scale"`
		Dt          float64 `json:"dt"`
	} `json:"motions"`

	Outputs []string `json:"outputs"` // names matching the Kind table in internal/extract

	// Location names the observation point single-point outputs
	// (strain_transfer_function, stress_time_series) report at. Left at its
	// zero value, those extractors default to the first sub-layer's
	// mid-depth.
	Location struct {
		Layer int     `json:"layer"`
		Depth float64 `json:"depth"`
	} `json:"location"`

	// SpectralRatio names the second location "spectral_ratio" is computed
	// against (the outcrop response at the profile's input location over
	// this location's response), only
	// consulted when "spectral_ratio" appears in Outputs.
	SpectralRatio struct {
		Layer int    `json:"layer"`
		Depth float64 `json:"depth"`
		Type  string  `json:"motion_type"` // "outcrop", "within", "incoming_only"
	} `json:"spectral_ratio"`
}

// Load reads and parses a project document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: reading %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("project: parsing %s: %w", path, err)
	}
	return &doc, nil
}

// BuildUnits constructs the UnitSystem the document specifies.
func (d *Document) BuildUnits() (units.UnitSystem, error) {
	length := units.Meters
	if d.Units.Length == "ft" {
		length = units.Feet
	}
	return units.New(d.Units.Gravity, length)
}

// BuildProfile discretizes the document's sub-layer and bedrock description
// into a profile.Profile.
func (d *Document) BuildProfile() (*profile.Profile, error) {
	if len(d.Profile.SubLayers) < 1 {
		return nil, fmt.Errorf("project: at least one soil layer is required")
	}
	subLayers := make([]*profile.SubLayer, len(d.Profile.SubLayers))
	depth := 0.0
	for i, sl := range d.Profile.SubLayers {
		curves, err := buildCurves(sl.StrainPct, sl.ModulusRatio, sl.DampingCurvePct, sl.Damping, sl.DampingMin)
		if err != nil {
			return nil, fmt.Errorf("project: sub-layer %d curves: %w", i, err)
		}
		soil := &profile.SoilLayer{
			Density:         sl.Density,
			InitialShearVel: sl.ShearVel,
			InitialDamping:  sl.Damping,
			Curves:          curves,
		}
		built, err := profile.NewSubLayer(sl.Thickness, depth, soil)
		if err != nil {
			return nil, fmt.Errorf("project: sub-layer %d: %w", i, err)
		}
		subLayers[i] = built
		depth += sl.Thickness
	}
	bedrock := profile.Bedrock{
		Density:  d.Profile.Bedrock.Density,
		ShearVel: d.Profile.Bedrock.ShearVel,
		Damping:  d.Profile.Bedrock.Damping,
	}
	return profile.New(subLayers, bedrock)
}

func numericsCurve(strainPct, value []float64) (numerics.LogStrainCurve, error) {
	return numerics.NewLogStrainCurve(strainPct, value)
}

func buildCurves(strainPct, modRatio, dampingPct []float64, initialDamping, dampingMin float64) (profile.NonlinearCurves, error) {
	if len(strainPct) == 0 {
		// Linear (non-degrading) material: flat curves at (1.0, initial damping).
		strainPct = []float64{1e-4, 10}
		modRatio = []float64{1, 1}
		dampingPct = []float64{initialDamping, initialDamping}
	}
	mod, err := numericsCurve(strainPct, modRatio)
	if err != nil {
		return profile.NonlinearCurves{}, err
	}
	damp, err := numericsCurve(strainPct, dampingPct)
	if err != nil {
		return profile.NonlinearCurves{}, err
	}
	return profile.NonlinearCurves{ModulusReduction: mod, Damping: damp, DampingMin: dampingMin}, nil
}

// BuildMotions loads every motion referenced by the document.
func (d *Document) BuildMotions(u units.UnitSystem) ([]motion.Motion, error) {
	if len(d.Motions) < 1 {
		return nil, fmt.Errorf("project: at least one enabled motion is required")
	}
	out := make([]motion.Motion, len(d.Motions))
	for i, spec := range d.Motions {
		f, err := os.Open(spec.Path)
		if err != nil {
			return nil, fmt.Errorf("project: opening motion %s: %w", spec.Path, err)
		}
		orientation := motion.RowMajor
		if spec.ColumnMajor {
			orientation = motion.ColumnMajor
		}
		layout := motion.Layout{
			HeaderLines: spec.HeaderLines,
			DataColumn:  spec.DataColumn,
			Orientation: orientation,
			Unit:        parseInputUnit(spec.Unit),
			Scale:       spec.Scale,
			Dt:          spec.Dt,
		}
		m, err := motion.LoadTimeSeries(u, f, layout)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("project: loading motion %s: %w", spec.Path, err)
		}
		out[i] = m
	}
	return out, nil
}

func parseMotionType(s string) propagator.MotionType {
	switch s {
	case "outcrop":
		return propagator.Outcrop
	case "incoming_only":
		return propagator.IncomingOnly
	default:
		return propagator.Within
	}
}

func parseInputUnit(s string) motion.InputUnit {
	switch s {
	case "cm/s2":
		return motion.CentimetersPerSecondSquared
	case "in/s2":
		return motion.InchesPerSecondSquared
	default:
		return motion.Gravity
	}
}

// outputKindByName maps the document's output names to extract.Kind.
var outputKindByName = map[string]extract.Kind{
	"pga_profile":                   extract.PGAProfile,
	"max_strain_profile":            extract.MaxStrainProfile,
	"max_stress_profile":            extract.MaxStressProfile,
	"response_spectrum":             extract.ResponseSpectrum,
	"accel_transfer_function":       extract.AccelTransferFunction,
	"strain_transfer_function":      extract.StrainTransferFunction,
	"accel_time_series":             extract.AccelTimeSeries,
	"vel_time_series":               extract.VelTimeSeries,
	"disp_time_series":              extract.DispTimeSeries,
	"stress_time_series":            extract.StressTimeSeries,
	"arias_intensity_profile":       extract.AriasIntensityProfile,
	"dissipated_energy_profile":     extract.DissipatedEnergyProfile,
	"modulus_profile":                extract.ModulusProfile,
	"damping_profile":                extract.DampingProfile,
	"initial_vel_profile":            extract.InitialVelProfile,
	"final_vel_profile":              extract.FinalVelProfile,
	"stress_reduc_coeff_profile":     extract.StressReducCoeffProfile,
	"vertical_total_stress_profile":  extract.VerticalTotalStressProfile,
	"vertical_effective_stress_profile": extract.VerticalEffectiveStressProfile,
	"spectral_ratio":                 extract.SpectralRatio,
	"fourier_spectrum":               extract.FourierSpectrum,
}

// lognormalOutputs names the outputs whose ensemble statistics are computed
// in log-space (spec §4.7).
var lognormalOutputs = map[extract.Kind]bool{
	extract.PGAProfile:              true,
	extract.MaxStrainProfile:        true,
	extract.MaxStressProfile:        true,
	extract.ResponseSpectrum:        true,
	extract.AccelTransferFunction:   true,
	extract.StrainTransferFunction:  true,
}

// BuildOutputs resolves the document's enabled output names into
// driver.OutputSpec values.
func (d *Document) BuildOutputs(periods []float64, damping float64) ([]driver.OutputSpec, error) {
	out := make([]driver.OutputSpec, 0, len(d.Outputs))
	for _, name := range d.Outputs {
		kind, ok := outputKindByName[name]
		if !ok {
			return nil, fmt.Errorf("project: unknown output %q", name)
		}
		spec := driver.OutputSpec{
			Kind:      kind,
			Periods:   periods,
			Damping:   damping,
			Location:  profile.Location{Layer: d.Location.Layer, Depth: d.Location.Depth},
			Lognormal: lognormalOutputs[kind],
		}
		if kind == extract.SpectralRatio {
			spec.SecondaryLoc = profile.Location{Layer: d.SpectralRatio.Layer, Depth: d.SpectralRatio.Depth}
			spec.SecondaryType = parseMotionType(d.SpectralRatio.Type)
		}
		out = append(out, spec)
	}
	return out, nil
}

// BuildMode constructs the iteration Mode the document specifies.
func (d *Document) BuildMode() (iterator.Mode, error) {
	switch d.Iterator.Type {
	case "linear_elastic":
		return iterator.Mode{Kind: iterator.LinearElastic}, nil
	case "eql":
		return iterator.Mode{Kind: iterator.EQL, StrainRatio: d.Iterator.StrainRatio}, nil
	case "fdm":
		return iterator.Mode{Kind: iterator.FDM, StrainRatio: d.Iterator.StrainRatio, UseSmoothSpectrum: d.Iterator.UseSmoothSpectrum}, nil
	default:
		return iterator.Mode{}, fmt.Errorf("project: unknown iterator type %q", d.Iterator.Type)
	}
}
