// Package extract turns a converged (Propagator state, Motion, Profile)
// triple into named output vectors: profiles, transfer functions, time
// series, spectra. Every extractor is a pure function — it never mutates
// its inputs — keyed by an OutputKind plus per-kind metadata, replacing the
// source's AbstractOutput subclass hierarchy with a capability record.
package extract

import (
	"fmt"
	"math"

	"github.com/PlatypusBytes/GoShake/internal/motion"
	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/internal/propagator"
	"github.com/PlatypusBytes/GoShake/pkg/numerics"
	"github.com/PlatypusBytes/GoShake/pkg/units"
)

// AxisKind names the reference grid an output is indexed against.
type AxisKind int

const (
	AxisDepth AxisKind = iota
	AxisPeriod
	AxisFrequency
	AxisTime
)

// Kind enumerates the named outputs this package can extract.
type Kind int

const (
	PGAProfile Kind = iota
	MaxStrainProfile
	MaxStressProfile
	ResponseSpectrum
	AccelTransferFunction
	StrainTransferFunction
	AccelTimeSeries
	VelTimeSeries
	DispTimeSeries
	StressTimeSeries
	AriasIntensityProfile
	DissipatedEnergyProfile
	ModulusProfile
	DampingProfile
	InitialVelProfile
	FinalVelProfile
	StressReducCoeffProfile
	VerticalTotalStressProfile
	VerticalEffectiveStressProfile
	SpectralRatio
	FourierSpectrum
)

// Meta describes an output kind's shape: which axis it is indexed against,
// whether it needs a time-domain motion, and whether it is independent of
// the specific motion being analyzed.
type Meta struct {
	Kind              Kind
	Axis              AxisKind
	NeedsTime         bool
	MotionIndependent bool
}

var registry = map[Kind]Meta{
	PGAProfile:                     {PGAProfile, AxisDepth, false, false},
	MaxStrainProfile:               {MaxStrainProfile, AxisDepth, false, false},
	MaxStressProfile:               {MaxStressProfile, AxisDepth, false, false},
	ResponseSpectrum:               {ResponseSpectrum, AxisPeriod, false, false},
	AccelTransferFunction:          {AccelTransferFunction, AxisFrequency, false, true},
	StrainTransferFunction:         {StrainTransferFunction, AxisFrequency, false, true},
	AccelTimeSeries:                {AccelTimeSeries, AxisTime, true, false},
	VelTimeSeries:                  {VelTimeSeries, AxisTime, true, false},
	DispTimeSeries:                 {DispTimeSeries, AxisTime, true, false},
	StressTimeSeries:               {StressTimeSeries, AxisTime, true, false},
	AriasIntensityProfile:          {AriasIntensityProfile, AxisDepth, true, false},
	DissipatedEnergyProfile:        {DissipatedEnergyProfile, AxisDepth, true, false},
	ModulusProfile:                 {ModulusProfile, AxisDepth, false, false},
	DampingProfile:                 {DampingProfile, AxisDepth, false, false},
	InitialVelProfile:              {InitialVelProfile, AxisDepth, false, true},
	FinalVelProfile:                {FinalVelProfile, AxisDepth, false, false},
	StressReducCoeffProfile:        {StressReducCoeffProfile, AxisDepth, false, false},
	VerticalTotalStressProfile:     {VerticalTotalStressProfile, AxisDepth, false, true},
	VerticalEffectiveStressProfile: {VerticalEffectiveStressProfile, AxisDepth, false, true},
	SpectralRatio:                  {SpectralRatio, AxisPeriod, false, false},
	FourierSpectrum:                {FourierSpectrum, AxisFrequency, false, true},
}

// MetaOf returns the registered metadata for a Kind.
func MetaOf(k Kind) Meta { return registry[k] }

// Context carries everything an extractor needs: the converged propagation
// state, the motion and profile it came from, and the extractor-specific
// parameters (periods, damping, a second location for spectral ratios).
type Context struct {
	Units         units.UnitSystem
	Profile       *profile.Profile
	Motion        motion.Motion
	Prop          *propagator.Propagator
	State         *propagator.State
	InputType     propagator.MotionType
	OutputType    propagator.MotionType // motion type at sub-surface depths; Outcrop always used at the free surface
	Periods       []float64
	Damping       float64
	Location      profile.Location // observation point for single-point outputs; zero value defaults to the first sub-layer's mid-depth
	SecondaryLoc  profile.Location // SpectralRatio's second location
	SecondaryType propagator.MotionType
}

// observationLocation resolves ctx.Location, defaulting an unset (zero-value)
// location to the first sub-layer's mid-depth.
func observationLocation(ctx Context) profile.Location {
	if ctx.Location.Layer != 0 || ctx.Location.Depth != 0 {
		return ctx.Location
	}
	return ctx.Profile.SubLayers[0].MidDepth(0)
}

// observationSubLayer returns the sub-layer a Location falls in, clamped to
// the profile's sub-layer range (bedrock locations clamp to the last layer).
func observationSubLayer(p *profile.Profile, loc profile.Location) *profile.SubLayer {
	i := loc.Layer
	if i >= len(p.SubLayers) {
		i = len(p.SubLayers) - 1
	}
	if i < 0 {
		i = 0
	}
	return p.SubLayers[i]
}

// Result is an extractor's output: a reference axis (depth/period/frequency/
// time) and the corresponding data vector.
type Result struct {
	Ref  []float64
	Data []float64
}

// depthLocations returns one Location per reference depth: the free
// surface, each sub-layer top, and the bedrock surface, plus the matching
// depth values for the Ref axis.
func depthLocations(p *profile.Profile) ([]profile.Location, []float64) {
	n := p.Count()
	locs := make([]profile.Location, n+1)
	depths := make([]float64, n+1)
	cum := 0.0
	for i := 0; i < n; i++ {
		locs[i] = profile.Location{Layer: i, Depth: 0}
		depths[i] = cum
		cum += p.SubLayers[i].Thickness
	}
	locs[n] = profile.Location{Layer: n, Depth: 0}
	depths[n] = cum
	return locs, depths
}

// Extract dispatches to the extractor registered for kind.
func Extract(kind Kind, ctx Context) (Result, error) {
	switch kind {
	case PGAProfile:
		return extractPGAProfile(ctx)
	case MaxStrainProfile:
		return extractMaxStrainProfile(ctx)
	case MaxStressProfile:
		return extractMaxStressProfile(ctx)
	case ResponseSpectrum:
		return extractResponseSpectrum(ctx)
	case AccelTransferFunction:
		return extractAccelTransferFunction(ctx)
	case StrainTransferFunction:
		return extractStrainTransferFunction(ctx)
	case AccelTimeSeries:
		return extractAccelTimeSeries(ctx)
	case VelTimeSeries:
		return extractVelTimeSeries(ctx)
	case DispTimeSeries:
		return extractDispTimeSeries(ctx)
	case StressTimeSeries:
		return extractStressTimeSeries(ctx)
	case AriasIntensityProfile:
		return extractAriasIntensity(ctx)
	case DissipatedEnergyProfile:
		return extractDissipatedEnergy(ctx)
	case ModulusProfile:
		return extractModulusProfile(ctx)
	case DampingProfile:
		return extractDampingProfile(ctx)
	case InitialVelProfile:
		return extractInitialVelProfile(ctx)
	case FinalVelProfile:
		return extractFinalVelProfile(ctx)
	case StressReducCoeffProfile:
		return extractStressReducCoeffProfile(ctx)
	case VerticalTotalStressProfile:
		return extractVerticalStressProfile(ctx, false)
	case VerticalEffectiveStressProfile:
		return extractVerticalStressProfile(ctx, true)
	case SpectralRatio:
		return extractSpectralRatio(ctx)
	case FourierSpectrum:
		return extractFourierSpectrum(ctx)
	default:
		return Result{}, fmt.Errorf("extract: unknown output kind %d", kind)
	}
}

func outputTypeAt(ctx Context, depth float64) propagator.MotionType {
	if depth == 0 {
		return propagator.Outcrop
	}
	return ctx.OutputType
}

func extractPGAProfile(ctx Context) (Result, error) {
	locs, depths := depthLocations(ctx.Profile)
	data := make([]float64, len(locs))
	for i, loc := range locs {
		tf := ctx.State.AccelTf(ctx.Profile.InputLocation, ctx.InputType, loc, outputTypeAt(ctx, depths[i]))
		data[i] = ctx.Motion.Max(tf)
	}
	return Result{Ref: depths, Data: data}, nil
}

// appendExtrapolated prepends 0 at the surface and appends a linearly
// extrapolated value at the bedrock surface (using the slope of the last
// two sub-layer samples), clamped to a minimum positive value. depths is the
// matching Ref axis from profileDepths (n+2 entries).
func appendExtrapolated(perLayer []float64, depths []float64) []float64 {
	n := len(perLayer)
	out := make([]float64, n+2)
	copy(out[1:], perLayer)
	out[0] = 0
	if n >= 2 {
		slope := (perLayer[n-1] - perLayer[n-2]) / (depths[n] - depths[n-1])
		extrapolated := perLayer[n-1] + slope*(depths[n+1]-depths[n])
		if extrapolated < math.SmallestNonzeroFloat64 {
			extrapolated = math.SmallestNonzeroFloat64
		}
		out[n+1] = extrapolated
	} else if n == 1 {
		out[n+1] = perLayer[0]
	}
	return out
}

func midDepths(p *profile.Profile) []float64 {
	out := make([]float64, p.Count())
	cum := 0.0
	for i, sl := range p.SubLayers {
		out[i] = cum + sl.Thickness/2
		cum += sl.Thickness
	}
	return out
}

// profileDepths returns the Ref axis for per-sub-layer profiles: 0 at the
// surface, each sub-layer's mid-depth, and the bedrock-surface depth.
func profileDepths(p *profile.Profile) []float64 {
	_, bounds := depthLocations(p)
	out := append([]float64{0}, midDepths(p)...)
	return append(out, bounds[len(bounds)-1])
}

func extractMaxStrainProfile(ctx Context) (Result, error) {
	n := ctx.Profile.Count()
	perLayer := make([]float64, n)
	for i, sl := range ctx.Profile.SubLayers {
		perLayer[i] = sl.MaxStrain
	}
	depths := profileDepths(ctx.Profile)
	return Result{Ref: depths, Data: appendExtrapolated(perLayer, depths)}, nil
}

func extractMaxStressProfile(ctx Context) (Result, error) {
	n := ctx.Profile.Count()
	perLayer := make([]float64, n)
	for i, sl := range ctx.Profile.SubLayers {
		perLayer[i] = sl.MaxStrain / 100 * sl.ShearMod
	}
	depths := profileDepths(ctx.Profile)
	return Result{Ref: depths, Data: appendExtrapolated(perLayer, depths)}, nil
}

func extractResponseSpectrum(ctx Context) (Result, error) {
	tf := ctx.State.AccelTf(ctx.Profile.InputLocation, ctx.InputType, ctx.Profile.InputLocation, propagator.Outcrop)
	data := ctx.Motion.ComputeSa(ctx.Periods, ctx.Damping, tf)
	return Result{Ref: ctx.Periods, Data: data}, nil
}

// smooth5 applies a 5-bin centered moving average, used to de-noise
// transfer-function magnitudes derived from time-series motions.
func smooth5(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo, hi := i-2, i+2
		if lo < 0 {
			lo = 0
		}
		if hi >= len(x) {
			hi = len(x) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += x[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

func extractAccelTransferFunction(ctx Context) (Result, error) {
	tf := ctx.State.AccelTf(ctx.Profile.InputLocation, ctx.InputType, ctx.Profile.InputLocation, propagator.Outcrop)
	mag := numerics.AbsComplex(tf)
	if _, isTs := ctx.Motion.(*motion.TimeSeriesMotion); isTs {
		mag = smooth5(mag)
	}
	return Result{Ref: ctx.Motion.Freq(), Data: mag}, nil
}

func extractStrainTransferFunction(ctx Context) (Result, error) {
	loc := observationLocation(ctx)
	tf := ctx.Prop.StrainTf(ctx.State, ctx.Profile.InputLocation, ctx.InputType, loc)
	mag := numerics.AbsComplex(tf)
	if _, isTs := ctx.Motion.(*motion.TimeSeriesMotion); isTs {
		mag = smooth5(mag)
	}
	return Result{Ref: ctx.Motion.Freq(), Data: mag}, nil
}

func timeAxis(dt float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * dt
	}
	return out
}

func extractAccelTimeSeries(ctx Context) (Result, error) {
	ts, ok := ctx.Motion.(*motion.TimeSeriesMotion)
	if !ok {
		return Result{}, fmt.Errorf("extract: accel time series needs a time-series motion")
	}
	tf := ctx.State.AccelTf(ctx.Profile.InputLocation, ctx.InputType, ctx.Profile.InputLocation, propagator.Outcrop)
	data := ts.AccelTimeSeries(tf)
	return Result{Ref: timeAxis(ts.Dt(), len(data)), Data: data}, nil
}

func extractVelTimeSeries(ctx Context) (Result, error) {
	ts, ok := ctx.Motion.(*motion.TimeSeriesMotion)
	if !ok {
		return Result{}, fmt.Errorf("extract: velocity time series needs a time-series motion")
	}
	tf := ctx.State.AccelTf(ctx.Profile.InputLocation, ctx.InputType, ctx.Profile.InputLocation, propagator.Outcrop)
	data := ts.VelTimeSeries(tf)
	return Result{Ref: timeAxis(ts.Dt(), len(data)), Data: data}, nil
}

func extractDispTimeSeries(ctx Context) (Result, error) {
	ts, ok := ctx.Motion.(*motion.TimeSeriesMotion)
	if !ok {
		return Result{}, fmt.Errorf("extract: displacement time series needs a time-series motion")
	}
	tf := ctx.State.AccelTf(ctx.Profile.InputLocation, ctx.InputType, ctx.Profile.InputLocation, propagator.Outcrop)
	data := ts.DispTimeSeries(tf)
	return Result{Ref: timeAxis(ts.Dt(), len(data)), Data: data}, nil
}

func extractStressTimeSeries(ctx Context) (Result, error) {
	ts, ok := ctx.Motion.(*motion.TimeSeriesMotion)
	if !ok {
		return Result{}, fmt.Errorf("extract: stress time series needs a time-series motion")
	}
	loc := observationLocation(ctx)
	sl := observationSubLayer(ctx.Profile, loc)
	strainTf := ctx.Prop.StrainTf(ctx.State, ctx.Profile.InputLocation, ctx.InputType, loc)
	strain := ts.StrainTimeSeries(strainTf, true)
	data := make([]float64, len(strain))
	for i, g := range strain {
		data[i] = g * sl.ShearMod
	}
	return Result{Ref: timeAxis(ts.Dt(), len(data)), Data: data}, nil
}

func extractAriasIntensity(ctx Context) (Result, error) {
	ts, ok := ctx.Motion.(*motion.TimeSeriesMotion)
	if !ok {
		return Result{}, fmt.Errorf("extract: Arias intensity needs a time-series motion")
	}
	locs, depths := depthLocations(ctx.Profile)
	data := make([]float64, len(locs))
	for i, loc := range locs {
		tf := ctx.State.AccelTf(ctx.Profile.InputLocation, ctx.InputType, loc, outputTypeAt(ctx, depths[i]))
		series := ts.AriasIntensity(tf)
		data[i] = series[len(series)-1]
	}
	return Result{Ref: depths, Data: data}, nil
}

// extractDissipatedEnergy computes the dissipated energy per sub-layer,
// ∮ τ dγ, summed with the trapezoidal rule over the realized strain and
// stress histories.
func extractDissipatedEnergy(ctx Context) (Result, error) {
	ts, ok := ctx.Motion.(*motion.TimeSeriesMotion)
	if !ok {
		return Result{}, fmt.Errorf("extract: dissipated energy needs a time-series motion")
	}
	n := ctx.Profile.Count()
	perLayer := make([]float64, n)
	for i, sl := range ctx.Profile.SubLayers {
		mid := sl.MidDepth(i)
		strainTf := ctx.Prop.StrainTf(ctx.State, ctx.Profile.InputLocation, ctx.InputType, mid)
		strain := ts.StrainTimeSeries(strainTf, true)
		stress := make([]float64, len(strain))
		for k, g := range strain {
			stress[k] = g * sl.ShearMod
		}
		energy := 0.0
		for k := 1; k < len(strain); k++ {
			energy += 0.5 * (stress[k] + stress[k-1]) * (strain[k] - strain[k-1])
		}
		perLayer[i] = math.Abs(energy)
	}
	depths := midDepths(ctx.Profile)
	return Result{Ref: depths, Data: perLayer}, nil
}

func extractModulusProfile(ctx Context) (Result, error) {
	n := ctx.Profile.Count()
	data := make([]float64, n)
	for i, sl := range ctx.Profile.SubLayers {
		data[i] = sl.NormShearMod
	}
	return Result{Ref: midDepths(ctx.Profile), Data: data}, nil
}

func extractDampingProfile(ctx Context) (Result, error) {
	n := ctx.Profile.Count()
	data := make([]float64, n)
	for i, sl := range ctx.Profile.SubLayers {
		data[i] = sl.Damping
	}
	return Result{Ref: midDepths(ctx.Profile), Data: data}, nil
}

func extractInitialVelProfile(ctx Context) (Result, error) {
	n := ctx.Profile.Count()
	data := make([]float64, n)
	for i, sl := range ctx.Profile.SubLayers {
		data[i] = sl.Soil.InitialShearVel
	}
	return Result{Ref: midDepths(ctx.Profile), Data: data}, nil
}

func extractFinalVelProfile(ctx Context) (Result, error) {
	n := ctx.Profile.Count()
	data := make([]float64, n)
	for i, sl := range ctx.Profile.SubLayers {
		data[i] = sl.ShearVel()
	}
	return Result{Ref: midDepths(ctx.Profile), Data: data}, nil
}

func extractStressReducCoeffProfile(ctx Context) (Result, error) {
	n := ctx.Profile.Count()
	data := make([]float64, n)
	for i, sl := range ctx.Profile.SubLayers {
		rigid := sl.MaxStrain / 100 * sl.Soil.InitialShearMod()
		if rigid == 0 {
			data[i] = 1
			continue
		}
		data[i] = (sl.MaxStrain / 100 * sl.ShearMod) / rigid
	}
	return Result{Ref: midDepths(ctx.Profile), Data: data}, nil
}

func extractVerticalStressProfile(ctx Context, effective bool) (Result, error) {
	n := ctx.Profile.Count()
	data := make([]float64, n)
	for i, sl := range ctx.Profile.SubLayers {
		if effective {
			data[i] = sl.VEffectiveStress
		} else {
			data[i] = sl.VTotalStress
		}
	}
	return Result{Ref: midDepths(ctx.Profile), Data: data}, nil
}

func extractSpectralRatio(ctx Context) (Result, error) {
	tfPrimary := ctx.State.AccelTf(ctx.Profile.InputLocation, ctx.InputType, ctx.Profile.InputLocation, propagator.Outcrop)
	tfSecondary := ctx.State.AccelTf(ctx.Profile.InputLocation, ctx.InputType, ctx.SecondaryLoc, ctx.SecondaryType)
	saPrimary := ctx.Motion.ComputeSa(ctx.Periods, ctx.Damping, tfPrimary)
	saSecondary := ctx.Motion.ComputeSa(ctx.Periods, ctx.Damping, tfSecondary)
	data := make([]float64, len(ctx.Periods))
	for i := range data {
		if saSecondary[i] == 0 {
			data[i] = 0
			continue
		}
		data[i] = saPrimary[i] / saSecondary[i]
	}
	return Result{Ref: ctx.Periods, Data: data}, nil
}

func extractFourierSpectrum(ctx Context) (Result, error) {
	data := ctx.Motion.AbsFourierAcc(nil)
	return Result{Ref: ctx.Motion.Freq(), Data: data}, nil
}
