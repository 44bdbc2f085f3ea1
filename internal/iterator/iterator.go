// Package iterator drives the outer strain-compatibility loop: given a
// motion and a profile, it repeatedly calls the propagator, extracts strain
// at each sub-layer's mid-height, and updates complex shear moduli until
// they converge or the iteration budget is exhausted.
//
// The three calculation modes the source expressed as a class hierarchy
// (AbstractCalculator -> AbstractIterativeCalculator -> {EquivalentLinear,
// FrequencyDependent}, plus a separate LinearElasticCalculator) are
// collapsed here into one tagged Mode dispatched by a single Iterator.
package iterator

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/PlatypusBytes/GoShake/internal/motion"
	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/internal/propagator"
	"github.com/PlatypusBytes/GoShake/pkg/numerics"
	"github.com/PlatypusBytes/GoShake/pkg/units"
)

// Kind selects which strain-compatibility scheme a Mode uses.
type Kind int

const (
	// LinearElastic runs exactly one propagation pass at each sub-layer's
	// initial properties and never updates them.
	LinearElastic Kind = iota
	// EQL converges a single frequency-independent (G, ξ) per layer from an
	// effective strain.
	EQL
	// FDM converges a (G, ξ) per layer and per frequency bin from the
	// strain spectrum shape.
	FDM
)

// Mode is the tagged union replacing the source's calculator class
// hierarchy: one Kind plus the parameters relevant to it.
type Mode struct {
	Kind Kind

	// StrainRatio is the EQL ratio of effective to peak strain, in
	// [0.45, 0.80]. Defaults to 0.65 if zero.
	StrainRatio float64

	// UseSmoothSpectrum selects the Kausel-Assimaki smoothed strain-shape
	// model for FDM; false uses the raw |velocity-strain-FAS| shape.
	UseSmoothSpectrum bool
}

// Status is the terminal state of a Run call.
type Status int

const (
	Converged Status = iota
	NotConverged
	Failed
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case NotConverged:
		return "not-converged"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureReason names why a Failed run stopped.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonPropagationFailed
	ReasonCancelled
)

// Result carries the outcome of one Iterator.Run call.
type Result struct {
	Status     Status
	Iterations int
	MaxError   float64
	Reason     FailureReason
	State      *propagator.State
	Err        error
}

// Iterator converges strain-compatible complex shear moduli for a
// (motion, profile) pair under a fixed Mode.
type Iterator struct {
	Mode              Mode
	MaxIterations     int
	ErrorTolerance    float64 // percent
	InputMotionType   propagator.MotionType
	Units             units.UnitSystem
}

// New builds an Iterator with the source's defaults (maxIterations=10,
// errorTolerance=2.0%, strainRatio=0.65, input motion type Within).
func New(mode Mode, u units.UnitSystem) *Iterator {
	if mode.StrainRatio == 0 {
		mode.StrainRatio = 0.65
	}
	return &Iterator{
		Mode:            mode,
		MaxIterations:   10,
		ErrorTolerance:  2.0,
		InputMotionType: propagator.Within,
		Units:           u,
	}
}

// Cancel is a cooperative flag observed between iterations and between
// sub-layer updates; the Driver sets it to stop a run early.
type Cancel struct {
	flag atomic.Bool
}

func (c *Cancel) Set()            { c.flag.Store(true) }
func (c *Cancel) Requested() bool { return c != nil && c.flag.Load() }

// Run executes the outer loop for the given motion and profile. On success
// the profile's sub-layers carry strain-compatible properties and
// result.State holds the last propagation. cancel may be nil.
func (it *Iterator) Run(m motion.Motion, p *profile.Profile, cancel *Cancel) *Result {
	freq := m.Freq()
	prop := propagator.New(p, it.Units)
	n := p.Count()

	shearMod := make([][]complex128, n+1)
	for i := range shearMod {
		shearMod[i] = make([]complex128, len(freq))
	}
	setBedrock(shearMod[n], p, freq)

	if it.Mode.Kind == LinearElastic {
		for i := 0; i < n; i++ {
			sl := p.SubLayers[i]
			gstar := numerics.ComplexShearModulus(sl.ShearMod, sl.Damping/100)
			for j := range freq {
				shearMod[i][j] = gstar
			}
		}
		state, err := prop.CalcWaves(shearMod, freq)
		if err != nil {
			return &Result{Status: Failed, Reason: ReasonPropagationFailed, Err: err}
		}
		return &Result{Status: Converged, Iterations: 1, State: state}
	}

	if err := it.estimateInitialStrains(m, p, prop, shearMod, freq); err != nil {
		return &Result{Status: Failed, Reason: ReasonPropagationFailed, Err: err}
	}

	var state *propagator.State
	maxError := 0.0
	iterations := 0
	for iterations = 0; iterations < it.MaxIterations; iterations++ {
		if cancel.Requested() {
			return &Result{Status: Failed, Reason: ReasonCancelled}
		}
		var err error
		state, err = prop.CalcWaves(shearMod, freq)
		if err != nil {
			return &Result{Status: Failed, Reason: ReasonPropagationFailed, Err: err}
		}

		maxError = 0.0
		for i := 0; i < n; i++ {
			if cancel.Requested() {
				return &Result{Status: Failed, Reason: ReasonCancelled}
			}
			sl := p.SubLayers[i]
			loc := profile.Location{Layer: i, Depth: sl.Thickness / 2}
			strainTf := prop.StrainTf(state, p.InputLocation, it.InputMotionType, loc)

			var uerr error
			switch it.Mode.Kind {
			case EQL:
				uerr = it.updateEQL(m, sl, strainTf, shearMod[i])
			case FDM:
				uerr = it.updateFDM(m, sl, strainTf, freq, shearMod[i])
			}
			if uerr != nil {
				return &Result{Status: Failed, Reason: ReasonPropagationFailed, Err: uerr}
			}
			if e := layerError(sl); e > maxError {
				maxError = e
			}
		}
		if maxError <= it.ErrorTolerance {
			return &Result{Status: Converged, Iterations: iterations + 1, MaxError: maxError, State: state}
		}
	}
	return &Result{Status: NotConverged, Iterations: iterations, MaxError: maxError, State: state}
}

func setBedrock(row []complex128, p *profile.Profile, freq []float64) {
	gstar := numerics.ComplexShearModulus(p.Bedrock.ShearMod(), p.Bedrock.Damping/100)
	for j := range freq {
		row[j] = gstar
	}
}

// layerError returns the maximum of relative shear-modulus change and
// relative damping change between consecutive iterations, in percent.
func layerError(sl *profile.SubLayer) float64 {
	eG := relError(sl.ShearMod, sl.PrevShearMod)
	eD := relError(sl.Damping, sl.PrevDamping)
	if eG > eD {
		sl.ErrShearMod, sl.ErrDamping = eG, eD
		return eG
	}
	sl.ErrShearMod, sl.ErrDamping = eG, eD
	return eD
}

func relError(value, reference float64) float64 {
	if reference == 0 {
		return 100
	}
	d := value - reference
	if d < 0 {
		d = -d
	}
	return 100 * d / absF(reference)
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// estimateInitialStrains dispatches to the mode-specific initial-strain
// estimator, populating shearMod for every sub-layer row.
func (it *Iterator) estimateInitialStrains(m motion.Motion, p *profile.Profile, prop *propagator.Propagator, shearMod [][]complex128, freq []float64) error {
	switch it.Mode.Kind {
	case EQL:
		pgv := m.PGV()
		for i, sl := range p.SubLayers {
			vs := sl.ShearVel()
			initialStrain := 0.0
			// PGV and Vs are both in the unit system's length/time units;
			// the ratio is used without further unit conversion.
			if vs > 0 {
				initialStrain = pgv / vs
			}
			modRatio, dampingPct := sl.Soil.Curves.Interp(initialStrain)
			g := modRatio * sl.Soil.InitialShearMod()
			gstar := numerics.ComplexShearModulus(g, dampingPct/100)
			for j := range freq {
				shearMod[i][j] = gstar
			}
		}
		return nil
	case FDM:
		// Run a full EQL pass first and adopt its final effective strains.
		eqlMode := Mode{Kind: EQL, StrainRatio: it.Mode.StrainRatio}
		eqlIter := New(eqlMode, it.Units)
		eqlIter.MaxIterations = it.MaxIterations
		eqlIter.ErrorTolerance = it.ErrorTolerance
		eqlIter.InputMotionType = it.InputMotionType
		res := eqlIter.Run(m, p, nil)
		if res.Status == Failed {
			if res.Err != nil {
				return res.Err
			}
			return fmt.Errorf("iterator: FDM initial-strain EQL pass failed")
		}
		for i, sl := range p.SubLayers {
			modRatio, dampingPct := sl.Soil.Curves.Interp(sl.EffStrain)
			g := modRatio * sl.Soil.InitialShearMod()
			gstar := numerics.ComplexShearModulus(g, dampingPct/100)
			for j := range freq {
				shearMod[i][j] = gstar
			}
		}
		return nil
	default:
		return fmt.Errorf("iterator: unsupported mode kind %d", it.Mode.Kind)
	}
}

// updateEQL applies the equivalent-linear update rule at sub-layer sl.
func (it *Iterator) updateEQL(m motion.Motion, sl *profile.SubLayer, strainTf []complex128, row []complex128) error {
	gammaMax := 100 * m.CalcMaxStrain(strainTf)
	if gammaMax <= 0 {
		return fmt.Errorf("iterator: non-positive peak strain at sub-layer")
	}
	sl.PrevShearMod = sl.ShearMod
	sl.PrevDamping = sl.Damping
	sl.MaxStrain = gammaMax
	sl.EffStrain = it.Mode.StrainRatio * gammaMax

	modRatio, dampingPct := sl.Soil.Curves.Interp(sl.EffStrain)
	sl.NormShearMod = modRatio
	sl.ShearMod = modRatio * sl.Soil.InitialShearMod()
	sl.Damping = dampingPct

	gstar := numerics.ComplexShearModulus(sl.ShearMod, sl.Damping/100)
	for j := range row {
		row[j] = gstar
	}
	return nil
}

// updateFDM applies the frequency-dependent update rule at sub-layer sl,
// using either the raw |velocity-strain-FAS| shape or the Kausel-Assimaki
// smoothed-shape model, selected by it.Mode.UseSmoothSpectrum.
func (it *Iterator) updateFDM(m motion.Motion, sl *profile.SubLayer, strainTf []complex128, freq []float64, row []complex128) error {
	gammaMax := 100 * m.CalcMaxStrain(strainTf)
	if gammaMax <= 0 {
		return fmt.Errorf("iterator: non-positive peak strain at sub-layer")
	}
	sl.PrevShearMod = sl.ShearMod
	sl.PrevDamping = sl.Damping
	sl.MaxStrain = gammaMax
	sl.EffStrain = gammaMax

	s := m.AbsFourierVel(strainTf) // |strainTf[j] * fourierVel[j]|

	var gammaPerFreq []float64
	if it.Mode.UseSmoothSpectrum {
		var err error
		gammaPerFreq, err = smoothStrainShape(freq, s, gammaMax)
		if err != nil {
			return err
		}
	} else {
		gammaPerFreq = rawStrainShape(s, gammaMax)
	}

	// Track representative (G, ξ) at the effective strain for bookkeeping
	// (error tracking, reporting), matching EQL's fields' meaning.
	modRatio, dampingPct := sl.Soil.Curves.Interp(sl.EffStrain)
	sl.NormShearMod = modRatio
	sl.ShearMod = modRatio * sl.Soil.InitialShearMod()
	sl.Damping = dampingPct

	for j, gamma := range gammaPerFreq {
		modRatio, dampingPct := sl.Soil.Curves.Interp(gamma)
		g := modRatio * sl.Soil.InitialShearMod()
		row[j] = numerics.ComplexShearModulus(g, dampingPct/100)
	}
	return nil
}

func rawStrainShape(s []float64, gammaMax float64) []float64 {
	sMax := numerics.MaxAbs(s)
	out := make([]float64, len(s))
	if sMax == 0 {
		for j := range out {
			out[j] = gammaMax
		}
		return out
	}
	for j, v := range s {
		out[j] = gammaMax * v / sMax
	}
	return out
}

// smoothStrainShape implements the Kausel & Assimaki (2002) smoothed
// strain-shape model: a frequency-weighted average strain f̄, an
// offset index where f crosses f̄, a 2-parameter least-squares fit of
// ln(S/S̄) against [-f/f̄, -ln(f/f̄)] for bins at or past the offset, and the
// elementwise strain ratio min(1, exp(-α f/f̄)/(f/f̄)^β) evaluated at every
// bin, matching the source's direct per-bin evaluation.
func smoothStrainShape(freq, s []float64, gammaMax float64) ([]float64, error) {
	n := len(freq)
	numerator := numerics.Trapz(freq, mul(freq, s))
	denominator := numerics.Trapz(freq, s)
	if denominator == 0 {
		return rawStrainShape(s, gammaMax), nil
	}
	fAvg := numerator / denominator

	offset := n - 1
	for j, f := range freq {
		if f >= fAvg {
			offset = j
			break
		}
	}
	sAvg := numerics.Trapz(freq[:offset+1], s[:offset+1])
	if fAvg != 0 {
		sAvg /= fAvg
	}
	if sAvg <= 0 {
		return rawStrainShape(s, gammaMax), nil
	}

	var model0, model1, data []float64
	for j := offset; j < n; j++ {
		if freq[j] == 0 || s[j] <= 0 {
			continue
		}
		ratio := freq[j] / fAvg
		model0 = append(model0, -ratio)
		model1 = append(model1, -logSafe(ratio))
		data = append(data, logSafe(s[j]/sAvg))
	}
	if len(data) < 2 {
		return rawStrainShape(s, gammaMax), nil
	}
	alpha, beta, err := numerics.FitTwoParameterLine(model0, model1, data)
	if err != nil {
		return rawStrainShape(s, gammaMax), nil
	}

	out := make([]float64, n)
	for j, f := range freq {
		var ratio float64
		if fAvg != 0 {
			ratio = f / fAvg
		}
		val := math.Min(1, expSafe(-alpha*ratio)/powSafe(ratio, beta))
		out[j] = gammaMax * val
	}
	return out, nil
}

func logSafe(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log(x)
}

func expSafe(x float64) float64 {
	return math.Exp(x)
}

func powSafe(x, p float64) float64 {
	if x <= 0 {
		return 1
	}
	return math.Pow(x, p)
}

func mul(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}
