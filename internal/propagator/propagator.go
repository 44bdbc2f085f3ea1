// Package propagator implements the frequency-domain SH-wave propagator:
// given complex shear moduli per sub-layer per frequency, it builds the
// up- and down-going wave amplitude pair at every interface and derives
// acceleration, strain and stress transfer functions between arbitrary
// locations.
//
// This is the hard middle of the engine; the formulas below are reproduced
// from the calculator this module was adapted from bit-exactly, including a
// numerator prefactor that looks suspicious (see StrainTf) but is kept as
// written rather than "corrected".
package propagator

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/pkg/units"
)

// MotionType describes how a motion at a Location is interpreted in terms
// of the up- and down-going wave pair.
type MotionType int

const (
	// Outcrop: free-surface amplification present; up- and down-going waves
	// are equal.
	Outcrop MotionType = iota
	// Within: both up- and down-going waves are present (in-column).
	Within
	// IncomingOnly: only the up-going wave.
	IncomingOnly
)

func (t MotionType) String() string {
	switch t {
	case Outcrop:
		return "outcrop"
	case Within:
		return "within"
	case IncomingOnly:
		return "incoming-only"
	default:
		return "unknown"
	}
}

// lowFreqThreshold is the angular-frequency-near-zero cutoff below which
// calcWaves skips propagation and leaves A = B = 1, avoiding a 0/0 division.
const lowFreqThreshold = 1e-6 // Hz

// State holds one iteration's complex wave field: shear modulus, wave
// number, and up/down amplitudes for every sub-layer (plus bedrock) at
// every one-sided frequency bin. Allocated once per iteration, discarded
// after extraction.
type State struct {
	Freq     []float64
	ShearMod [][]complex128 // [layer][freqBin], layer 0..L (L = bedrock)
	WaveNum  [][]complex128
	WaveA    [][]complex128
	WaveB    [][]complex128
}

// Propagator ties a Profile to a fixed unit system and computes wave
// propagation states against caller-supplied complex shear moduli.
type Propagator struct {
	profile *profile.Profile
	units   units.UnitSystem
}

// New builds a Propagator over the given profile and unit system.
func New(p *profile.Profile, u units.UnitSystem) *Propagator {
	return &Propagator{profile: p, units: u}
}

// CalcWaves propagates up/down wave amplitudes from the free surface (layer
// 0) down through the column given complex shear moduli per layer
// (len = sub-layer count + 1, last row is bedrock) per one-sided frequency
// bin. It returns an error if the recursion produces a non-finite amplitude
// anywhere, which the Iterator treats as a propagation failure.
func (p *Propagator) CalcWaves(shearMod [][]complex128, freq []float64) (*State, error) {
	n := p.profile.Count()
	if len(shearMod) != n+1 {
		return nil, fmt.Errorf("propagator: expected %d shear-modulus rows, got %d", n+1, len(shearMod))
	}
	m := len(freq)

	waveNum := make([][]complex128, n+1)
	waveA := make([][]complex128, n+1)
	waveB := make([][]complex128, n+1)
	for i := 0; i <= n; i++ {
		waveNum[i] = make([]complex128, m)
		waveA[i] = make([]complex128, m)
		waveB[i] = make([]complex128, m)
		density := p.profile.Density(i)
		for j, f := range freq {
			vel := cmplx.Sqrt(shearMod[i][j] / complex(density, 0))
			omega := 2 * math.Pi * f
			if vel != 0 {
				waveNum[i][j] = complex(omega, 0) / vel
			}
		}
	}

	for j := range freq {
		waveA[0][j] = 1
		waveB[0][j] = 1
	}

	for i := 0; i < n; i++ {
		thickness := p.profile.SubLayers[i].Thickness
		for j, f := range freq {
			if f < lowFreqThreshold {
				waveA[i+1][j] = 1
				waveB[i+1][j] = 1
				continue
			}
			impedance := (waveNum[i][j] * shearMod[i][j]) / (waveNum[i+1][j] * shearMod[i+1][j])
			phase := complex(0, 1) * waveNum[i][j] * complex(thickness, 0)
			ePlus := cmplx.Exp(phase)
			eMinus := cmplx.Exp(-phase)

			a := waveA[i][j]
			b := waveB[i][j]
			waveA[i+1][j] = 0.5*a*(1+impedance)*ePlus + 0.5*b*(1-impedance)*eMinus
			waveB[i+1][j] = 0.5*a*(1-impedance)*ePlus + 0.5*b*(1+impedance)*eMinus

			if !finite(waveA[i+1][j]) || !finite(waveB[i+1][j]) {
				return nil, fmt.Errorf("propagator: non-finite wave amplitude at layer %d, freq bin %d", i+1, j)
			}
		}
	}

	return &State{Freq: freq, ShearMod: shearMod, WaveNum: waveNum, WaveA: waveA, WaveB: waveB}, nil
}

func finite(z complex128) bool {
	return !math.IsNaN(real(z)) && !math.IsNaN(imag(z)) && !math.IsInf(real(z), 0) && !math.IsInf(imag(z), 0)
}

// waves returns the wave-amplitude accessor value at (loc, motionType) and
// frequency bin j, per the MotionType constant definitions above.
func (s *State) waves(loc profile.Location, mt MotionType, j int) complex128 {
	l := loc.Layer
	if l >= len(s.WaveA) {
		l = len(s.WaveA) - 1
	}
	phase := complex(0, 1) * s.WaveNum[l][j] * complex(loc.Depth, 0)
	ePlus := cmplx.Exp(phase)
	a := s.WaveA[l][j]
	b := s.WaveB[l][j]
	switch mt {
	case Outcrop:
		return 2 * a * ePlus
	case IncomingOnly:
		return a * ePlus
	default: // Within
		eMinus := cmplx.Exp(-phase)
		return a*ePlus + b*eMinus
	}
}

func coerceNaN(z complex128) complex128 {
	if math.IsNaN(real(z)) || math.IsNaN(imag(z)) {
		return 0
	}
	return z
}

// AccelTf returns the acceleration transfer function T_acc[j] =
// waves(outLoc,outType,j) / waves(inLoc,inType,j), with NaN bins (0/0 at
// DC) coerced to 0.
func (s *State) AccelTf(inLoc profile.Location, inType MotionType, outLoc profile.Location, outType MotionType) []complex128 {
	out := make([]complex128, len(s.Freq))
	for j := range s.Freq {
		out[j] = coerceNaN(s.waves(outLoc, outType, j) / s.waves(inLoc, inType, j))
	}
	return out
}

// StrainTf returns the strain transfer function (velocity-FAS form,
// numerically stable at low frequency) at loc, for input (inLoc, inType),
// using the active unit system's gravity:
//
//	numer = (g - i) * (A[ℓ,j]·e^{+ikz} - B[ℓ,j]·e^{-ikz})
//	denom = sqrt(G*[ℓ,j]/ρ[ℓ]) * waves(inLoc, inType, j)
//
// The (gravity, -1) prefactor is reproduced exactly as it appears in the
// calculator this was adapted from; see the package doc.
func (p *Propagator) StrainTf(s *State, inLoc profile.Location, inType MotionType, loc profile.Location) []complex128 {
	l := loc.Layer
	if l >= len(s.WaveA) {
		l = len(s.WaveA) - 1
	}
	density := p.profile.Density(l)
	prefactor := complex(p.units.Gravity, -1.0)

	out := make([]complex128, len(s.Freq))
	for j := range s.Freq {
		phase := complex(0, 1) * s.WaveNum[l][j] * complex(loc.Depth, 0)
		ePlus := cmplx.Exp(phase)
		eMinus := cmplx.Exp(-phase)
		numer := prefactor * (s.WaveA[l][j]*ePlus - s.WaveB[l][j]*eMinus)
		vel := cmplx.Sqrt(s.ShearMod[l][j] / complex(density, 0))
		denom := vel * s.waves(inLoc, inType, j)
		out[j] = coerceNaN(numer / denom)
	}
	return out
}

// StressTf returns the stress transfer function T_stress[j] = G*[ℓ,j] ·
// T_strain[j].
func (p *Propagator) StressTf(s *State, strainTf []complex128, loc profile.Location) []complex128 {
	l := loc.Layer
	if l >= len(s.WaveA) {
		l = len(s.WaveA) - 1
	}
	out := make([]complex128, len(strainTf))
	for j := range strainTf {
		out[j] = s.ShearMod[l][j] * strainTf[j]
	}
	return out
}

// Waves exposes the wave-amplitude accessor for use by extractors that
// need the raw field rather than a ratio-based transfer function.
func (s *State) Waves(loc profile.Location, mt MotionType, j int) complex128 {
	return s.waves(loc, mt, j)
}
