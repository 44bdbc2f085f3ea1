// Package motion models a ground-motion record: its raw acceleration time
// history, the Fourier spectra derived from it, and the peak-extraction and
// response-spectrum operations the iterator and extractors drive through an
// arbitrary complex transfer function.
//
// Peak extraction always happens on the time series recovered by inverse
// FFT, never on a spectral magnitude directly — peaks of Fourier magnitudes
// are not peaks in time.
package motion

import (
	"fmt"
	"math"

	"github.com/PlatypusBytes/GoShake/pkg/numerics"
	"github.com/PlatypusBytes/GoShake/pkg/units"
)

// Motion is the interface the iterator and extractors consume. TimeSeriesMotion
// is the only production implementation; tests may supply synthetic spectra.
type Motion interface {
	Freq() []float64
	AbsFourierAcc(tf []complex128) []float64
	AbsFourierVel(tf []complex128) []float64
	ComputeSa(periods []float64, damping float64, accelTf []complex128) []float64
	Max(tf []complex128) float64
	MaxVel(tf []complex128) float64
	MaxDisp(tf []complex128) float64
	CalcMaxStrain(strainTf []complex128) float64
	StrainTimeSeries(strainTf []complex128, baselineCorrect bool) []float64
	AriasIntensity(accelTf []complex128) []float64
	PGV() float64
	Dt() float64
}

// Spectrum holds the derived Fourier representation of a time-series
// motion: accel[n] in g, the one-sided frequency grid, and the one-sided
// complex acceleration and velocity spectra.
type Spectrum struct {
	Accel      []float64 // real time series, in g, zero-padded to a power of two
	Dt         float64
	Freq       []float64
	FourierAcc []complex128
	FourierVel []complex128 // fourierAcc / (i*2*pi*freq), 0 at DC
}

// TimeSeriesMotion is a real acceleration record plus its derived spectra,
// evaluated once at construction.
type TimeSeriesMotion struct {
	units   units.UnitSystem
	spec    Spectrum
	fft     *numerics.FFT
	saCache map[saKey][]complex128
}

type saKey struct {
	period  float64
	damping float64
}

// NewTimeSeriesMotion builds a motion from a raw (unpadded) acceleration
// record in g and a fixed time step, zero-padding to the next power of two
// before computing its Fourier spectra.
func NewTimeSeriesMotion(u units.UnitSystem, accelG []float64, dt float64) (*TimeSeriesMotion, error) {
	if !u.Valid() {
		return nil, fmt.Errorf("motion: invalid unit system")
	}
	if dt <= 0 {
		return nil, fmt.Errorf("motion: time step must be positive, got %g", dt)
	}
	if len(accelG) < 2 {
		return nil, fmt.Errorf("motion: acceleration record needs at least 2 samples")
	}
	n := numerics.NextPow2(len(accelG))
	fft, err := numerics.NewFFT(n)
	if err != nil {
		return nil, err
	}
	padded := make([]float64, n)
	copy(padded, accelG)

	fourierAcc := fft.Forward(padded)
	freq := fft.Freq(dt)
	fourierVel := make([]complex128, len(fourierAcc))
	for k := 1; k < len(fourierAcc); k++ {
		omega := 2 * math.Pi * freq[k]
		fourierVel[k] = fourierAcc[k] / complex(0, omega)
	}

	return &TimeSeriesMotion{
		units: u,
		spec: Spectrum{
			Accel:      padded,
			Dt:         dt,
			Freq:       freq,
			FourierAcc: fourierAcc,
			FourierVel: fourierVel,
		},
		fft:     fft,
		saCache: make(map[saKey][]complex128),
	}, nil
}

// Dt returns the motion's fixed time step.
func (m *TimeSeriesMotion) Dt() float64 { return m.spec.Dt }

// Freq returns the one-sided frequency grid.
func (m *TimeSeriesMotion) Freq() []float64 { return m.spec.Freq }

// apply multiplies a one-sided spectrum by a transfer function, treating an
// empty tf as all-ones.
func apply(spectrum, tf []complex128) []complex128 {
	if len(tf) == 0 {
		out := make([]complex128, len(spectrum))
		copy(out, spectrum)
		return out
	}
	out := make([]complex128, len(spectrum))
	for i := range spectrum {
		out[i] = spectrum[i] * tf[i]
	}
	return out
}

// AbsFourierAcc returns |tf ⊙ fourierAcc|.
func (m *TimeSeriesMotion) AbsFourierAcc(tf []complex128) []float64 {
	return numerics.AbsComplex(apply(m.spec.FourierAcc, tf))
}

// AbsFourierVel returns |tf ⊙ fourierVel|.
func (m *TimeSeriesMotion) AbsFourierVel(tf []complex128) []float64 {
	return numerics.AbsComplex(apply(m.spec.FourierVel, tf))
}

// integrateOnce divides a one-sided spectrum by i*2*pi*f, bin by bin,
// leaving the DC bin at 0.
func (m *TimeSeriesMotion) integrateOnce(spectrum []complex128) []complex128 {
	out := make([]complex128, len(spectrum))
	for k := 1; k < len(spectrum); k++ {
		omega := 2 * math.Pi * m.spec.Freq[k]
		out[k] = spectrum[k] / complex(0, omega)
	}
	return out
}

// recoverTimeSeries applies tf to the acceleration spectrum, optionally
// integrating in the frequency domain, and returns the real time series via
// inverse FFT.
func (m *TimeSeriesMotion) recoverTimeSeries(tf []complex128, integrations int) []float64 {
	spectrum := apply(m.spec.FourierAcc, tf)
	for i := 0; i < integrations; i++ {
		spectrum = m.integrateOnce(spectrum)
	}
	return m.fft.Inverse(spectrum)
}

func maxAbsSeries(x []float64) float64 {
	return numerics.MaxAbs(x)
}

// Max returns the peak absolute acceleration (in g) of the tf-filtered time
// series.
func (m *TimeSeriesMotion) Max(tf []complex128) float64 {
	return maxAbsSeries(m.recoverTimeSeries(tf, 0))
}

// MaxVel returns the peak absolute velocity, in the active unit system's
// length/time units, of the tf-filtered time series.
func (m *TimeSeriesMotion) MaxVel(tf []complex128) float64 {
	series := m.recoverTimeSeries(tf, 1)
	return m.units.Gravity * maxAbsSeries(series)
}

// MaxDisp returns the peak absolute displacement, in the active unit
// system's length units, of the tf-filtered time series.
func (m *TimeSeriesMotion) MaxDisp(tf []complex128) float64 {
	series := m.recoverTimeSeries(tf, 2)
	return m.units.Gravity * maxAbsSeries(series)
}

// PGV returns the unfiltered peak ground velocity, used by the EQL
// iterator's initial-strain estimate (pgv / Vs).
func (m *TimeSeriesMotion) PGV() float64 {
	return m.MaxVel(nil)
}

// CalcMaxStrain returns the peak of the time series obtained by applying
// strainTf (strain-per-unit-velocity-FAS) to the velocity FAS; the result is
// a dimensionless strain fraction, not a percent.
func (m *TimeSeriesMotion) CalcMaxStrain(strainTf []complex128) float64 {
	filtered := apply(m.spec.FourierVel, strainTf)
	series := m.fft.Inverse(filtered)
	return maxAbsSeries(series)
}

// StrainTimeSeries returns the full strain time series from strainTf
// applied to the velocity FAS, with optional baseline correction: a
// degree-1 fit subtracted from velocity and degree-3 from displacement,
// both in the acceleration domain before integration, matching the
// source's baseline-correction contract.
func (m *TimeSeriesMotion) StrainTimeSeries(strainTf []complex128, baselineCorrect bool) []float64 {
	filtered := apply(m.spec.FourierVel, strainTf)
	series := m.fft.Inverse(filtered)
	if baselineCorrect {
		series = baselineCorrectSeries(series, m.spec.Dt)
	}
	return series
}

// AriasIntensity returns the cumulative Arias intensity series
// Σ_i (π/(2g)) a_i² Δt of the tf-filtered acceleration time series, in the
// active unit system's length/time units.
func (m *TimeSeriesMotion) AriasIntensity(accelTf []complex128) []float64 {
	series := m.recoverTimeSeries(accelTf, 0)
	g := m.units.Gravity
	out := make([]float64, len(series))
	running := 0.0
	coeff := math.Pi / (2 * g) * g * g // a given in g: physical a = g*series
	for i, a := range series {
		running += coeff * a * a * m.spec.Dt
		out[i] = running
	}
	return out
}

// sdofTransfer returns the memoized SDOF displacement-to-input-accel
// transfer function H_T(ω) = -ω²/(ω_n² + 2iξω_nω - ω²) for the given period
// and damping fraction.
func (m *TimeSeriesMotion) sdofTransfer(period, damping float64) []complex128 {
	key := saKey{period: period, damping: damping}
	if tf, ok := m.saCache[key]; ok {
		return tf
	}
	omegaN := 2 * math.Pi / period
	tf := make([]complex128, len(m.spec.Freq))
	for k, f := range m.spec.Freq {
		omega := 2 * math.Pi * f
		denom := complex(omegaN*omegaN-omega*omega, 2*damping*omegaN*omega)
		tf[k] = complex(-omega*omega, 0) / denom
	}
	m.saCache[key] = tf
	return tf
}

// AccelTimeSeries returns the full tf-filtered acceleration time series, in
// g.
func (m *TimeSeriesMotion) AccelTimeSeries(tf []complex128) []float64 {
	return m.recoverTimeSeries(tf, 0)
}

// VelTimeSeries returns the full tf-filtered velocity time series, in the
// active unit system's length/time units.
func (m *TimeSeriesMotion) VelTimeSeries(tf []complex128) []float64 {
	series := m.recoverTimeSeries(tf, 1)
	scaled := make([]float64, len(series))
	for i, v := range series {
		scaled[i] = m.units.Gravity * v
	}
	return scaled
}

// DispTimeSeries returns the full tf-filtered displacement time series, in
// the active unit system's length units.
func (m *TimeSeriesMotion) DispTimeSeries(tf []complex128) []float64 {
	series := m.recoverTimeSeries(tf, 2)
	scaled := make([]float64, len(series))
	for i, v := range series {
		scaled[i] = m.units.Gravity * v
	}
	return scaled
}

// ComputeSa returns the pseudo-spectral acceleration, in g, at each period
// in periods for the given damping fraction, through accelTf.
func (m *TimeSeriesMotion) ComputeSa(periods []float64, damping float64, accelTf []complex128) []float64 {
	out := make([]float64, len(periods))
	base := apply(m.spec.FourierAcc, accelTf)
	for i, t := range periods {
		sdof := m.sdofTransfer(t, damping)
		filtered := apply(base, sdof)
		series := m.fft.Inverse(filtered)
		out[i] = maxAbsSeries(series)
	}
	return out
}

// baselineCorrectSeries fits a degree-1 polynomial to velocity and a
// degree-3 polynomial to displacement (both derived from series treated as
// an acceleration-like signal) via least squares, and subtracts the
// corresponding polynomial from the series before it is returned.
//
// Applying this twice is idempotent to within 1e-12 on a floating-point
// dense series, since the second pass fits a near-zero residual.
func baselineCorrectSeries(series []float64, dt float64) []float64 {
	n := len(series)
	if n < 4 {
		return series
	}
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) * dt
	}
	// Degree-1 fit against the integrated ("velocity-like") signal; its
	// derivative (the fitted slope) is a constant drift in acceleration.
	vel := numerics.CumulativeTrapz(t, series)
	coeffs1, err := numerics.FitPolynomial(t, vel, 1)
	if err != nil {
		return series
	}
	velSlope := coeffs1[1]
	stage := make([]float64, n)
	for i := range series {
		stage[i] = series[i] - velSlope
	}
	// Degree-3 fit against the doubly-integrated ("displacement-like")
	// velocity-corrected signal; its second derivative is the remaining
	// drift correction.
	disp := numerics.CumulativeTrapz(t, numerics.CumulativeTrapz(t, stage))
	coeffs3, err := numerics.FitPolynomial(t, disp, 3)
	if err != nil {
		return series
	}

	corrected := make([]float64, n)
	for i, ti := range t {
		accelBaseline := 6*coeffs3[3]*ti + 2*coeffs3[2]
		corrected[i] = stage[i] - accelBaseline
	}
	return corrected
}
