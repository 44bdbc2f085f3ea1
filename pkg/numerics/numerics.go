// Package numerics collects the small set of numerical primitives the site
// response engine needs repeatedly: the complex shear modulus formulation,
// a real/complex FFT pair, trapezoidal integration, a two-parameter ordinary
// least-squares line fit, and log-strain interpolation tables.
//
// None of this is specific to wave propagation; it is kept separate so the
// propagator, motion and iterator packages read as pure physics against a
// small numerical vocabulary.
package numerics

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// ComplexShearModulus returns G* = G * ((1 - ξ²) + i·2ξ), the Kramer (1996)
// simplified complex shear modulus. damping (ξ) is a fraction, not a percent.
//
// The SHAKE91 form G*((1-2ξ²)+i·2ξ√(1-ξ²)) is deliberately not used here: it
// makes damping frequency-dependent, which this formulation avoids.
func ComplexShearModulus(shearMod, damping float64) complex128 {
	return complex(shearMod, 0) * complex(1-damping*damping, 2*damping)
}

// NextPow2 returns the smallest power of two greater than or equal to n.
func NextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// FFT wraps gonum's real-to-complex FFT at a fixed, power-of-two length,
// producing and consuming one-sided spectra of length n/2+1.
type FFT struct {
	n    int
	impl *fourier.FFT
}

// NewFFT builds an FFT engine for sequences of length n, which must be a
// power of two.
func NewFFT(n int) (*FFT, error) {
	if n <= 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("numerics: FFT length %d is not a power of two", n)
	}
	return &FFT{n: n, impl: fourier.NewFFT(n)}, nil
}

// Len returns the time-domain length this engine was built for.
func (f *FFT) Len() int { return f.n }

// Bins returns the one-sided spectrum length n/2 + 1.
func (f *FFT) Bins() int { return f.n/2 + 1 }

// Freq returns the one-sided frequency grid for a given time step dt, with
// freq[0] = 0 and freq[last] = 1/(2*dt) (the Nyquist frequency).
func (f *FFT) Freq(dt float64) []float64 {
	out := make([]float64, f.Bins())
	for k := range out {
		out[k] = float64(k) / (float64(f.n) * dt)
	}
	return out
}

// Forward computes the one-sided complex spectrum of a real sequence. x is
// zero-padded (or must already equal) the engine's length.
func (f *FFT) Forward(x []float64) []complex128 {
	padded := x
	if len(x) != f.n {
		padded = make([]float64, f.n)
		copy(padded, x)
	}
	return f.impl.Coefficients(nil, padded)
}

// Inverse reconstructs the real time series from a one-sided complex
// spectrum of length n/2+1, scaled so that Inverse(Forward(x)) == x.
func (f *FFT) Inverse(spectrum []complex128) []float64 {
	out := f.impl.Sequence(nil, spectrum)
	scale := 1 / float64(f.n)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Trapz integrates y over x using the trapezoidal rule. x must be
// non-decreasing and the same length as y.
func Trapz(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(x); i++ {
		sum += 0.5 * (y[i] + y[i-1]) * (x[i] - x[i-1])
	}
	return sum
}

// CumulativeTrapz returns the running trapezoidal integral of y over x, with
// out[0] = 0.
func CumulativeTrapz(x, y []float64) []float64 {
	out := make([]float64, len(y))
	for i := 1; i < len(x); i++ {
		out[i] = out[i-1] + 0.5*(y[i]+y[i-1])*(x[i]-x[i-1])
	}
	return out
}

// FitTwoParameterLine solves for (alpha, beta) minimizing
// Σ [data_i - (alpha*model0_i + beta*model1_i)]^2
// via an ordinary least-squares QR solve over the two-column design matrix
// [model0 | model1]. Used by the FDM smooth-spectrum (Kausel-Assimaki) fit.
func FitTwoParameterLine(model0, model1, data []float64) (alpha, beta float64, err error) {
	n := len(data)
	if n == 0 || len(model0) != n || len(model1) != n {
		return 0, 0, fmt.Errorf("numerics: mismatched fit input lengths")
	}
	design := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, model0[i])
		design.Set(i, 1, model1[i])
	}
	target := mat.NewVecDense(n, data)

	var qr mat.QR
	qr.Factorize(design)
	var result mat.Dense
	if err2 := qr.SolveTo(&result, false, target); err2 != nil {
		return 0, 0, fmt.Errorf("numerics: least-squares fit failed: %w", err2)
	}
	return result.At(0, 0), result.At(1, 0), nil
}

// FitPolynomial fits y = c0 + c1*t + ... + c_degree*t^degree by ordinary
// least squares via a QR solve over the Vandermonde design matrix, returning
// the degree+1 coefficients in ascending power order.
func FitPolynomial(t, y []float64, degree int) ([]float64, error) {
	n := len(t)
	if n == 0 || len(y) != n {
		return nil, fmt.Errorf("numerics: mismatched fit input lengths")
	}
	if degree < 0 {
		return nil, fmt.Errorf("numerics: polynomial degree must be non-negative")
	}
	cols := degree + 1
	design := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		p := 1.0
		for c := 0; c < cols; c++ {
			design.Set(i, c, p)
			p *= t[i]
		}
	}
	target := mat.NewVecDense(n, y)

	var qr mat.QR
	qr.Factorize(design)
	var result mat.Dense
	if err := qr.SolveTo(&result, false, target); err != nil {
		return nil, fmt.Errorf("numerics: least-squares fit failed: %w", err)
	}
	coeffs := make([]float64, cols)
	for c := 0; c < cols; c++ {
		coeffs[c] = result.At(c, 0)
	}
	return coeffs, nil
}

// LogStrainCurve is a monotone strain -> value curve interpolated linearly
// in log-strain space, clamped at the endpoints. It is used both for
// G/Gmax and damping-percent nonlinear curves.
type LogStrainCurve struct {
	LogStrain []float64 // ln(strain), strictly increasing
	Value     []float64
}

// NewLogStrainCurve builds a curve from parallel strain/value samples.
// strain must be strictly increasing and positive.
func NewLogStrainCurve(strain, value []float64) (LogStrainCurve, error) {
	if len(strain) != len(value) || len(strain) < 2 {
		return LogStrainCurve{}, fmt.Errorf("numerics: curve needs at least 2 matched samples")
	}
	logStrain := make([]float64, len(strain))
	for i, s := range strain {
		if s <= 0 {
			return LogStrainCurve{}, fmt.Errorf("numerics: curve strain must be positive, got %g", s)
		}
		if i > 0 && s <= strain[i-1] {
			return LogStrainCurve{}, fmt.Errorf("numerics: curve strain must be strictly increasing")
		}
		logStrain[i] = math.Log(s)
	}
	return LogStrainCurve{LogStrain: logStrain, Value: value}, nil
}

// Interp returns the curve value at the given strain, linearly interpolated
// in log-strain space and clamped at the endpoints.
func (c LogStrainCurve) Interp(strain float64) float64 {
	if strain <= 0 {
		return c.Value[0]
	}
	ls := math.Log(strain)
	if ls <= c.LogStrain[0] {
		return c.Value[0]
	}
	last := len(c.LogStrain) - 1
	if ls >= c.LogStrain[last] {
		return c.Value[last]
	}
	for i := 1; i <= last; i++ {
		if ls <= c.LogStrain[i] {
			x0, x1 := c.LogStrain[i-1], c.LogStrain[i]
			y0, y1 := c.Value[i-1], c.Value[i]
			frac := (ls - x0) / (x1 - x0)
			return y0 + frac*(y1-y0)
		}
	}
	return c.Value[last]
}

// AbsComplex returns the element-wise magnitude of a complex slice.
func AbsComplex(x []complex128) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = cmplx.Abs(v)
	}
	return out
}

// MaxAbs returns the maximum absolute value in a real slice, and 0 for an
// empty slice.
func MaxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}
