package iterator

import (
	"math"
	"testing"

	"github.com/PlatypusBytes/GoShake/internal/motion"
	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/pkg/numerics"
	"github.com/PlatypusBytes/GoShake/pkg/units"
)

func softLayerProfile(t *testing.T) *profile.Profile {
	t.Helper()
	modCurve, err := numerics.NewLogStrainCurve(
		[]float64{1e-4, 1e-3, 1e-2, 1e-1, 1},
		[]float64{1.0, 0.95, 0.8, 0.5, 0.2},
	)
	if err != nil {
		t.Fatalf("modCurve: %v", err)
	}
	dampCurve, err := numerics.NewLogStrainCurve(
		[]float64{1e-4, 1e-3, 1e-2, 1e-1, 1},
		[]float64{2, 3, 5, 10, 15},
	)
	if err != nil {
		t.Fatalf("dampCurve: %v", err)
	}
	soil := &profile.SoilLayer{
		Density:         1800,
		InitialShearVel: 200,
		InitialDamping:  2,
		Curves:          profile.NonlinearCurves{ModulusReduction: modCurve, Damping: dampCurve, DampingMin: 1},
	}
	sl, err := profile.NewSubLayer(20, 0, soil)
	if err != nil {
		t.Fatalf("sub-layer: %v", err)
	}
	bedrock := profile.Bedrock{Density: 2400, ShearVel: 1500, Damping: 1}
	p, err := profile.New([]*profile.SubLayer{sl}, bedrock)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	return p
}

func sineRecord(n int, dt, freqHz, amplitudeG float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitudeG * math.Sin(2*math.Pi*freqHz*float64(i)*dt)
	}
	return out
}

// TestIteratorTerminationInvariant is invariant I7: after Run, either
// converged is true and maxLayerError <= errorTolerance, or iterations ==
// maxIterations.
func TestIteratorTerminationInvariant(t *testing.T) {
	p := softLayerProfile(t)
	record := sineRecord(4096, 0.005, 2.5, 0.3)
	m, err := motion.NewTimeSeriesMotion(units.Metric, record, 0.005)
	if err != nil {
		t.Fatalf("NewTimeSeriesMotion: %v", err)
	}

	it := New(Mode{Kind: EQL}, units.Metric)
	result := it.Run(m, p, nil)
	if result.Status == Failed {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if result.Status == Converged {
		if result.MaxError > it.ErrorTolerance {
			t.Errorf("converged but max error %g exceeds tolerance %g", result.MaxError, it.ErrorTolerance)
		}
	} else if result.Iterations != it.MaxIterations {
		t.Errorf("not converged but iterations %d != maxIterations %d", result.Iterations, it.MaxIterations)
	}
}

// TestLinearElasticSinglePass is scenario S4: the linear-elastic mode runs
// exactly one iteration and never mutates sub-layer properties.
func TestLinearElasticSinglePass(t *testing.T) {
	p := softLayerProfile(t)
	initialShearMod := p.SubLayers[0].ShearMod
	record := sineRecord(2048, 0.005, 2.5, 0.3)
	m, err := motion.NewTimeSeriesMotion(units.Metric, record, 0.005)
	if err != nil {
		t.Fatalf("NewTimeSeriesMotion: %v", err)
	}

	it := New(Mode{Kind: LinearElastic}, units.Metric)
	result := it.Run(m, p, nil)
	if result.Status != Converged {
		t.Fatalf("expected linear-elastic run to report converged, got %v (%v)", result.Status, result.Err)
	}
	if result.Iterations != 1 {
		t.Errorf("expected exactly 1 iteration, got %d", result.Iterations)
	}
	if p.SubLayers[0].ShearMod != initialShearMod {
		t.Errorf("linear-elastic mode must not mutate shear modulus: got %g, want %g", p.SubLayers[0].ShearMod, initialShearMod)
	}
}

// TestFDMRawStrainShapeConverges exercises updateFDM's raw
// |velocity-strain-FAS| shape path (UseSmoothSpectrum=false).
func TestFDMRawStrainShapeConverges(t *testing.T) {
	p := softLayerProfile(t)
	record := sineRecord(4096, 0.005, 2.5, 0.3)
	m, err := motion.NewTimeSeriesMotion(units.Metric, record, 0.005)
	if err != nil {
		t.Fatalf("NewTimeSeriesMotion: %v", err)
	}

	it := New(Mode{Kind: FDM, UseSmoothSpectrum: false}, units.Metric)
	result := it.Run(m, p, nil)
	if result.Status == Failed {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if result.Status == Converged {
		if result.MaxError > it.ErrorTolerance {
			t.Errorf("converged but max error %g exceeds tolerance %g", result.MaxError, it.ErrorTolerance)
		}
	} else if result.Iterations != it.MaxIterations {
		t.Errorf("not converged but iterations %d != maxIterations %d", result.Iterations, it.MaxIterations)
	}
}

// TestFDMSmoothStrainShapeConverges exercises updateFDM's Kausel-Assimaki
// smoothed strain-shape path (UseSmoothSpectrum=true).
func TestFDMSmoothStrainShapeConverges(t *testing.T) {
	p := softLayerProfile(t)
	record := sineRecord(4096, 0.005, 2.5, 0.3)
	m, err := motion.NewTimeSeriesMotion(units.Metric, record, 0.005)
	if err != nil {
		t.Fatalf("NewTimeSeriesMotion: %v", err)
	}

	it := New(Mode{Kind: FDM, UseSmoothSpectrum: true}, units.Metric)
	result := it.Run(m, p, nil)
	if result.Status == Failed {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if result.Status == Converged {
		if result.MaxError > it.ErrorTolerance {
			t.Errorf("converged but max error %g exceeds tolerance %g", result.MaxError, it.ErrorTolerance)
		}
	} else if result.Iterations != it.MaxIterations {
		t.Errorf("not converged but iterations %d != maxIterations %d", result.Iterations, it.MaxIterations)
	}
}

// TestSmoothStrainShapeEvaluatesEveryBin guards against the shape collapsing
// to a hard-coded plateau below some cutoff frequency: the decay model must
// be evaluated (and so vary) at every bin, clamped only by min(1, ...), not
// held flat at gammaMax below a crossover.
func TestSmoothStrainShapeEvaluatesEveryBin(t *testing.T) {
	const gammaMax = 10.0
	freq := make([]float64, 50)
	s := make([]float64, 50)
	for i := range freq {
		freq[i] = float64(i+1) * 0.5
		s[i] = 1.0 / float64(i+1)
	}

	out, err := smoothStrainShape(freq, s, gammaMax)
	if err != nil {
		t.Fatalf("smoothStrainShape: %v", err)
	}
	if len(out) != len(freq) {
		t.Fatalf("expected %d outputs, got %d", len(freq), len(out))
	}

	allEqual := true
	for j, v := range out {
		if v > gammaMax+1e-9 {
			t.Errorf("bin %d: strain %g exceeds gammaMax %g", j, v, gammaMax)
		}
		if v < 0 {
			t.Errorf("bin %d: strain %g is negative", j, v)
		}
		if j > 0 && math.Abs(v-out[0]) > 1e-9 {
			allEqual = false
		}
	}
	if allEqual {
		t.Errorf("expected strain shape to vary across frequency bins, got constant %g", out[0])
	}
}

func TestSubLayerResetIsExact(t *testing.T) {
	p := softLayerProfile(t)
	sl := p.SubLayers[0]
	initial := *sl
	sl.EffStrain = 5
	sl.MaxStrain = 10
	sl.ShearMod = 123
	sl.Damping = 9
	sl.Reset()
	if sl.EffStrain != initial.EffStrain || sl.MaxStrain != initial.MaxStrain ||
		sl.ShearMod != initial.ShearMod || sl.Damping != initial.Damping {
		t.Errorf("Reset did not restore initial values exactly")
	}
}
