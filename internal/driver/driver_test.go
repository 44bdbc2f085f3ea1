package driver

import (
	"math"
	"testing"

	"github.com/PlatypusBytes/GoShake/internal/extract"
	"github.com/PlatypusBytes/GoShake/internal/iterator"
	"github.com/PlatypusBytes/GoShake/internal/motion"
	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/pkg/numerics"
	"github.com/PlatypusBytes/GoShake/pkg/units"
)

func sineRecord(n int, dt, freqHz, amplitudeG float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitudeG * math.Sin(2*math.Pi*freqHz*float64(i)*dt)
	}
	return out
}

func buildRealization(t *testing.T, vs float64) *profile.Profile {
	t.Helper()
	modCurve, err := numerics.NewLogStrainCurve([]float64{1e-4, 1}, []float64{1, 0.4})
	if err != nil {
		t.Fatalf("modCurve: %v", err)
	}
	dampCurve, err := numerics.NewLogStrainCurve([]float64{1e-4, 1}, []float64{2, 10})
	if err != nil {
		t.Fatalf("dampCurve: %v", err)
	}
	soil := &profile.SoilLayer{
		Density:         1800,
		InitialShearVel: vs,
		InitialDamping:  2,
		Curves:          profile.NonlinearCurves{ModulusReduction: modCurve, Damping: dampCurve, DampingMin: 1},
	}
	sl, err := profile.NewSubLayer(15, 0, soil)
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

func buildMotion(t *testing.T, freqHz float64) motion.Motion {
	t.Helper()
	record := sineRecord(1024, 0.005, freqHz, 0.1)
	m, err := motion.NewTimeSeriesMotion(units.Metric, record, 0.005)
	if err != nil {
		t.Fatalf("NewTimeSeriesMotion: %v", err)
	}
	return m
}

func TestDriverRunProducesOneChannelPerPairAndOutput(t *testing.T) {
	d := New(iterator.Mode{Kind: iterator.LinearElastic}, units.Metric, []OutputSpec{
		{Kind: extract.PGAProfile},
	})
	d.Workers = 2

	realizations := []*profile.Profile{buildRealization(t, 200), buildRealization(t, 300)}
	motions := []motion.Motion{buildMotion(t, 2), buildMotion(t, 5)}

	results, failures, stats, err := d.Run(realizations, motions, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(results) != len(realizations)*len(motions) {
		t.Errorf("expected %d channels, got %d", len(realizations)*len(motions), len(results))
	}
	if len(stats) != 1 {
		t.Fatalf("expected stats for 1 output kind, got %d", len(stats))
	}
	if stats[0].Kind != extract.PGAProfile {
		t.Errorf("expected PGAProfile stats, got %v", stats[0].Kind)
	}
	for i, m := range stats[0].Mean {
		if m < 0 {
			t.Errorf("mean PGA at ref index %d is negative: %g", i, m)
		}
		if stats[0].StdDev[i] < 0 {
			t.Errorf("stdev at ref index %d is negative: %g", i, stats[0].StdDev[i])
		}
	}
}

func TestDriverRunRejectsEmptyInputs(t *testing.T) {
	d := New(iterator.Mode{Kind: iterator.LinearElastic}, units.Metric, nil)
	if _, _, _, err := d.Run(nil, []motion.Motion{buildMotion(t, 2)}, nil, nil); err == nil {
		t.Errorf("expected error for no realizations")
	}
	if _, _, _, err := d.Run([]*profile.Profile{buildRealization(t, 200)}, nil, nil, nil); err == nil {
		t.Errorf("expected error for no motions")
	}
}

// zeroMotion builds a motion whose peak strain is always zero, which drives
// updateEQL/updateFDM's "non-positive peak strain" failure deterministically.
func zeroMotion(t *testing.T) motion.Motion {
	t.Helper()
	m, err := motion.NewTimeSeriesMotion(units.Metric, make([]float64, 1024), 0.005)
	if err != nil {
		t.Fatalf("NewTimeSeriesMotion: %v", err)
	}
	return m
}

// TestDriverDropsEntireRealizationOnFailure is spec §4.7's rewind-on-Failed
// requirement: a propagation failure on any one motion discards every
// channel already collected for that realization's other motions, not just
// the failed (realization, motion) pair.
func TestDriverDropsEntireRealizationOnFailure(t *testing.T) {
	d := New(iterator.Mode{Kind: iterator.EQL}, units.Metric, []OutputSpec{{Kind: extract.PGAProfile}})
	d.Workers = 2

	realizations := []*profile.Profile{buildRealization(t, 200), buildRealization(t, 300)}
	motions := []motion.Motion{buildMotion(t, 2), zeroMotion(t)}

	results, failures, _, err := d.Run(realizations, motions, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(failures) != len(realizations) {
		t.Fatalf("expected %d failures (one per realization), got %d", len(realizations), len(failures))
	}
	for _, c := range results {
		t.Errorf("expected no surviving channels, realization %d still present (kind %v)", c.Realization, c.Kind)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 surviving channels, got %d", len(results))
	}
}

func TestDriverResetsProfileAfterEachRun(t *testing.T) {
	d := New(iterator.Mode{Kind: iterator.EQL}, units.Metric, []OutputSpec{{Kind: extract.PGAProfile}})
	p := buildRealization(t, 200)
	initialShearMod := p.SubLayers[0].ShearMod
	m := buildMotion(t, 2)

	_, _, _, err := d.Run([]*profile.Profile{p}, []motion.Motion{m}, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.SubLayers[0].ShearMod != initialShearMod {
		t.Errorf("expected sub-layer state reset after run, got ShearMod %g want %g", p.SubLayers[0].ShearMod, initialShearMod)
	}
}
