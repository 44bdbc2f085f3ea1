package extract

import (
	"math"
	"testing"

	"github.com/PlatypusBytes/GoShake/internal/iterator"
	"github.com/PlatypusBytes/GoShake/internal/motion"
	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/internal/propagator"
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

func buildConvergedContext(t *testing.T) (Context, *profile.Profile) {
	t.Helper()
	modCurve, err := numerics.NewLogStrainCurve([]float64{1e-4, 1e-2, 1}, []float64{1.0, 0.7, 0.2})
	if err != nil {
		t.Fatalf("modCurve: %v", err)
	}
	dampCurve, err := numerics.NewLogStrainCurve([]float64{1e-4, 1e-2, 1}, []float64{2, 6, 15})
	if err != nil {
		t.Fatalf("dampCurve: %v", err)
	}
	soil := &profile.SoilLayer{
		Density:         1800,
		InitialShearVel: 200,
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

	record := sineRecord(2048, 0.005, 2.5, 0.2)
	m, err := motion.NewTimeSeriesMotion(units.Metric, record, 0.005)
	if err != nil {
		t.Fatalf("NewTimeSeriesMotion: %v", err)
	}

	it := iterator.New(iterator.Mode{Kind: iterator.EQL}, units.Metric)
	result := it.Run(m, p, nil)
	if result.Status == iterator.Failed {
		t.Fatalf("iterator failed: %v", result.Err)
	}

	prop := propagator.New(p, units.Metric)
	ctx := Context{
		Units:      units.Metric,
		Profile:    p,
		Motion:     m,
		Prop:       prop,
		State:      result.State,
		InputType:  propagator.Within,
		OutputType: propagator.Within,
		Periods:    []float64{0.1, 0.5, 1.0},
		Damping:    0.05,
	}
	return ctx, p
}

func TestExtractPGAProfileHasOneEntryPerBoundary(t *testing.T) {
	ctx, p := buildConvergedContext(t)
	res, err := Extract(PGAProfile, ctx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Data) != p.Count()+1 {
		t.Errorf("expected %d samples, got %d", p.Count()+1, len(res.Data))
	}
	for i, v := range res.Data {
		if v < 0 {
			t.Errorf("PGA at index %d is negative: %g", i, v)
		}
	}
}

func TestExtractMaxStrainProfileSurfaceIsZero(t *testing.T) {
	ctx, _ := buildConvergedContext(t)
	res, err := Extract(MaxStrainProfile, ctx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Data[0] != 0 {
		t.Errorf("expected zero strain prepended at the surface, got %g", res.Data[0])
	}
}

func TestExtractResponseSpectrumMatchesPeriodAxis(t *testing.T) {
	ctx, _ := buildConvergedContext(t)
	res, err := Extract(ResponseSpectrum, ctx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Data) != len(ctx.Periods) {
		t.Fatalf("expected %d samples, got %d", len(ctx.Periods), len(res.Data))
	}
	for i, v := range res.Data {
		if v < 0 {
			t.Errorf("Sa at period %g is negative: %g", ctx.Periods[i], v)
		}
	}
}

func TestExtractUnknownKindErrors(t *testing.T) {
	ctx, _ := buildConvergedContext(t)
	if _, err := Extract(Kind(9999), ctx); err == nil {
		t.Errorf("expected error for unknown kind")
	}
}

func TestExtractStrainTransferFunctionHonorsLocation(t *testing.T) {
	ctx, _ := buildConvergedContext(t)
	ctx.Location = profile.Location{Layer: 0, Depth: 3}
	res, err := Extract(StrainTransferFunction, ctx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Data) != len(ctx.Motion.Freq()) {
		t.Errorf("expected one magnitude per frequency bin, got %d", len(res.Data))
	}
	for i, v := range res.Data {
		if v < 0 {
			t.Errorf("strain transfer magnitude at bin %d is negative: %g", i, v)
		}
	}
}

func TestMetaOfReportsAxisKind(t *testing.T) {
	if MetaOf(ResponseSpectrum).Axis != AxisPeriod {
		t.Errorf("ResponseSpectrum should be indexed by period")
	}
	if MetaOf(PGAProfile).Axis != AxisDepth {
		t.Errorf("PGAProfile should be indexed by depth")
	}
	if !MetaOf(AccelTimeSeries).NeedsTime {
		t.Errorf("AccelTimeSeries should need a time-series motion")
	}
}
