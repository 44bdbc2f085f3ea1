package profile

import (
	"testing"

	"github.com/PlatypusBytes/GoShake/pkg/numerics"
)

func flatCurves(t *testing.T) NonlinearCurves {
	t.Helper()
	mod, err := numerics.NewLogStrainCurve([]float64{1e-4, 1}, []float64{1, 0.3})
	if err != nil {
		t.Fatalf("mod curve: %v", err)
	}
	damp, err := numerics.NewLogStrainCurve([]float64{1e-4, 1}, []float64{2, 12})
	if err != nil {
		t.Fatalf("damp curve: %v", err)
	}
	return NonlinearCurves{ModulusReduction: mod, Damping: damp, DampingMin: 1}
}

func TestNewRejectsNonPositiveThickness(t *testing.T) {
	soil := &SoilLayer{Density: 1800, InitialShearVel: 200, InitialDamping: 2, Curves: flatCurves(t)}
	if _, err := NewSubLayer(0, 0, soil); err == nil {
		t.Errorf("expected error for zero thickness")
	}
	if _, err := NewSubLayer(-5, 0, soil); err == nil {
		t.Errorf("expected error for negative thickness")
	}
}

func TestProfileNewRejectsDepthGaps(t *testing.T) {
	soil := &SoilLayer{Density: 1800, InitialShearVel: 200, InitialDamping: 2, Curves: flatCurves(t)}
	sl1, _ := NewSubLayer(10, 0, soil)
	sl2, _ := NewSubLayer(10, 20, soil) // should be 10, not 20
	bedrock := Bedrock{Density: 2000, ShearVel: 600, Damping: 1}
	if _, err := New([]*SubLayer{sl1, sl2}, bedrock); err == nil {
		t.Errorf("expected error for mismatched depth-to-top")
	}
}

// TestSubLayerResetRestoresInitialValues is invariant I8.
func TestSubLayerResetRestoresInitialValues(t *testing.T) {
	soil := &SoilLayer{Density: 1800, InitialShearVel: 200, InitialDamping: 2, Curves: flatCurves(t)}
	sl, err := NewSubLayer(10, 0, soil)
	if err != nil {
		t.Fatalf("NewSubLayer: %v", err)
	}
	wantMod := sl.ShearMod
	wantDamp := sl.Damping

	sl.EffStrain = 1
	sl.MaxStrain = 2
	sl.ShearMod = 999
	sl.Damping = 50
	sl.NormShearMod = 0.1
	sl.PrevShearMod = 10
	sl.PrevDamping = 20
	sl.ErrShearMod = 5
	sl.ErrDamping = 5
	sl.Reset()

	if sl.EffStrain != 0 || sl.MaxStrain != 0 {
		t.Errorf("strain fields not reset: eff=%g max=%g", sl.EffStrain, sl.MaxStrain)
	}
	if sl.ShearMod != wantMod {
		t.Errorf("ShearMod not reset: got %g, want %g", sl.ShearMod, wantMod)
	}
	if sl.Damping != wantDamp {
		t.Errorf("Damping not reset: got %g, want %g", sl.Damping, wantDamp)
	}
	if sl.NormShearMod != 1 {
		t.Errorf("NormShearMod not reset to 1: got %g", sl.NormShearMod)
	}
	if sl.PrevShearMod != 0 || sl.PrevDamping != 0 || sl.ErrShearMod != 0 || sl.ErrDamping != 0 {
		t.Errorf("iteration bookkeeping fields not cleared by Reset")
	}
}

func TestLocationAtDepthResolvesToBedrockPastLastLayer(t *testing.T) {
	soil := &SoilLayer{Density: 1800, InitialShearVel: 200, InitialDamping: 2, Curves: flatCurves(t)}
	sl1, _ := NewSubLayer(10, 0, soil)
	sl2, _ := NewSubLayer(10, 10, soil)
	bedrock := Bedrock{Density: 2000, ShearVel: 600, Damping: 1}
	p, err := New([]*SubLayer{sl1, sl2}, bedrock)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	loc := p.LocationAtDepth(25)
	if loc.Layer != 2 {
		t.Errorf("expected bedrock location (layer 2), got layer %d", loc.Layer)
	}
	loc = p.LocationAtDepth(5)
	if loc.Layer != 0 {
		t.Errorf("expected layer 0 at depth 5, got %d", loc.Layer)
	}
	loc = p.LocationAtDepth(15)
	if loc.Layer != 1 || loc.Depth != 5 {
		t.Errorf("expected layer 1 depth 5, got layer %d depth %g", loc.Layer, loc.Depth)
	}
}
