package propagator

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/pkg/numerics"
	"github.com/PlatypusBytes/GoShake/pkg/units"
)

func bedrockOnlyProfile(t *testing.T) *profile.Profile {
	t.Helper()
	// A single thin sub-layer identical to the bedrock, so the column is
	// effectively homogeneous (invariant I3 / scenario S1 setup).
	soil := &profile.SoilLayer{Density: 2000, InitialShearVel: 300, InitialDamping: 2}
	curve, err := numerics.NewLogStrainCurve([]float64{1e-4, 10}, []float64{1, 1})
	if err != nil {
		t.Fatalf("curve: %v", err)
	}
	dampCurve, err := numerics.NewLogStrainCurve([]float64{1e-4, 10}, []float64{2, 2})
	if err != nil {
		t.Fatalf("curve: %v", err)
	}
	soil.Curves = profile.NonlinearCurves{ModulusReduction: curve, Damping: dampCurve, DampingMin: 2}
	sl, err := profile.NewSubLayer(10, 0, soil)
	if err != nil {
		t.Fatalf("sub-layer: %v", err)
	}
	bedrock := profile.Bedrock{Density: 2000, ShearVel: 300, Damping: 2}
	p, err := profile.New([]*profile.SubLayer{sl}, bedrock)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	return p
}

func uniformShearMod(p *profile.Profile, freq []float64) [][]complex128 {
	n := p.Count()
	out := make([][]complex128, n+1)
	gstar := numerics.ComplexShearModulus(p.Bedrock.ShearMod(), p.Bedrock.Damping/100)
	for i := 0; i <= n; i++ {
		out[i] = make([]complex128, len(freq))
		for j := range freq {
			out[i][j] = gstar
		}
	}
	return out
}

// TestTopInterfaceUnitAmplitudes is invariant I1.
func TestTopInterfaceUnitAmplitudes(t *testing.T) {
	p := bedrockOnlyProfile(t)
	freq := []float64{0, 1, 5, 10}
	prop := New(p, units.Metric)
	state, err := prop.CalcWaves(uniformShearMod(p, freq), freq)
	if err != nil {
		t.Fatalf("CalcWaves: %v", err)
	}
	for j := range freq {
		if state.WaveA[0][j] != 1 || state.WaveB[0][j] != 1 {
			t.Errorf("freq bin %d: A=%v B=%v, want 1,1", j, state.WaveA[0][j], state.WaveB[0][j])
		}
	}
}

// TestHomogeneousColumnDoubling is invariant I3: at higher frequency the
// surface (Outcrop) to bedrock (Within) transfer function has magnitude 2.
func TestHomogeneousColumnDoubling(t *testing.T) {
	p := bedrockOnlyProfile(t)
	freq := []float64{0, 1, 5, 10}
	prop := New(p, units.Metric)
	state, err := prop.CalcWaves(uniformShearMod(p, freq), freq)
	if err != nil {
		t.Fatalf("CalcWaves: %v", err)
	}
	tf := state.AccelTf(profile.Location{Layer: 1, Depth: 0}, Within, profile.Location{Layer: 0, Depth: 0}, Outcrop)
	if mag := cmplx.Abs(tf[0]); math.Abs(mag-1) > 1e-9 {
		t.Errorf("DC magnitude: got %g, want 1", mag)
	}
	for j := 1; j < len(freq); j++ {
		if mag := cmplx.Abs(tf[j]); math.Abs(mag-2) > 1e-6 {
			t.Errorf("freq bin %d magnitude: got %g, want 2", j, mag)
		}
	}
}

// TestOneLayerOutcropUnitTransfer is invariant I2: for a one-sub-layer
// bedrock-identical problem, surface Outcrop transfer from an Outcrop input
// at the surface is 1.
func TestOneLayerOutcropUnitTransfer(t *testing.T) {
	p := bedrockOnlyProfile(t)
	freq := []float64{0, 1, 5}
	prop := New(p, units.Metric)
	state, err := prop.CalcWaves(uniformShearMod(p, freq), freq)
	if err != nil {
		t.Fatalf("CalcWaves: %v", err)
	}
	tf := state.AccelTf(profile.Location{Layer: 0, Depth: 0}, Outcrop, profile.Location{Layer: 0, Depth: 0}, Outcrop)
	for j := range freq {
		if mag := cmplx.Abs(tf[j]); math.Abs(mag-1) > 1e-9 {
			t.Errorf("freq bin %d: got %g, want 1", j, mag)
		}
	}
}

// TestStrainTfVanishesAtDC is invariant I4: strain transfer function
// magnitude -> 0 as f -> 0, verified at f = 0 exactly.
func TestStrainTfVanishesAtDC(t *testing.T) {
	p := bedrockOnlyProfile(t)
	freq := []float64{0, 1, 5}
	prop := New(p, units.Metric)
	state, err := prop.CalcWaves(uniformShearMod(p, freq), freq)
	if err != nil {
		t.Fatalf("CalcWaves: %v", err)
	}
	strainTf := prop.StrainTf(state, profile.Location{Layer: 1, Depth: 0}, Within, p.SubLayers[0].MidDepth(0))
	if strainTf[0] != 0 {
		t.Errorf("DC strain transfer function: got %v, want 0", strainTf[0])
	}
}
