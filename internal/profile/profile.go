// Package profile models the layered soil column a motion is propagated
// through: an ordered sequence of sub-layers over an elastic bedrock
// half-space, plus the nonlinear strain-dependent curves that drive the
// iterator.
package profile

import (
	"fmt"
	"math"

	"github.com/PlatypusBytes/GoShake/pkg/numerics"
)

// Location identifies a point in the column: a sub-layer index (0-based,
// equal to the sub-layer count N for the bedrock surface) and a depth
// measured from the top of that layer.
type Location struct {
	Layer int
	Depth float64
}

// AtBedrock reports whether the location refers to the bedrock half-space.
func (l Location) AtBedrock(subLayerCount int) bool {
	return l.Layer >= subLayerCount
}

// NonlinearCurves pairs a modulus-reduction curve (G/Gmax vs strain) with a
// damping curve (damping percent vs strain), sharing a minimum damping floor.
// Immutable for the lifetime of a realization.
type NonlinearCurves struct {
	ModulusReduction numerics.LogStrainCurve // G/Gmax, dimensionless
	Damping          numerics.LogStrainCurve // damping, percent
	DampingMin       float64                 // percent, floor applied to Interp
}

// Interp returns (G/Gmax, damping percent) at the given percent strain,
// log-linearly interpolated and clamped at both curve endpoints, with the
// damping floor enforced.
func (c NonlinearCurves) Interp(strainPercent float64) (modReduction, dampingPercent float64) {
	modReduction = c.ModulusReduction.Interp(strainPercent)
	dampingPercent = c.Damping.Interp(strainPercent)
	if dampingPercent < c.DampingMin {
		dampingPercent = c.DampingMin
	}
	return modReduction, dampingPercent
}

// SoilLayer is the immutable, per-realization soil description a SubLayer
// refers to: initial properties plus its nonlinear curves.
type SoilLayer struct {
	Name            string
	Density         float64 // mass density, consistent with the active UnitSystem
	InitialShearVel float64 // initial (small-strain) shear-wave velocity
	InitialDamping  float64 // initial damping, percent
	Curves          NonlinearCurves
}

// InitialShearMod returns density * Vs^2, the small-strain shear modulus.
func (s SoilLayer) InitialShearMod() float64 {
	return s.Density * s.InitialShearVel * s.InitialShearVel
}

// SubLayer is one discretized slice of the column: fixed geometry plus the
// strain-dependent state the Iterator mutates in place.
type SubLayer struct {
	Thickness  float64
	DepthToTop float64
	Soil       *SoilLayer

	VTotalStress     float64 // total vertical stress at mid-height
	VEffectiveStress float64 // effective vertical stress at mid-height

	// Strain-dependent state, mutated only by the Iterator.
	EffStrain    float64 // percent, the strain driving the curve lookup
	MaxStrain    float64 // percent, peak strain for this iteration
	ShearMod     float64 // current (converged or in-progress) shear modulus
	Damping      float64 // current damping, percent
	NormShearMod float64 // G / Gmax, current normalized modulus

	PrevShearMod float64
	PrevDamping  float64
	ErrShearMod  float64 // percent relative change, last iteration
	ErrDamping   float64 // percent relative change, last iteration

	initialShearMod float64
	initialDamping  float64
}

// NewSubLayer builds a SubLayer at its initial (small-strain) properties.
func NewSubLayer(thickness, depthToTop float64, soil *SoilLayer) (*SubLayer, error) {
	if thickness <= 0 {
		return nil, fmt.Errorf("profile: sub-layer thickness must be positive, got %g", thickness)
	}
	sl := &SubLayer{
		Thickness:  thickness,
		DepthToTop: depthToTop,
		Soil:       soil,
	}
	sl.initialShearMod = soil.InitialShearMod()
	sl.initialDamping = soil.InitialDamping
	sl.Reset()
	return sl, nil
}

// Reset returns all strain-dependent fields to their initial values exactly
// (bit-identical), so the next motion in a batch starts from the unstrained
// curves.
func (sl *SubLayer) Reset() {
	sl.EffStrain = 0
	sl.MaxStrain = 0
	sl.ShearMod = sl.initialShearMod
	sl.Damping = sl.initialDamping
	sl.NormShearMod = 1
	sl.PrevShearMod = 0
	sl.PrevDamping = 0
	sl.ErrShearMod = 0
	sl.ErrDamping = 0
}

// ShearVel returns the current shear-wave velocity implied by ShearMod and
// the soil density.
func (sl *SubLayer) ShearVel() float64 {
	ratio := sl.ShearMod / sl.Soil.Density
	if ratio < 0 {
		return 0
	}
	return math.Sqrt(ratio)
}

// MidDepth returns the Location at the vertical middle of this sub-layer,
// the point the iterator evaluates strain transfer functions at.
func (sl *SubLayer) MidDepth(index int) Location {
	return Location{Layer: index, Depth: sl.Thickness / 2}
}

// Bedrock is the elastic half-space terminating the column. Its shear
// modulus is constant across frequency.
type Bedrock struct {
	Density  float64
	ShearVel float64
	Damping  float64 // percent
}

// ShearMod returns density * Vs^2, the bedrock's (frequency-independent)
// shear modulus.
func (b Bedrock) ShearMod() float64 {
	return b.Density * b.ShearVel * b.ShearVel
}

// Profile is the ordered sub-layer sequence plus the terminating bedrock.
type Profile struct {
	SubLayers     []*SubLayer
	Bedrock       Bedrock
	InputLocation Location // where the motion is injected; bedrock surface by default
}

// New builds a Profile over the given sub-layers and bedrock, defaulting
// the input location to the bedrock surface.
func New(subLayers []*SubLayer, bedrock Bedrock) (*Profile, error) {
	if len(subLayers) < 1 {
		return nil, fmt.Errorf("profile: at least one sub-layer is required")
	}
	depth := 0.0
	for i, sl := range subLayers {
		if sl.DepthToTop != depth {
			return nil, fmt.Errorf("profile: sub-layer %d depth-to-top %g does not match running depth %g", i, sl.DepthToTop, depth)
		}
		depth += sl.Thickness
	}
	return &Profile{
		SubLayers:     subLayers,
		Bedrock:       bedrock,
		InputLocation: Location{Layer: len(subLayers), Depth: 0},
	}, nil
}

// Count returns the number of sub-layers (not counting bedrock).
func (p *Profile) Count() int { return len(p.SubLayers) }

// LocationAtDepth maps a total depth from the surface to a Location via
// binary search over sub-layer depth-to-top boundaries. Depths at or past
// the base of the last sub-layer resolve to the bedrock surface.
func (p *Profile) LocationAtDepth(depth float64) Location {
	lo, hi := 0, len(p.SubLayers)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		sl := p.SubLayers[mid]
		base := sl.DepthToTop + sl.Thickness
		if depth < sl.DepthToTop {
			hi = mid - 1
		} else if depth >= base {
			lo = mid + 1
		} else {
			return Location{Layer: mid, Depth: depth - sl.DepthToTop}
		}
	}
	return Location{Layer: len(p.SubLayers), Depth: 0}
}

// Density returns the density at sub-layer index i, transparently returning
// the bedrock density when i == Count().
func (p *Profile) Density(i int) float64 {
	if i >= len(p.SubLayers) {
		return p.Bedrock.Density
	}
	return p.SubLayers[i].Soil.Density
}

// ShearVel returns the current shear-wave velocity at sub-layer index i,
// transparently returning the bedrock value when i == Count().
func (p *Profile) ShearVel(i int) float64 {
	if i >= len(p.SubLayers) {
		return p.Bedrock.ShearVel
	}
	return p.SubLayers[i].ShearVel()
}

// Damping returns the current damping (percent) at sub-layer index i,
// transparently returning the bedrock value when i == Count().
func (p *Profile) Damping(i int) float64 {
	if i >= len(p.SubLayers) {
		return p.Bedrock.Damping
	}
	return p.SubLayers[i].Damping
}

// ShearMod returns the current shear modulus at sub-layer index i,
// transparently returning the bedrock value when i == Count().
func (p *Profile) ShearMod(i int) float64 {
	if i >= len(p.SubLayers) {
		return p.Bedrock.ShearMod()
	}
	return p.SubLayers[i].ShearMod
}

// ResetAll resets every sub-layer's strain-dependent state to its initial
// values, as the Driver does between motions.
func (p *Profile) ResetAll() {
	for _, sl := range p.SubLayers {
		sl.Reset()
	}
}
