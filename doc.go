// Package goshake is a Go library and CLI for one-dimensional equivalent-linear
// site response analysis: propagating a ground motion through a layered soil
// column to a target location, iterating nonlinear soil properties to
// strain-compatible values along the way.
//
// # Overview
//
// GoShake solves the frequency-domain SH-wave propagation problem for a
// horizontally layered soil column over an elastic bedrock half-space. Given
// an input acceleration time series and a profile of sub-layers with
// strain-dependent modulus-reduction and damping curves, it computes transfer
// functions between any two depths and iterates the column's complex shear
// moduli to convergence.
//
// # Key Features
//
//   - Linear-elastic, equivalent-linear (EQL), and frequency-dependent (FDM)
//     iteration modes
//   - Multiple motion-boundary interpretations (outcrop, within, incoming-only)
//   - A capability-keyed extractor table covering acceleration, strain and
//     stress profiles, response spectra, transfer functions, time series, and
//     ensemble statistics
//   - Parallel batch execution across a Cartesian product of realizations and
//     motions
//   - JSON project documents as the external, serializable unit of work
//
// # Methodology
//
// The propagation and iteration formulas follow the equivalent-linear method
// popularized by SHAKE (Schnabel, Lysmer & Seed, 1972) and its frequency-
// dependent extension (Kausel & Assimaki, 2002), as implemented by the Strata
// site response program (Kottke & Rathje).
//
// Kausel, E., & Assimaki, D. (2002).
// "Seismic Simulation of Inelastic Soils via Frequency-Dependent Moduli and
// Damping". Journal of Engineering Mechanics, 128(1), 34-47.
//
// # Architecture
//
// The package is organized into several key components:
//
//   - pkg/units: explicit gravity/length unit system, threaded through
//     constructors rather than carried as global state
//   - pkg/numerics: complex shear modulus, FFT/IFFT, least-squares fitting
//     and log-strain interpolation
//   - pkg/textlog: leveled (low/medium/high) run log
//   - internal/profile: layered soil column and its strain-dependent state
//   - internal/motion: time-series motions, Fourier/response-spectrum/Arias
//     computations, multi-layout file loading
//   - internal/propagator: the SH-wave recursion and transfer functions
//   - internal/iterator: the outer strain-compatibility loop (linear-elastic,
//     EQL, FDM)
//   - internal/extract: named output extraction from a converged run
//   - internal/driver: realization x motion batch orchestration and ensemble
//     statistics
//   - internal/project: JSON project document loading
//   - internal/report: CSV channel output
//
// # Commands
//
// GoShake provides a single command-line tool, cmd/goshake:
//
//	# Run one or more JSON project documents
//	./goshake run --batch project.json --batch project2.json
//
// Each project names its soil profile, motions, iteration mode, and enabled
// outputs; results are written as one CSV file per enabled output kind.
//
// # Library Usage
//
//	import (
//		"github.com/PlatypusBytes/GoShake/internal/iterator"
//		"github.com/PlatypusBytes/GoShake/pkg/units"
//	)
//
//	func run(m motion.Motion, p *profile.Profile) *iterator.Result {
//		it := iterator.New(iterator.Mode{Kind: iterator.EQL}, units.Metric)
//		return it.Run(m, p, nil)
//	}
//
// # References
//
// For more detailed information, see SPEC_FULL.md and DESIGN.md in this
// repository.
package goshake
