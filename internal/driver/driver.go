// Package driver orchestrates the Cartesian product of site realizations
// and motions: for every (realization, motion) pair it runs the iterator,
// extracts the enabled outputs, and aggregates statistics across the
// ensemble once every run has completed.
//
// Runs are independent and embarrassingly parallel; this package executes
// them over a bounded worker pool with non-blocking progress reporting,
// adapted to this domain's (realization, motion) grid.
package driver

import (
	"fmt"
	"math"
	"sync"

	"github.com/alitto/pond"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/PlatypusBytes/GoShake/internal/extract"
	"github.com/PlatypusBytes/GoShake/internal/iterator"
	"github.com/PlatypusBytes/GoShake/internal/motion"
	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/internal/propagator"
	"github.com/PlatypusBytes/GoShake/pkg/textlog"
	"github.com/PlatypusBytes/GoShake/pkg/units"
)

// Progress is a (current, total) pair delivered on a non-blocking channel;
// dropping one must never stall the computation.
type Progress struct {
	Current int
	Total   int
}

// OutputSpec names one enabled extractor plus the parameters its Context
// needs (periods, damping, a secondary location), independent of any one
// (realization, motion) pair.
type OutputSpec struct {
	Kind          extract.Kind
	Periods       []float64
	Damping       float64
	Location      profile.Location // observation point for single-point outputs
	SecondaryLoc  profile.Location
	SecondaryType propagator.MotionType
	Lognormal     bool // statistics are computed in log-space when true
}

// RunError wraps a single (realization, motion) failure for reporting; the
// Driver itself never aborts on one.
type RunError struct {
	Realization int
	MotionIndex int
	Err         error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("driver: realization %d motion %d: %v", e.Realization, e.MotionIndex, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// ChannelResult is one successfully extracted output for one (realization,
// motion) pair.
type ChannelResult struct {
	Realization int
	MotionIndex int
	Kind        extract.Kind
	Converged   bool
	Result      extract.Result
}

// OutputStats summarizes one output kind across the full (r, m) ensemble:
// the reference axis (shared across channels) and a per-ref-index
// mean/stdev (in log-space when the spec declares the quantity lognormal).
type OutputStats struct {
	Kind   extract.Kind
	Ref    []float64
	Mean   []float64
	StdDev []float64
}

// Driver runs the realization x motion grid for a fixed IterationMode and
// unit system.
type Driver struct {
	Mode               iterator.Mode
	Units              units.UnitSystem
	InputType          propagator.MotionType
	OutputType         propagator.MotionType
	Outputs            []OutputSpec
	Workers            int
	Log                *textlog.Log
	AcceptNotConverged bool
	MaxIterations      int     // 0 keeps the Iterator default (10)
	ErrorTolerance     float64 // 0 keeps the Iterator default (2.0%)
}

// New builds a Driver with a default worker count of 4 and no Log; nothing
// is logged until the caller sets one.
func New(mode iterator.Mode, u units.UnitSystem, outputs []OutputSpec) *Driver {
	return &Driver{
		Mode:       mode,
		Units:      u,
		InputType:  propagator.Within,
		OutputType: propagator.Within,
		Outputs:    outputs,
		Workers:    4,
	}
}

// Run executes the Driver over realizations x motions, returning every
// successfully extracted channel, the failures encountered along the way,
// and per-output statistics over the surviving (r, m) pairs. Progress
// events are sent on progressCh without blocking if the channel is full or
// nil; cancel may be nil.
func (d *Driver) Run(realizations []*profile.Profile, motions []motion.Motion, progressCh chan<- Progress, cancel *iterator.Cancel) ([]ChannelResult, []*RunError, []OutputStats, error) {
	if len(realizations) < 1 {
		return nil, nil, nil, fmt.Errorf("driver: at least one realization is required")
	}
	if len(motions) < 1 {
		return nil, nil, nil, fmt.Errorf("driver: at least one enabled motion is required")
	}

	total := len(realizations) * len(motions)
	pool := pond.New(maxInt(d.Workers, 1), total)

	var mu sync.Mutex
	var results []ChannelResult
	var failures []*RunError
	done := 0

	for r, p := range realizations {
		for mIdx, m := range motions {
			r, mIdx, m := r, mIdx, m
			// Each task iterates on its own copy of the realization's
			// sub-layers, so motions of one realization never share state.
			p := &profile.Profile{Bedrock: p.Bedrock, InputLocation: p.InputLocation}
			for _, sl := range realizations[r].SubLayers {
				c := *sl
				p.SubLayers = append(p.SubLayers, &c)
			}
			pool.Submit(func() {
				it := iterator.New(d.Mode, d.Units)
				it.InputMotionType = d.InputType
				if d.MaxIterations > 0 {
					it.MaxIterations = d.MaxIterations
				}
				if d.ErrorTolerance > 0 {
					it.ErrorTolerance = d.ErrorTolerance
				}
				res := it.Run(m, p, cancel)

				mu.Lock()
				defer mu.Unlock()
				done++
				if progressCh != nil {
					select {
					case progressCh <- Progress{Current: done, Total: total}:
					default:
					}
				}

				if res.Status == iterator.Failed {
					failures = append(failures, &RunError{Realization: r, MotionIndex: mIdx, Err: res.Err})
					p.ResetAll()
					return
				}
				if res.Status == iterator.NotConverged && !d.AcceptNotConverged {
					if d.Log != nil {
						d.Log.Logf(textlog.Medium, "realization %d motion %d: not converged (max error %.2f%%)", r, mIdx, res.MaxError)
					}
				}

				ctx := extract.Context{
					Units:      d.Units,
					Profile:    p,
					Motion:     m,
					Prop:       propagator.New(p, d.Units),
					State:      res.State,
					InputType:  d.InputType,
					OutputType: d.OutputType,
				}
				for _, spec := range d.Outputs {
					ctx.Periods = spec.Periods
					ctx.Damping = spec.Damping
					ctx.Location = spec.Location
					ctx.SecondaryLoc = spec.SecondaryLoc
					ctx.SecondaryType = spec.SecondaryType
					out, err := extract.Extract(spec.Kind, ctx)
					if err != nil {
						continue // MotionIncompatible: skip this extractor for this motion
					}
					results = append(results, ChannelResult{
						Realization: r,
						MotionIndex: mIdx,
						Kind:        spec.Kind,
						Converged:   res.Status == iterator.Converged,
						Result:      out,
					})
				}
				p.ResetAll()
			})
		}
	}

	pool.StopAndWait()

	// A propagation failure invalidates its whole realization, not just the
	// motion that triggered it: drop every channel already collected from
	// the realization's other motions before computing statistics, mirroring
	// the source's removeLastSite() on failure.
	failed := make(map[int]bool, len(failures))
	for _, f := range failures {
		failed[f.Realization] = true
	}
	if len(failed) > 0 {
		surviving := results[:0]
		for _, c := range results {
			if !failed[c.Realization] {
				surviving = append(surviving, c)
			}
		}
		results = surviving
	}

	stats := d.computeStatistics(results)
	return results, failures, stats, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// computeStatistics aggregates mean/stdev per output kind and reference
// index across the ensemble of surviving channels, in log-space for
// lognormal outputs.
func (d *Driver) computeStatistics(results []ChannelResult) []OutputStats {
	lognormal := make(map[extract.Kind]bool, len(d.Outputs))
	for _, spec := range d.Outputs {
		lognormal[spec.Kind] = spec.Lognormal
	}

	byKind := lo.GroupBy(results, func(c ChannelResult) extract.Kind { return c.Kind })

	var out []OutputStats
	for kind, channels := range byKind {
		if len(channels) == 0 {
			continue
		}
		ref := channels[0].Result.Ref
		n := len(ref)
		mean := make([]float64, n)
		stdev := make([]float64, n)
		for i := 0; i < n; i++ {
			samples := make([]float64, 0, len(channels))
			for _, c := range channels {
				if i >= len(c.Result.Data) {
					continue
				}
				v := c.Result.Data[i]
				if lognormal[kind] {
					if v <= 0 {
						continue
					}
					v = math.Log(v)
				}
				samples = append(samples, v)
			}
			if len(samples) == 0 {
				continue
			}
			m, s := stat.MeanStdDev(samples, nil)
			mean[i], stdev[i] = m, s
		}
		out = append(out, OutputStats{Kind: kind, Ref: ref, Mean: mean, StdDev: stdev})
	}
	return out
}
