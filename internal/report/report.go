// Package report writes Driver output to CSV: one file per output kind,
// two header comment lines, one column per (realization, motion) channel
// plus optional mean/stdev columns, matching spec §6's output-file contract.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/PlatypusBytes/GoShake/internal/driver"
)

// WriteChannels writes every channel for one output kind to a CSV file at
// path: a comment header naming the kind and channel count, a column-label
// header row, then one row per reference-axis sample.
func WriteChannels(path string, kindName string, ref []float64, channels []driver.ChannelResult, stats *driver.OutputStats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := writeComment(f, fmt.Sprintf("# output: %s", kindName)); err != nil {
		return err
	}
	if err := writeComment(f, fmt.Sprintf("# channels: %d, samples: %d", len(channels), len(ref))); err != nil {
		return err
	}

	header := []string{"ref"}
	for _, c := range channels {
		header = append(header, fmt.Sprintf("r%d_m%d", c.Realization, c.MotionIndex))
	}
	if stats != nil {
		header = append(header, "mean", "stdev")
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("report: writing header: %w", err)
	}

	for i, refVal := range ref {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatFloat(refVal, 'g', -1, 64))
		for _, c := range channels {
			if i < len(c.Result.Data) {
				row = append(row, strconv.FormatFloat(c.Result.Data[i], 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if stats != nil {
			row = append(row, floatOrEmpty(stats.Mean, i), floatOrEmpty(stats.StdDev, i))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("report: writing row %d: %w", i, err)
		}
	}
	return nil
}

func floatOrEmpty(x []float64, i int) string {
	if i >= len(x) {
		return ""
	}
	return strconv.FormatFloat(x[i], 'g', -1, 64)
}

func writeComment(f *os.File, line string) error {
	_, err := fmt.Fprintln(f, line)
	return err
}
