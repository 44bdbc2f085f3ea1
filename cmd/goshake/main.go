// Command goshake is the batch entry point for the site-response engine:
// it sequentially loads each project file named on the command line, runs
// the Driver over its realization x motion grid, and writes one CSV per
// enabled output.
//
// Usage:
//
//	goshake run --batch project1.json --batch project2.json
//	goshake run --batch project1.json --settings run-settings.yaml
//
// Exit code is 0 on success, nonzero if any project file failed to open or
// run, matching the batch contract this tool was adapted from.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/PlatypusBytes/GoShake/internal/driver"
	"github.com/PlatypusBytes/GoShake/internal/iterator"
	"github.com/PlatypusBytes/GoShake/internal/profile"
	"github.com/PlatypusBytes/GoShake/internal/project"
	"github.com/PlatypusBytes/GoShake/internal/report"
	"github.com/PlatypusBytes/GoShake/pkg/textlog"
)

// RunSettings is the ambient CLI configuration — worker pool size and log
// verbosity — kept separate from the validated JSON project document per
// spec §6: it governs how the batch runs, not what it computes.
type RunSettings struct {
	Workers   int    `yaml:"workers"`
	LogLevel  string `yaml:"log_level"`
	OutputDir string `yaml:"output_dir"`
	Periods   []float64 `yaml:"periods"`
	Damping   float64   `yaml:"damping"`
}

func defaultSettings() RunSettings {
	periods := make([]float64, 0, 30)
	for _, p := range []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1.0, 1.5, 2.0, 3.0, 5.0, 7.5, 10.0} {
		periods = append(periods, p)
	}
	return RunSettings{Workers: 4, LogLevel: "low", OutputDir: ".", Periods: periods, Damping: 0.05}
}

func loadSettings(path string) (RunSettings, error) {
	settings := defaultSettings()
	if path == "" {
		return settings, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("reading run settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parsing run settings: %w", err)
	}
	return settings, nil
}

func main() {
	app := &cli.App{
		Name:  "goshake",
		Usage: "batch 1D equivalent-linear site-response analysis",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run one or more project files",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "batch", Required: true, Usage: "project JSON files to run"},
					&cli.StringFlag{Name: "settings", Usage: "optional YAML run-settings file"},
				},
				Action: runCommand,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "goshake:", err)
		os.Exit(1)
	}
}

func runCommand(c *cli.Context) error {
	settings, err := loadSettings(c.String("settings"))
	if err != nil {
		return err
	}
	log := textlog.New(textlog.ParseLevel(settings.LogLevel), zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	failures := 0
	for _, path := range c.StringSlice("batch") {
		log.Append(fmt.Sprintf("loading project %s", path))
		if err := runProject(path, settings, log); err != nil {
			log.Logf(textlog.Low, "project %s failed: %v", path, err)
			failures++
			continue
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d project(s) failed", failures, len(c.StringSlice("batch")))
	}
	return nil
}

func runProject(path string, settings RunSettings, log *textlog.Log) error {
	doc, err := project.Load(path)
	if err != nil {
		return err
	}
	u, err := doc.BuildUnits()
	if err != nil {
		return err
	}
	prof, err := doc.BuildProfile()
	if err != nil {
		return err
	}
	motions, err := doc.BuildMotions(u)
	if err != nil {
		return err
	}
	mode, err := doc.BuildMode()
	if err != nil {
		return err
	}
	outputs, err := doc.BuildOutputs(settings.Periods, settings.Damping)
	if err != nil {
		return err
	}

	d := driver.New(mode, u, outputs)
	d.Workers = settings.Workers
	d.Log = log
	d.MaxIterations = doc.Iterator.MaxIterations
	d.ErrorTolerance = doc.Iterator.ErrorTolerance

	progressCh := make(chan driver.Progress, 8)
	cancel := &iterator.Cancel{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progressCh {
			log.Logf(textlog.Low, "progress %d/%d", p.Current, p.Total)
		}
	}()

	results, failures, stats, err := d.Run([]*profile.Profile{prof}, motions, progressCh, cancel)
	close(progressCh)
	<-done
	if err != nil {
		return err
	}
	for _, f := range failures {
		log.Logf(textlog.Medium, "run failed: %v", f)
	}

	base := filepath.Base(path)
	stem := base[:len(base)-len(filepath.Ext(base))]
	statsByKind := make(map[int]*driver.OutputStats)
	for i := range stats {
		statsByKind[int(stats[i].Kind)] = &stats[i]
	}
	channelsByKind := make(map[int][]driver.ChannelResult)
	for _, r := range results {
		channelsByKind[int(r.Kind)] = append(channelsByKind[int(r.Kind)], r)
	}
	for kind, channels := range channelsByKind {
		if len(channels) == 0 {
			continue
		}
		outPath := filepath.Join(settings.OutputDir, fmt.Sprintf("%s_output%d.csv", stem, kind))
		if err := report.WriteChannels(outPath, fmt.Sprintf("kind-%d", kind), channels[0].Result.Ref, channels, statsByKind[kind]); err != nil {
			return err
		}
	}
	return nil
}
