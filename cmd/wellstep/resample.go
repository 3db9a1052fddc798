package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wellstep/internal/export"
	"wellstep/internal/history"
	"wellstep/internal/models"
	"wellstep/internal/services"
	"wellstep/internal/timeseries"
	"wellstep/pkg/logging"
)

type resampleFlags struct {
	out      string
	format   string
	start    string
	step     time.Duration
	points   int
	workers  int
	lenient  bool
	compress bool
	level    int
}

func newResampleCmd(a *app) *cobra.Command {
	f := &resampleFlags{}

	cmd := &cobra.Command{
		Use:   "resample <history.csv>",
		Short: "Resample every well of a history CSV onto a fixed grid",
		Long: `Read a history CSV, split it per well in order of first appearance and
hold each well's last known value at every grid timestamp. Grid points
before a well's first sample are left empty.

The grid defaults to resample.step and resample.points from the
configuration (6h x 116). Input files ending in .zst are decompressed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runResample(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.out, "out", "o", "", "Output file (default: stdout)")
	flags.StringVar(&f.format, "format", "", "Output format: csv or xlsx (default: from --out extension)")
	flags.StringVar(&f.start, "start", "", "Grid start as YYYY-MM-DD or RFC3339 (default: each well's first sample)")
	flags.DurationVar(&f.step, "step", 0, "Grid spacing (default: resample.step)")
	flags.IntVar(&f.points, "points", 0, "Number of grid points (default: resample.points)")
	flags.IntVar(&f.workers, "workers", 0, "Wells resampled in parallel (default: resample.workers)")
	flags.BoolVar(&f.lenient, "lenient", false, "Skip invalid rows instead of failing")
	flags.BoolVar(&f.compress, "zstd", false, "Compress the output with zstd")
	flags.IntVar(&f.level, "zstd-level", 2, "zstd level from 1 (fastest) to 4 (best)")
	return cmd
}

func (a *app) runResample(cmd *cobra.Command, path string, f *resampleFlags) error {
	ctx := cmd.Context()

	format, err := outputFormat(f.format, f.out)
	if err != nil {
		return err
	}

	var req services.GridRequest
	if f.start != "" {
		start, err := parseStart(f.start)
		if err != nil {
			return err
		}
		req.Start = &start
	}
	if f.step < 0 || f.points < 0 {
		return &models.ValidationError{Field: "grid", Message: "step and points must not be negative"}
	}
	req.Step, req.Points = f.step, f.points

	opts := a.cfg.History.Options()
	if f.lenient {
		opts.Lenient = true
	}

	in, err := openInput(path)
	if err != nil {
		return err
	}
	table, err := history.Read(in, opts)
	in.Close()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, rejected := range table.Rejected {
		a.logger.Warn(ctx, "[RESAMPLE_ROW_SKIPPED] Invalid row skipped", logging.Fields{
			"file":  path,
			"error": rejected.Error(),
		})
	}

	series := timeseries.Partition(table.Fields, table.Observations)

	workers := a.cfg.Resample.Workers
	if f.workers > 0 {
		workers = f.workers
	}
	svc := services.NewResampleService(nil, a.logger, a.metrics, services.ResampleOptions{
		Step:    a.cfg.Resample.Step,
		Points:  a.cfg.Resample.Points,
		Workers: workers,
	})

	results, err := svc.ResampleWells(ctx, series, req)
	if err != nil {
		return err
	}

	outPath := outputPath(f.out, f.compress)
	out, err := openOutput(cmd, outPath, f.compress || export.IsCompressed(outPath), f.level)
	if err != nil {
		return err
	}

	timer := a.metrics.NewTimer(a.metrics.ExportDuration.WithLabelValues(format))
	if format == "xlsx" {
		err = export.WriteResampledXLSX(out, results)
	} else {
		err = export.WriteResampledCSV(out, results)
	}
	timer.ObserveDuration()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s output: %w", format, err)
	}

	step, points := req.Step, req.Points
	if step == 0 {
		step = svc.Options().Step
	}
	if points == 0 {
		points = svc.Options().Points
	}

	a.logger.Info(ctx, "[RESAMPLE_COMPLETE] Resampled history written", logging.Fields{
		"file":          path,
		"output":        outPath,
		"format":        format,
		"wells":         len(results),
		"rows":          len(table.Observations),
		"rejected_rows": len(table.Rejected),
		"step":          step.String(),
		"points":        points,
	})
	return nil
}

func parseStart(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &models.ValidationError{
			Field:   "start",
			Value:   s,
			Message: "expected YYYY-MM-DD or RFC3339",
		}
	}
	return t, nil
}
