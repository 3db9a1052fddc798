package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wellstep/internal/export"
	"wellstep/internal/models"
	"wellstep/internal/nexus"
	"wellstep/pkg/logging"
)

type nexusFlags struct {
	out       string
	className string
	varName   string
	compress  bool
	level     int
}

func newNexusCmd(a *app) *cobra.Command {
	f := &nexusFlags{}

	cmd := &cobra.Command{
		Use:   "nexus <plotfile>",
		Short: "Flatten a Nexus plot file into a six-column CSV",
		Long: `Decode a Nexus binary plot file and write one row per value with the
columns timestep, time, classname, instancename, varname, value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runNexus(cmd, args[0], f, nexus.NewAdapter(nil))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.out, "out", "o", "", "Output file (default: stdout)")
	flags.StringVar(&f.className, "classname", "", "Keep only this class, e.g. WELL")
	flags.StringVar(&f.varName, "varname", "", "Keep only this variable, e.g. COP")
	flags.BoolVar(&f.compress, "zstd", false, "Compress the output with zstd")
	flags.IntVar(&f.level, "zstd-level", 2, "zstd level from 1 (fastest) to 4 (best)")
	return cmd
}

func (a *app) runNexus(cmd *cobra.Command, path string, f *nexusFlags, adapter *nexus.Adapter) error {
	ctx := cmd.Context()

	records, err := adapter.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load plot file: %w", err)
	}
	a.metrics.NexusRecordsDecoded.Add(float64(len(records)))

	total := len(records)
	records = filterRecords(records, f.className, f.varName)

	outPath := outputPath(f.out, f.compress)
	out, err := openOutput(cmd, outPath, f.compress || export.IsCompressed(outPath), f.level)
	if err != nil {
		return err
	}

	timer := a.metrics.NewTimer(a.metrics.ExportDuration.WithLabelValues("csv"))
	err = export.WriteNexusCSV(out, records)
	timer.ObserveDuration()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write csv output: %w", err)
	}

	a.logger.Info(ctx, "[NEXUS_COMPLETE] Plot file flattened", logging.Fields{
		"file":    path,
		"output":  outPath,
		"decoded": total,
		"written": len(records),
	})
	return nil
}

func filterRecords(records []*models.NexusRecord, className, varName string) []*models.NexusRecord {
	if className == "" && varName == "" {
		return records
	}
	kept := make([]*models.NexusRecord, 0, len(records))
	for _, rec := range records {
		if className != "" && rec.ClassName != className {
			continue
		}
		if varName != "" && rec.VarName != varName {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}
