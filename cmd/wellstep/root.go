package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"wellstep/internal/config"
	"wellstep/internal/export"
	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "wellstep",
		Short: "Resample well histories and flatten Nexus plot files",
		Long: `wellstep reads well production history CSVs, splits them per well and
resamples every well onto a fixed time grid with a zero-order hold.
It also converts Nexus binary plot files into flat tables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default: $WELLSTEP_CONFIG or ./config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newResampleCmd(a),
		newNexusCmd(a),
		newWellsCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.Load(a.configPath, true)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	opts := cfg.Logging.Options()
	opts.Output = cmd.ErrOrStderr()

	a.cfg = cfg
	a.logger = logging.New("wellstep-cli", version, opts)
	a.metrics = metrics.NewCollectorWithRegistry("wellstep_cli", prometheus.NewRegistry())
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wellstep %s\n", version)
		},
	}
}

// openInput opens path, decompressing .zst files transparently
func openInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if !export.IsCompressed(path) {
		return f, nil
	}

	zr, err := export.NewZstdReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open zstd stream %s: %w", path, err)
	}
	return &stackedCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
}

// output is a destination stream plus everything that must be closed, in order
type output struct {
	io.Writer
	closers []io.Closer
}

// openOutput creates path (stdout for "" or "-") and wraps it in a zstd
// stream when compress is set
func openOutput(cmd *cobra.Command, path string, compress bool, level int) (*output, error) {
	out := &output{Writer: cmd.OutOrStdout()}

	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		out.Writer = f
		out.closers = append(out.closers, f)
	}

	if compress {
		zw, err := export.NewZstdWriter(out.Writer, level)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.Writer = zw
		out.closers = append([]io.Closer{zw}, out.closers...)
	}
	return out, nil
}

// Close flushes the compressor before closing the file
func (o *output) Close() error {
	var first error
	for _, c := range o.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	o.closers = nil
	return first
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// outputPath appends the zstd extension when compression is requested
// for a named file that lacks it
func outputPath(path string, compress bool) string {
	if compress && path != "" && path != "-" && !export.IsCompressed(path) {
		return path + export.ZstdExt
	}
	return path
}

// outputFormat picks the table format from the flag or the file extension
func outputFormat(flag, path string) (string, error) {
	switch strings.ToLower(flag) {
	case "csv", "xlsx":
		return strings.ToLower(flag), nil
	case "":
	default:
		return "", fmt.Errorf("unknown format %q, expected csv or xlsx", flag)
	}

	name := strings.TrimSuffix(strings.ToLower(path), export.ZstdExt)
	if strings.HasSuffix(name, ".xlsx") {
		return "xlsx", nil
	}
	return "csv", nil
}
