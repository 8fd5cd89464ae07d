// Package cmd provides the command-line interface of pagingwithatc.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sarchlab/pagewalk/config"
	"github.com/sarchlab/pagewalk/datarecording"
	"github.com/sarchlab/pagewalk/logging"
	"github.com/sarchlab/pagewalk/mem/vm/mmu"
	"github.com/sarchlab/pagewalk/monitoring"
	"github.com/sarchlab/pagewalk/report"
	"github.com/sarchlab/pagewalk/simulation"
	"github.com/sarchlab/pagewalk/tracereader"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type flags struct {
	envFile      string
	numAccesses  int
	tlbCapacity  int
	outputMode   string
	tlbPageShift int
	logLevel     string
	logFormat    string
	logOutput    string
	recordDB     string
	monitorPort  int
	openBrowser  bool
}

// NewRootCommand creates the pagingwithatc command.
func NewRootCommand() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:   "pagingwithatc [-n N] [-c N] [-o mode] tracefile bits...",
		Short: "Simulate address translation with a TLB and a multi-level page table.",
		Long: `pagingwithatc reads a binary memory trace and translates every ` +
			`address through a TLB and a multi-level page table. Each trailing ` +
			`argument gives the number of bits used by one page table level, ` +
			`starting from the most significant bits.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd, f, args)
			if err != nil {
				return err
			}

			return run(cmd, c)
		},
	}

	rootCmd.Flags().StringVar(&f.envFile, "env-file", ".env",
		"file with PAGEWALK_* defaults")
	rootCmd.Flags().IntVarP(&f.numAccesses, "num-accesses", "n", -1,
		"number of addresses to process, -1 for the whole trace")
	rootCmd.Flags().IntVarP(&f.tlbCapacity, "capacity", "c", 0,
		"number of TLB entries, 0 disables the TLB")
	rootCmd.Flags().StringVarP(&f.outputMode, "output", "o",
		string(report.DefaultMode), "output mode, one of "+report.ModeNames())
	rootCmd.Flags().IntVar(&f.tlbPageShift, "tlb-page-shift", -1,
		"fixed shift that forms TLB keys, -1 derives it from the level bits")
	rootCmd.Flags().StringVar(&f.logLevel, "log-level", "warn",
		"debug, info, warn or error")
	rootCmd.Flags().StringVar(&f.logFormat, "log-format", "console",
		"console or json")
	rootCmd.Flags().StringVar(&f.logOutput, "log-output", "stderr",
		"stderr, stdout or a file path")
	rootCmd.Flags().StringVar(&f.recordDB, "record-db", "",
		"record translations into this SQLite database, without suffix")
	rootCmd.Flags().IntVar(&f.monitorPort, "monitor-port", 0,
		"serve monitoring on this port, -1 for a random port, 0 to disable")
	rootCmd.Flags().BoolVar(&f.openBrowser, "open-browser", false,
		"open the monitoring page in a browser")

	return rootCmd
}

// Execute runs the command and exits with status 1 on failure.
func Execute() {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(
	cmd *cobra.Command,
	f *flags,
	args []string,
) (config.Config, error) {
	c, err := config.FromEnv(f.envFile)
	if err != nil {
		return c, err
	}

	changed := cmd.Flags().Changed

	if changed("num-accesses") {
		c.NumAccesses = f.numAccesses
	}

	if changed("capacity") {
		c.TLBCapacity = f.tlbCapacity
	}

	if changed("output") {
		c.OutputMode = report.Mode(f.outputMode)
	}

	if changed("tlb-page-shift") {
		c.TLBPageShift = f.tlbPageShift
	}

	if changed("log-level") {
		c.LogLevel = f.logLevel
	}

	if changed("log-format") {
		c.LogFormat = f.logFormat
	}

	if changed("log-output") {
		c.LogOutput = f.logOutput
	}

	if changed("record-db") {
		c.RecordDB = f.recordDB
	}

	if changed("monitor-port") {
		c.MonitorPort = f.monitorPort
	}

	if changed("open-browser") {
		c.OpenBrowser = f.openBrowser
	}

	if len(args) > 0 {
		c.TraceFile = args[0]
	}

	if len(args) > 1 {
		c.LevelBits, err = config.ParseLevelBits(args[1:])
		if err != nil {
			return c, err
		}
	}

	return c, c.Validate()
}

func run(cmd *cobra.Command, c config.Config) error {
	logger, err := logging.New(logging.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: c.LogOutput,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	traceFile, err := tracereader.Open(c.TraceFile)
	if err != nil {
		return err
	}
	defer traceFile.Close()

	mmuComp := mmu.MakeBuilder().
		WithLevels(c.LevelBits...).
		WithTLBCapacity(c.TLBCapacity).
		WithTLBPageShift(c.TLBPageShift).
		WithLogger(logger).
		Build("MMU")

	out := bufio.NewWriter(cmd.OutOrStdout())
	defer out.Flush()

	builder := simulation.MakeBuilder().
		WithMode(c.OutputMode).
		WithNumAccesses(c.NumAccesses).
		WithOutput(out).
		WithLogger(logger).
		WithTraceLength(traceLength(c.TraceFile))

	if c.RecordDB != "" {
		recorder, err := datarecording.New(c.RecordDB)
		if err != nil {
			return err
		}

		logger.Info("recording translations",
			zap.String("file", datarecording.Filename(recorder)))

		builder = builder.WithDataRecorder(recorder)
	}

	if c.MonitorPort != 0 {
		monitor := monitoring.NewMonitor().
			WithLogger(logger).
			WithBrowser(c.OpenBrowser)
		if c.MonitorPort > 0 {
			monitor.WithPortNumber(c.MonitorPort)
		}

		if _, err := monitor.StartServer(); err != nil {
			return err
		}

		defer stopMonitor(monitor, logger)

		builder = builder.WithMonitor(monitor)
	}

	s := builder.Build(mmuComp)
	defer s.Terminate()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	_, err = s.Run(ctx, traceFile)

	return err
}

func traceLength(path string) uint64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}

	return uint64(info.Size()) / tracereader.RecordSize
}

func stopMonitor(monitor *monitoring.Monitor, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := monitor.StopServer(ctx); err != nil {
		logger.Warn("cannot stop monitoring server", zap.Error(err))
	}
}
