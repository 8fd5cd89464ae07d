package simulation

import (
	"io"

	"github.com/rs/xid"
	"github.com/sarchlab/pagewalk/datarecording"
	"github.com/sarchlab/pagewalk/mem/trace"
	"github.com/sarchlab/pagewalk/mem/vm/mmu"
	"github.com/sarchlab/pagewalk/monitoring"
	"github.com/sarchlab/pagewalk/report"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Builder can be used to build a simulation.
type Builder struct {
	mode             report.Mode
	numAccesses      int
	output           io.Writer
	monitor          *monitoring.Monitor
	dataRecorder     datarecording.DataRecorder
	logger           *zap.Logger
	snapshotInterval uint64
	traceLength      uint64
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		mode:             report.DefaultMode,
		numAccesses:      -1,
		output:           io.Discard,
		logger:           zap.NewNop(),
		snapshotInterval: 10000,
	}
}

// WithMode sets what is printed for each address.
func (b Builder) WithMode(mode report.Mode) Builder {
	b.mode = mode
	return b
}

// WithNumAccesses limits the number of addresses processed. -1 processes the
// whole trace.
func (b Builder) WithNumAccesses(n int) Builder {
	b.numAccesses = n
	return b
}

// WithOutput sets where the report is written.
func (b Builder) WithOutput(w io.Writer) Builder {
	b.output = w
	return b
}

// WithMonitor sets the monitor that receives progress and statistics.
func (b Builder) WithMonitor(m *monitoring.Monitor) Builder {
	b.monitor = m
	return b
}

// WithDataRecorder records every translation and the summary into the
// data recorder.
func (b Builder) WithDataRecorder(r datarecording.DataRecorder) Builder {
	b.dataRecorder = r
	return b
}

// WithLogger sets the logger. Translations are logged when the logger is
// enabled at debug level.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// WithSnapshotInterval sets after how many addresses the statistics are
// published to the monitor.
func (b Builder) WithSnapshotInterval(n uint64) Builder {
	b.snapshotInterval = n
	return b
}

// WithTraceLength sets the number of records in the trace. It is only used
// to size the progress bar.
func (b Builder) WithTraceLength(n uint64) Builder {
	b.traceLength = n
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.numAccesses < -1 {
		panic("number of accesses must be -1 or more")
	}

	if b.snapshotInterval == 0 {
		panic("snapshot interval must be greater than 0")
	}

	if _, err := report.ParseMode(string(b.mode)); err != nil {
		panic(err)
	}
}

// Build builds a simulation that drives the given MMU.
func (b Builder) Build(m *mmu.Comp) *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:               xid.New().String(),
		mmu:              m,
		mode:             b.mode,
		numAccesses:      b.numAccesses,
		output:           b.output,
		monitor:          b.monitor,
		dataRecorder:     b.dataRecorder,
		logger:           b.logger,
		snapshotInterval: b.snapshotInterval,
	}

	if b.mode == report.ModeVA2PAWithWalk {
		m.AcceptHook(report.NewTranslationPrinter(b.output))
		s.detailed = true
	}

	if b.dataRecorder != nil {
		s.dbTracer = trace.NewDBTracer(b.dataRecorder)
		m.AcceptHook(s.dbTracer)
		s.detailed = true
	}

	if b.logger.Core().Enabled(zapcore.DebugLevel) {
		m.AcceptHook(trace.NewLogTracer(b.logger))
		s.detailed = true
	}

	if b.monitor != nil {
		s.progressBar = b.monitor.CreateProgressBar(m.Name(), b.progressTotal())
	}

	return s
}

func (b Builder) progressTotal() uint64 {
	if b.numAccesses >= 0 &&
		(b.traceLength == 0 || uint64(b.numAccesses) < b.traceLength) {
		return uint64(b.numAccesses)
	}

	return b.traceLength
}
