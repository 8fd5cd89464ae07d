// Package simulation drives a memory trace through an MMU and reports the
// outcome.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/pagewalk/datarecording"
	"github.com/sarchlab/pagewalk/mem/trace"
	"github.com/sarchlab/pagewalk/mem/vm/mmu"
	"github.com/sarchlab/pagewalk/monitoring"
	"github.com/sarchlab/pagewalk/report"
	"go.uber.org/zap"
)

// An AddressSource yields the addresses of a trace. It returns io.EOF when
// the trace ends.
type AddressSource interface {
	NextAddress() (uint32, error)
}

// A Simulation runs one trace through one MMU.
type Simulation struct {
	id               string
	mmu              *mmu.Comp
	mode             report.Mode
	numAccesses      int
	output           io.Writer
	detailed         bool
	snapshotInterval uint64

	monitor     *monitoring.Monitor
	progressBar *monitoring.ProgressBar

	dataRecorder datarecording.DataRecorder
	dbTracer     *trace.DBTracer

	logger *zap.Logger

	processed uint64
}

// ID returns the identifier of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// AddressesProcessed returns the number of addresses processed so far.
func (s *Simulation) AddressesProcessed() uint64 {
	return s.processed
}

// Run reads addresses from the source until it ends, the access limit is
// reached, or the context is cancelled. It returns the statistics of the
// run. A cancelled run still returns the statistics collected so far.
func (s *Simulation) Run(
	ctx context.Context,
	src AddressSource,
) (mmu.Summary, error) {
	if s.mode == report.ModeBitmasks {
		err := report.Bitmasks(s.output, s.mmu.Levels().LevelMasks())
		return s.mmu.Summary(0), err
	}

	err := s.processAll(ctx, src)
	summary := s.mmu.Summary(s.processed)
	s.publish(summary)

	if err != nil {
		return summary, err
	}

	if s.mode == report.ModeSummary {
		if err := report.Summary(s.output, summary); err != nil {
			return summary, err
		}
	}

	s.logger.Info("simulation finished",
		zap.String("id", s.id),
		zap.Uint64("addresses_processed", summary.AddressesProcessed),
		zap.Uint64("frames_allocated", summary.FramesAllocated))

	return summary, nil
}

func (s *Simulation) processAll(ctx context.Context, src AddressSource) error {
	for s.numAccesses < 0 || s.processed < uint64(s.numAccesses) {
		if err := ctx.Err(); err != nil {
			return err
		}

		addr, err := src.NextAddress()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("address %d: %w", s.processed, err)
		}

		if err := s.process(addr); err != nil {
			return err
		}

		s.processed++

		if s.processed%s.snapshotInterval == 0 {
			s.publish(s.mmu.Summary(s.processed))
		}
	}

	return nil
}

func (s *Simulation) process(addr uint32) error {
	if !s.mode.TranslatesAddresses() {
		return report.Offset(s.output, s.mmu.Levels().Offset(addr))
	}

	frame := s.mmu.RecordPageAccess(addr, s.detailed)

	switch s.mode {
	case report.ModeVPN2PFN:
		return report.PageMapping(s.output, s.mmu.Levels().PageIndices(addr), frame)
	case report.ModeVA2PA:
		return report.VirtualToPhysical(s.output,
			addr, s.mmu.PhysicalAddress(addr, frame))
	}

	return nil
}

func (s *Simulation) publish(summary mmu.Summary) {
	if s.monitor == nil {
		return
	}

	s.monitor.UpdateStats(s.mmu.Name(), summary)
	s.progressBar.SetFinished(s.processed)
}

// Terminate records the final statistics and releases the data recorder and
// the progress bar.
func (s *Simulation) Terminate() {
	if s.dbTracer != nil {
		s.dbTracer.RecordSummary(s.mmu.Name(), s.mmu.Summary(s.processed))
	}

	if s.dataRecorder != nil {
		s.dataRecorder.Close()
	}

	if s.monitor != nil {
		s.monitor.CompleteProgressBar(s.progressBar)
	}
}
