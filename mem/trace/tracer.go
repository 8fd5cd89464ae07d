// Package trace provides hooks that record what an MMU does.
package trace

import (
	"fmt"

	"github.com/rs/xid"
	"github.com/sarchlab/pagewalk/datarecording"
	"github.com/sarchlab/pagewalk/mem/vm/mmu"
	"github.com/sarchlab/pagewalk/sim/hooking"
	"go.uber.org/zap"
)

// Table names used by the DBTracer.
const (
	TranslationTable = "translations"
	SummaryTable     = "summaries"
	WrapTable        = "frame_counter_wraps"
)

// translationEntry represents a translation in the database
type translationEntry struct {
	ID           string
	Location     string
	Seq          uint64
	VAddr        uint32
	PAddr        uint32
	VPN          uint32
	Frame        uint32
	TLBHit       bool
	PageTableHit bool
}

// summaryEntry represents the statistics of a run in the database
type summaryEntry struct {
	RunID              string
	Location           string
	PageSize           uint64
	CacheHits          uint64
	PageTableHits      uint64
	Misses             uint64
	AddressesProcessed uint64
	FramesAllocated    uint64
	PageTableEntries   uint64
	PageTableNodes     uint64
	HitPercent         float64
}

type wrapEntry struct {
	RunID           string
	Location        string
	FramesAllocated uint64
}

// A DBTracer is a hook that records translations into a database using the
// data recorder.
type DBTracer struct {
	runID        string
	seq          uint64
	dataRecorder datarecording.DataRecorder
}

// NewDBTracer creates a new database-based tracer.
func NewDBTracer(dataRecorder datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{
		runID:        xid.New().String(),
		dataRecorder: dataRecorder,
	}

	t.dataRecorder.CreateTable(TranslationTable, translationEntry{})
	t.dataRecorder.CreateTable(SummaryTable, summaryEntry{})
	t.dataRecorder.CreateTable(WrapTable, wrapEntry{})

	return t
}

// RunID returns the identifier shared by all rows of this run.
func (t *DBTracer) RunID() string {
	return t.runID
}

// Func records translations and frame counter wraps.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case mmu.HookPosTranslation:
		tr, ok := ctx.Item.(mmu.Translation)
		if !ok {
			return
		}

		t.seq++
		t.dataRecorder.InsertData(TranslationTable, translationEntry{
			ID:           xid.New().String(),
			Location:     location(ctx),
			Seq:          t.seq,
			VAddr:        tr.VAddr,
			PAddr:        tr.PAddr,
			VPN:          tr.VPN,
			Frame:        tr.Frame,
			TLBHit:       tr.TLBHit,
			PageTableHit: tr.PageTableHit,
		})
	case mmu.HookPosFrameCounterWrap:
		frames, _ := ctx.Item.(uint64)
		t.dataRecorder.InsertData(WrapTable, wrapEntry{
			RunID:           t.runID,
			Location:        location(ctx),
			FramesAllocated: frames,
		})
	}
}

// RecordSummary stores the statistics of the run.
func (t *DBTracer) RecordSummary(location string, s mmu.Summary) {
	hit, _ := s.HitPercent()

	t.dataRecorder.InsertData(SummaryTable, summaryEntry{
		RunID:              t.runID,
		Location:           location,
		PageSize:           s.PageSize,
		CacheHits:          s.CacheHits,
		PageTableHits:      s.PageTableHits,
		Misses:             s.Misses(),
		AddressesProcessed: s.AddressesProcessed,
		FramesAllocated:    s.FramesAllocated,
		PageTableEntries:   s.PageTableEntries,
		PageTableNodes:     s.PageTableNodes,
		HitPercent:         hit,
	})
}

// A LogTracer is a hook that writes translations to a logger at debug level.
type LogTracer struct {
	logger *zap.Logger
}

// NewLogTracer creates a new LogTracer.
func NewLogTracer(logger *zap.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Func logs the translation.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != mmu.HookPosTranslation {
		return
	}

	tr, ok := ctx.Item.(mmu.Translation)
	if !ok {
		return
	}

	t.logger.Debug("translation",
		zap.String("location", location(ctx)),
		zap.String("vaddr", fmt.Sprintf("%08X", tr.VAddr)),
		zap.String("paddr", fmt.Sprintf("%08X", tr.PAddr)),
		zap.Uint32("frame", tr.Frame),
		zap.Bool("tlb_hit", tr.TLBHit),
		zap.Bool("page_table_hit", tr.PageTableHit))
}

func location(ctx hooking.HookCtx) string {
	if ctx.Domain == nil {
		return ""
	}

	return ctx.Domain.Name()
}
