package report

import (
	"io"

	"github.com/sarchlab/pagewalk/mem/vm/mmu"
	"github.com/sarchlab/pagewalk/sim/hooking"
)

// A TranslationPrinter is a hook that prints every translation it sees.
type TranslationPrinter struct {
	writer io.Writer
}

// NewTranslationPrinter creates a TranslationPrinter, injecting the dependency
// of a writer.
func NewTranslationPrinter(w io.Writer) *TranslationPrinter {
	return &TranslationPrinter{writer: w}
}

// Func prints the translation.
func (p *TranslationPrinter) Func(ctx hooking.HookCtx) {
	if ctx.Pos != mmu.HookPosTranslation {
		return
	}

	t, ok := ctx.Item.(mmu.Translation)
	if !ok {
		return
	}

	err := TranslationWithWalk(p.writer, t)
	if err != nil {
		panic(err)
	}
}
