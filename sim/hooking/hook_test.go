package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		hookable *HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		hookable = &HookableBase{}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke hooks in registration order", func() {
		first := NewMockHook(mockCtrl)
		second := NewMockHook(mockCtrl)
		pos := &HookPos{Name: "Test"}
		ctx := HookCtx{Pos: pos, Item: 1}

		gomock.InOrder(
			first.EXPECT().Func(ctx),
			second.EXPECT().Func(ctx),
		)

		hookable.AcceptHook(first)
		hookable.AcceptHook(second)
		hookable.InvokeHook(ctx)

		Expect(hookable.NumHooks()).To(Equal(2))
	})

	It("should panic on duplicated hook", func() {
		hook := NewMockHook(mockCtrl)
		hookable.AcceptHook(hook)

		Expect(func() { hookable.AcceptHook(hook) }).To(Panic())
	})

	It("should accept plain functions", func() {
		called := 0
		f := HookFunc(func(HookCtx) { called++ })

		hookable.AcceptHook(f)
		hookable.AcceptHook(f)
		hookable.InvokeHook(HookCtx{})

		Expect(called).To(Equal(2))
	})
})
