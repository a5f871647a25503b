package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHook struct {
	positions []string
}

func (h *recordingHook) Func(ctx HookCtx) {
	h.positions = append(h.positions, ctx.Pos.Name)
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = &HookableBase{}
		pos = &HookPos{Name: "Pos"}
	})

	It("should invoke hooks in registration order", func() {
		h1 := &recordingHook{}
		h2 := &recordingHook{}
		base.AcceptHook(h1)
		base.AcceptHook(h2)

		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(base.Hooks()).To(Equal([]Hook{h1, h2}))
		Expect(h1.positions).To(Equal([]string{"Pos"}))
		Expect(h2.positions).To(Equal([]string{"Pos"}))
	})

	It("should panic on duplicated hooks", func() {
		h := &recordingHook{}
		base.AcceptHook(h)

		Expect(func() { base.AcceptHook(h) }).To(Panic())
	})

	It("should remove hooks", func() {
		h := &recordingHook{}
		base.AcceptHook(h)

		Expect(base.RemoveHook(h)).To(BeTrue())
		Expect(base.RemoveHook(h)).To(BeFalse())

		base.InvokeHook(HookCtx{Domain: base, Pos: pos})
		Expect(h.positions).To(BeEmpty())
	})
})

var _ = Describe("HookFunc", func() {
	It("should let a hook remove itself while invoked", func() {
		base := &HookableBase{}
		calls := 0

		var self HookFunc
		self = func(HookCtx) {
			calls++
			base.RemoveHook(&self)
		}
		other := &recordingHook{}

		base.AcceptHook(&self)
		base.AcceptHook(other)

		base.InvokeHook(HookCtx{Domain: base, Pos: &HookPos{Name: "A"}})
		base.InvokeHook(HookCtx{Domain: base, Pos: &HookPos{Name: "B"}})

		Expect(calls).To(Equal(1))
		Expect(other.positions).To(Equal([]string{"A", "B"}))
		Expect(base.Hooks()).To(Equal([]Hook{other}))
	})
})
