package queueing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tempolab/modchart/sim/hooking"
)

type posRecorder struct {
	positions []*hooking.HookPos
	items     []any
}

func (r *posRecorder) Func(ctx hooking.HookCtx) {
	r.positions = append(r.positions, ctx.Pos)
	r.items = append(r.items, ctx.Item)
}

var _ = Describe("Buffer", func() {
	var buf *Buffer[int]

	BeforeEach(func() {
		buf = NewBuffer[int]("Buf", 2)
	})

	It("should push and pop in order", func() {
		Expect(buf.Name()).To(Equal("Buf"))
		Expect(buf.Capacity()).To(Equal(2))
		Expect(buf.CanPush()).To(BeTrue())

		buf.Push(1)
		buf.Push(2)
		Expect(buf.CanPush()).To(BeFalse())
		Expect(buf.Size()).To(Equal(2))
		Expect(func() { buf.Push(3) }).To(PanicWith("buffer Buf overflow"))

		e, ok := buf.Peek()
		Expect(ok).To(BeTrue())
		Expect(e).To(Equal(1))

		e, ok = buf.Pop()
		Expect(ok).To(BeTrue())
		Expect(e).To(Equal(1))

		e, _ = buf.Pop()
		Expect(e).To(Equal(2))
		Expect(buf.Size()).To(BeZero())
	})

	It("should report an empty buffer", func() {
		_, ok := buf.Peek()
		Expect(ok).To(BeFalse())

		e, ok := buf.Pop()
		Expect(ok).To(BeFalse())
		Expect(e).To(BeZero())
	})

	It("should clear", func() {
		buf.Push(2)
		buf.Clear()

		Expect(buf.Size()).To(BeZero())
		Expect(buf.CanPush()).To(BeTrue())
	})

	It("should invoke push and pop hooks", func() {
		r := &posRecorder{}
		buf.AcceptHook(r)

		buf.Push(7)
		buf.Pop()
		buf.Pop()

		Expect(r.positions).To(Equal(
			[]*hooking.HookPos{HookPosBufPush, HookPosBufPop}))
		Expect(r.items).To(Equal([]any{7, 7}))
	})

	It("should never be full when unbounded", func() {
		unbounded := NewBuffer[string]("Unbounded", Unbounded)

		for i := 0; i < 1000; i++ {
			unbounded.Push("x")
		}

		Expect(unbounded.CanPush()).To(BeTrue())
		Expect(unbounded.Size()).To(Equal(1000))
	})
})
