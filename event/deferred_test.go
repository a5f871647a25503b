package event

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/sim/queueing"
)

type countingHook struct {
	pushes, pops int
}

func (h *countingHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case queueing.HookPosBufPush:
		h.pushes++
	case queueing.HookPosBufPop:
		h.pops++
	}
}

var _ = Describe("DeferredQueue", func() {
	var (
		mockCtrl *gomock.Controller
		target   *MockEmitter
		queue    *DeferredQueue
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		target = NewMockEmitter(mockCtrl)
		queue = NewDeferredQueue("Deferred", target, 2)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should refuse events when full", func() {
		Expect(queue.Enqueue(Event{Name: "a"})).To(BeTrue())
		Expect(queue.Enqueue(Event{Name: "b"})).To(BeTrue())
		Expect(queue.Enqueue(Event{Name: "c"})).To(BeFalse())
		Expect(queue.Len()).To(Equal(2))
	})

	It("should dispatch in FIFO order", func() {
		queue.Enqueue(Event{Name: "a"})
		queue.Enqueue(Event{Name: "b"})

		gomock.InOrder(
			target.EXPECT().Emit(Event{Name: "a"}),
			target.EXPECT().Emit(Event{Name: "b"}),
		)

		Expect(queue.Dispatch()).To(Equal(2))
		Expect(queue.Len()).To(Equal(0))
	})

	It("should leave events enqueued during dispatch for the next call", func() {
		queue.Enqueue(Event{Name: "a"})

		target.EXPECT().Emit(Event{Name: "a"}).Do(func(Event) {
			Expect(queue.Enqueue(Event{Name: "b"})).To(BeTrue())
			Expect(queue.Dispatch()).To(Equal(0))
		})

		Expect(queue.Dispatch()).To(Equal(1))
		Expect(queue.Len()).To(Equal(1))

		target.EXPECT().Emit(Event{Name: "b"})
		Expect(queue.Dispatch()).To(Equal(1))
	})

	It("should stop when cleared during dispatch", func() {
		queue.Enqueue(Event{Name: "a"})
		queue.Enqueue(Event{Name: "b"})

		target.EXPECT().Emit(Event{Name: "a"}).Do(func(Event) {
			queue.Clear()
		})

		Expect(queue.Dispatch()).To(Equal(1))
		Expect(queue.Len()).To(Equal(0))
	})

	It("should discard pending events on clear", func() {
		queue.Enqueue(Event{Name: "a"})

		queue.Clear()

		Expect(queue.Len()).To(Equal(0))
		Expect(queue.Dispatch()).To(Equal(0))
	})

	It("should accept hooks on the underlying buffer", func() {
		unbounded := NewDeferredQueue("Unbounded", target, queueing.Unbounded)
		hook := &countingHook{}
		unbounded.AcceptHook(hook)

		unbounded.Enqueue(Event{Name: "a"})
		target.EXPECT().Emit(gomock.Any())
		unbounded.Dispatch()

		Expect(unbounded.NumHooks()).To(Equal(1))
		Expect(hook.pushes).To(Equal(1))
		Expect(hook.pops).To(Equal(1))
	})
})
