package script

import (
	"bytes"
	"log"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tempolab/modchart/chart"
	"github.com/tempolab/modchart/event"
	"github.com/tempolab/modchart/sim/queueing"
	"github.com/tempolab/modchart/timeline"
	"github.com/tempolab/modchart/trigger"
)

var _ = Describe("Runtime", func() {
	var (
		logBuf *bytes.Buffer
		tl     *timeline.Timeline
		bus    *event.Bus
		queue  *event.DeferredQueue
		props  *chart.PropertySet
		r      *Runtime
	)

	prop := func(name string) float64 {
		v, ok := props.Get(name)
		Expect(ok).To(BeTrue(), "property %s is not set", name)
		return v
	}

	frame := func(t trigger.VTimeInMs) {
		tl.Advance(t)
		queue.Dispatch()
	}

	BeforeEach(func() {
		logBuf = new(bytes.Buffer)
		logger := log.New(logBuf, "", 0)
		tl = timeline.MakeBuilder().WithLogger(logger).Build("TL")
		bus = event.NewBus("Bus", logger)
		queue = event.NewDeferredQueue("Deferred", bus, queueing.Unbounded)
		bus.DeferTo(queue)
		props = chart.NewPropertySet(nil)

		r = MakeBuilder().
			WithLogger(logger).
			WithTimeout(time.Second).
			WithTimeline(tl).
			WithBus(bus).
			WithQueue(queue).
			WithProperties(props).
			Build("Script")
	})

	It("should schedule triggers with undo", func() {
		Expect(r.Run(`
			var id = at(100,
				function (t) { set("x", t) },
				function (t) { set("x", -t) });
			set("id", id);
		`, "at.js")).To(Succeed())

		Expect(tl.Triggers().Len()).To(Equal(1))
		Expect(prop("id")).To(Equal(1.0))

		frame(200)
		Expect(prop("x")).To(Equal(100.0))

		frame(0)
		Expect(prop("x")).To(Equal(-100.0))
	})

	It("should schedule one-shot triggers", func() {
		Expect(r.Run(`
			set("n", 0);
			once(100, function () { set("n", get("n") + 1) });
		`, "once.js")).To(Succeed())

		frame(200)
		frame(0)
		frame(200)

		Expect(prop("n")).To(Equal(1.0))
		Expect(tl.Triggers().Len()).To(Equal(0))
	})

	It("should schedule recurring triggers", func() {
		Expect(r.Run(`
			var fired = [];
			every(500, 500, 3, function (t, count) {
				fired.push(t);
				set("last", t);
				set("count", count);
			});
		`, "every.js")).To(Succeed())

		frame(600)
		frame(1100)
		frame(1600)

		Expect(prop("last")).To(Equal(1000.0))
		Expect(prop("count")).To(Equal(2.0))
	})

	It("should tween with easing", func() {
		Expect(r.Run(`
			tween(0, 1000, function (p) { set("p", p) }, "inquad");
		`, "tween.js")).To(Succeed())

		frame(500)

		Expect(prop("p")).To(BeNumerically("~", 0.25, 1e-9))
	})

	It("should move and remove triggers", func() {
		Expect(r.Run(`
			var a = at(100, function () { set("a", 1) });
			var b = at(200, function () { set("b", 1) });
			set("moved", move(a, 300) ? 1 : 0);
			set("removed", remove(b) ? 1 : 0);
			set("again", remove(b) ? 1 : 0);
		`, "edit.js")).To(Succeed())

		Expect(prop("moved")).To(Equal(1.0))
		Expect(prop("removed")).To(Equal(1.0))
		Expect(prop("again")).To(Equal(0.0))

		frame(250)
		_, ok := props.Get("a")
		Expect(ok).To(BeFalse())

		frame(350)
		Expect(prop("a")).To(Equal(1.0))
		_, ok = props.Get("b")
		Expect(ok).To(BeFalse())
	})

	It("should defer emitted events until dispatch", func() {
		var got []any
		bus.On("hit", func(evt event.Event) error {
			got = evt.Args
			return nil
		})

		Expect(r.Run(`emit("hit", 1, "a")`, "emit.js")).To(Succeed())
		Expect(got).To(BeNil())
		Expect(queue.Len()).To(Equal(1))

		queue.Dispatch()
		Expect(got).To(Equal([]any{int64(1), "a"}))
	})

	It("should register and unregister handlers", func() {
		Expect(r.Run(`
			var h = on("beat", function (n) { set("beat", n) });
			at(100, function () { emit("beat", 7) });
			set("h", h);
		`, "on.js")).To(Succeed())

		frame(200)
		Expect(prop("beat")).To(Equal(7.0))

		Expect(r.Run(`set("off", off(get("h")) ? 1 : 0)`, "off.js")).
			To(Succeed())
		Expect(prop("off")).To(Equal(1.0))
		Expect(bus.NumHandlers("beat")).To(Equal(0))
	})

	It("should throw a TypeError for non-function callbacks", func() {
		err := r.Run(`at(100, 5)`, "bad.js")

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("TypeError"))
		Expect(err.Error()).To(ContainSubstring("at: onTrigger is not a function"))
		Expect(tl.Triggers().Len()).To(Equal(0))
	})

	It("should let scripts catch argument errors", func() {
		Expect(r.Run(`
			try {
				tween(0, 10, function () {}, "bounce");
			} catch (e) {
				set("caught", e instanceof TypeError ? 1 : 0);
			}
		`, "catch.js")).To(Succeed())

		Expect(prop("caught")).To(Equal(1.0))
	})

	It("should log and suppress exceptions in callbacks", func() {
		Expect(r.Run(`
			at(100, function () { throw new Error("effect broke") });
			at(150, function () { set("after", 1) });
		`, "throw.js")).To(Succeed())

		Expect(func() { frame(200) }).NotTo(Panic())
		Expect(prop("after")).To(Equal(1.0))
		Expect(logBuf.String()).To(ContainSubstring("effect broke"))
	})

	It("should fire triggers scheduled in the past right away", func() {
		frame(1000)

		Expect(r.Run(`
			at(500, function () { set("late", 1) });
		`, "late.js")).To(Succeed())

		Expect(prop("late")).To(Equal(1.0))
	})

	It("should stop scripts that run too long", func() {
		r = MakeBuilder().
			WithLogger(nil).
			WithTimeout(50 * time.Millisecond).
			WithTimeline(tl).
			WithBus(bus).
			WithQueue(queue).
			WithProperties(props).
			Build("Slow")

		err := r.Run(`for (;;) {}`, "loop.js")
		Expect(err).To(MatchError(ErrTimeout))

		Expect(r.Run(`set("ok", 1)`, "after.js")).To(Succeed())
		Expect(prop("ok")).To(Equal(1.0))
	})

	It("should write log lines", func() {
		Expect(r.Run(`log("hello", 42)`, "log.js")).To(Succeed())

		Expect(logBuf.String()).To(ContainSubstring("Script: hello 42"))
	})

	It("should go quiet when detached", func() {
		Expect(r.Run(`
			on("beat", function () { set("beat", 1) });
			at(100, function () { set("x", 1) });
		`, "detach.js")).To(Succeed())

		r.Detach()
		frame(200)
		bus.Emit(event.Event{Name: "beat"})

		_, ok := props.Get("x")
		Expect(ok).To(BeFalse())
		_, ok = props.Get("beat")
		Expect(ok).To(BeFalse())
		Expect(r.IsDetached()).To(BeTrue())
		Expect(r.Run(`1`, "late.js")).NotTo(Succeed())
	})

	It("should refuse to build without collaborators", func() {
		Expect(func() { MakeBuilder().Build("Empty") }).To(Panic())
	})
})
