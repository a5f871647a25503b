package tracing

import (
	"bytes"
	"errors"
	"log"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/tempolab/modchart/trigger"
)

var _ = Describe("DispatchTracer", func() {
	var (
		m *trigger.Manager
		w *MemoryTraceWriter
	)

	BeforeEach(func() {
		m = trigger.MakeBuilder().WithLogger(nil).Build("Triggers")
		w = &MemoryTraceWriter{}
		CollectTrace(m, w, nil)
	})

	It("should record additions, triggers and undos", func() {
		v := m.NewVertex(100, nil)
		m.AddVertex(v)
		m.Update(150)
		m.Update(50)

		Expect(w.Records).To(Equal([]Record{
			{
				Kind: KindAdd, Domain: "Triggers",
				VertexID: v.ID, VertexTime: 100,
				Playhead: math.MinInt64,
			},
			{
				Kind: KindTrigger, Domain: "Triggers",
				VertexID: v.ID, VertexTime: 100, Playhead: 150,
			},
			{
				Kind: KindUndo, Domain: "Triggers",
				VertexID: v.ID, VertexTime: 100, Playhead: 50,
			},
		}))
	})

	It("should record payload errors and removals", func() {
		v := m.NewVertex(100, trigger.FuncPayload{
			OnTrigger: func(*trigger.Vertex) error {
				return errors.New("broken effect")
			},
		})
		v.IsDynamic = true
		m.AddVertex(v)

		m.Update(200)

		Expect(w.Records).To(HaveLen(3))
		Expect(w.Records[1].Kind).To(Equal(KindTrigger))
		Expect(w.Records[1].Err).To(Equal("broken effect"))
		Expect(w.Records[2].Kind).To(Equal(KindRemove))
		Expect(w.Records[2].Playhead).To(Equal(int64(200)))
	})

	It("should refuse to trace into the same writer twice", func() {
		Expect(func() { CollectTrace(m, w, nil) }).To(Panic())
		Expect(func() { CollectTrace(m, &MemoryTraceWriter{}, nil) }).
			NotTo(Panic())
	})

	It("should log write failures", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		failing := NewMockTraceWriter(mockCtrl)
		failing.EXPECT().Write(gomock.Any()).
			Return(errors.New("disk full")).
			AnyTimes()

		logBuf := new(bytes.Buffer)
		other := trigger.MakeBuilder().WithLogger(nil).Build("Other")
		CollectTrace(other, failing, log.New(logBuf, "", 0))

		other.AddVertex(other.NewVertex(10, nil))

		Expect(logBuf.String()).To(ContainSubstring("disk full"))
	})
})
