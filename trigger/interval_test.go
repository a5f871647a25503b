package trigger

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("IntervalPayload", func() {
	var (
		m       *Manager
		fired   []VTimeInMs
		undone  []VTimeInMs
		onFire  func(v *Vertex) error
		onUndo  func(v *Vertex) error
		payload *IntervalPayload
	)

	BeforeEach(func() {
		m = MakeBuilder().WithLogger(nil).Build("Triggers")
		fired = nil
		undone = nil
		onFire = func(v *Vertex) error {
			fired = append(fired, v.Time)
			return nil
		}
		onUndo = func(v *Vertex) error {
			undone = append(undone, v.Time)
			return nil
		}
	})

	Context("max-exclusive interval firing", func() {
		BeforeEach(func() {
			payload = NewIntervalPayload(m, 500, 500).
				WithMaxTriggerCount(3).
				WithCallbacks(onFire, onUndo)
			Expect(payload.Schedule()).To(BeTrue())
		})

		It("should skip the occurrence that reaches the limit", func() {
			m.Update(600)
			Expect(fired).To(Equal([]VTimeInMs{500}))
			Expect(payload.CurrentTriggerCount).To(Equal(1))

			m.Update(1100)
			Expect(fired).To(Equal([]VTimeInMs{500, 1000}))
			Expect(payload.CurrentTriggerCount).To(Equal(2))

			m.Update(1600)
			Expect(fired).To(Equal([]VTimeInMs{500, 1000}))
			Expect(payload.CurrentTriggerCount).To(Equal(3))

			m.Update(5000)
			Expect(fired).To(Equal([]VTimeInMs{500, 1000}))
			Expect(payload.CurrentTriggerCount).To(Equal(3))
		})

		It("should keep occupying a single slot", func() {
			m.Update(1100)

			Expect(m.Len()).To(Equal(1))
			v, found := m.Lookup(payload.OccupyID)
			Expect(found).To(BeTrue())
			Expect(v.Time).To(Equal(VTimeInMs(1500)))
		})

		It("should catch up in one update", func() {
			m.Update(1600)

			Expect(fired).To(Equal([]VTimeInMs{500, 1000}))
			Expect(payload.CurrentTriggerCount).To(Equal(3))
			Expect(m.Index()).To(Equal(1))
			Expect(m.Len()).To(Equal(1))
		})

		It("should undo the silent occurrence", func() {
			m.Update(1600)
			m.Update(1200)

			Expect(undone).To(Equal([]VTimeInMs{1500}))
			Expect(payload.CurrentTriggerCount).To(Equal(2))
			Expect(m.Index()).To(Equal(0))

			m.Update(1600)
			Expect(fired).To(Equal([]VTimeInMs{500, 1000}))
			Expect(payload.CurrentTriggerCount).To(Equal(3))
		})

		It("should undo only its latest firing on a deep rewind", func() {
			m.Update(1600)
			m.Update(0)

			Expect(undone).To(Equal([]VTimeInMs{1500}))
			Expect(payload.CurrentTriggerCount).To(Equal(2))

			v, found := m.Lookup(payload.OccupyID)
			Expect(found).To(BeTrue())
			Expect(v.Time).To(Equal(VTimeInMs(1500)))
			Expect(m.Index()).To(Equal(0))
		})

		It("should undo the silent occurrence silently when asked to", func() {
			payload.WithSilentUndo()

			m.Update(1600)
			m.Update(1200)

			Expect(undone).To(BeEmpty())
			Expect(payload.CurrentTriggerCount).To(Equal(2))

			m.Update(1600)
			Expect(fired).To(Equal([]VTimeInMs{500, 1000}))
			Expect(payload.CurrentTriggerCount).To(Equal(3))
		})
	})

	Context("inclusive max", func() {
		It("should fire exactly MaxTriggerCount times", func() {
			payload = NewIntervalPayload(m, 500, 500).
				WithMaxTriggerCount(3).
				WithInclusiveMax().
				WithCallbacks(onFire, onUndo)
			payload.Schedule()

			m.Update(600)
			m.Update(1100)
			m.Update(1600)
			m.Update(2100)
			m.Update(9000)

			Expect(fired).To(Equal([]VTimeInMs{500, 1000, 1500}))
			Expect(payload.CurrentTriggerCount).To(Equal(4))
		})
	})

	It("should run forever when unbounded", func() {
		payload = NewIntervalPayload(m, 0, 100).WithCallbacks(onFire, nil)
		payload.Schedule()

		m.Update(1050)

		Expect(fired).To(HaveLen(11))
		Expect(fired[10]).To(Equal(VTimeInMs(1000)))
		Expect(payload.MaxTriggerCount).To(Equal(Unbounded))
	})

	It("should disappear after the limit when dynamic", func() {
		payload = NewIntervalPayload(m, 100, 100).
			WithMaxTriggerCount(2).
			WithCallbacks(onFire, onUndo).
			AsDynamic()
		payload.Schedule()

		m.Update(1000)
		Expect(fired).To(Equal([]VTimeInMs{100}))
		Expect(m.Len()).To(Equal(0))

		m.Update(0)
		Expect(undone).To(BeEmpty())
	})

	It("should keep recurring when the callback fails", func() {
		payload = NewIntervalPayload(m, 100, 100).
			WithMaxTriggerCount(4).
			WithCallbacks(func(v *Vertex) error {
				fired = append(fired, v.Time)
				return errors.New("effect failed")
			}, nil)
		payload.Schedule()

		m.Update(350)

		Expect(fired).To(Equal([]VTimeInMs{100, 200, 300}))
	})

	It("should refuse a non-positive interval", func() {
		payload = NewIntervalPayload(m, 100, 0)

		Expect(payload.Schedule()).To(BeFalse())
		Expect(m.Len()).To(Equal(0))
	})

	It("should do nothing on an undo below zero firings", func() {
		payload = NewIntervalPayload(m, 100, 100).WithCallbacks(onFire, onUndo)

		Expect(payload.Undo(&Vertex{ID: payload.OccupyID})).To(Succeed())
		Expect(payload.CurrentTriggerCount).To(Equal(-1))
		Expect(undone).To(BeEmpty())
		Expect(m.Len()).To(Equal(0))

		Expect(payload.Trigger(&Vertex{ID: payload.OccupyID})).To(Succeed())
		Expect(payload.CurrentTriggerCount).To(Equal(0))
		Expect(fired).To(Equal([]VTimeInMs{0}))
	})

	Context("with a mocked scheduler", func() {
		var (
			mockCtrl  *gomock.Controller
			scheduler *MockScheduler
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			scheduler = NewMockScheduler(mockCtrl)
			scheduler.EXPECT().GenerateNextID().Return(int64(7))

			payload = NewIntervalPayload(scheduler, 500, 250)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should register its first occurrence at the start time", func() {
			scheduler.EXPECT().AddVertex(gomock.Any()).
				DoAndReturn(func(v *Vertex) bool {
					Expect(v.ID).To(Equal(int64(7)))
					Expect(v.Time).To(Equal(VTimeInMs(500)))
					Expect(v.Payload).To(BeIdenticalTo(payload))
					return true
				})

			Expect(payload.Schedule()).To(BeTrue())
		})

		It("should move its slot after each firing", func() {
			scheduler.EXPECT().UpdateVertex(gomock.Any()).
				DoAndReturn(func(v *Vertex) bool {
					Expect(v.ID).To(Equal(int64(7)))
					Expect(v.Time).To(Equal(VTimeInMs(750)))
					return true
				})

			Expect(payload.Trigger(&Vertex{ID: 7, Time: 500})).To(Succeed())
		})

		It("should move its slot back on undo", func() {
			payload.CurrentTriggerCount = 2
			scheduler.EXPECT().UpdateVertex(gomock.Any()).
				DoAndReturn(func(v *Vertex) bool {
					Expect(v.Time).To(Equal(VTimeInMs(750)))
					return true
				})

			Expect(payload.Undo(&Vertex{ID: 7, Time: 750})).To(Succeed())
			Expect(payload.CurrentTriggerCount).To(Equal(1))
		})

		It("should leave its slot alone on an undo below zero", func() {
			Expect(payload.Undo(&Vertex{ID: 7, Time: 500})).To(Succeed())
			Expect(payload.CurrentTriggerCount).To(Equal(-1))
		})
	})
})
