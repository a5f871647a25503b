package trigger

import (
	"bytes"
	"errors"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventLogger", func() {
	var (
		buf *bytes.Buffer
		m   *Manager
	)

	BeforeEach(func() {
		buf = new(bytes.Buffer)
		m = MakeBuilder().WithLogger(nil).Build("Triggers")
		m.AcceptHook(NewEventLogger(log.New(buf, "", 0)))
	})

	It("should log triggers and undos", func() {
		m.AddVertex(m.NewVertex(100, nil))

		m.Update(150)
		m.Update(50)

		Expect(buf.String()).To(Equal(
			"150, AfterTrigger, vertex 1 @ 100\n" +
				"50, AfterUndo, vertex 1 @ 100\n"))
	})

	It("should log payload errors", func() {
		m.AddVertex(m.NewVertex(100, FuncPayload{
			OnTrigger: func(*Vertex) error { return errors.New("bad value") },
		}))

		m.Update(150)

		Expect(buf.String()).To(ContainSubstring("error: bad value"))
	})
})
