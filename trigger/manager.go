package trigger

import (
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"sort"

	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/sim/id"
)

// HookPosBeforeTrigger is invoked right before a payload is triggered.
var HookPosBeforeTrigger = &hooking.HookPos{Name: "BeforeTrigger"}

// HookPosAfterTrigger is invoked after a payload is triggered, even if the
// payload failed.
var HookPosAfterTrigger = &hooking.HookPos{Name: "AfterTrigger"}

// HookPosBeforeUndo is invoked right before a payload is undone.
var HookPosBeforeUndo = &hooking.HookPos{Name: "BeforeUndo"}

// HookPosAfterUndo is invoked after a payload is undone.
var HookPosAfterUndo = &hooking.HookPos{Name: "AfterUndo"}

// HookPosVertexAdded is invoked when a vertex is inserted into the manager.
var HookPosVertexAdded = &hooking.HookPos{Name: "VertexAdded"}

// HookPosVertexRemoved is invoked when a vertex leaves the manager, either
// because it was removed or because it was a dynamic vertex that fired.
var HookPosVertexRemoved = &hooking.HookPos{Name: "VertexRemoved"}

// DispatchDetail is the Detail of the hook contexts invoked around payload
// dispatches.
type DispatchDetail struct {
	// Playhead is the last time the manager was updated to.
	Playhead VTimeInMs

	// Err is the error returned by the payload. It is only set for the after
	// positions.
	Err error
}

// Builder builds Managers.
type Builder struct {
	logger *log.Logger
}

// MakeBuilder returns a Builder that logs payload failures to stderr.
func MakeBuilder() Builder {
	return Builder{
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// WithLogger sets the logger that receives payload failures. A nil logger
// discards them.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a new Manager.
func (b Builder) Build(name string) *Manager {
	logger := b.logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Manager{
		name:   name,
		logger: logger,
		ids:    id.NewSequence(),
		byID:   make(map[int64]*Vertex),
		now:    BeforeAllTime,
	}
}

// A Manager owns a sorted set of vertices and the fired frontier over them.
//
// Vertices in [0, Index()) have fired and vertices in [Index(), Len()) are
// pending. A Manager is not safe for concurrent use; it is meant to be driven
// once per frame from the update loop.
type Manager struct {
	hooking.HookableBase

	name   string
	logger *log.Logger
	ids    *id.Sequence

	vertices []*Vertex
	byID     map[int64]*Vertex
	index    int
	now      VTimeInMs

	// inFlight is the vertex whose payload is currently running.
	inFlight *Vertex
}

// Name returns the name of the manager.
func (m *Manager) Name() string {
	return m.name
}

// GenerateNextID consumes and returns a new vertex ID. Only IDs generated by
// this manager are accepted by AddVertex.
func (m *Manager) GenerateNextID() int64 {
	return m.ids.Generate()
}

// NextID returns the ID the next call to GenerateNextID will return.
func (m *Manager) NextID() int64 {
	return m.ids.Next()
}

// NewVertex creates a persistent vertex with a freshly generated ID. The
// vertex is not added to the manager.
func (m *Manager) NewVertex(t VTimeInMs, payload Payload) *Vertex {
	return &Vertex{
		ID:      m.GenerateNextID(),
		Time:    t,
		Payload: payload,
	}
}

// Index returns the number of vertices that have fired.
func (m *Manager) Index() int {
	return m.index
}

// Len returns the number of vertices in the manager.
func (m *Manager) Len() int {
	return len(m.vertices)
}

// Now returns the playhead of the last Update.
func (m *Manager) Now() VTimeInMs {
	return m.now
}

// Vertices returns copies of the vertices in firing order. Changing them
// does not move anything; use UpdateVertex for that.
func (m *Manager) Vertices() []*Vertex {
	vs := make([]*Vertex, len(m.vertices))
	for i, v := range m.vertices {
		c := *v
		vs[i] = &c
	}

	return vs
}

// Lookup returns a copy of the vertex with the given ID.
func (m *Manager) Lookup(vid int64) (*Vertex, bool) {
	v, ok := m.byID[vid]
	if !ok {
		return nil, false
	}

	c := *v

	return &c, true
}

// Update moves the playhead to curTime. Vertices strictly before curTime that
// have not fired are triggered in order, and fired vertices strictly after
// curTime are undone in reverse order.
func (m *Manager) Update(curTime VTimeInMs) {
	m.now = curTime

	for m.index < len(m.vertices) && curTime > m.vertices[m.index].Time {
		v := m.vertices[m.index]
		m.dispatch(v, false)

		if m.index >= len(m.vertices) || m.vertices[m.index] != v {
			// The payload moved or removed its own vertex. Whatever is at
			// the frontier now has not been looked at yet.
			continue
		}

		if v.IsDynamic {
			m.removeAt(m.index)
			continue
		}

		m.index++
	}

	m.clampIndex()

	for m.index > 0 && curTime < m.vertices[m.index-1].Time {
		m.index--
		m.dispatch(m.vertices[m.index], true)
		m.clampIndex()
	}
}

// AddVertex inserts v. It returns false if v's ID was not issued by this
// manager or is already in use.
//
// A vertex that lands on the fired side of the frontier is triggered
// immediately. A dynamic vertex that does so is never inserted.
func (m *Manager) AddVertex(v *Vertex) bool {
	if v == nil || !m.ids.Issued(v.ID) {
		return false
	}

	if _, exists := m.byID[v.ID]; exists {
		return false
	}

	ins := m.searchInsert(v)
	if !m.isFiredSide(v, ins) {
		m.insertAt(ins, v)
		return true
	}

	if v.IsDynamic {
		m.dispatch(v, false)
		return true
	}

	m.insertAt(ins, v)
	m.index++
	m.dispatch(v, false)

	return true
}

// isFiredSide tells if a vertex inserted at ins belongs to the fired part of
// the list. Sorting before a fired vertex settles it. Sorting right at the
// frontier depends on whether the last playhead has already passed it.
func (m *Manager) isFiredSide(v *Vertex, ins int) bool {
	if ins < m.index {
		return true
	}

	return ins == m.index && v.Time < m.now
}

// RemoveID removes the vertex with the given ID. It returns false if no such
// vertex exists.
//
// Removing a fired vertex only shrinks the frontier; its effect is left in
// place. Removing a pending vertex undoes it first.
func (m *Manager) RemoveID(vid int64) bool {
	if !m.ids.Issued(vid) {
		return false
	}

	v, ok := m.byID[vid]
	if !ok {
		return false
	}

	pos := m.position(v)
	if pos < 0 {
		return false
	}

	if pos >= m.index && v != m.inFlight {
		m.dispatch(v, true)

		if m.byID[vid] != v {
			return true
		}

		pos = m.position(v)
		if pos < 0 {
			return false
		}
	}

	if pos < m.index {
		m.index--
	}

	m.removeAt(pos)

	return true
}

// RemoveVertex removes the vertex that has the same ID as v.
func (m *Manager) RemoveVertex(v *Vertex) bool {
	if v == nil {
		return false
	}

	return m.RemoveID(v.ID)
}

// UpdateVertex reschedules v by removing the vertex with v's ID and adding v
// back. It returns the result of the add.
func (m *Manager) UpdateVertex(v *Vertex) bool {
	if v == nil {
		return false
	}

	m.RemoveID(v.ID)

	return m.AddVertex(v)
}

// Clear drops every vertex without undoing any of them and forgets the
// playhead. IDs that were issued stay consumed.
func (m *Manager) Clear() {
	m.vertices = nil
	m.byID = make(map[int64]*Vertex)
	m.index = 0
	m.now = BeforeAllTime
}

func (m *Manager) searchInsert(v *Vertex) int {
	return sort.Search(len(m.vertices), func(i int) bool {
		return v.Before(m.vertices[i])
	})
}

// position finds v in the list. A vertex whose Time was changed behind the
// manager's back is no longer where the search expects it, so the lookup
// falls back to a scan.
func (m *Manager) position(v *Vertex) int {
	i := sort.Search(len(m.vertices), func(i int) bool {
		return !m.vertices[i].Before(v)
	})

	for ; i < len(m.vertices); i++ {
		if m.vertices[i] == v {
			return i
		}

		if v.Before(m.vertices[i]) {
			break
		}
	}

	return slices.Index(m.vertices, v)
}

func (m *Manager) insertAt(pos int, v *Vertex) {
	m.vertices = slices.Insert(m.vertices, pos, v)
	m.byID[v.ID] = v

	m.invokeHook(HookPosVertexAdded, v, nil)
}

func (m *Manager) removeAt(pos int) {
	v := m.vertices[pos]
	m.vertices = slices.Delete(m.vertices, pos, pos+1)
	delete(m.byID, v.ID)

	m.invokeHook(HookPosVertexRemoved, v, nil)
}

func (m *Manager) clampIndex() {
	if m.index > len(m.vertices) {
		m.index = len(m.vertices)
	}
}

func (m *Manager) dispatch(v *Vertex, undo bool) {
	before, after := HookPosBeforeTrigger, HookPosAfterTrigger
	if undo {
		before, after = HookPosBeforeUndo, HookPosAfterUndo
	}

	prev := m.inFlight
	m.inFlight = v

	detail := &DispatchDetail{Playhead: m.now}
	m.invokeHook(before, v, detail)

	err := callPayload(v, undo)
	m.inFlight = prev

	if err != nil {
		m.logger.Printf("%s: %s of vertex %d @ %d failed: %v",
			m.name, after.Name, v.ID, v.Time, err)
	}

	m.invokeHook(after, v, &DispatchDetail{Playhead: m.now, Err: err})
}

func callPayload(v *Vertex, undo bool) (err error) {
	if v.Payload == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("payload panicked: %v", r)
		}
	}()

	if undo {
		return v.Payload.Undo(v)
	}

	return v.Payload.Trigger(v)
}

func (m *Manager) invokeHook(pos *hooking.HookPos, v *Vertex, detail interface{}) {
	if m.NumHooks() == 0 {
		return
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    pos,
		Item:   v,
		Detail: detail,
	})
}
