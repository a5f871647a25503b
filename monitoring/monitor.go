// Package monitoring turns a playing session into an HTTP server so that its
// scheduler can be inspected and scrubbed from outside.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/tempolab/modchart/session"
	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/trigger"
)

// Monitor serves the state of a session. Every request holds the monitor's
// lock while it touches the session, so the playback loop must use Do.
type Monitor struct {
	mu      sync.Mutex
	session *session.Session

	portNumber  int
	openBrowser bool
	logger      *log.Logger
	profileTime time.Duration

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	trackers         map[*ProgressBar]hooking.Hook

	server *http.Server
}

// NewMonitor creates a Monitor for a session.
func NewMonitor(s *session.Session) *Monitor {
	return &Monitor{
		session:     s,
		logger:      log.New(os.Stderr, "", log.LstdFlags),
		profileTime: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Printf(
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithLogger sets where the monitor reports. A nil logger discards it.
func (m *Monitor) WithLogger(logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	m.logger = logger

	return m
}

// WithProfileTime sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileTime(d time.Duration) *Monitor {
	m.profileTime = d
	return m
}

// Do runs f while holding the monitor's lock.
func (m *Monitor) Do(f func(s *session.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f(m.session)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := NewProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// TrackPlayback creates a progress bar that follows the frames of the
// session while it plays from from to to.
func (m *Monitor) TrackPlayback(from, to trigger.VTimeInMs) *ProgressBar {
	bar := m.CreateProgressBar("Playing "+m.session.Name(), distance(from, to))
	tracker := &playbackTracker{bar: bar, from: from, to: to}

	m.progressBarsLock.Lock()
	if m.trackers == nil {
		m.trackers = make(map[*ProgressBar]hooking.Hook)
	}
	m.trackers[bar] = tracker
	m.progressBarsLock.Unlock()

	m.Do(func(s *session.Session) {
		s.AcceptHook(tracker)
	})

	return bar
}

// CompleteProgressBar removes a bar from the list and stops following the
// session if the bar was created by TrackPlayback.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars

	tracker, tracked := m.trackers[pb]
	delete(m.trackers, pb)
	m.progressBarsLock.Unlock()

	if tracked {
		m.Do(func(s *session.Session) {
			s.RemoveHook(tracker)
		})
	}
}

// Handler returns the router of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/vertices", m.listVertices)
	r.HandleFunc("/api/vertex/{id}", m.vertexDetails)
	r.HandleFunc("/api/segments", m.listSegments)
	r.HandleFunc("/api/properties", m.listProperties)
	r.HandleFunc("/api/queue", m.queueLevel)
	r.HandleFunc("/api/seek/{time}", m.seek)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts serving in the background and returns the address it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("start monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.logger.Printf("Monitoring session %s with %s", m.session.Name(), url)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Printf("monitor stopped: %v", err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url + "/api/now"); err != nil {
			m.logger.Printf("cannot open browser: %v", err)
		}
	}

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Printf("monitor: %v", err)
	}
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.WriteHeader(code)
	fmt.Fprintf(w, "Error: "+format, args...)
}

type nowRsp struct {
	Now int64 `json:"now"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	var rsp nowRsp
	m.Do(func(s *session.Session) {
		rsp.Now = int64(s.Playhead())
	})

	m.writeJSON(w, rsp)
}

type vertexRsp struct {
	ID        int64 `json:"id"`
	Time      int64 `json:"time"`
	IsDynamic bool  `json:"is_dynamic"`
	Fired     bool  `json:"fired"`
}

func (m *Monitor) listVertices(w http.ResponseWriter, _ *http.Request) {
	var rsp []vertexRsp
	m.Do(func(s *session.Session) {
		triggers := s.Triggers()
		index := triggers.Index()

		rsp = make([]vertexRsp, 0, triggers.Len())
		for i, v := range triggers.Vertices() {
			rsp = append(rsp, vertexRsp{
				ID:        v.ID,
				Time:      int64(v.Time),
				IsDynamic: v.IsDynamic,
				Fired:     i < index,
			})
		}
	})

	m.writeJSON(w, rsp)
}

func (m *Monitor) vertexDetails(w http.ResponseWriter, r *http.Request) {
	vid, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid vertex id")
		return
	}

	code := http.StatusOK
	buf := new(bytes.Buffer)

	m.Do(func(s *session.Session) {
		v, found := s.Triggers().Lookup(vid)
		if !found {
			code = http.StatusNotFound
			fmt.Fprintf(buf, "Error: vertex %d not found", vid)
			return
		}

		serializer := goseth.NewSerializer()
		serializer.SetRoot(v)
		serializer.SetMaxDepth(1)

		if field := r.URL.Query().Get("field"); field != "" {
			err := serializer.SetEntryPoint(strings.Split(field, "."))
			if err != nil {
				code = http.StatusBadRequest
				fmt.Fprintf(buf, "Error: %v", err)
				return
			}
		}

		if err := serializer.Serialize(buf); err != nil {
			code = http.StatusInternalServerError
			buf.Reset()
			fmt.Fprintf(buf, "Error: %v", err)
		}
	})

	if code != http.StatusOK {
		w.WriteHeader(code)
		_, _ = w.Write(buf.Bytes())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

type segmentRsp struct {
	Start  int64 `json:"start"`
	End    int64 `json:"end"`
	Active bool  `json:"active"`
}

func (m *Monitor) listSegments(w http.ResponseWriter, _ *http.Request) {
	var rsp []segmentRsp
	m.Do(func(s *session.Session) {
		segs := s.Timeline().Segments()

		rsp = make([]segmentRsp, 0, len(segs))
		for _, seg := range segs {
			rsp = append(rsp, segmentRsp{
				Start:  int64(seg.StartTime),
				End:    int64(seg.EndTime),
				Active: seg.IsActive(),
			})
		}
	})

	m.writeJSON(w, rsp)
}

func (m *Monitor) listProperties(w http.ResponseWriter, _ *http.Request) {
	var rsp map[string]float64
	m.Do(func(s *session.Session) {
		rsp = s.Properties().Snapshot()
	})

	m.writeJSON(w, rsp)
}

type queueRsp struct {
	Level int `json:"level"`
}

func (m *Monitor) queueLevel(w http.ResponseWriter, _ *http.Request) {
	var rsp queueRsp
	m.Do(func(s *session.Session) {
		rsp.Level = s.Queue().Len()
	})

	m.writeJSON(w, rsp)
}

type seekRsp struct {
	Now        int64 `json:"now"`
	Dispatched int   `json:"dispatched"`
}

func (m *Monitor) seek(w http.ResponseWriter, r *http.Request) {
	t, err := strconv.ParseInt(mux.Vars(r)["time"], 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid time")
		return
	}

	var rsp seekRsp
	m.Do(func(s *session.Session) {
		rsp.Dispatched = s.Seek(trigger.VTimeInMs(t))
		rsp.Now = int64(s.Playhead())
	})

	m.writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		httpError(w, http.StatusConflict, "%v", err)
		return
	}

	time.Sleep(m.profileTime)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	m.writeJSON(w, prof)
}
