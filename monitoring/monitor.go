// Package monitoring turns a running simulation into a web server that
// reports its progress and statistics.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/sarchlab/pagewalk/mem/vm/mmu"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"
)

// A Snapshot is the latest statistics published by an MMU.
type Snapshot struct {
	Name    string
	Summary mmu.Summary
	Time    time.Time
}

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	portNumber      int
	openBrowser     bool
	profileDuration time.Duration
	logger          *zap.Logger

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	statsLock sync.RWMutex
	stats     map[string]Snapshot

	registry *prometheus.Registry
	gauges   *prometheus.GaugeVec

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		profileDuration: time.Second,
		logger:          zap.NewNop(),
		stats:           make(map[string]Snapshot),
		registry:        prometheus.NewRegistry(),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pagewalk",
			Name:      "mmu_stat",
			Help:      "Latest statistics published by each MMU.",
		}, []string{"mmu", "stat"}),
	}

	m.registry.MustRegister(m.gauges)

	return m
}

// WithPortNumber sets the port number of the monitor. Port numbers below
// 1000 are not allowed and select a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.logger.Warn("port number not allowed, using a random port instead",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitoring page in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger
	return m
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// UpdateStats publishes the statistics of an MMU.
func (m *Monitor) UpdateStats(name string, s mmu.Summary) {
	m.statsLock.Lock()
	m.stats[name] = Snapshot{Name: name, Summary: s, Time: time.Now()}
	m.statsLock.Unlock()

	hit, _ := s.HitPercent()

	m.gauges.WithLabelValues(name, "addresses_processed").
		Set(float64(s.AddressesProcessed))
	m.gauges.WithLabelValues(name, "cache_hits").Set(float64(s.CacheHits))
	m.gauges.WithLabelValues(name, "page_table_hits").
		Set(float64(s.PageTableHits))
	m.gauges.WithLabelValues(name, "misses").Set(float64(s.Misses()))
	m.gauges.WithLabelValues(name, "frames_allocated").
		Set(float64(s.FramesAllocated))
	m.gauges.WithLabelValues(name, "page_table_entries").
		Set(float64(s.PageTableEntries))
	m.gauges.WithLabelValues(name, "hit_percent").Set(hit)
}

// Stats returns the latest snapshot of the named MMU.
func (m *Monitor) Stats(name string) (Snapshot, bool) {
	m.statsLock.RLock()
	defer m.statsLock.RUnlock()

	s, ok := m.stats[name]

	return s, ok
}

// Router returns the handler that serves the monitoring API.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/stats/{name}", m.statsDetails)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	return r
}

// StartServer starts the monitor as a web server and returns the URL it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", m.listenAddress())
	if err != nil {
		return "", fmt.Errorf("start monitoring server: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitoring server stopped", zap.Error(err))
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url + "/api/stats"); err != nil {
			m.logger.Warn("cannot open browser", zap.Error(err))
		}
	}

	return url, nil
}

func (m *Monitor) listenAddress() string {
	if m.portNumber >= 1000 {
		return ":" + strconv.Itoa(m.portNumber)
	}

	return ":0"
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
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

type statsRsp struct {
	Name               string  `json:"name"`
	PageSize           uint64  `json:"page_size"`
	AddressesProcessed uint64  `json:"addresses_processed"`
	CacheHits          uint64  `json:"cache_hits"`
	PageTableHits      uint64  `json:"page_table_hits"`
	Misses             uint64  `json:"misses"`
	FramesAllocated    uint64  `json:"frames_allocated"`
	PageTableEntries   uint64  `json:"page_table_entries"`
	HitPercent         float64 `json:"hit_percent"`
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	m.statsLock.RLock()
	rsp := make([]statsRsp, 0, len(m.stats))
	for _, s := range m.stats {
		hit, _ := s.Summary.HitPercent()
		rsp = append(rsp, statsRsp{
			Name:               s.Name,
			PageSize:           s.Summary.PageSize,
			AddressesProcessed: s.Summary.AddressesProcessed,
			CacheHits:          s.Summary.CacheHits,
			PageTableHits:      s.Summary.PageTableHits,
			Misses:             s.Summary.Misses(),
			FramesAllocated:    s.Summary.FramesAllocated,
			PageTableEntries:   s.Summary.PageTableEntries,
			HitPercent:         hit,
		})
	}
	m.statsLock.RUnlock()

	m.writeJSON(w, rsp)
}

func (m *Monitor) statsDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	snapshot, ok := m.Stats(name)
	if !ok {
		http.Error(w, "MMU not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(2)

	if err := serializer.Serialize(w); err != nil {
		m.logger.Error("cannot serialize stats", zap.Error(err))
	}
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.writeError(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.writeError(w, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		m.writeError(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.writeError(w, err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.writeError(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(data); err != nil {
		m.logger.Warn("cannot write response", zap.Error(err))
	}
}

func (m *Monitor) writeError(w http.ResponseWriter, err error) {
	m.logger.Error("monitoring request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
