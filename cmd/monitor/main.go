package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
)

const staleAfter = 2 * time.Minute

// InstanceStatus merges the heartbeat and backpressure reports of one
// running service instance.
type InstanceStatus struct {
	Instance     string    `json:"instance"`
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	Endpoint     string    `json:"endpoint"`
	Uptime       string    `json:"uptime"`
	Capabilities []string  `json:"capabilities"`
	Pending      int64     `json:"pending_messages"`
	Active       int64     `json:"active_processing"`
	Workers      int       `json:"worker_count"`
	Pressure     string    `json:"pressure"`
	LastSeen     time.Time `json:"last_seen"`
}

type heartbeat struct {
	Instance     string   `json:"instance"`
	Status       string   `json:"status"`
	Uptime       string   `json:"uptime"`
	Capabilities []string `json:"capabilities"`
	Endpoint     string   `json:"endpoint"`
	Version      string   `json:"version"`
}

type backpressure struct {
	Instance         string `json:"instance"`
	PendingMessages  int64  `json:"pending_messages"`
	ActiveProcessing int64  `json:"active_processing"`
	WorkerCount      int    `json:"worker_count"`
	Status           string `json:"status"`
}

// Fleet tracks every instance seen on the bus.
type Fleet struct {
	mu        sync.RWMutex
	instances map[string]*InstanceStatus
	now       func() time.Time
}

func NewFleet() *Fleet {
	return &Fleet{instances: make(map[string]*InstanceStatus), now: time.Now}
}

func (f *Fleet) get(id string) *InstanceStatus {
	s, ok := f.instances[id]
	if !ok {
		s = &InstanceStatus{Instance: id, Pressure: "unknown"}
		f.instances[id] = s
	}
	s.LastSeen = f.now()
	return s
}

// ApplyHeartbeat records a health heartbeat or health reply.
func (f *Fleet) ApplyHeartbeat(data []byte) error {
	var hb heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return err
	}
	if hb.Instance == "" {
		return fmt.Errorf("heartbeat without instance")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.get(hb.Instance)
	s.Status = hb.Status
	s.Version = hb.Version
	s.Endpoint = hb.Endpoint
	s.Uptime = hb.Uptime
	s.Capabilities = hb.Capabilities
	return nil
}

// ApplyBackpressure records a work-queue pressure report.
func (f *Fleet) ApplyBackpressure(data []byte) error {
	var bp backpressure
	if err := json.Unmarshal(data, &bp); err != nil {
		return err
	}
	if bp.Instance == "" {
		return fmt.Errorf("backpressure report without instance")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.get(bp.Instance)
	s.Pending = bp.PendingMessages
	s.Active = bp.ActiveProcessing
	s.Workers = bp.WorkerCount
	s.Pressure = bp.Status
	return nil
}

// Prune drops instances not heard from within staleAfter.
func (f *Fleet) Prune() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for id, s := range f.instances {
		if f.now().Sub(s.LastSeen) > staleAfter {
			delete(f.instances, id)
			removed++
		}
	}
	return removed
}

// Snapshot returns the instances sorted by name.
func (f *Fleet) Snapshot() []InstanceStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]InstanceStatus, 0, len(f.instances))
	for _, s := range f.instances {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

func main() {
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	healthSubject := flag.String("health-subject", "railqr.health", "Health request subject")
	httpAddr := flag.String("http", "", "Serve the fleet as JSON on this address")
	interval := flag.Duration("interval", 5*time.Second, "Dashboard refresh interval")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	nc, err := nats.Connect(*natsURL, nats.Name("railqr-monitor"))
	if err != nil {
		slog.Error("Failed to connect to NATS", "url", *natsURL, "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fleet := NewFleet()
	subscribe := func(subject string, apply func([]byte) error) {
		if _, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			if err := apply(msg.Data); err != nil {
				slog.Warn("Ignoring report", "subject", msg.Subject, "error", err)
			}
		}); err != nil {
			slog.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}
	subscribe(*healthSubject+".heartbeat", fleet.ApplyHeartbeat)
	subscribe("railqr.backpressure", fleet.ApplyBackpressure)

	discover(nc, *healthSubject, fleet)

	if *httpAddr != "" {
		go serveHTTP(ctx, fleet, *httpAddr)
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fleet.Prune()
			render(os.Stdout, fleet.Snapshot())
		}
	}
}

// discover collects replies from every instance listening on the health
// subject.
func discover(nc *nats.Conn, subject string, fleet *Fleet) {
	inbox := nats.NewInbox()
	sub, err := nc.Subscribe(inbox, func(msg *nats.Msg) {
		_ = fleet.ApplyHeartbeat(msg.Data)
	})
	if err != nil {
		slog.Warn("Discovery failed", "error", err)
		return
	}
	if err := nc.PublishRequest(subject, inbox, nil); err != nil {
		slog.Warn("Discovery failed", "error", err)
	}
	time.AfterFunc(2*time.Second, func() { _ = sub.Unsubscribe() })
}

func serveHTTP(ctx context.Context, fleet *Fleet, addr string) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/api/instances", func(c *gin.Context) {
		c.JSON(http.StatusOK, fleet.Snapshot())
	})

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	slog.Info("Monitor HTTP server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Monitor HTTP server failed", "error", err)
	}
}

func render(w *os.File, instances []InstanceStatus) {
	fmt.Fprint(w, "\033[2J\033[H")
	fmt.Fprintf(w, "RailQR fleet  %s  (%d instances)\n\n", time.Now().Format(time.TimeOnly), len(instances))
	fmt.Fprintf(w, "%-32s %-8s %-10s %-9s %7s %6s %7s\n", "INSTANCE", "STATUS", "VERSION", "PRESSURE", "PENDING", "ACTIVE", "WORKERS")
	fmt.Fprintln(w, strings.Repeat("-", 85))
	for _, s := range instances {
		fmt.Fprintf(w, "%-32s %-8s %-10s %-9s %7d %6d %7d\n",
			truncate(s.Instance, 32), s.Status, truncate(s.Version, 10), s.Pressure, s.Pending, s.Active, s.Workers)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
