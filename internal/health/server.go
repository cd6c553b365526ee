package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/speedwagon-io/reefercheck/internal/lib/logger/sl"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

type HealthChecker interface {
	Name() string
	Check(ctx context.Context) (Status, string)
}

type Server struct {
	log      *slog.Logger
	address  string
	server   *http.Server
	listener net.Listener
	checkers []HealthChecker
	mu       sync.RWMutex
}

func NewServer(log *slog.Logger, address string) *Server {
	return &Server{
		log:      log,
		address:  address,
		checkers: make([]HealthChecker, 0),
	}
}

func (s *Server) AddChecker(checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, checker)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)

	return r
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting health server", slog.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("health server error", sl.Err(err))
		}
	}()

	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.address
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checkers := make([]HealthChecker, len(s.checkers))
	copy(checkers, s.checkers)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:     StatusHealthy,
		Components: make([]ComponentHealth, 0, len(checkers)),
		Timestamp:  time.Now().UTC(),
	}

	for _, checker := range checkers {
		status, message := checker.Check(ctx)
		response.Components = append(response.Components, ComponentHealth{
			Name:    checker.Name(),
			Status:  status,
			Message: message,
		})

		if status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// unhealthyAfter is the number of consecutive failed pings after which the
// backend stops being degraded and is reported unhealthy.
const unhealthyAfter = 3

// BackendHealthChecker reports the REST backend as degraded while pings fail
// and as unhealthy once unhealthyAfter of them fail in a row. The monitor
// keeps running regardless.
type BackendHealthChecker struct {
	pingFunc func(ctx context.Context) error

	mu       sync.Mutex
	failures int
}

func NewBackendHealthChecker(pingFunc func(ctx context.Context) error) *BackendHealthChecker {
	return &BackendHealthChecker{pingFunc: pingFunc}
}

func (c *BackendHealthChecker) Name() string {
	return "backend"
}

func (c *BackendHealthChecker) Check(ctx context.Context) (Status, string) {
	err := c.pingFunc(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures = 0
		return StatusHealthy, ""
	}

	c.failures++
	if c.failures >= unhealthyAfter {
		return StatusUnhealthy, fmt.Sprintf("%d consecutive failures: %s", c.failures, err)
	}
	return StatusDegraded, err.Error()
}

// MonitorHealthChecker flags a monitor that has not drawn a reading within
// maxAge.
type MonitorHealthChecker struct {
	lastSuccess func() time.Time
	maxAge      time.Duration
	now         func() time.Time
}

func NewMonitorHealthChecker(lastSuccess func() time.Time, maxAge time.Duration) *MonitorHealthChecker {
	return &MonitorHealthChecker{
		lastSuccess: lastSuccess,
		maxAge:      maxAge,
		now:         time.Now,
	}
}

func (c *MonitorHealthChecker) Name() string {
	return "monitor"
}

func (c *MonitorHealthChecker) Check(ctx context.Context) (Status, string) {
	last := c.lastSuccess()
	if last.IsZero() {
		return StatusDegraded, "no reading received yet"
	}

	if age := c.now().Sub(last); age > c.maxAge {
		return StatusDegraded, fmt.Sprintf("last reading received %s ago", age.Round(time.Second))
	}

	return StatusHealthy, ""
}
