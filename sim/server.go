package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sixdouglas/suncalc"
)

// Server exposes a running Driver's progress over HTTP: liveness and
// readiness probes plus a websocket feed that pushes the health
// snapshot (driver status, uptime, sun position) to connected clients
// on connect and every five seconds thereafter.
type Server struct {
	driver    *Driver
	server    *http.Server
	port      int
	startTime time.Time
	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}
}

// HealthResponse is the /api/health and websocket payload shape.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Driver    Status    `json:"driver"`
	System    SystemInfo `json:"system"`
	Sun       SunInfo   `json:"sun"`
}

// SystemInfo carries process-level diagnostics.
type SystemInfo struct {
	Uptime string `json:"uptime"`
}

// SunInfo reports the simulated location's current solar position,
// useful for sanity-checking the solar profile a run is using.
type SunInfo struct {
	SolarAngleDeg float64 `json:"solar_angle_deg"`
	Sunrise       string  `json:"sunrise"`
	Sunset        string  `json:"sunset"`
}

// NewServer builds a status server for driver, bound to port. A
// non-positive port disables the server by returning nil.
func NewServer(driver *Driver, port int) *Server {
	if port <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	s := &Server{
		driver:    driver,
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("/api/health", s.healthHandler)
	mux.HandleFunc("/api/ready", s.readinessHandler)
	mux.HandleFunc("/api/ws", s.wsHandler)

	return s
}

// Start launches the HTTP listener and the broadcast goroutines.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}

	go s.handleBroadcasts()
	go s.broadcastStatus()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("sim: status server error: %v\n", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, closing every websocket
// connection first.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	close(s.done)

	s.clients.Range(func(key, value any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close() //nolint:gosec
		}
		return true
	})

	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := s.buildHealth()
	if !response.Driver.IsRunning {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.driver.Status()
	ready := map[string]any{
		"ready":     status.IsRunning,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.IsRunning {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(ready); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf("sim: websocket upgrade error: %v\n", err)
		return
	}

	s.clients.Store(conn, true)
	s.sendStatusToClient(conn)

	defer func() {
		s.clients.Delete(conn)
		conn.Close() //nolint:gosec
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("sim: websocket error: %v\n", err)
			}
			break
		}
	}
}

func (s *Server) handleBroadcasts() {
	for {
		select {
		case message := <-s.broadcast:
			s.clients.Range(func(key, value any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close() //nolint:gosec
					s.clients.Delete(conn)
				}
				return true
			})
		case <-s.done:
			return
		}
	}
}

func (s *Server) broadcastStatus() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hasClients := false
			s.clients.Range(func(key, value any) bool {
				hasClients = true
				return false
			})
			if !hasClients {
				continue
			}
			message, err := json.Marshal(s.buildHealth())
			if err != nil {
				continue
			}
			s.broadcast <- message
		case <-s.done:
			return
		}
	}
}

func (s *Server) sendStatusToClient(conn *websocket.Conn) {
	if err := conn.WriteJSON(s.buildHealth()); err != nil {
		fmt.Printf("sim: failed to send initial status: %v\n", err)
	}
}

func (s *Server) buildHealth() HealthResponse {
	status := s.driver.Status()

	overall := "healthy"
	if !status.IsRunning {
		overall = "unhealthy"
	} else if status.LastWarning != "" {
		overall = "degraded"
	}

	now := time.Now()
	cfg := s.driver.config
	sunTimes := suncalc.GetTimes(now, cfg.Latitude, cfg.Longitude)
	sunPos := suncalc.GetPosition(now, cfg.Latitude, cfg.Longitude)

	return HealthResponse{
		Status:    overall,
		Timestamp: now.UTC().Format(time.RFC3339),
		Driver:    status,
		System:    SystemInfo{Uptime: formatUptime(time.Since(s.startTime))},
		Sun: SunInfo{
			SolarAngleDeg: sunPos.Altitude * 180 / math.Pi,
			Sunrise:       sunTimes["sunrise"].Value.Format(time.RFC3339),
			Sunset:        sunTimes["sunset"].Value.Format(time.RFC3339),
		},
	}
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
