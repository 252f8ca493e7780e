package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/pollevbot/backend/internal/bot"
	"github.com/pollevbot/backend/internal/config"
	"github.com/pollevbot/backend/internal/observability"
	"github.com/pollevbot/backend/internal/session"
)

// CapabilityFactory builds the polling-service capability for one session.
// Injected by main so mock mode swaps the whole backend out.
type CapabilityFactory func(cfg session.Config) bot.Capability

type Server struct {
	cfg            *config.Config
	registry       *session.Registry
	broadcaster    *Broadcaster
	metrics        *observability.Metrics
	log            zerolog.Logger
	newCapability  CapabilityFactory
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

func NewServer(cfg *config.Config, registry *session.Registry, broadcaster *Broadcaster, metrics *observability.Metrics, log zerolog.Logger, factory CapabilityFactory) *Server {
	s := &Server{
		cfg:            cfg,
		registry:       registry,
		broadcaster:    broadcaster,
		metrics:        metrics,
		log:            log,
		newCapability:  factory,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
}

// startRequest is the operator-facing session config. Timings are in
// seconds; zero values fall back to the server's bot defaults.
type startRequest struct {
	Identity          string `json:"identity"`
	Secret            string `json:"secret"`
	Host              string `json:"host"`
	LoginMode         string `json:"loginMode"`
	LifetimeSeconds   int    `json:"lifetimeSeconds"`
	ClosedWaitSeconds int    `json:"closedWaitSeconds"`
	OpenWaitSeconds   int    `json:"openWaitSeconds"`
}

type sessionInfo struct {
	Token     string        `json:"token"`
	State     session.State `json:"state"`
	Alive     bool          `json:"alive"`
	StartedAt time.Time     `json:"startedAt"`
}

func infoFor(h *session.Handle) sessionInfo {
	return sessionInfo{
		Token:     h.Token,
		State:     h.Runner.State(),
		Alive:     h.Runner.Alive(),
		StartedAt: h.StartedAt,
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		handles := s.registry.Handles()
		infos := make([]sessionInfo, 0, len(handles))
		for _, h := range handles {
			infos = append(infos, infoFor(h))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": infos})
	case http.MethodPost:
		s.handleStart(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sc := session.Config{
		Identity:   req.Identity,
		Secret:     req.Secret,
		Host:       req.Host,
		LoginMode:  session.LoginMode(req.LoginMode),
		Lifetime:   time.Duration(req.LifetimeSeconds) * time.Second,
		ClosedWait: time.Duration(req.ClosedWaitSeconds) * time.Second,
		OpenWait:   time.Duration(req.OpenWaitSeconds) * time.Second,
	}
	s.applyBotDefaults(&sc)

	sc, err := sc.Validate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h := bot.Start(sc, s.newCapability(sc), bot.Options{
		Logger:               s.log,
		Metrics:              s.metrics,
		MaxTransientFailures: s.cfg.Bot.MaxTransientFailures,
		BackoffCap:           s.cfg.Bot.BackoffCap,
	})
	s.registry.Register(h)
	s.log.Info().Str("token", h.Token).Str("host", sc.Host).Msg("session started")

	writeJSON(w, http.StatusCreated, infoFor(h))
}

// applyBotDefaults fills unset timings from the server config so Validate's
// hardcoded fallbacks only apply when the config itself leaves them zero.
func (s *Server) applyBotDefaults(sc *session.Config) {
	if sc.Lifetime <= 0 {
		sc.Lifetime = s.cfg.Bot.Lifetime
	}
	if sc.ClosedWait <= 0 {
		sc.ClosedWait = s.cfg.Bot.ClosedWait
	}
	if sc.OpenWait <= 0 {
		sc.OpenWait = s.cfg.Bot.OpenWait
	}
	if sc.StopGrace <= 0 {
		sc.StopGrace = s.cfg.Bot.StopGrace
	}
}

func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	token, sub, _ := strings.Cut(rest, "/")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.handleInfo(w, token)
	case sub == "" && r.Method == http.MethodDelete:
		s.handleStop(w, token)
	case sub == "logs" && r.Method == http.MethodGet:
		s.handleLogs(w, token)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, token string) {
	h, ok := s.registry.Lookup(token)
	if !ok {
		// Registry miss is "no session to reattach to", not a failure.
		http.Error(w, "unknown session token", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, infoFor(h))
}

func (s *Server) handleLogs(w http.ResponseWriter, token string) {
	h, ok := s.registry.Lookup(token)
	if !ok {
		http.Error(w, "unknown session token", http.StatusNotFound)
		return
	}
	events := h.Log.Drain()
	writeJSON(w, http.StatusOK, LogsPayload{
		Token:  token,
		State:  h.Runner.State(),
		Alive:  h.Runner.Alive(),
		Events: events,
	})
}

// handleStop requests termination and removes the registry entry. Idempotent:
// deleting an unknown token is a success.
func (s *Server) handleStop(w http.ResponseWriter, token string) {
	if h, ok := s.registry.Lookup(token); ok {
		h.Runner.Stop()
		s.registry.Remove(token)
		s.log.Info().Str("token", token).Msg("session stopped")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	h, ok := s.registry.Lookup(token)
	if !ok {
		http.Error(w, "unknown session token", http.StatusNotFound)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("ws upgrade error")
		return
	}

	s.log.Debug().Str("token", token).Str("remote", r.RemoteAddr).Msg("ws client connected")
	c := s.broadcaster.AddClient(conn, h)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.log.Debug().Str("token", token).Str("remote", r.RemoteAddr).Msg("ws client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.allowedOrigins[origin] {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if parsed.Host == r.Host || s.allowedHosts[parsed.Host] {
		return true
	}
	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1"
}

type healthResponse struct {
	Status         string  `json:"status"`
	ActiveSessions int     `json:"activeSessions"`
	TotalSessions  int     `json:"totalSessions"`
	WSClients      int     `json:"wsClients"`
	ProcessRSS     uint64  `json:"processRssBytes"`
	ProcessCPU     float64 `json:"processCpuPercent"`
	HostUptime     uint64  `json:"hostUptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:         "ok",
		ActiveSessions: s.registry.ActiveCount(),
		TotalSessions:  len(s.registry.Tokens()),
		WSClients:      s.broadcaster.ClientCount(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			resp.ProcessRSS = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			resp.ProcessCPU = cpu
		}
	}
	if uptime, err := host.Uptime(); err == nil {
		resp.HostUptime = uptime
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe starts the HTTP server on host:port.
func ListenAndServe(hostAddr string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", hostAddr, port)
	return http.ListenAndServe(addr, mux)
}
