// Package statsapi exposes a stats.Registry over a read-only HTTP API:
// a healthcheck and JSON snapshots of per-device counters. It is purely
// ambient tooling — nothing in mbusgo's core decoding path depends on it.
package statsapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mbusgo/stats"
)

// Server serves a stats.Registry's counters over HTTP.
type Server struct {
	reg  *stats.Registry
	port int
}

// Config holds configuration for the stats API server.
type Config struct {
	Port int
}

// NewServer creates a statsapi.Server backed by reg.
func NewServer(reg *stats.Registry, cfg Config) *Server {
	return &Server{reg: reg, port: cfg.Port}
}

// Router returns the configured chi router, for embedding in another server.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleAllStats)
	r.Get("/stats/{device}", s.handleDeviceStats)

	return r
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	addr := ":" + strconv.Itoa(s.port)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// deviceCounters is Counters plus the key it belongs to, for JSON output.
type deviceCounters struct {
	Device                 string `json:"device"`
	FramesTotal            uint64 `json:"frames_total"`
	FramesOK               uint64 `json:"frames_ok"`
	CRCErrors              uint64 `json:"crc_errors"`
	BlockCRCErrors         uint64 `json:"block_crc_errors"`
	ParseErrors            uint64 `json:"parse_errors"`
	EncryptedFramesSkipped uint64 `json:"encrypted_frames_skipped"`
	InvalidHeaders         uint64 `json:"invalid_headers"`
}

func toDeviceCounters(key stats.DeviceKey, c stats.Counters) deviceCounters {
	return deviceCounters{
		Device:                 key.String(),
		FramesTotal:            c.FramesTotal,
		FramesOK:               c.FramesOK,
		CRCErrors:              c.CRCErrors,
		BlockCRCErrors:         c.BlockCRCErrors,
		ParseErrors:            c.ParseErrors,
		EncryptedFramesSkipped: c.EncryptedFramesSkipped,
		InvalidHeaders:         c.InvalidHeaders,
	}
}

func (s *Server) handleAllStats(w http.ResponseWriter, r *http.Request) {
	snapshots := s.reg.AllSnapshots()
	out := make([]deviceCounters, 0, len(snapshots))
	for key, c := range snapshots {
		out = append(out, toDeviceCounters(key, c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")
	if device == "" {
		writeError(w, http.StatusBadRequest, "device is required")
		return
	}

	for key, c := range s.reg.AllSnapshots() {
		if key.String() == device {
			writeJSON(w, http.StatusOK, toDeviceCounters(key, c))
			return
		}
	}
	writeError(w, http.StatusNotFound, "no stats recorded for device")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

