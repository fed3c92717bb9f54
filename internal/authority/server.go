// Package authority is an in-repo stand-in for the remote mission authority.
// It speaks the production wire contract, so local play and integration tests
// exercise the real sync and validation paths. It is not the production
// service: its ground truth is whatever the client last pushed, plus any
// corrections queued by tooling.
package authority

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"NightRunners/internal/logging"
	"NightRunners/internal/netcode"
)

// ValidateFunc decides a validation request. The default allows everything.
type ValidateFunc func(req netcode.ValidateEventRequest) netcode.ValidateEventResponse

type missionRecord struct {
	state    netcode.SyncSnapshot
	queued   []netcode.ServerCorrection
	lastSeen time.Time
}

// Server implements the authority's HTTP surface plus a websocket observer
// feed for dev tooling.
type Server struct {
	mu       sync.Mutex
	missions map[string]*missionRecord
	validate ValidateFunc
	log      zerolog.Logger

	obsMu     sync.Mutex
	observers map[chan observerEvent]struct{}
}

// NewServer creates an authority stub that allows every validation request.
func NewServer() *Server {
	return &Server{
		missions:  map[string]*missionRecord{},
		validate:  func(netcode.ValidateEventRequest) netcode.ValidateEventResponse { return netcode.ValidateEventResponse{IsValid: true} },
		log:       logging.WithComponent("authority"),
		observers: map[chan observerEvent]struct{}{},
	}
}

// SetValidateFunc replaces the validation rule (tests, scripted scenarios).
func (s *Server) SetValidateFunc(fn ValidateFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.validate = fn
	s.mu.Unlock()
}

// QueueCorrection schedules a correction for delivery with the mission's next
// sync response.
func (s *Server) QueueCorrection(missionID string, corr netcode.ServerCorrection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(missionID)
	rec.queued = append(rec.queued, corr)
}

// record returns the mission record, creating it if needed. Caller holds mu.
func (s *Server) record(missionID string) *missionRecord {
	rec, ok := s.missions[missionID]
	if !ok {
		rec = &missionRecord{}
		s.missions[missionID] = rec
	}
	return rec
}

// Handler returns the authority's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(netcode.EndpointSync, s.handleSync)
	mux.HandleFunc(netcode.EndpointValidateEvent, s.handleValidate)
	mux.HandleFunc("/observe", s.handleObserve)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves the authority on addr, blocking until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("authority listening")
	return http.ListenAndServe(addr, s.Handler())
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if bearerToken(r) == "" {
		http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
		return
	}

	var snap netcode.SyncSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		http.Error(w, `{"error":"malformed snapshot"}`, http.StatusBadRequest)
		return
	}
	if snap.MissionID == "" {
		http.Error(w, `{"error":"missing missionId"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	rec := s.record(snap.MissionID)
	rec.state = snap
	rec.lastSeen = time.Now()
	corrections := rec.queued
	rec.queued = nil
	resp := netcode.SyncResponse{ServerState: rec.state, Corrections: corrections}
	s.mu.Unlock()

	s.broadcast(observerEvent{
		MissionID:   snap.MissionID,
		Snapshot:    snap,
		Corrections: corrections,
		ReceivedAt:  time.Now(),
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("sync response encode failed")
	}
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if bearerToken(r) == "" {
		http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
		return
	}

	var req netcode.ValidateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"malformed request"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	verdict := s.validate(req)
	s.mu.Unlock()

	s.log.Debug().
		Str("mission_id", req.MissionID).
		Str("event", req.EventType).
		Bool("valid", verdict.IsValid).
		Msg("validation request")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(verdict); err != nil {
		s.log.Error().Err(err).Msg("validation response encode failed")
	}
}
