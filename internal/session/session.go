package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"NightRunners/internal/director"
	"NightRunners/internal/logging"
	"NightRunners/internal/netcode"
)

// SpawnExecutor receives throttled pursuer waves. Fire-and-forget: it may
// silently no-op when spawning is disabled.
type SpawnExecutor interface {
	RequestSpawns(count int, aggression float64)
}

// Deps are the session's external collaborators.
type Deps struct {
	BaseURL      string       // Authority base URL
	HTTPClient   *http.Client // Optional transport override (HTTP/2, tests)
	Spawner      SpawnExecutor
	OnTerminated func(reason string) // Forced-termination propagation
}

// Session is the per-mission actor. One tick loop drives the tension model
// and spawn throttle synchronously and never blocks on network I/O; the sync
// coordinator and validator do their round-trips on their own goroutines.
// All mission-state writers are serialized behind one mutex.
type Session struct {
	ID string

	mu           sync.Mutex
	cfg          Config
	mission      *director.MissionState
	throttle     *director.Throttle
	tension      float64
	aggression   float64
	activeActors int
	closed       bool

	players   *PlayerRegistry
	rpc       *netcode.Client
	coord     *netcode.Coordinator
	validator *netcode.Validator
	spawner   SpawnExecutor

	onTerminated func(reason string)
	cancel       context.CancelFunc
	log          zerolog.Logger
}

// New wires a session for one mission. Call Start to begin ticking.
func New(cfg Config, deps Deps) *Session {
	cfg = SanitizeConfig(cfg)
	if cfg.MissionID == "" {
		cfg.MissionID = uuid.NewString()
	}

	s := &Session{
		ID:           uuid.NewString(),
		cfg:          cfg,
		mission:      director.NewMissionState(cfg.MissionID),
		players:      NewPlayerRegistry(),
		spawner:      deps.Spawner,
		onTerminated: deps.OnTerminated,
		aggression:   1.0,
		log:          logging.WithMissionID(cfg.MissionID),
	}

	// Counter is only read from the tick step, which already holds s.mu.
	s.throttle = director.NewThrottle(cfg.Spawn, func() int { return s.activeActors })

	rpcOpts := []netcode.ClientOption{
		netcode.WithMaxRetries(cfg.MaxRetries),
		netcode.WithBaseDelay(cfg.BaseDelay),
		netcode.WithRequestTimeout(cfg.RequestTimeout),
	}
	if deps.HTTPClient != nil {
		rpcOpts = append(rpcOpts, netcode.WithHTTPClient(deps.HTTPClient))
	}
	s.rpc = netcode.NewClient(deps.BaseURL, rpcOpts...)

	s.coord = netcode.NewCoordinator(cfg.Sync, s.rpc, s.mission, s.players, &s.mu)
	s.coord.OnTerminated = s.handleTermination
	s.validator = netcode.NewValidator(s.rpc, cfg.MissionID, cfg.ValidationEnabled)

	return s
}

// Start launches the tick loop and the sync coordinator. The session stops
// when ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx)
	go s.coord.Run(ctx)
	s.log.Info().Float64("tick_rate", s.cfg.TickRate).Msg("session started")
}

func (s *Session) run(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / s.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.Step(dt)
		}
	}
}

// Step advances the director by dt seconds. Exposed so embedders with their
// own frame loop can drive the session manually instead of calling Start.
func (s *Session) Step(dt float64) {
	s.mu.Lock()
	if s.closed || s.mission.Phase.Terminal() {
		s.mu.Unlock()
		return
	}

	s.mission.AdvanceTime(dt)
	s.mission.Alert().Decay(s.cfg.AlertDecayRate, dt)

	sample := director.ComputeTension(s.mission.Heat, s.mission.Elapsed, s.mission.Alert().Scale(), s.cfg.Tension)
	s.tension = sample.Tension
	s.aggression = s.throttle.P.AggressionCurve(sample.Tension)

	req := s.throttle.Tick(dt, sample.Tension)
	spawner := s.spawner
	s.mu.Unlock()

	// Best effort: with no executor wired the wave is dropped, no retry.
	if req != nil && spawner != nil {
		spawner.RequestSpawns(req.Count, req.Aggression)
	}
}

// Close tears the session down. In-flight network attempts finish and are
// abandoned; no correction lands after this returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	s.coord.Close()
	if cancel != nil {
		cancel()
	}
	s.log.Info().Msg("session closed")
}

func (s *Session) handleTermination(reason string) {
	s.log.Warn().Str("reason", reason).Msg("forced termination")
	if s.onTerminated != nil {
		s.onTerminated(reason)
	}
}

// SetAuthToken installs the bearer token for all authority traffic and lets
// the sync coordinator leave the disconnected state.
func (s *Session) SetAuthToken(token string) {
	s.rpc.SetAuthToken(token)
}

// AddHeat raises mission heat in response to gameplay (gunfire, witnesses,
// property damage). Negative amounts are ignored.
func (s *Session) AddHeat(amount float64) {
	s.mu.Lock()
	s.mission.AddHeat(amount)
	s.mu.Unlock()
}

// RaiseAlert spikes the alert signal for a scripted event.
func (s *Session) RaiseAlert(amount float64) {
	s.mu.Lock()
	s.mission.Alert().AddImmediateAlert(amount)
	s.mu.Unlock()
}

// SetPhase transitions the mission phase, refusing to leave terminal states.
func (s *Session) SetPhase(p director.MissionPhase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mission.SetPhase(p)
}

// ActorSpawned records a pursuer entering the world.
func (s *Session) ActorSpawned() {
	s.mu.Lock()
	s.activeActors++
	s.mu.Unlock()
}

// ActorDespawned records a pursuer leaving the world.
func (s *Session) ActorDespawned() {
	s.mu.Lock()
	if s.activeActors > 0 {
		s.activeActors--
	}
	s.mu.Unlock()
}

// CurrentTension returns the last computed tension in [0,1].
func (s *Session) CurrentTension() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tension
}

// AggressionMultiplier returns the current pursuer aggression multiplier.
func (s *Session) AggressionMultiplier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggression
}

// StateView returns a read-only snapshot of the mission state.
func (s *Session) StateView() director.StateView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mission.View()
}

// SyncState returns the sync coordinator's lifecycle state.
func (s *Session) SyncState() netcode.SyncState {
	return s.coord.State()
}

// Players exposes the crew registry for game glue.
func (s *Session) Players() *PlayerRegistry {
	return s.players
}

// ValidateEvent gates a critical action behind the authority. Blocking; use
// ValidateEventAsync from the render or tick path.
func (s *Session) ValidateEvent(ctx context.Context, eventType string, data map[string]any) netcode.Verdict {
	return s.validator.Validate(ctx, eventType, data)
}

// ValidateEventAsync validates without blocking the caller and reports the
// verdict on its own goroutine.
func (s *Session) ValidateEventAsync(ctx context.Context, eventType string, data map[string]any, done func(netcode.Verdict)) {
	go func() {
		verdict := s.validator.Validate(ctx, eventType, data)
		if done != nil {
			done(verdict)
		}
	}()
}
