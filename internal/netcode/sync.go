package netcode

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"NightRunners/internal/director"
	"NightRunners/internal/logging"
)

// Sync defaults.
const (
	DefaultSyncInterval           = 5.0  // seconds between snapshot pushes
	DefaultMaxClientDeviation     = 5.0  // meters before a position snap
	DefaultMaxHeatChangePerSecond = 12.0 // plausible local heat slew rate
)

// SyncState enumerates the coordinator lifecycle.
type SyncState int32

const (
	StateDisconnected SyncState = iota // No auth token yet
	StateConnecting                    // Token present, first push pending
	StateSynced                        // At least one successful cycle
	StateCorrecting                    // Applying a correction batch
)

// String returns a readable state name.
func (s SyncState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSynced:
		return "synced"
	case StateCorrecting:
		return "correcting"
	default:
		return "unknown"
	}
}

// PlayerTracker exposes the locally simulated crew to the coordinator: a read
// of last-known kinematics for snapshots and a position snap for corrections.
type PlayerTracker interface {
	Players() []PlayerState
	SnapPosition(playerID string, pos Vec3)
}

// CoordinatorConfig tunes the sync cadence and deviation bounds.
type CoordinatorConfig struct {
	SyncInterval           float64 // seconds
	MaxClientDeviation     float64 // meters
	MaxHeatChangePerSecond float64
}

// SanitizeCoordinatorConfig clamps the config to safe defaults.
func SanitizeCoordinatorConfig(cfg CoordinatorConfig) CoordinatorConfig {
	if !(cfg.SyncInterval > 0) {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if !(cfg.MaxClientDeviation > 0) {
		cfg.MaxClientDeviation = DefaultMaxClientDeviation
	}
	if !(cfg.MaxHeatChangePerSecond > 0) {
		cfg.MaxHeatChangePerSecond = DefaultMaxHeatChangePerSecond
	}
	return cfg
}

// Coordinator reconciles optimistic local simulation against the authority.
// It pushes a snapshot every sync interval, detects divergence, and applies
// server corrections. The authority is the single source of truth; a failed
// push leaves local state untouched and the coordinator eligible to retry.
type Coordinator struct {
	cfg     CoordinatorConfig
	rpc     *Client
	mission *director.MissionState
	players PlayerTracker
	locker  sync.Locker
	log     zerolog.Logger

	state        atomic.Int32
	pushInFlight atomic.Bool
	closed       atomic.Bool

	// OnTerminated fires once when a mission_state correction reaches a
	// terminal phase, with the server-supplied reason. Called outside the
	// session lock.
	OnTerminated func(reason string)
}

// NewCoordinator wires a coordinator to a mission's state and crew tracker.
// locker is the session lock serializing state writers; a private mutex is
// installed when nil so standalone use stays safe.
func NewCoordinator(cfg CoordinatorConfig, rpc *Client, mission *director.MissionState, players PlayerTracker, locker sync.Locker) *Coordinator {
	if locker == nil {
		locker = &sync.Mutex{}
	}
	return &Coordinator{
		cfg:     SanitizeCoordinatorConfig(cfg),
		rpc:     rpc,
		mission: mission,
		players: players,
		locker:  locker,
		log:     logging.WithComponent("sync").With().Str("mission_id", mission.MissionID).Logger(),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() SyncState {
	return SyncState(c.state.Load())
}

func (c *Coordinator) setState(s SyncState) {
	c.state.Store(int32(s))
}

// Close begins teardown. No correction is applied after Close returns; an
// in-flight push finishes its current attempt and is abandoned.
func (c *Coordinator) Close() {
	c.closed.Store(true)
}

// Run drives sync cycles at the configured interval until ctx is cancelled.
// An overdue cycle is skipped rather than queued.
func (c *Coordinator) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.SyncInterval * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sync(ctx)
		}
	}
}

// Sync performs one push/pull cycle. Safe to call concurrently: if a push for
// this mission is already in flight, the call is a no-op.
func (c *Coordinator) Sync(ctx context.Context) {
	if c.closed.Load() {
		return
	}
	if c.State() == StateDisconnected {
		if !c.rpc.HasAuthToken() {
			return
		}
		c.setState(StateConnecting)
	}
	if !c.pushInFlight.CompareAndSwap(false, true) {
		syncPushesSkipped.Inc()
		return
	}
	defer c.pushInFlight.Store(false)

	snap := c.buildSnapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		c.log.Error().Err(err).Msg("snapshot encode failed")
		return
	}

	ok, body := c.rpc.Execute(ctx, EndpointSync, string(payload))
	if !ok {
		// Absence of server confirmation never worsens local state.
		c.log.Debug().Msg("sync push failed; retrying next interval")
		return
	}

	var resp SyncResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		c.log.Warn().Err(err).Msg("sync response parse failed")
		return
	}

	reason, terminated := c.apply(&resp)
	if terminated {
		forcedTerminations.Inc()
		c.log.Warn().Str("reason", reason).Msg("mission terminated by authority")
		if c.OnTerminated != nil {
			c.OnTerminated(reason)
		}
	}
}

func (c *Coordinator) buildSnapshot() SyncSnapshot {
	c.locker.Lock()
	defer c.locker.Unlock()

	snap := SyncSnapshot{
		MissionID:    c.mission.MissionID,
		Elapsed:      c.mission.Elapsed,
		Heat:         c.mission.Heat,
		MissionState: c.mission.Phase.String(),
	}
	if c.players != nil {
		snap.PlayerStates = c.players.Players()
	}
	return snap
}

// apply reconciles one server response under the session lock. Returns the
// termination reason when a mission_state correction reached a terminal phase.
func (c *Coordinator) apply(resp *SyncResponse) (reason string, terminated bool) {
	c.locker.Lock()
	defer c.locker.Unlock()

	if c.closed.Load() {
		return "", false
	}

	if len(resp.Corrections) > 0 {
		c.setState(StateCorrecting)
	}

	explicitHeat := false
	for i := range resp.Corrections {
		if resp.Corrections[i].Type == CorrectionHeat {
			explicitHeat = true
			break
		}
	}

	// Defense in depth: when the batch carries no explicit heat correction
	// but the server's heat is implausibly far from ours, adopt it anyway.
	// An explicit correction always wins over this fallback.
	if !explicitHeat {
		bound := c.cfg.MaxHeatChangePerSecond * c.cfg.SyncInterval
		if math.Abs(resp.ServerState.Heat-c.mission.Heat) > bound {
			c.log.Warn().
				Float64("local", c.mission.Heat).
				Float64("server", resp.ServerState.Heat).
				Msg("heat deviation beyond bound; adopting server value")
			c.mission.ApplyHeatCorrection(resp.ServerState.Heat)
			correctionsApplied.WithLabelValues("heat_deviation").Inc()
		}
	}

	// Snap crew members the server reports too far from local tracking.
	if c.players != nil {
		local := make(map[string]Vec3)
		for _, p := range c.players.Players() {
			local[p.PlayerID] = p.Position
		}
		for _, sp := range resp.ServerState.PlayerStates {
			lp, ok := local[sp.PlayerID]
			if !ok {
				continue
			}
			if sp.Position.Sub(lp).Len() > c.cfg.MaxClientDeviation {
				c.players.SnapPosition(sp.PlayerID, sp.Position)
				correctionsApplied.WithLabelValues("position_deviation").Inc()
			}
		}
	}

	for i := range resp.Corrections {
		corr := &resp.Corrections[i]
		switch corr.Type {
		case CorrectionHeat:
			if v, ok := corr.FloatValue(); ok {
				c.mission.ApplyHeatCorrection(v)
				correctionsApplied.WithLabelValues(CorrectionHeat).Inc()
			}
		case CorrectionPosition:
			if corr.Position != nil && corr.PlayerID != "" && c.players != nil {
				c.players.SnapPosition(corr.PlayerID, *corr.Position)
				correctionsApplied.WithLabelValues(CorrectionPosition).Inc()
			}
		case CorrectionMissionState:
			name, ok := corr.StringValue()
			if !ok {
				continue
			}
			phase, known := director.PhaseFromString(name)
			if !known {
				c.log.Warn().Str("phase", name).Msg("unknown mission_state correction")
				continue
			}
			c.mission.SetPhase(phase)
			correctionsApplied.WithLabelValues(CorrectionMissionState).Inc()
			if phase.Terminal() {
				terminated = true
				reason = corr.Reason
			}
		default:
			c.log.Warn().Str("type", corr.Type).Msg("unknown correction kind")
		}
	}

	c.setState(StateSynced)
	return reason, terminated
}
