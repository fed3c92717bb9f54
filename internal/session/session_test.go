package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NightRunners/internal/director"
	"NightRunners/internal/netcode"
)

type fakeExecutor struct {
	mu    sync.Mutex
	waves []director.SpawnRequest
}

func (f *fakeExecutor) RequestSpawns(count int, aggression float64) {
	f.mu.Lock()
	f.waves = append(f.waves, director.SpawnRequest{Count: count, Aggression: aggression})
	f.mu.Unlock()
}

func (f *fakeExecutor) waveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waves)
}

func offlineConfig() Config {
	cfg := DefaultConfig()
	cfg.MissionID = "m-test"
	cfg.ValidationEnabled = false
	return cfg
}

func TestStepRaisesTensionWithHeat(t *testing.T) {
	s := New(offlineConfig(), Deps{BaseURL: "http://127.0.0.1:0"})

	s.Step(0.05)
	low := s.CurrentTension()

	s.AddHeat(80)
	s.Step(0.05)
	high := s.CurrentTension()

	assert.Greater(t, high, low, "heat must raise tension")
	assert.LessOrEqual(t, high, 1.0)
	assert.GreaterOrEqual(t, s.AggressionMultiplier(), 1.0)
}

func TestStepDispatchesWaves(t *testing.T) {
	exec := &fakeExecutor{}
	cfg := offlineConfig()
	cfg.Spawn.BaseInterval = 1.0
	s := New(cfg, Deps{BaseURL: "http://127.0.0.1:0", Spawner: exec})

	for i := 0; i < 30; i++ {
		s.Step(0.5)
	}

	require.Greater(t, exec.waveCount(), 0, "expected at least one wave over 15 simulated seconds")
	exec.mu.Lock()
	defer exec.mu.Unlock()
	for _, w := range exec.waves {
		assert.GreaterOrEqual(t, w.Count, 1)
		assert.LessOrEqual(t, w.Count, cfg.Spawn.MaxPerWave)
		assert.GreaterOrEqual(t, w.Aggression, 1.0)
	}
}

func TestStepRespectsActiveCap(t *testing.T) {
	exec := &fakeExecutor{}
	cfg := offlineConfig()
	cfg.Spawn.BaseInterval = 1.0
	cfg.Spawn.MaxActive = 3
	s := New(cfg, Deps{BaseURL: "http://127.0.0.1:0", Spawner: exec})

	for i := 0; i < 3; i++ {
		s.ActorSpawned()
	}
	for i := 0; i < 20; i++ {
		s.Step(0.5)
	}
	assert.Equal(t, 0, exec.waveCount(), "no waves while at the active cap")

	s.ActorDespawned()
	for i := 0; i < 20; i++ {
		s.Step(0.5)
	}
	assert.Greater(t, exec.waveCount(), 0, "waves resume when capacity frees up")
}

func TestTerminalPhaseStopsDirector(t *testing.T) {
	s := New(offlineConfig(), Deps{BaseURL: "http://127.0.0.1:0"})
	s.Step(1.0)
	require.True(t, s.SetPhase(director.PhaseFailed))

	before := s.StateView().Elapsed
	s.Step(1.0)
	assert.Equal(t, before, s.StateView().Elapsed, "director must idle after a terminal phase")
}

func TestMissingExecutorDropsWaves(t *testing.T) {
	cfg := offlineConfig()
	cfg.Spawn.BaseInterval = 0.5
	s := New(cfg, Deps{BaseURL: "http://127.0.0.1:0"}) // no spawner wired

	// Must not panic; waves are silently dropped.
	for i := 0; i < 10; i++ {
		s.Step(0.5)
	}
	assert.Greater(t, s.StateView().Elapsed, 0.0)
}

func TestValidateEventDisabled(t *testing.T) {
	s := New(offlineConfig(), Deps{BaseURL: "http://127.0.0.1:0"})
	verdict := s.ValidateEvent(context.Background(), "loot_pickup", nil)
	assert.True(t, verdict.Allowed)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New(offlineConfig(), Deps{BaseURL: "http://127.0.0.1:0"})
	s.Start(context.Background())
	s.Close()
	s.Close()

	before := s.StateView().Elapsed
	s.Step(1.0)
	assert.Equal(t, before, s.StateView().Elapsed, "closed session must not tick")
}

func TestSessionForcedTerminationEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var snap netcode.SyncSnapshot
		_ = json.NewDecoder(r.Body).Decode(&snap)
		_ = json.NewEncoder(w).Encode(netcode.SyncResponse{
			ServerState: netcode.SyncSnapshot{MissionID: snap.MissionID, Heat: snap.Heat},
			Corrections: []netcode.ServerCorrection{
				{Type: netcode.CorrectionMissionState, Value: json.RawMessage(`"terminated"`), Reason: "cheat detected"},
			},
		})
	}))
	defer srv.Close()

	var reason atomic.Value
	cfg := offlineConfig()
	cfg.Sync.SyncInterval = 0.05
	cfg.BaseDelay = time.Millisecond
	s := New(cfg, Deps{
		BaseURL:      srv.URL,
		OnTerminated: func(r string) { reason.Store(r) },
	})
	s.SetAuthToken("tok")
	s.Start(context.Background())
	defer s.Close()

	require.Eventually(t, func() bool {
		return s.StateView().Phase == director.PhaseTerminated
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "cheat detected", reason.Load())
}

func TestPlayerRegistrySnap(t *testing.T) {
	reg := NewPlayerRegistry()
	reg.Update(netcode.PlayerState{PlayerID: "p1", Position: netcode.Vec3{X: 1}})

	reg.SnapPosition("p1", netcode.Vec3{X: 50, Y: 2})
	pos, ok := reg.Position("p1")
	require.True(t, ok)
	assert.Equal(t, netcode.Vec3{X: 50, Y: 2}, pos)

	// Unknown players are ignored, not created.
	reg.SnapPosition("ghost", netcode.Vec3{X: 1})
	_, ok = reg.Position("ghost")
	assert.False(t, ok)
}
