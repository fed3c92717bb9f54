package netcode

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
)

// fakeTracker is an in-memory PlayerTracker.
type fakeTracker struct {
	mu        sync.Mutex
	positions map[string]Vec3
	snaps     int
}

func newFakeTracker(positions map[string]Vec3) *fakeTracker {
	return &fakeTracker{positions: positions}
}

func (f *fakeTracker) Players() []PlayerState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PlayerState, 0, len(f.positions))
	for id, pos := range f.positions {
		out = append(out, PlayerState{PlayerID: id, Position: pos})
	}
	return out
}

func (f *fakeTracker) SnapPosition(playerID string, pos Vec3) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[playerID] = pos
	f.snaps++
}

func (f *fakeTracker) position(id string) Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions[id]
}

// authorityStub serves canned sync responses.
func authorityStub(t *testing.T, respond func(snap SyncSnapshot) SyncResponse) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var snap SyncSnapshot
		require.NoError(t, json.NewDecoder(r.Body).Decode(&snap))
		_ = json.NewEncoder(w).Encode(respond(snap))
	}))
	return srv, &requests
}

func testCoordinator(url string, mission *director.MissionState, tracker PlayerTracker) *Coordinator {
	rpc := newTestClient(url, 1)
	rpc.SetAuthToken("tok")
	return NewCoordinator(CoordinatorConfig{
		SyncInterval:           1.0,
		MaxClientDeviation:     5.0,
		MaxHeatChangePerSecond: 10.0,
	}, rpc, mission, tracker, nil)
}

func TestSyncSnapsDeviatedPlayer(t *testing.T) {
	mission := director.NewMissionState("m-1")
	tracker := newFakeTracker(map[string]Vec3{"p1": {X: 0, Y: 0, Z: 0}})

	serverPos := Vec3{X: 10, Y: 0, Z: 0} // 10m away, bound is 5m
	srv, _ := authorityStub(t, func(snap SyncSnapshot) SyncResponse {
		return SyncResponse{
			ServerState: SyncSnapshot{
				MissionID:    snap.MissionID,
				Heat:         snap.Heat,
				PlayerStates: []PlayerState{{PlayerID: "p1", Position: serverPos}},
			},
		}
	})
	defer srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)
	c.Sync(context.Background())

	assert.Equal(t, serverPos, tracker.position("p1"), "local position must snap to server value")
	assert.Equal(t, StateSynced, c.State())
}

func TestSyncLeavesSmallDeviationAlone(t *testing.T) {
	mission := director.NewMissionState("m-1")
	local := Vec3{X: 1, Y: 1, Z: 0}
	tracker := newFakeTracker(map[string]Vec3{"p1": local})

	srv, _ := authorityStub(t, func(snap SyncSnapshot) SyncResponse {
		return SyncResponse{
			ServerState: SyncSnapshot{
				MissionID:    snap.MissionID,
				Heat:         snap.Heat,
				PlayerStates: []PlayerState{{PlayerID: "p1", Position: Vec3{X: 2, Y: 1, Z: 0}}},
			},
		}
	})
	defer srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)
	c.Sync(context.Background())

	assert.Equal(t, local, tracker.position("p1"), "1m deviation is within the 5m bound")
}

func TestSyncOfflineLeavesStateUntouched(t *testing.T) {
	mission := director.NewMissionState("m-1")
	mission.AddHeat(42)
	mission.AdvanceTime(30)
	tracker := newFakeTracker(map[string]Vec3{"p1": {X: 3}})

	// Server is immediately closed: every push fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)
	for i := 0; i < 5; i++ {
		c.Sync(context.Background())
	}

	assert.Equal(t, 42.0, mission.Heat, "offline cycles must not mutate heat")
	assert.Equal(t, 30.0, mission.Elapsed)
	assert.Equal(t, director.PhaseStaging, mission.Phase)
	assert.Equal(t, Vec3{X: 3}, tracker.position("p1"))
	assert.Equal(t, StateConnecting, c.State(), "coordinator stays eligible to retry")
}

func TestSyncHeatDeviationFallback(t *testing.T) {
	mission := director.NewMissionState("m-1")
	mission.AddHeat(10)
	tracker := newFakeTracker(map[string]Vec3{})

	// Bound is 10 heat/s * 1s interval = 10; server reports 80.
	srv, _ := authorityStub(t, func(snap SyncSnapshot) SyncResponse {
		return SyncResponse{ServerState: SyncSnapshot{MissionID: snap.MissionID, Heat: 80}}
	})
	defer srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)
	c.Sync(context.Background())

	assert.Equal(t, 80.0, mission.Heat, "implausible server heat must be adopted")
}

func TestSyncHeatWithinBoundKept(t *testing.T) {
	mission := director.NewMissionState("m-1")
	mission.AddHeat(10)
	tracker := newFakeTracker(map[string]Vec3{})

	srv, _ := authorityStub(t, func(snap SyncSnapshot) SyncResponse {
		return SyncResponse{ServerState: SyncSnapshot{MissionID: snap.MissionID, Heat: 15}}
	})
	defer srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)
	c.Sync(context.Background())

	assert.Equal(t, 10.0, mission.Heat, "plausible drift is left to the optimistic simulation")
}

func TestSyncExplicitHeatCorrectionWins(t *testing.T) {
	mission := director.NewMissionState("m-1")
	mission.AddHeat(10)
	tracker := newFakeTracker(map[string]Vec3{})

	// Server heat (90) is far outside the bound, but the batch carries an
	// explicit heat correction (55). The explicit value must win and the
	// fallback must not fire.
	srv, _ := authorityStub(t, func(snap SyncSnapshot) SyncResponse {
		return SyncResponse{
			ServerState: SyncSnapshot{MissionID: snap.MissionID, Heat: 90},
			Corrections: []ServerCorrection{
				{Type: CorrectionHeat, Value: json.RawMessage("55"), Reason: "server recount"},
			},
		}
	})
	defer srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)
	c.Sync(context.Background())

	assert.Equal(t, 55.0, mission.Heat)
}

func TestSyncForcedTermination(t *testing.T) {
	mission := director.NewMissionState("m-1")
	mission.SetPhase(director.PhaseActive)
	tracker := newFakeTracker(map[string]Vec3{})

	srv, _ := authorityStub(t, func(snap SyncSnapshot) SyncResponse {
		return SyncResponse{
			ServerState: SyncSnapshot{MissionID: snap.MissionID, Heat: snap.Heat},
			Corrections: []ServerCorrection{
				{Type: CorrectionMissionState, Value: json.RawMessage(`"terminated"`), Reason: "speed hack detected"},
			},
		}
	})
	defer srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)
	var gotReason atomic.Value
	c.OnTerminated = func(reason string) { gotReason.Store(reason) }

	c.Sync(context.Background())

	assert.Equal(t, director.PhaseTerminated, mission.Phase)
	assert.Equal(t, "speed hack detected", gotReason.Load())
	assert.False(t, mission.SetPhase(director.PhaseActive), "termination is irreversible")
}

func TestSyncExplicitPositionCorrection(t *testing.T) {
	mission := director.NewMissionState("m-1")
	tracker := newFakeTracker(map[string]Vec3{"p1": {X: 1}})

	target := Vec3{X: 250, Y: 40, Z: 0}
	srv, _ := authorityStub(t, func(snap SyncSnapshot) SyncResponse {
		return SyncResponse{
			ServerState: SyncSnapshot{MissionID: snap.MissionID, Heat: snap.Heat},
			Corrections: []ServerCorrection{
				{Type: CorrectionPosition, PlayerID: "p1", Position: &target, Reason: "teleport rollback"},
			},
		}
	})
	defer srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)
	c.Sync(context.Background())

	assert.Equal(t, target, tracker.position("p1"))
}

func TestSyncRequiresAuthToken(t *testing.T) {
	mission := director.NewMissionState("m-1")
	tracker := newFakeTracker(map[string]Vec3{})

	srv, requests := authorityStub(t, func(snap SyncSnapshot) SyncResponse {
		return SyncResponse{ServerState: snap}
	})
	defer srv.Close()

	rpc := newTestClient(srv.URL, 1) // no token installed
	c := NewCoordinator(CoordinatorConfig{SyncInterval: 1}, rpc, mission, tracker, nil)
	c.Sync(context.Background())

	assert.Equal(t, int32(0), requests.Load(), "no push before an auth token exists")
	assert.Equal(t, StateDisconnected, c.State())
}

func TestSyncSkipsWhilePushInFlight(t *testing.T) {
	mission := director.NewMissionState("m-1")
	tracker := newFakeTracker(map[string]Vec3{})

	release := make(chan struct{})
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(SyncResponse{})
	}))
	defer srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Sync(context.Background())
	}()

	// Wait for the first push to reach the server, then tick again.
	require.Eventually(t, func() bool { return requests.Load() == 1 }, time.Second, 5*time.Millisecond)
	c.Sync(context.Background())
	assert.Equal(t, int32(1), requests.Load(), "overlapping push must be skipped, not queued")

	close(release)
	wg.Wait()
}

func TestSyncCloseStopsCorrections(t *testing.T) {
	mission := director.NewMissionState("m-1")
	tracker := newFakeTracker(map[string]Vec3{})

	srv, requests := authorityStub(t, func(snap SyncSnapshot) SyncResponse {
		return SyncResponse{
			ServerState: SyncSnapshot{MissionID: snap.MissionID, Heat: 99},
		}
	})
	defer srv.Close()

	c := testCoordinator(srv.URL, mission, tracker)
	c.Close()
	c.Sync(context.Background())

	assert.Equal(t, int32(0), requests.Load())
	assert.Equal(t, 0.0, mission.Heat, "no correction after teardown")
}
