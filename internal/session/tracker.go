package session

import (
	"sync"

	"NightRunners/internal/netcode"
)

// PlayerRegistry tracks last-known crew kinematics for snapshot pushes and
// accepts position snaps from server corrections. Game glue updates it from
// the simulation; the sync coordinator reads and corrects it.
type PlayerRegistry struct {
	mu      sync.RWMutex
	players map[string]netcode.PlayerState
}

// NewPlayerRegistry creates an empty registry.
func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{players: map[string]netcode.PlayerState{}}
}

// Update records a crew member's latest kinematic state.
func (r *PlayerRegistry) Update(state netcode.PlayerState) {
	if state.PlayerID == "" {
		return
	}
	r.mu.Lock()
	r.players[state.PlayerID] = state
	r.mu.Unlock()
}

// Remove drops a crew member (disconnect, death).
func (r *PlayerRegistry) Remove(playerID string) {
	r.mu.Lock()
	delete(r.players, playerID)
	r.mu.Unlock()
}

// Players returns the last-known state of every tracked crew member.
func (r *PlayerRegistry) Players() []netcode.PlayerState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]netcode.PlayerState, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// SnapPosition overwrites a tracked position with the server's value.
// Unknown players are ignored.
func (r *PlayerRegistry) SnapPosition(playerID string, pos netcode.Vec3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return
	}
	p.Position = pos
	r.players[playerID] = p
}

// Position returns a tracked position, for HUD glue and tests.
func (r *PlayerRegistry) Position(playerID string) (netcode.Vec3, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[playerID]
	return p.Position, ok
}
