package director

// MissionPhase enumerates the mission lifecycle.
type MissionPhase int

const (
	PhaseStaging MissionPhase = iota // Crew assembling, director idle
	PhaseActive                      // Objective play, tension rising
	PhaseEscape                      // Loot secured, pursuit climax
	PhaseCompleted
	PhaseFailed
	PhaseTerminated // Server-forced shutdown (cheat detection etc.)
)

var phaseNames = map[MissionPhase]string{
	PhaseStaging:    "staging",
	PhaseActive:     "active",
	PhaseEscape:     "escape",
	PhaseCompleted:  "completed",
	PhaseFailed:     "failed",
	PhaseTerminated: "terminated",
}

// String returns the wire name of the phase.
func (p MissionPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the phase ends the session. Terminal phases are
// irreversible for the life of the session.
func (p MissionPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseTerminated
}

// PhaseFromString parses a wire phase name.
func PhaseFromString(s string) (MissionPhase, bool) {
	for phase, name := range phaseNames {
		if name == s {
			return phase, true
		}
	}
	return PhaseStaging, false
}

// MissionState is the per-session mission record. It is owned by the session:
// the director tick and the sync coordinator are its only writers, and the
// session serializes them behind one lock, so the struct itself carries none.
type MissionState struct {
	MissionID string
	Elapsed   float64
	Heat      float64
	Phase     MissionPhase
	Meta      map[string]float64

	alert AlertState
}

// NewMissionState creates a mission record in the staging phase.
func NewMissionState(missionID string) *MissionState {
	return &MissionState{
		MissionID: missionID,
		Phase:     PhaseStaging,
		Meta:      map[string]float64{},
	}
}

// Alert exposes the alert signal. Only the director tick may mutate it.
func (m *MissionState) Alert() *AlertState { return &m.alert }

// AdvanceTime moves the mission clock forward. Negative deltas are ignored
// so elapsed stays monotonic.
func (m *MissionState) AdvanceTime(dt float64) {
	if dt > 0 {
		m.Elapsed += dt
	}
}

// AddHeat raises heat by amount. Negative amounts are ignored: outside a
// server correction, heat only ever climbs.
func (m *MissionState) AddHeat(amount float64) {
	if amount > 0 {
		m.Heat += amount
	}
}

// ApplyHeatCorrection overwrites heat with the server's value. This is the
// one sanctioned non-monotonic heat write and belongs to the sync coordinator.
func (m *MissionState) ApplyHeatCorrection(value float64) {
	if value < 0 {
		value = 0
	}
	m.Heat = value
}

// SetPhase transitions the mission phase. Returns false without mutating when
// the current phase is terminal, which makes terminal states irreversible.
func (m *MissionState) SetPhase(p MissionPhase) bool {
	if m.Phase.Terminal() {
		return false
	}
	m.Phase = p
	return true
}

// StateView is a read-only snapshot handed to collaborators (HUD, FX, wallet
// glue). Meta is copied so holders cannot reach back into the live state.
type StateView struct {
	MissionID string
	Elapsed   float64
	Heat      float64
	Phase     MissionPhase
	Meta      map[string]float64
}

// View snapshots the mission state.
func (m *MissionState) View() StateView {
	meta := make(map[string]float64, len(m.Meta))
	for k, v := range m.Meta {
		meta[k] = v
	}
	return StateView{
		MissionID: m.MissionID,
		Elapsed:   m.Elapsed,
		Heat:      m.Heat,
		Phase:     m.Phase,
		Meta:      meta,
	}
}
