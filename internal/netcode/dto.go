package netcode

import (
	"encoding/json"
	"math"
	"strconv"
)

// Authority endpoints, relative to the client's base URL.
const (
	EndpointSync          = "/mission/sync"
	EndpointValidateEvent = "/mission/validate-event"
)

// Correction kinds issued by the authority.
const (
	CorrectionHeat         = "heat"
	CorrectionPosition     = "position"
	CorrectionMissionState = "mission_state"
)

// Vec3 is a world-space vector on the wire.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns a - b.
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

// Len returns the Euclidean length.
func (a Vec3) Len() float64 { return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z) }

// PlayerState is one crew member's kinematic state in a snapshot.
type PlayerState struct {
	PlayerID string `json:"playerId"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	Velocity Vec3   `json:"velocity"`
}

// SyncSnapshot is the client's optimistic view pushed to the authority every
// sync interval.
type SyncSnapshot struct {
	MissionID    string        `json:"missionId"`
	Elapsed      float64       `json:"elapsed"`
	Heat         float64       `json:"heat"`
	MissionState string        `json:"missionState"`
	PlayerStates []PlayerState `json:"playerStates"`
}

// ServerCorrection is one authority-issued override of local state. Value is
// kind-dependent: a number for heat, a phase name for mission_state.
type ServerCorrection struct {
	Type     string          `json:"type"`
	PlayerID string          `json:"playerId,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Position *Vec3           `json:"position,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// FloatValue decodes Value as a number.
func (c *ServerCorrection) FloatValue() (float64, bool) {
	if len(c.Value) == 0 {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(c.Value, &v); err == nil {
		return v, true
	}
	// Some authority builds quote numeric values.
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// StringValue decodes Value as a string.
func (c *ServerCorrection) StringValue() (string, bool) {
	if len(c.Value) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(c.Value, &s); err != nil {
		return "", false
	}
	return s, true
}

// SyncResponse is the authority's reply to a snapshot push.
type SyncResponse struct {
	ServerState SyncSnapshot       `json:"serverState"`
	Corrections []ServerCorrection `json:"corrections"`
}

// ValidateEventRequest gates a critical action behind the authority.
type ValidateEventRequest struct {
	MissionID string         `json:"missionId"`
	EventType string         `json:"eventType"`
	EventData map[string]any `json:"eventData,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// ValidateEventResponse is the authority's verdict on a critical action.
type ValidateEventResponse struct {
	IsValid bool   `json:"isValid"`
	Reason  string `json:"reason,omitempty"`
}
