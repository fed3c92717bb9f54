package netcode

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"NightRunners/internal/logging"
)

// Verdict is the outcome of validating a critical action.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Validator gates critical actions (loot pickup, escape, extraction) behind
// an authority round-trip. Fail-closed: an unconfirmed action is rejected.
type Validator struct {
	rpc       *Client
	missionID string
	enabled   atomic.Bool
	now       func() time.Time
	log       zerolog.Logger
}

// NewValidator builds a validator for one mission. When disabled (offline or
// solo play) every event is allowed without a network call.
func NewValidator(rpc *Client, missionID string, enabled bool) *Validator {
	v := &Validator{
		rpc:       rpc,
		missionID: missionID,
		now:       time.Now,
		log:       logging.WithComponent("validate").With().Str("mission_id", missionID).Logger(),
	}
	v.enabled.Store(enabled)
	return v
}

// SetEnabled toggles server validation.
func (v *Validator) SetEnabled(on bool) { v.enabled.Store(on) }

// Enabled reports whether server validation is active.
func (v *Validator) Enabled() bool { return v.enabled.Load() }

// Validate asks the authority to confirm a critical action.
//
// With validation disabled it allows immediately, issuing zero network calls.
// Any transport failure, including a permanent 4xx, rejects the action.
func (v *Validator) Validate(ctx context.Context, eventType string, data map[string]any) Verdict {
	if !v.enabled.Load() {
		return Verdict{Allowed: true}
	}

	req := ValidateEventRequest{
		MissionID: v.missionID,
		EventType: eventType,
		EventData: data,
		Timestamp: v.now().UnixMilli(),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		v.log.Error().Err(err).Str("event", eventType).Msg("validation request encode failed")
		eventsRejected.Inc()
		return Verdict{Reason: "local encode failure"}
	}

	ok, body := v.rpc.Execute(ctx, EndpointValidateEvent, string(payload))
	if !ok {
		eventsRejected.Inc()
		v.log.Warn().Str("event", eventType).Msg("validation transport failed; rejecting")
		return Verdict{Reason: "validation request failed"}
	}

	var resp ValidateEventResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		eventsRejected.Inc()
		v.log.Warn().Err(err).Str("event", eventType).Msg("validation response parse failed; rejecting")
		return Verdict{Reason: "malformed validation response"}
	}

	if !resp.IsValid {
		eventsRejected.Inc()
		v.log.Info().Str("event", eventType).Str("reason", resp.Reason).Msg("action rejected by authority")
	}
	return Verdict{Allowed: resp.IsValid, Reason: resp.Reason}
}
