package director

import "math"

// Curve maps tension in [0,1] to a scale factor. Curves are expected to be
// monotonic; the throttle clamps its input but not the curve's output shape.
type Curve func(tension float64) float64

// LinearRateCurve returns the default spawn-interval curve: 1.0 at zero
// tension falling linearly to minScale at full tension.
func LinearRateCurve(minScale float64) Curve {
	if !(minScale > 0) || minScale > 1 {
		minScale = SpawnMinRateScale
	}
	return func(tension float64) float64 {
		return 1.0 - Clamp01(tension)*(1.0-minScale)
	}
}

// LinearAggressionCurve returns the default aggression curve: 1.0 at zero
// tension rising linearly to maxAggression at full tension.
func LinearAggressionCurve(maxAggression float64) Curve {
	if !(maxAggression >= 1) {
		maxAggression = SpawnMaxAggression
	}
	return func(tension float64) float64 {
		return 1.0 + Clamp01(tension)*(maxAggression-1.0)
	}
}

// SpawnParams defines the tuning for the pursuer spawn throttle.
type SpawnParams struct {
	BaseInterval    float64 // Seconds between waves at zero tension
	BaseCount       int     // Wave size at zero tension
	CountMultiplier float64 // Wave size growth factor at full tension
	MaxPerWave      int     // Hard cap on a single wave
	MaxActive       int     // Cap on concurrently alive spawned actors
	RateCurve       Curve   // Interval scale by tension
	AggressionCurve Curve   // Aggression multiplier by tension
}

// SpawnRequest is one throttled wave, consumed immediately by the spawn
// executor and then discarded.
type SpawnRequest struct {
	Count      int
	Aggression float64
	IssuedAt   float64 // Throttle-local time in seconds
}

// ActiveCounter reports the number of concurrently alive spawned actors.
type ActiveCounter func() int

// Throttle converts the tension scalar into a bounded spawn schedule.
// Not safe for concurrent use; the session tick loop is its only caller.
type Throttle struct {
	P         SpawnParams
	now       float64
	sinceLast float64
	active    ActiveCounter
}

// NewThrottle builds a throttle with sanitized params. The counter may be nil
// when no capacity tracking exists (solo prototypes), disabling the cap.
func NewThrottle(p SpawnParams, active ActiveCounter) *Throttle {
	return &Throttle{P: SanitizeSpawnParams(p), active: active}
}

// Tick advances the throttle by dt and returns a wave to dispatch, or nil.
//
// Firing resets the wave timer whether or not the capacity check allows a
// request to propagate, so a burst cannot form the instant capacity frees up.
// The returned request never pushes the active count beyond MaxActive.
func (t *Throttle) Tick(dt, tension float64) *SpawnRequest {
	t.now += dt
	t.sinceLast += dt
	tension = Clamp01(tension)

	interval := t.P.BaseInterval * t.P.RateCurve(tension)
	if interval < SpawnMinInterval {
		interval = SpawnMinInterval
	}
	if t.sinceLast < interval {
		return nil
	}
	t.sinceLast = 0

	headroom := t.P.MaxActive
	if t.active != nil {
		headroom = t.P.MaxActive - t.active()
	}
	if headroom <= 0 {
		return nil
	}

	count := int(math.Round(float64(t.P.BaseCount) * (1 + tension*t.P.CountMultiplier)))
	if count < 1 {
		count = 1
	}
	if count > t.P.MaxPerWave {
		count = t.P.MaxPerWave
	}
	if count > headroom {
		count = headroom
	}

	return &SpawnRequest{
		Count:      count,
		Aggression: t.P.AggressionCurve(tension),
		IssuedAt:   t.now,
	}
}

// SanitizeSpawnParams clamps and normalizes spawn parameters to safe defaults.
func SanitizeSpawnParams(p SpawnParams) SpawnParams {
	if !(p.BaseInterval > 0) {
		p.BaseInterval = SpawnBaseInterval
	}
	if p.BaseCount < 1 {
		p.BaseCount = SpawnBaseCount
	}
	if !(p.CountMultiplier >= 0) {
		p.CountMultiplier = SpawnCountMultiplier
	}
	if p.MaxPerWave < 1 {
		p.MaxPerWave = SpawnMaxPerWave
	}
	if p.MaxActive < 1 {
		p.MaxActive = SpawnMaxActive
	}
	if p.RateCurve == nil {
		p.RateCurve = LinearRateCurve(SpawnMinRateScale)
	}
	if p.AggressionCurve == nil {
		p.AggressionCurve = LinearAggressionCurve(SpawnMaxAggression)
	}
	return p
}

// DefaultSpawnParams returns the standard pursuer spawn tuning.
func DefaultSpawnParams() SpawnParams {
	return SanitizeSpawnParams(SpawnParams{
		BaseInterval:    SpawnBaseInterval,
		BaseCount:       SpawnBaseCount,
		CountMultiplier: SpawnCountMultiplier,
		MaxPerWave:      SpawnMaxPerWave,
		MaxActive:       SpawnMaxActive,
	})
}
