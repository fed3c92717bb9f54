package director

// TensionParams defines the parameters for the mission tension model.
// Tension blends normalized heat, elapsed mission time, and the scripted
// alert signal into a single bounded scalar driving spawn pacing.
type TensionParams struct {
	MaxHeat     float64 // Heat value that maps to a fully saturated heat signal
	MaxTime     float64 // Elapsed seconds that map to a fully saturated time signal
	WeightHeat  float64 // Contribution weight of the heat signal
	WeightTime  float64 // Contribution weight of the time signal
	WeightAlert float64 // Contribution weight of the alert signal
}

// TensionSample captures one tick's tension computation, including the
// intermediate factors so tuning tools can inspect where pressure comes from.
// Samples are recomputed every tick and never persisted.
type TensionSample struct {
	HeatNorm    float64
	TimeFactor  float64
	AlertFactor float64
	Params      TensionParams
	Tension     float64 // Always in [0,1]
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to the unit interval.
func Clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// ComputeTension evaluates the tension model for the given signals.
//
// Formula:
//
//	heatNorm    = clamp01(heat / MaxHeat)
//	timeFactor  = clamp01(elapsed / MaxTime)
//	alertFactor = clamp01(alertScale)
//	tension     = clamp01(heatNorm*wHeat + timeFactor*wTime + alertFactor*wAlert)
//
// A zero MaxHeat or MaxTime makes the ratio unbounded, so it saturates to 1.
// Weights need not sum to 1; the final clamp bounds the result regardless.
func ComputeTension(heat, elapsed, alertScale float64, p TensionParams) TensionSample {
	heatNorm := 1.0
	if p.MaxHeat > 0 {
		heatNorm = Clamp01(heat / p.MaxHeat)
	}
	timeFactor := 1.0
	if p.MaxTime > 0 {
		timeFactor = Clamp01(elapsed / p.MaxTime)
	}
	alertFactor := Clamp01(alertScale)

	tension := Clamp01(heatNorm*p.WeightHeat + timeFactor*p.WeightTime + alertFactor*p.WeightAlert)
	return TensionSample{
		HeatNorm:    heatNorm,
		TimeFactor:  timeFactor,
		AlertFactor: alertFactor,
		Params:      p,
		Tension:     tension,
	}
}

// SanitizeTensionParams clamps and normalizes tension parameters to safe defaults.
func SanitizeTensionParams(p TensionParams) TensionParams {
	if !(p.MaxHeat > 0) {
		p.MaxHeat = TensionMaxHeat
	}
	if !(p.MaxTime > 0) {
		p.MaxTime = TensionMaxTime
	}
	if !(p.WeightHeat >= 0) {
		p.WeightHeat = TensionWeightHeat
	}
	if !(p.WeightTime >= 0) {
		p.WeightTime = TensionWeightTime
	}
	if !(p.WeightAlert >= 0) {
		p.WeightAlert = TensionWeightAlert
	}
	return p
}

// DefaultTensionParams returns the standard mission tuning.
func DefaultTensionParams() TensionParams {
	return SanitizeTensionParams(TensionParams{
		MaxHeat:     TensionMaxHeat,
		MaxTime:     TensionMaxTime,
		WeightHeat:  TensionWeightHeat,
		WeightTime:  TensionWeightTime,
		WeightAlert: TensionWeightAlert,
	})
}
