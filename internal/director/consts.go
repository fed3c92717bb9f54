package director

// Tension defaults. Tuned for a 10 minute mission with heat capped at 100.
const (
	TensionMaxHeat     = 100.0
	TensionMaxTime     = 600.0
	TensionWeightHeat  = 0.6
	TensionWeightTime  = 0.2
	TensionWeightAlert = 0.2

	AlertDecayRate = 0.05 // alert scale lost per second with no new alerts
)

// Spawn throttle defaults.
const (
	SpawnBaseInterval    = 5.0 // seconds between waves at zero tension
	SpawnBaseCount       = 2
	SpawnCountMultiplier = 1.5
	SpawnMaxPerWave      = 6
	SpawnMaxActive       = 24
	SpawnMinRateScale    = 0.2 // interval scale at full tension
	SpawnMaxAggression   = 3.0
	SpawnMinInterval     = 0.25 // hard floor so a broken curve cannot spam
)
