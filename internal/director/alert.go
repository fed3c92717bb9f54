package director

// AlertState holds the scripted alert signal feeding the tension model.
// The value stays in [0,1] and has exactly two writers: AddImmediateAlert
// for event spikes and Decay for the per-tick falloff. Keeping the field
// unexported preserves that single-writer contract statically.
type AlertState struct {
	scale float64
}

// Scale returns the current alert level in [0,1].
func (a *AlertState) Scale() float64 { return a.scale }

// AddImmediateAlert raises the alert level for a scripted event
// (witness call, silent alarm, convoy ambush). Clamped to [0,1].
func (a *AlertState) AddImmediateAlert(amount float64) {
	a.scale = Clamp01(a.scale + amount)
}

// Decay lowers the alert level by rate*dt, flooring at zero.
func (a *AlertState) Decay(rate, dt float64) {
	a.scale -= rate * dt
	if a.scale < 0 {
		a.scale = 0
	}
}

// ApplyAlertSpike adds a stochastic alert spike, e.g. when a pursuer gets a
// clear visual on the crew. Returns true if a spike was applied.
func ApplyAlertSpike(a *AlertState, chance, min, max float64, rng func() float64) bool {
	if a == nil || rng == nil {
		return false
	}
	if chance <= 0 || max <= 0 {
		return false
	}
	if rng() >= chance {
		return false
	}
	span := max - min
	if span < 0 {
		span = 0
	}
	spike := min
	if span > 0 {
		spike += rng() * span
	}
	a.AddImmediateAlert(spike)
	return true
}
