package eskf

// Eskf owns the filter state, its covariance, the process-noise
// configuration, and the two clocks that drive the predict step: the
// nonlinear state integration and the covariance's linearized propagation
// are allowed to run on slightly different elapsed intervals, so each gets
// its own "last time" bookkeeping.
type Eskf struct {
	state        State
	cov          *Covariance
	processNoise ProcessNoiseConfig

	lastPredictTime float64
	lastObserveTime float64
	initialized     bool
}

// New returns a filter seeded with the given initial state, the default
// initial covariance (identity * 1e-6), and the given process-noise
// configuration.
func New(initial State, processNoise ProcessNoiseConfig) *Eskf {
	return &Eskf{
		state:        initial,
		cov:          NewCovariance(),
		processNoise: processNoise,
	}
}

// State returns a copy of the current nominal state.
func (e *Eskf) State() State {
	return e.state
}

// Covariance returns the live covariance. Callers that need a stable
// snapshot should copy it before further filter operations mutate it.
func (e *Eskf) Covariance() *Covariance {
	return e.cov
}

// Predict exposes the two-step predict operation directly, for callers (and
// tests) that want to drive the filter without going through Update's
// single-clock bookkeeping.
func (e *Eskf) Predict(dtPredict, dtObserve float64) {
	e.predict(dtPredict, dtObserve)
}

// Observe applies a single generic Kalman update.
func (e *Eskf) Observe(obs Observation) {
	e.observe(obs)
}

// BuildObservation constructs at most one observation against the current
// (post-predict) state. Returning ok=false means no observation is applied
// this step — the predict still took effect.
type BuildObservation func(e *Eskf) (Observation, bool)

// Update is the orchestrator-facing entry point: predict to t, then apply
// an observation if the builder produces one. It returns whether an
// observation was applied.
//
// The first call after construction predicts with dt=0 for both clocks, per
// the "first predict after initialization" tie-break: there is no prior
// timestamp to measure an interval against.
func (e *Eskf) Update(t float64, build BuildObservation) bool {
	var dtPredict, dtObserve float64
	if e.initialized {
		dtPredict = t - e.lastPredictTime
		dtObserve = t - e.lastObserveTime
	}
	e.predict(dtPredict, dtObserve)
	e.lastPredictTime = t
	e.lastObserveTime = t
	e.initialized = true

	if build == nil {
		return false
	}
	obs, ok := build(e)
	if !ok {
		return false
	}
	e.observe(obs)
	return true
}
