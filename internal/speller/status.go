package speller

// Status is the protocol phase.
type Status int

const (
	// StatusReady is the initial phase, before any training.
	StatusReady Status = iota
	// StatusCalibrating is the training phase.
	StatusCalibrating
	// StatusIdle follows training and testing segments.
	StatusIdle
	// StatusTesting is the free-spelling phase.
	StatusTesting
)

var statusNames = [...]string{"ready", "calibrating", "idle", "testing"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// legalTransitions lists every allowed move. Calibrating may fall back to
// ready when training is cancelled.
var legalTransitions = map[Status][]Status{
	StatusReady:       {StatusCalibrating},
	StatusCalibrating: {StatusIdle, StatusReady},
	StatusIdle:        {StatusTesting},
	StatusTesting:     {StatusIdle},
}

// canTransition reports whether from -> to is a legal move.
func canTransition(from, to Status) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transitionLocked moves the engine to the given status if the move is legal.
// Illegal moves leave the status untouched and return false. e.mu must be held.
func (e *Engine) transitionLocked(to Status) bool {
	if !canTransition(e.status, to) {
		e.logger.Debug("ignored status transition", "from", e.status, "to", to)
		return false
	}
	e.logger.Info("status changed", "from", e.status, "to", to)
	e.status = to
	return true
}
