package retry

// State is the caller-declared correlation descriptor for stateful retries:
// episodes persisted across separate external deliveries of the same item.
// The rollback classifier decides whether a failure propagates immediately
// (so the caller can re-deliver) instead of looping in-process; by default
// every failure does.
type State struct {
	key          interface{}
	forceRefresh bool
	rollback     func(error) bool
}

// StateOption configures a retry state
type StateOption func(*State)

// WithForceRefresh discards any cached episode for the key and starts fresh
func WithForceRefresh() StateOption {
	return func(s *State) {
		s.forceRefresh = true
	}
}

// WithRollbackClassifier decides per failure whether to propagate
// immediately. Returning false keeps the executor looping in-process for
// that failure.
func WithRollbackClassifier(classify func(error) bool) StateOption {
	return func(s *State) {
		s.rollback = classify
	}
}

// WithNoRollback keeps every failure looping in-process, making the episode
// stateful only for bookkeeping
func WithNoRollback() StateOption {
	return WithRollbackClassifier(func(error) bool { return false })
}

// NewState creates a correlation descriptor for the given key
func NewState(key interface{}, opts ...StateOption) *State {
	s := &State{
		key:      key,
		rollback: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the correlation key
func (s *State) Key() interface{} {
	return s.key
}

// ForceRefresh reports whether cached episode state should be discarded
func (s *State) ForceRefresh() bool {
	return s.forceRefresh
}

// RollbackFor reports whether err should propagate immediately
func (s *State) RollbackFor(err error) bool {
	if s.rollback == nil {
		return true
	}
	return s.rollback(err)
}
