package engine

import "errors"

var (
	// ErrAlreadyStarted is returned by Start if the engine instance has
	// already been started once, mirroring the teacher's
	// atomic.CompareAndSwapUint32(&s.started, ...) guard.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrAlreadyCompleted is returned by WaitForCompletion for a
	// submarine swap that has already reached its success terminal
	// status, per spec §4.4's wait_for_completion rule (b).
	ErrAlreadyCompleted = errors.New("engine: swap already completed")

	// ErrNotMonitored is returned when an operation references a swap id
	// the engine is not currently tracking.
	ErrNotMonitored = errors.New("engine: swap not monitored")
)
