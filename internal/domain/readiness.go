package domain

import (
	"sync/atomic"
)

// ReadinessState is the lifecycle state of the process-wide encoder.
type ReadinessState int32

const (
	StateLoading ReadinessState = iota
	StateReady
	StateFailed
)

func (s ReadinessState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ModelInfo is read-only descriptive metadata fixed for the process lifetime.
type ModelInfo struct {
	Name      string
	Dimension int
}

// Readiness tracks whether the encoder has finished loading. It starts in
// StateLoading and advances exactly once, to StateReady or StateFailed.
// Reads never block.
type Readiness struct {
	state  atomic.Int32
	reason atomic.Pointer[string]
	info   ModelInfo
}

func NewReadiness(info ModelInfo) *Readiness {
	return &Readiness{info: info}
}

func (r *Readiness) State() ReadinessState {
	return ReadinessState(r.state.Load())
}

func (r *Readiness) IsReady() bool {
	return r.State() == StateReady
}

func (r *Readiness) Model() ModelInfo {
	return r.info
}

// MarkReady moves loading → ready. It returns false if the state already advanced.
func (r *Readiness) MarkReady() bool {
	return r.state.CompareAndSwap(int32(StateLoading), int32(StateReady))
}

// MarkFailed moves loading → failed and records the reason for operators.
// It returns false if the state already advanced.
func (r *Readiness) MarkFailed(reason error) bool {
	if !r.state.CompareAndSwap(int32(StateLoading), int32(StateFailed)) {
		return false
	}
	if reason != nil {
		msg := reason.Error()
		r.reason.Store(&msg)
	}
	return true
}

// FailureReason returns the load error message, or "" when the load did not fail.
func (r *Readiness) FailureReason() string {
	if p := r.reason.Load(); p != nil {
		return *p
	}
	return ""
}

// Err maps the current state to the error a request should fail with, or nil when ready.
func (r *Readiness) Err() error {
	switch r.State() {
	case StateReady:
		return nil
	case StateFailed:
		return ErrLoadFailed
	default:
		return ErrNotReady
	}
}
