package driver

import "github.com/linkage-sim/linkage/internal/state"

// Observer sees the state after every accepted step, realized through
// Velocity. Observers must not mutate the state.
type Observer interface {
	OnStep(t float64, st *state.State)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(t float64, st *state.State)

func (f ObserverFunc) OnStep(t float64, st *state.State) { f(t, st) }
