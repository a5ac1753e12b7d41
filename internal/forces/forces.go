// Package forces defines pluggable force elements that contribute applied
// loads to the dynamics right hand side given a realized state.
package forces

import (
	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// Element contributes loads for one realized state. Elements read the state
// and write only into the accumulators they are handed; they hold no
// per-step mutable state of their own.
type Element interface {
	// Contribute adds this element's spatial force per body (ground
	// Plucker coordinates about the origin) and generalized force per
	// mobility.
	Contribute(t *matter.Tree, st *state.State, bodyForces []spatial.Vec, mobilityForces []float64) error
}

// PotentialEnergy is implemented by conservative elements that can report
// their potential, used by energy accounting.
type PotentialEnergy interface {
	PotentialEnergy(t *matter.Tree, st *state.State) (float64, error)
}

// Set is the registered force elements of one system.
type Set struct {
	elems []Element
}

// NewSet returns an empty force set.
func NewSet() *Set {
	return &Set{}
}

// Add registers a force element.
func (s *Set) Add(e Element) {
	s.elems = append(s.elems, e)
}

// Len counts registered elements.
func (s *Set) Len() int { return len(s.elems) }

// Accumulate invokes every element's contribution once, summing into the
// given accumulators.
func (s *Set) Accumulate(t *matter.Tree, st *state.State, bodyForces []spatial.Vec, mobilityForces []float64) error {
	for _, e := range s.elems {
		if err := e.Contribute(t, st, bodyForces, mobilityForces); err != nil {
			return err
		}
	}
	return nil
}

// TotalPotentialEnergy sums the potential of every conservative element.
func (s *Set) TotalPotentialEnergy(t *matter.Tree, st *state.State) (float64, error) {
	total := 0.0
	for _, e := range s.elems {
		pe, ok := e.(PotentialEnergy)
		if !ok {
			continue
		}
		v, err := pe.PotentialEnergy(t, st)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}
