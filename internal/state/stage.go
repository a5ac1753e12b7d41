package state

import "fmt"

// Stage is a rung on the realization ladder. Cached values belonging to a
// stage are valid only while the state is realized at that stage or higher.
type Stage int

const (
	StageEmpty Stage = iota
	StageTopology
	StageModel
	StageInstance
	StageTime
	StagePosition
	StageVelocity
	StageDynamics
	StageAcceleration
	StageReport
)

var stageNames = map[Stage]string{
	StageEmpty:        "empty",
	StageTopology:     "topology",
	StageModel:        "model",
	StageInstance:     "instance",
	StageTime:         "time",
	StagePosition:     "position",
	StageVelocity:     "velocity",
	StageDynamics:     "dynamics",
	StageAcceleration: "acceleration",
	StageReport:       "report",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError reports an access to a cached quantity whose stage has not been
// realized, or a cache write attempted out of ladder order.
type StageError struct {
	Op   string
	Need Stage
	Have Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("state: %s requires stage %s, state is at %s", e.Op, e.Need, e.Have)
}
