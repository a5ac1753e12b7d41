package matter

import "fmt"

// TopologyError reports a malformed structural edit, or any structural edit
// attempted after the topology has been finalized.
type TopologyError struct {
	Op     string
	Detail string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("matter: %s: %s", e.Op, e.Detail)
}

// ConfigurationError reports a requested pose outside a mobilizer's
// representable set, e.g. fitting a pin joint to an off-axis rotation.
type ConfigurationError struct {
	Body   BodyIndex
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("matter: body %d: %s", e.Body, e.Detail)
}
