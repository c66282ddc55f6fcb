package graph

import (
	"fmt"
	"strings"
)

// A CycleError is returned when resource references form a cycle. The
// engine refuses to plan or apply such a configuration.
type CycleError struct {
	// Addrs are the addresses of the resources involved in the cycle,
	// sorted for deterministic output.
	Addrs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between resources: %s", strings.Join(e.Addrs, ", "))
}
