// Package lifecycle implements the Lead lifecycle manager: the status
// state machine, claim/lock semantics, and the promotion rule that
// turns a scored Property into a Lead. The machine is open — every move
// between non-terminal states is legal, and terminal states have no
// exits.
package lifecycle

import (
	"fmt"

	"github.com/heatline/core/internal/types"
)

// knownStatuses guards against typo'd statuses coming in over the wire.
var knownStatuses = map[types.LeadStatus]bool{
	types.StatusProspect:    true,
	types.StatusLead:        true,
	types.StatusMyLead:      true,
	types.StatusNegotiation: true,
	types.StatusDisposition: true,
	types.StatusNurture:     true,
	types.StatusDead:        true,
	types.StatusClosed:      true,
}

// ValidateTransition reports whether moving a Lead from current to
// target is allowed. Any transition out of a non-terminal state is
// legal, including a same-state move (which callers treat as a no-op
// status move); dead and closed leads stay where they are.
func ValidateTransition(current, target types.LeadStatus) error {
	if !knownStatuses[target] {
		return fmt.Errorf("lifecycle: unknown target status %q", target)
	}
	if !knownStatuses[current] {
		return fmt.Errorf("lifecycle: unknown current status %q", current)
	}
	if current.IsTerminal() {
		return fmt.Errorf("lifecycle: lead is %s and cannot transition", current)
	}
	return nil
}
