package orchestrator

import (
	"fmt"

	"github.com/fyrsmithlabs/birdsql/internal/conversation"
)

// RepairController enforces the bounded-retry invariant around the repair
// loop. The attempt counter is monotonic and never reset within one
// question's lifetime.
type RepairController struct {
	max int
}

// NewRepairController creates a controller with the given budget.
func NewRepairController(max int) *RepairController {
	return &RepairController{max: max}
}

// AttemptRepair charges one repair attempt and appends the failure detail to
// the transcript. It returns false without charging when the budget is
// already spent, so the caller terminates instead of invoking the repairer.
func (c *RepairController) AttemptRepair(s *conversation.State, kind conversation.FailureKind, detail string) bool {
	if s.RepairAttempts >= c.max {
		return false
	}
	s.RepairAttempts++

	label := "SQL ERROR"
	if kind == conversation.FailureValidation {
		label = "VALIDATION FAILURE"
	}
	s.Append(conversation.RoleUser,
		fmt.Sprintf("REPAIR ATTEMPT %d/%d - %s: %s", s.RepairAttempts, c.max, label, detail))
	return true
}
