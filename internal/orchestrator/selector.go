package orchestrator

import (
	"github.com/fyrsmithlabs/birdsql/internal/conversation"
)

// Limits are the conversation bounds the selector enforces.
type Limits struct {
	// MaxRepairAttempts bounds the repair loop; the counter is shared
	// between execution errors and validation failures.
	MaxRepairAttempts int

	// MaxConsecutiveReplies is the turn ceiling for one conversation.
	MaxConsecutiveReplies int
}

// maxClarifications bounds generator-failure re-routes to the interpreter.
// The global turn ceiling is the only other backstop.
const maxClarifications = 1

// Decision is the selector's verdict: either the next agent to invoke, or a
// terminating transition.
type Decision struct {
	// Next is the role to invoke. Empty when Terminate is set.
	Next conversation.Role

	// Terminate ends the conversation with Status.
	Terminate bool
	Status    conversation.TerminalStatus

	// Failure is set when Next is the repairer, so it receives the
	// correct diagnostic payload.
	Failure conversation.FailureKind
}

func next(role conversation.Role) Decision {
	return Decision{Next: role}
}

func repair(kind conversation.FailureKind) Decision {
	return Decision{Next: conversation.RoleRepairer, Failure: kind}
}

func terminate(status conversation.TerminalStatus) Decision {
	return Decision{Terminate: true, Status: status}
}

// Select is the routing brain: a pure, deterministic function from
// conversation state to the next action. Rules are evaluated in order and
// the first match wins:
//
//  1. An already-terminal state stays terminal.
//  2. The turn ceiling cuts off everything else.
//  3. The interpreter runs once at the start, unless the database id is
//     already known.
//  4. A generator turn without parseable SQL re-routes to the interpreter
//     once, then terminates as a generation failure.
//  5. No schema yet: schema retriever.
//  6. No SQL candidate yet: generator.
//  7. SQL without an execution outcome: executor.
//  8. Execution error: repairer while budget remains, else repair
//     exhausted.
//  9. Execution success without a validation outcome: validator.
//  10. Validation pass: terminate validated.
//  11. Validation failure: repairer while budget remains (same shared
//     budget), else repair exhausted.
func Select(s *conversation.State, limits Limits) Decision {
	if s.Terminated() {
		return terminate(s.Terminal)
	}
	if s.TurnCount >= limits.MaxConsecutiveReplies {
		return terminate(conversation.StatusTurnLimitExceeded)
	}

	if s.DatabaseID == "" && !s.InterpreterDone {
		return next(conversation.RoleInterpreter)
	}

	if s.GenerationFailures > 0 && s.CurrentSQL == "" {
		if s.GenerationFailures > maxClarifications {
			return terminate(conversation.StatusGenerationFailed)
		}
		if s.Clarifications < s.GenerationFailures {
			return next(conversation.RoleInterpreter)
		}
	}

	if s.Schema == nil {
		return next(conversation.RoleSchemaRetriever)
	}
	if s.CurrentSQL == "" {
		return next(conversation.RoleGenerator)
	}
	if s.Execution == nil {
		return next(conversation.RoleExecutor)
	}

	if s.Execution.Failed() {
		if s.RepairAttempts < limits.MaxRepairAttempts {
			return repair(conversation.FailureExecution)
		}
		return terminate(conversation.StatusRepairExhausted)
	}

	if s.Validation == nil {
		return next(conversation.RoleValidator)
	}
	if s.Validation.Pass {
		return terminate(conversation.StatusValidated)
	}
	if s.RepairAttempts < limits.MaxRepairAttempts {
		return repair(conversation.FailureValidation)
	}
	return terminate(conversation.StatusRepairExhausted)
}
