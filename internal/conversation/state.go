package conversation

import (
	"github.com/google/uuid"
)

// State is the mutable record of one in-progress question. It is owned
// exclusively by the orchestrator driving the question; nothing is shared
// across questions, which is what makes concurrent question processing safe
// without locking.
type State struct {
	// ID correlates log lines and benchmark output for this question.
	ID string

	// Question is the immutable input text.
	Question string

	// DatabaseID is the resolved target database. Empty until the
	// interpreter turn (or set up front by the caller).
	DatabaseID string

	// Messages is the append-only transcript. In group-chat mode every
	// agent reads it; in direct mode it serves as the audit trail.
	Messages []Message

	// Schema is set once by the schema retriever and read-only afterward.
	Schema Schema

	// CurrentSQL is the latest SQL candidate, replaced on each generator
	// turn.
	CurrentSQL string

	// Execution is the latest executor outcome, nil until the executor
	// runs and cleared on each fresh generator turn.
	Execution *ExecutionOutcome

	// Validation is the latest validator outcome, nil until the executor
	// has produced a success.
	Validation *ValidationOutcome

	// RepairAttempts counts repairer invocations. Monotonic; never reset
	// within one question.
	RepairAttempts int

	// TurnCount counts agent invocations, incremented once per turn.
	TurnCount int

	// Clarifications counts generator-failure re-routes to the
	// interpreter. At most one is allowed.
	Clarifications int

	// GenerationFailures counts generator turns that produced no
	// parseable SQL.
	GenerationFailures int

	// InterpreterDone records that the interpreter already ran, so it is
	// not re-selected when its turn produced no database id.
	InterpreterDone bool

	// Terminal is empty until a terminating transition fires.
	Terminal TerminalStatus
}

// NewState creates a fresh state for one question. The question text becomes
// the opening transcript entry.
func NewState(question, databaseID string) *State {
	s := &State{
		ID:         uuid.NewString(),
		Question:   question,
		DatabaseID: databaseID,
	}
	s.Append(RoleUser, question)
	return s
}

// Append adds a message to the transcript.
func (s *State) Append(speaker Role, content string) {
	s.Messages = append(s.Messages, Message{Speaker: speaker, Content: content})
}

// Transcript returns a copy of the message log. Agents receive this snapshot
// rather than a live reference so an invocation can never mutate shared
// history.
func (s *State) Transcript() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// SetSQL records a new generator candidate and clears the stale execution
// and validation outcomes, forcing a fresh executor/validator pass.
func (s *State) SetSQL(sql string) {
	s.CurrentSQL = sql
	s.Execution = nil
	s.Validation = nil
}

// SetExecution records an executor outcome.
func (s *State) SetExecution(o ExecutionOutcome) {
	s.Execution = &o
}

// SetValidation records a validator outcome.
func (s *State) SetValidation(o ValidationOutcome) {
	s.Validation = &o
}

// ResetForRegeneration clears the SQL candidate and both outcomes after a
// repairer turn, so the selector re-enters the generation phase with the
// repair guidance already in the transcript.
func (s *State) ResetForRegeneration() {
	s.CurrentSQL = ""
	s.Execution = nil
	s.Validation = nil
}

// Terminate sets the terminal status. The first terminating transition wins;
// later calls are ignored.
func (s *State) Terminate(status TerminalStatus) {
	if s.Terminal == "" {
		s.Terminal = status
	}
}

// Terminated reports whether a terminal status has been set.
func (s *State) Terminated() bool {
	return s.Terminal != ""
}

// LastFailure returns the most recent failure detail for diagnosis: the
// execution error if present, else the validation failure reason.
func (s *State) LastFailure() string {
	if s.Execution != nil && s.Execution.Failed() {
		return s.Execution.Error
	}
	if s.Validation != nil && !s.Validation.Pass {
		return s.Validation.Reason
	}
	return ""
}
