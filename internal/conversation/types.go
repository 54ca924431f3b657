// Package conversation holds the per-question mutable state shared by the
// orchestration loop: the message transcript, the current SQL candidate, the
// latest execution and validation outcomes, and the bookkeeping counters that
// bound the repair loop and the conversation length.
package conversation

import (
	"fmt"
	"sort"
	"strings"
)

// Role identifies a conversation participant.
type Role string

const (
	// RoleUser is the synthetic participant that opens the conversation
	// with the natural-language question.
	RoleUser Role = "user"

	// RoleInterpreter resolves the target database and question entities.
	RoleInterpreter Role = "interpreter"

	// RoleSchemaRetriever loads table and column metadata for the target
	// database.
	RoleSchemaRetriever Role = "schema_retriever"

	// RoleGenerator produces a SQL candidate from the question and schema.
	RoleGenerator Role = "generator"

	// RoleExecutor runs the SQL candidate against the database.
	RoleExecutor Role = "executor"

	// RoleValidator judges whether execution results answer the question.
	RoleValidator Role = "validator"

	// RoleRepairer produces repair guidance after a failed execution or
	// validation.
	RoleRepairer Role = "repairer"
)

// AgentRoles returns the six agent roles in pipeline order. RoleUser is not
// included; it never takes a turn.
func AgentRoles() []Role {
	return []Role{
		RoleInterpreter,
		RoleSchemaRetriever,
		RoleGenerator,
		RoleExecutor,
		RoleValidator,
		RoleRepairer,
	}
}

// Message is one entry in the append-only transcript.
type Message struct {
	Speaker Role   `json:"speaker"`
	Content string `json:"content"`
}

// Column describes one column of a table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema maps table names to their columns. It is set once by the schema
// retriever turn and read-only afterward.
type Schema map[string][]Column

// Describe renders the schema as prompt-friendly text, one table per line,
// tables in sorted order so the rendering is deterministic.
func (s Schema) Describe() string {
	if len(s) == 0 {
		return ""
	}
	tables := make([]string, 0, len(s))
	for name := range s {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	var b strings.Builder
	for _, table := range tables {
		cols := make([]string, 0, len(s[table]))
		for _, c := range s[table] {
			cols = append(cols, fmt.Sprintf("%s %s", c.Name, c.Type))
		}
		fmt.Fprintf(&b, "TABLE %s (%s)\n", table, strings.Join(cols, ", "))
	}
	return b.String()
}

// ResultSet holds rows returned by a successful execution.
type ResultSet struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ExecutionOutcome is the tagged result of an executor turn: either rows or
// an error message, never both.
type ExecutionOutcome struct {
	Rows  *ResultSet `json:"rows,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Failed reports whether the execution ended in an error.
func (o ExecutionOutcome) Failed() bool {
	return o.Error != ""
}

// ValidationOutcome is the tagged result of a validator turn.
type ValidationOutcome struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

// TerminalStatus marks how a conversation ended. Once set, no further
// transitions occur.
type TerminalStatus string

const (
	// StatusValidated means execution succeeded and validation passed.
	StatusValidated TerminalStatus = "validated"

	// StatusRepairExhausted means the repair budget was spent without a
	// validated result.
	StatusRepairExhausted TerminalStatus = "repair_exhausted"

	// StatusTurnLimitExceeded means the conversation hit the turn ceiling.
	StatusTurnLimitExceeded TerminalStatus = "turn_limit_exceeded"

	// StatusGenerationFailed means the generator produced no parseable SQL
	// even after one interpreter clarification.
	StatusGenerationFailed TerminalStatus = "generation_failed"

	// StatusAgentUnavailable means a collaborator call could not complete.
	StatusAgentUnavailable TerminalStatus = "agent_unavailable"

	// StatusCancelled means the enclosing caller cancelled mid-flight.
	StatusCancelled TerminalStatus = "cancelled"
)

// FailureKind distinguishes the two repair triggers so the repairer receives
// the correct diagnostic payload.
type FailureKind string

const (
	FailureExecution  FailureKind = "execution_error"
	FailureValidation FailureKind = "validation_failure"
)
