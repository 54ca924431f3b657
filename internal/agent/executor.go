package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/birdsql/internal/conversation"
	"github.com/fyrsmithlabs/birdsql/internal/database"
)

// Executor runs the current SQL candidate against the target database. It is
// rule-based; the orchestration core never issues SQL itself.
type Executor struct {
	store *database.Store
}

// NewExecutor creates an executor over store.
func NewExecutor(store *database.Store) *Executor {
	return &Executor{store: store}
}

// Execute runs in.SQL. Database errors, including statement timeouts, map to
// an error outcome rather than a failed invocation: bad SQL is recoverable
// through the repair loop.
func (a *Executor) Execute(ctx context.Context, in Input) (Output, error) {
	rs, err := a.store.Execute(ctx, in.DatabaseID, in.SQL)
	if err != nil {
		outcome := conversation.ExecutionOutcome{Error: err.Error()}
		return Output{
			Role:      conversation.RoleExecutor,
			Message:   fmt.Sprintf("SQL ERROR: %s", outcome.Error),
			Execution: &outcome,
		}, nil
	}

	rows := make([][]string, len(rs.Rows))
	copy(rows, rs.Rows)
	outcome := conversation.ExecutionOutcome{
		Rows: &conversation.ResultSet{Columns: rs.Columns, Rows: rows},
	}
	return Output{
		Role:      conversation.RoleExecutor,
		Message:   fmt.Sprintf("EXECUTION RESULTS (%d rows):\n%s", len(rows), renderTable(rs.Columns, rows)),
		Execution: &outcome,
	}, nil
}

// renderTable formats rows as readable text for the transcript.
func renderTable(columns []string, rows [][]string) string {
	if len(rows) == 0 {
		return "No results found."
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, v := range row {
			if i < len(widths) && len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "%-*s", widths[i], c)
	}
	header := b.String()
	b.WriteString("\n" + strings.Repeat("-", len(header)))
	for _, row := range rows {
		b.WriteString("\n")
		for i, v := range row {
			if i > 0 {
				b.WriteString(" | ")
			}
			fmt.Fprintf(&b, "%-*s", widths[i], v)
		}
	}
	return b.String()
}
