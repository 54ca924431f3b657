package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	s := NewState("total revenue in Q4 2022", "sales")

	require.NotEmpty(t, s.ID)
	assert.Equal(t, "total revenue in Q4 2022", s.Question)
	assert.Equal(t, "sales", s.DatabaseID)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, RoleUser, s.Messages[0].Speaker)
	assert.False(t, s.Terminated())
}

func TestState_SetSQLClearsOutcomes(t *testing.T) {
	s := NewState("q", "db")
	s.SetSQL("SELECT 1")
	s.SetExecution(ExecutionOutcome{Error: "no such column"})
	s.SetValidation(ValidationOutcome{Pass: false, Reason: "bad"})

	s.SetSQL("SELECT 2")

	assert.Equal(t, "SELECT 2", s.CurrentSQL)
	assert.Nil(t, s.Execution)
	assert.Nil(t, s.Validation)
}

func TestState_ResetForRegeneration(t *testing.T) {
	s := NewState("q", "db")
	s.SetSQL("SELECT 1")
	s.SetExecution(ExecutionOutcome{Rows: &ResultSet{Columns: []string{"n"}}})
	s.SetValidation(ValidationOutcome{Pass: false, Reason: "row count mismatch"})

	s.ResetForRegeneration()

	assert.Empty(t, s.CurrentSQL)
	assert.Nil(t, s.Execution)
	assert.Nil(t, s.Validation)
}

func TestState_TerminateFirstWins(t *testing.T) {
	s := NewState("q", "db")
	s.Terminate(StatusValidated)
	s.Terminate(StatusRepairExhausted)

	assert.Equal(t, StatusValidated, s.Terminal)
	assert.True(t, s.Terminated())
}

func TestState_TranscriptIsSnapshot(t *testing.T) {
	s := NewState("q", "db")
	snap := s.Transcript()
	s.Append(RoleGenerator, "SELECT 1")

	assert.Len(t, snap, 1)
	assert.Len(t, s.Messages, 2)

	snap[0].Content = "mutated"
	assert.Equal(t, "q", s.Messages[0].Content)
}

func TestState_LastFailure(t *testing.T) {
	tests := []struct {
		name string
		prep func(*State)
		want string
	}{
		{
			name: "execution error wins",
			prep: func(s *State) {
				s.SetExecution(ExecutionOutcome{Error: "no such table: orders"})
			},
			want: "no such table: orders",
		},
		{
			name: "validation reason when execution succeeded",
			prep: func(s *State) {
				s.SetExecution(ExecutionOutcome{Rows: &ResultSet{}})
				s.SetValidation(ValidationOutcome{Pass: false, Reason: "row count mismatch"})
			},
			want: "row count mismatch",
		},
		{
			name: "empty when nothing failed",
			prep: func(s *State) {},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState("q", "db")
			tt.prep(s)
			assert.Equal(t, tt.want, s.LastFailure())
		})
	}
}

func TestSchema_Describe(t *testing.T) {
	schema := Schema{
		"orders":    {{Name: "id", Type: "INTEGER"}, {Name: "total", Type: "REAL"}},
		"customers": {{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}},
	}

	got := schema.Describe()

	// Tables render in sorted order for deterministic prompts.
	assert.Equal(t,
		"TABLE customers (id INTEGER, name TEXT)\nTABLE orders (id INTEGER, total REAL)\n",
		got)
	assert.Empty(t, Schema{}.Describe())
}
