package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/birdsql/internal/agent"
	"github.com/fyrsmithlabs/birdsql/internal/config"
	"github.com/fyrsmithlabs/birdsql/internal/conversation"
)

// stubInvoker scripts agent outputs per role. The call counter lets a
// handler change behavior across attempts (fail once, then succeed).
type stubInvoker struct {
	mu       sync.Mutex
	calls    map[conversation.Role]int
	handlers map[conversation.Role]func(call int, in agent.Input) (agent.Output, error)
}

func newStubInvoker() *stubInvoker {
	s := &stubInvoker{
		calls:    make(map[conversation.Role]int),
		handlers: make(map[conversation.Role]func(int, agent.Input) (agent.Output, error)),
	}

	// Happy-path defaults; tests override individual roles.
	s.handlers[conversation.RoleInterpreter] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{
			Role:       conversation.RoleInterpreter,
			Message:    "DATABASE: sales",
			DatabaseID: "sales",
		}, nil
	}
	s.handlers[conversation.RoleSchemaRetriever] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{
			Role:    conversation.RoleSchemaRetriever,
			Message: "DATABASE SCHEMA for sales",
			Schema:  conversation.Schema{"orders": {{Name: "total", Type: "REAL"}}},
		}, nil
	}
	s.handlers[conversation.RoleGenerator] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{
			Role:    conversation.RoleGenerator,
			Message: "```sql\nSELECT SUM(total) FROM orders\n```",
			SQL:     "SELECT SUM(total) FROM orders",
		}, nil
	}
	s.handlers[conversation.RoleExecutor] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{
			Role:    conversation.RoleExecutor,
			Message: "EXECUTION RESULTS (1 rows)",
			Execution: &conversation.ExecutionOutcome{
				Rows: &conversation.ResultSet{Columns: []string{"revenue"}, Rows: [][]string{{"1234.56"}}},
			},
		}, nil
	}
	s.handlers[conversation.RoleValidator] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{
			Role:       conversation.RoleValidator,
			Message:    "VALIDATION: PASS",
			Validation: &conversation.ValidationOutcome{Pass: true},
		}, nil
	}
	s.handlers[conversation.RoleRepairer] = func(call int, in agent.Input) (agent.Output, error) {
		return agent.Output{
			Role:     conversation.RoleRepairer,
			Message:  fmt.Sprintf("REPAIR GUIDANCE #%d for %s: %s", call, in.FailureKind, in.FailureDetail),
			Guidance: "use column total",
		}, nil
	}
	return s
}

func (s *stubInvoker) Invoke(ctx context.Context, role conversation.Role, in agent.Input) (agent.Output, error) {
	s.mu.Lock()
	s.calls[role]++
	call := s.calls[role]
	h := s.handlers[role]
	s.mu.Unlock()
	return h(call, in)
}

func (s *stubInvoker) callCount(role conversation.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[role]
}

func testConfig(debug bool) *config.Config {
	cfg := config.Default()
	cfg.DebugMode = debug
	// Headroom so repair exhaustion, not the turn ceiling, decides the
	// bounded-repair scenarios.
	cfg.Agents.MaxConsecutiveReplies = 50
	return cfg
}

func TestProcessQuestion_HappyPath(t *testing.T) {
	stub := newStubInvoker()
	o := New(stub, testConfig(true))

	res := o.ProcessQuestion(context.Background(), "total revenue in Q4 2022", "sales")

	assert.True(t, res.Validated())
	assert.Equal(t, conversation.StatusValidated, res.Status)
	assert.Equal(t, "SELECT SUM(total) FROM orders", res.SQL)
	require.NotNil(t, res.Rows)
	assert.Equal(t, [][]string{{"1234.56"}}, res.Rows.Rows)
	assert.Equal(t, 0, res.RepairAttempts)
	// Database id was given, so the interpreter never runs.
	assert.Zero(t, stub.callCount(conversation.RoleInterpreter))
}

func TestProcessQuestion_InterpreterResolvesDatabase(t *testing.T) {
	stub := newStubInvoker()
	o := New(stub, testConfig(true))

	res := o.ProcessQuestion(context.Background(), "total revenue in Q4 2022", "")

	assert.True(t, res.Validated())
	assert.Equal(t, 1, stub.callCount(conversation.RoleInterpreter))
}

func TestProcessQuestion_OneRepair(t *testing.T) {
	stub := newStubInvoker()
	stub.handlers[conversation.RoleExecutor] = func(call int, in agent.Input) (agent.Output, error) {
		if call == 1 {
			return agent.Output{
				Role:      conversation.RoleExecutor,
				Message:   "SQL ERROR: no such column",
				Execution: &conversation.ExecutionOutcome{Error: "no such column"},
			}, nil
		}
		return agent.Output{
			Role:      conversation.RoleExecutor,
			Message:   "EXECUTION RESULTS",
			Execution: &conversation.ExecutionOutcome{Rows: &conversation.ResultSet{Columns: []string{"revenue"}, Rows: [][]string{{"10"}}}},
		}, nil
	}

	o := New(stub, testConfig(true))
	res := o.ProcessQuestion(context.Background(), "total revenue", "sales")

	assert.True(t, res.Validated())
	assert.Equal(t, 1, res.RepairAttempts)
	assert.Equal(t, 1, stub.callCount(conversation.RoleRepairer))
	assert.Equal(t, 2, stub.callCount(conversation.RoleGenerator))
}

func TestProcessQuestion_RepairExhaustion(t *testing.T) {
	stub := newStubInvoker()
	stub.handlers[conversation.RoleExecutor] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{
			Role:      conversation.RoleExecutor,
			Message:   "SQL ERROR: no such column",
			Execution: &conversation.ExecutionOutcome{Error: "no such column"},
		}, nil
	}

	o := New(stub, testConfig(true))
	res := o.ProcessQuestion(context.Background(), "total revenue", "sales")

	assert.Equal(t, conversation.StatusRepairExhausted, res.Status)
	assert.Equal(t, "no such column", res.LastError)
	// Exactly the budget, never a fourth invocation.
	assert.Equal(t, 3, stub.callCount(conversation.RoleRepairer))
	assert.Equal(t, 3, res.RepairAttempts)
}

func TestProcessQuestion_ValidationLoopSharesBudget(t *testing.T) {
	stub := newStubInvoker()
	stub.handlers[conversation.RoleValidator] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{
			Role:       conversation.RoleValidator,
			Message:    "VALIDATION: FAIL row count mismatch",
			Validation: &conversation.ValidationOutcome{Pass: false, Reason: "row count mismatch"},
		}, nil
	}

	o := New(stub, testConfig(true))
	res := o.ProcessQuestion(context.Background(), "total revenue", "sales")

	assert.Equal(t, conversation.StatusRepairExhausted, res.Status)
	assert.Equal(t, "row count mismatch", res.LastError)
	assert.Equal(t, 3, stub.callCount(conversation.RoleRepairer))
	assert.Equal(t, 3, res.RepairAttempts)
}

func TestProcessQuestion_RepairerSeesValidationFailureKind(t *testing.T) {
	stub := newStubInvoker()
	var seen []conversation.FailureKind
	stub.handlers[conversation.RoleValidator] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{
			Role:       conversation.RoleValidator,
			Message:    "VALIDATION: FAIL wrong aggregation",
			Validation: &conversation.ValidationOutcome{Pass: false, Reason: "wrong aggregation"},
		}, nil
	}
	stub.handlers[conversation.RoleRepairer] = func(call int, in agent.Input) (agent.Output, error) {
		seen = append(seen, in.FailureKind)
		return agent.Output{Role: conversation.RoleRepairer, Message: "guidance", Guidance: "guidance"}, nil
	}

	o := New(stub, testConfig(true))
	_ = o.ProcessQuestion(context.Background(), "total revenue", "sales")

	require.NotEmpty(t, seen)
	for _, kind := range seen {
		assert.Equal(t, conversation.FailureValidation, kind)
	}
}

func TestProcessQuestion_TurnLimit(t *testing.T) {
	stub := newStubInvoker()
	// Pathological schema retriever that never produces a schema, so the
	// selector re-requests it forever.
	stub.handlers[conversation.RoleSchemaRetriever] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{Role: conversation.RoleSchemaRetriever, Message: "still loading"}, nil
	}

	cfg := testConfig(true)
	cfg.Agents.MaxConsecutiveReplies = 10
	o := New(stub, cfg)

	res := o.ProcessQuestion(context.Background(), "total revenue", "sales")

	assert.Equal(t, conversation.StatusTurnLimitExceeded, res.Status)
	// Cut off at exactly the ceiling.
	assert.Equal(t, 10, res.Turns)
	assert.Equal(t, 10, stub.callCount(conversation.RoleSchemaRetriever))
}

func TestProcessQuestion_GenerationFailedAfterOneClarification(t *testing.T) {
	stub := newStubInvoker()
	stub.handlers[conversation.RoleGenerator] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{Role: conversation.RoleGenerator, Message: "I need clarification."}, nil
	}

	o := New(stub, testConfig(true))
	res := o.ProcessQuestion(context.Background(), "total revenue", "sales")

	assert.Equal(t, conversation.StatusGenerationFailed, res.Status)
	assert.Equal(t, "generator produced no parseable SQL", res.LastError)
	// One clarification re-route to the interpreter, then terminate.
	assert.Equal(t, 1, stub.callCount(conversation.RoleInterpreter))
	assert.Equal(t, 2, stub.callCount(conversation.RoleGenerator))
}

func TestProcessQuestion_AgentUnavailable(t *testing.T) {
	stub := newStubInvoker()
	stub.handlers[conversation.RoleGenerator] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{}, fmt.Errorf("%w: connection refused", agent.ErrUnavailable)
	}

	o := New(stub, testConfig(true))
	res := o.ProcessQuestion(context.Background(), "total revenue", "sales")

	assert.Equal(t, conversation.StatusAgentUnavailable, res.Status)
	assert.Contains(t, res.LastError, "connection refused")
	// Not retried by the core.
	assert.Equal(t, 1, stub.callCount(conversation.RoleGenerator))
}

func TestProcessQuestion_Cancellation(t *testing.T) {
	stub := newStubInvoker()
	ctx, cancel := context.WithCancel(context.Background())
	stub.handlers[conversation.RoleExecutor] = func(int, agent.Input) (agent.Output, error) {
		cancel()
		return agent.Output{}, errors.New("interrupted")
	}

	o := New(stub, testConfig(true))
	res := o.ProcessQuestion(ctx, "total revenue", "sales")

	assert.Equal(t, conversation.StatusCancelled, res.Status)
	// No further invocations after cancellation.
	assert.Zero(t, stub.callCount(conversation.RoleValidator))
	assert.Zero(t, stub.callCount(conversation.RoleRepairer))
}

func TestProcessQuestion_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := newStubInvoker()
	o := New(stub, testConfig(true))
	res := o.ProcessQuestion(ctx, "total revenue", "sales")

	assert.Equal(t, conversation.StatusCancelled, res.Status)
	assert.Zero(t, res.Turns)
}

// normalize strips the per-run question id so runs can be compared.
func normalize(r Result) Result {
	r.QuestionID = ""
	return r
}

func TestProcessQuestion_Idempotent(t *testing.T) {
	run := func() Result {
		o := New(newStubInvoker(), testConfig(true))
		return o.ProcessQuestion(context.Background(), "total revenue", "sales")
	}

	assert.Equal(t, normalize(run()), normalize(run()))
}

func TestProcessQuestion_ModesAreEquivalent(t *testing.T) {
	scenarios := []struct {
		name string
		prep func(*stubInvoker)
	}{
		{name: "happy path", prep: func(*stubInvoker) {}},
		{
			name: "one repair",
			prep: func(s *stubInvoker) {
				s.handlers[conversation.RoleExecutor] = func(call int, in agent.Input) (agent.Output, error) {
					if call == 1 {
						return agent.Output{Role: conversation.RoleExecutor, Message: "SQL ERROR: x", Execution: &conversation.ExecutionOutcome{Error: "x"}}, nil
					}
					return agent.Output{Role: conversation.RoleExecutor, Message: "ok", Execution: &conversation.ExecutionOutcome{Rows: &conversation.ResultSet{Columns: []string{"n"}, Rows: [][]string{{"1"}}}}}, nil
				}
			},
		},
		{
			name: "exhaustion",
			prep: func(s *stubInvoker) {
				s.handlers[conversation.RoleExecutor] = func(int, agent.Input) (agent.Output, error) {
					return agent.Output{Role: conversation.RoleExecutor, Message: "SQL ERROR: x", Execution: &conversation.ExecutionOutcome{Error: "x"}}, nil
				}
			},
		},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			direct := newStubInvoker()
			sc.prep(direct)
			groupChat := newStubInvoker()
			sc.prep(groupChat)

			directRes := New(direct, testConfig(true)).ProcessQuestion(context.Background(), "total revenue", "sales")
			chatRes := New(groupChat, testConfig(false)).ProcessQuestion(context.Background(), "total revenue", "sales")

			assert.Equal(t, directRes.Status, chatRes.Status)
			assert.Equal(t, directRes.SQL, chatRes.SQL)
			assert.Equal(t, directRes.Rows, chatRes.Rows)
			assert.Equal(t, directRes.LastError, chatRes.LastError)
			assert.Equal(t, directRes.RepairAttempts, chatRes.RepairAttempts)
		})
	}
}

func TestProcessQuestion_RepairerBudgetOverrideWins(t *testing.T) {
	stub := newStubInvoker()
	stub.handlers[conversation.RoleExecutor] = func(int, agent.Input) (agent.Output, error) {
		return agent.Output{Role: conversation.RoleExecutor, Message: "SQL ERROR: x", Execution: &conversation.ExecutionOutcome{Error: "x"}}, nil
	}

	cfg := testConfig(true)
	attempts := 4
	cfg.AgentOverrides = map[string]config.Override{
		"repairer": {MaxRepairAttempts: &attempts},
	}

	o := New(stub, cfg)
	res := o.ProcessQuestion(context.Background(), "total revenue", "sales")

	assert.Equal(t, conversation.StatusRepairExhausted, res.Status)
	assert.Equal(t, 4, stub.callCount(conversation.RoleRepairer))
}

func TestProcessQuestion_ConcurrentQuestionsAreIndependent(t *testing.T) {
	stub := newStubInvoker()
	o := New(stub, testConfig(true))

	const n = 8
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.ProcessQuestion(context.Background(), "total revenue", "sales")
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool, n)
	for _, r := range results {
		assert.True(t, r.Validated())
		ids[r.QuestionID] = true
	}
	assert.Len(t, ids, n)
}
