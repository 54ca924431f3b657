// Package orchestrator drives the multi-agent text-to-SQL conversation. It
// owns the per-question conversation state, asks the speaker selector for
// the next agent on every turn, applies each agent's output to the state,
// and terminates with a well-formed result on every path.
package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/birdsql/internal/agent"
	"github.com/fyrsmithlabs/birdsql/internal/config"
	"github.com/fyrsmithlabs/birdsql/internal/conversation"
	"github.com/fyrsmithlabs/birdsql/internal/telemetry"
)

// Result is the only output surface of the core: either a validated query
// with its rows, or a terminal failure carrying enough state for diagnosis.
type Result struct {
	QuestionID string                      `json:"question_id"`
	Question   string                      `json:"question"`
	Status     conversation.TerminalStatus `json:"status"`
	SQL        string                      `json:"sql,omitempty"`
	Rows       *conversation.ResultSet     `json:"rows,omitempty"`
	LastError  string                      `json:"last_error,omitempty"`

	RepairAttempts int `json:"repair_attempts"`
	Turns          int `json:"turns"`
}

// Validated reports whether execution succeeded and validation passed.
func (r Result) Validated() bool {
	return r.Status == conversation.StatusValidated
}

// Orchestrator processes questions. One Orchestrator can serve concurrent
// ProcessQuestion calls: each call owns its conversation state exclusively
// and the configuration is read-only.
type Orchestrator struct {
	runner  turnRunner
	limits  Limits
	repair  *RepairController
	logger  *zap.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics sets the pipeline metrics. Defaults to none.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator over the given agent collaborator. The
// transport mode is fixed at construction: debug_mode selects direct
// synchronous invocation, otherwise agents speak through the group-chat
// transport and observe the full message history. Both modes share the same
// speaker selector, so their state transitions are identical in outcome.
func New(invoker agent.Invoker, cfg *config.Config, opts ...Option) *Orchestrator {
	limits := Limits{
		// The repairer's own resolved budget wins over the global value,
		// since the counter counts repairer invocations.
		MaxRepairAttempts:     cfg.Resolve(string(conversation.RoleRepairer)).MaxRepairAttempts,
		MaxConsecutiveReplies: cfg.Agents.MaxConsecutiveReplies,
	}

	o := &Orchestrator{
		limits: limits,
		repair: NewRepairController(limits.MaxRepairAttempts),
		logger: zap.NewNop(),
		tracer: otel.Tracer(telemetry.TracerName),
	}
	if cfg.DebugMode {
		o.runner = directRunner{invoker: invoker, limits: limits}
	} else {
		o.runner = NewGroupChat(invoker, func(s *conversation.State) Decision {
			return Select(s, limits)
		})
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	return o
}

// ProcessQuestion runs one question through the pipeline. Every path returns
// a well-formed Result; collaborator failures and cancellation are captured,
// never propagated as panics or naked errors.
func (o *Orchestrator) ProcessQuestion(ctx context.Context, question, databaseID string) Result {
	state := conversation.NewState(question, databaseID)

	ctx, span := o.tracer.Start(ctx, "orchestrator.process_question",
		trace.WithAttributes(attribute.String("question.id", state.ID)))
	defer span.End()

	logger := o.logger.With(zap.String("question_id", state.ID))
	logger.Debug("processing question", zap.String("database_id", databaseID))

	for !state.Terminated() {
		if ctx.Err() != nil {
			state.Terminate(conversation.StatusCancelled)
			break
		}

		decision := o.runner.nextSpeaker(state)
		if decision.Terminate {
			state.Terminate(decision.Status)
			break
		}

		// The selector already refuses the repairer past the budget;
		// the controller is the enforcement point and charges the
		// attempt before the repairer speaks.
		if decision.Next == conversation.RoleRepairer {
			if !o.repair.AttemptRepair(state, decision.Failure, state.LastFailure()) {
				state.Terminate(conversation.StatusRepairExhausted)
				break
			}
		}

		out, err := o.runTurn(ctx, state, decision)
		state.TurnCount++
		if err != nil {
			if ctx.Err() != nil {
				state.Terminate(conversation.StatusCancelled)
			} else {
				state.Terminate(conversation.StatusAgentUnavailable)
				state.Append(conversation.RoleUser, "AGENT UNAVAILABLE: "+err.Error())
			}
			break
		}

		apply(state, out)
		logger.Debug("turn applied",
			zap.String("role", string(decision.Next)),
			zap.Int("turn", state.TurnCount))
	}

	result := assembleResult(state)
	o.metrics.ObserveQuestion(string(result.Status), result.RepairAttempts)
	span.SetAttributes(attribute.String("result.status", string(result.Status)))
	logger.Info("question finished",
		zap.String("status", string(result.Status)),
		zap.Int("turns", result.Turns),
		zap.Int("repair_attempts", result.RepairAttempts))
	return result
}

// runTurn invokes one agent through the configured transport, recording
// latency and outcome.
func (o *Orchestrator) runTurn(ctx context.Context, s *conversation.State, d Decision) (agent.Output, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.turn",
		trace.WithAttributes(attribute.String("agent.role", string(d.Next))))
	defer span.End()

	start := time.Now()
	out, err := o.runner.speak(ctx, s, d)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.metrics.ObserveTurn(string(d.Next), outcome, elapsed)
	return out, err
}

// apply folds one agent output into the conversation state. This is the only
// place state transitions happen, keeping the selector pure.
func apply(s *conversation.State, out agent.Output) {
	s.Append(out.Role, out.Message)

	switch out.Role {
	case conversation.RoleInterpreter:
		s.InterpreterDone = true
		if s.DatabaseID == "" && out.DatabaseID != "" {
			s.DatabaseID = out.DatabaseID
		}
		// A re-run after a generation failure consumes the
		// clarification budget.
		if s.GenerationFailures > s.Clarifications {
			s.Clarifications = s.GenerationFailures
		}
	case conversation.RoleSchemaRetriever:
		s.Schema = out.Schema
	case conversation.RoleGenerator:
		if out.SQL == "" {
			s.GenerationFailures++
		} else {
			s.SetSQL(out.SQL)
		}
	case conversation.RoleExecutor:
		if out.Execution != nil {
			s.SetExecution(*out.Execution)
		}
	case conversation.RoleValidator:
		if out.Validation != nil {
			s.SetValidation(*out.Validation)
		}
	case conversation.RoleRepairer:
		// Guidance is in the transcript; force a fresh
		// generate/execute/validate pass.
		s.ResetForRegeneration()
	}
}

// assembleResult translates the terminal state into the public Result.
func assembleResult(s *conversation.State) Result {
	r := Result{
		QuestionID:     s.ID,
		Question:       s.Question,
		Status:         s.Terminal,
		SQL:            s.CurrentSQL,
		RepairAttempts: s.RepairAttempts,
		Turns:          s.TurnCount,
	}
	if s.Terminal == conversation.StatusValidated && s.Execution != nil {
		r.Rows = s.Execution.Rows
	} else {
		r.LastError = s.LastFailure()
		if r.LastError == "" {
			switch s.Terminal {
			case conversation.StatusAgentUnavailable:
				if len(s.Messages) > 0 {
					r.LastError = s.Messages[len(s.Messages)-1].Content
				}
			case conversation.StatusGenerationFailed:
				r.LastError = "generator produced no parseable SQL"
			}
		}
	}
	return r
}
