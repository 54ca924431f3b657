// Package agent implements the six specialized collaborators the
// orchestrator invokes: interpreter, schema retriever, generator, executor,
// validator and repairer. Four are LLM-backed through langchaingo; the
// schema retriever and executor work against the SQLite store.
//
// All six sit behind the Invoker capability interface so the orchestration
// core stays independent of prompt construction and model calls.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/birdsql/internal/config"
	"github.com/fyrsmithlabs/birdsql/internal/conversation"
	"github.com/fyrsmithlabs/birdsql/internal/database"
)

// ErrUnavailable indicates the underlying model or service call could not
// complete. The orchestrator surfaces it immediately as a failed result;
// retrying is the collaborator's concern, not the core's.
var ErrUnavailable = errors.New("agent unavailable")

// Input is the slice of conversation state an agent receives. Only the
// fields relevant to the invoked role are populated.
type Input struct {
	Question      string
	DatabaseID    string
	Schema        conversation.Schema
	SQL           string
	Execution     *conversation.ExecutionOutcome
	FailureKind   conversation.FailureKind
	FailureDetail string

	// Transcript is an immutable snapshot of the message log. Direct mode
	// passes only what the role needs; group-chat mode passes the full
	// history.
	Transcript []conversation.Message
}

// Output is the role-specific result of one agent turn. The Role tag tells
// the orchestrator which fields are meaningful.
type Output struct {
	Role conversation.Role

	// Message is the transcript entry for this turn.
	Message string

	// Interpreter fields.
	DatabaseID string
	Entities   []string

	// Schema retriever field.
	Schema conversation.Schema

	// Generator fields.
	SQL       string
	Rationale string

	// Executor field.
	Execution *conversation.ExecutionOutcome

	// Validator field.
	Validation *conversation.ValidationOutcome

	// Repairer field.
	Guidance string
}

// Invoker is the capability interface the orchestration core consumes:
// given a role and a structured input, produce a structured output.
type Invoker interface {
	Invoke(ctx context.Context, role conversation.Role, in Input) (Output, error)
}

// Registry dispatches Invoke calls to the six concrete agents.
type Registry struct {
	interpreter *Interpreter
	schema      *SchemaRetriever
	generator   *Generator
	executor    *Executor
	validator   *Validator
	repairer    *Repairer

	timeouts map[conversation.Role]time.Duration
	logger   *zap.Logger
}

// NewRegistry wires the concrete agents. model backs the LLM agents; store
// backs the schema retriever and executor. Per-role model parameters come
// from cfg's resolved role configs.
func NewRegistry(model llms.Model, store *database.Store, cfg *config.Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeouts := make(map[conversation.Role]time.Duration, len(conversation.AgentRoles()))
	for _, role := range conversation.AgentRoles() {
		timeouts[role] = cfg.Resolve(string(role)).Timeout
	}

	return &Registry{
		interpreter: NewInterpreter(model, cfg.Resolve(string(conversation.RoleInterpreter))),
		schema:      NewSchemaRetriever(store),
		generator:   NewGenerator(model, cfg.Resolve(string(conversation.RoleGenerator))),
		executor:    NewExecutor(store),
		validator:   NewValidator(model, cfg.Resolve(string(conversation.RoleValidator))),
		repairer:    NewRepairer(model, cfg.Resolve(string(conversation.RoleRepairer))),
		timeouts:    timeouts,
		logger:      logger.Named("agent"),
	}
}

// Invoke runs one agent turn. The call is bounded by the role's configured
// timeout; a timed-out or unreachable collaborator maps to ErrUnavailable.
func (r *Registry) Invoke(ctx context.Context, role conversation.Role, in Input) (Output, error) {
	if timeout := r.timeouts[role]; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		out Output
		err error
	)
	switch role {
	case conversation.RoleInterpreter:
		out, err = r.interpreter.Interpret(ctx, in)
	case conversation.RoleSchemaRetriever:
		out, err = r.schema.Retrieve(ctx, in)
	case conversation.RoleGenerator:
		out, err = r.generator.Generate(ctx, in)
	case conversation.RoleExecutor:
		out, err = r.executor.Execute(ctx, in)
	case conversation.RoleValidator:
		out, err = r.validator.Validate(ctx, in)
	case conversation.RoleRepairer:
		out, err = r.repairer.Repair(ctx, in)
	default:
		return Output{}, fmt.Errorf("unknown agent role %q", role)
	}

	if err != nil {
		r.logger.Warn("agent invocation failed",
			zap.String("role", string(role)),
			zap.Error(err))
		return Output{}, err
	}
	return out, nil
}

// generate runs one LLM call with the role's resolved parameters and returns
// the text of the first choice. Transport failures and deadline expiry map
// to ErrUnavailable.
func generate(ctx context.Context, model llms.Model, rc config.RoleConfig, system, user string) (string, error) {
	resp, err := model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, system),
			llms.TextParts(llms.ChatMessageTypeHuman, user),
		},
		llms.WithModel(rc.Model),
		llms.WithTemperature(rc.Temperature),
		llms.WithMaxTokens(rc.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", ErrUnavailable)
	}
	return resp.Choices[0].Content, nil
}
