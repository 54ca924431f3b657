package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/birdsql/internal/config"
	"github.com/fyrsmithlabs/birdsql/internal/conversation"
)

const validatorSystemPrompt = `You are a Result Validator Agent. Your job is to:

1. Evaluate whether query results correctly answer the original question
2. Check if the result is complete and appropriately shaped
3. Identify discrepancies or missing information

Always format your response as follows:

VALIDATION ANALYSIS:
<analysis of the results and how they relate to the question>

VALIDATION: PASS
or
VALIDATION: FAIL <short reason>

IMPORTANT: the last line must be VALIDATION: PASS or VALIDATION: FAIL.`

// Validator judges whether execution results answer the question.
type Validator struct {
	model llms.Model
	rc    config.RoleConfig
}

// NewValidator creates a validator backed by model.
func NewValidator(model llms.Model, rc config.RoleConfig) *Validator {
	return &Validator{model: model, rc: rc}
}

// Validate asks the model for a verdict on the executed query. A reply that
// carries no verdict line fails validation with that protocol breach as the
// reason, keeping the outcome recoverable through the repair loop.
func (a *Validator) Validate(ctx context.Context, in Input) (Output, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "QUESTION: %s\n\nSQL QUERY:\n%s\n\n", in.Question, in.SQL)
	if in.Execution != nil && in.Execution.Rows != nil {
		fmt.Fprintf(&b, "EXECUTION RESULTS (%d rows):\n%s\n",
			len(in.Execution.Rows.Rows),
			renderTable(in.Execution.Rows.Columns, in.Execution.Rows.Rows))
	}

	reply, err := generate(ctx, a.model, a.rc, validatorSystemPrompt, b.String())
	if err != nil {
		return Output{}, err
	}

	pass, reason, ok := ParseVerdict(reply)
	if !ok {
		pass, reason = false, "validator returned no verdict"
	}
	if pass {
		reason = ""
	} else if reason == "" {
		reason = "results do not answer the question"
	}

	return Output{
		Role:       conversation.RoleValidator,
		Message:    reply,
		Validation: &conversation.ValidationOutcome{Pass: pass, Reason: reason},
	}, nil
}
