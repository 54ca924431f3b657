package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/birdsql/internal/config"
	"github.com/fyrsmithlabs/birdsql/internal/conversation"
)

const repairerSystemPrompt = `You are an Auto Repair Agent. Your job is to:

1. Analyze why a SQL query failed to execute or failed validation
2. Identify the specific error: wrong table or column names, type mismatches,
   missing joins, wrong aggregation, or a query that does not answer the question
3. Give concrete guidance for the next generation attempt

Format your response as follows:

ERROR ANALYSIS:
<what went wrong and why>

REPAIR GUIDANCE:
<specific instructions for the corrected query>`

// Repairer turns an execution error or validation failure into guidance for
// the next generator pass. It never executes SQL itself.
type Repairer struct {
	model llms.Model
	rc    config.RoleConfig
}

// NewRepairer creates a repairer backed by model.
func NewRepairer(model llms.Model, rc config.RoleConfig) *Repairer {
	return &Repairer{model: model, rc: rc}
}

// Repair produces guidance from the failure diagnostic. The two failure
// kinds carry different payloads: an execution error quotes the database
// engine, a validation failure quotes the validator's reason.
func (a *Repairer) Repair(ctx context.Context, in Input) (Output, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "QUESTION: %s\n\nFAILED SQL QUERY:\n%s\n\n", in.Question, in.SQL)

	switch in.FailureKind {
	case conversation.FailureValidation:
		fmt.Fprintf(&b, "VALIDATION FAILURE: %s\n", in.FailureDetail)
	default:
		fmt.Fprintf(&b, "SQL ERROR: %s\n", in.FailureDetail)
	}

	if len(in.Schema) > 0 {
		fmt.Fprintf(&b, "\nSCHEMA:\n%s", in.Schema.Describe())
	}

	reply, err := generate(ctx, a.model, a.rc, repairerSystemPrompt, b.String())
	if err != nil {
		return Output{}, err
	}

	return Output{
		Role:     conversation.RoleRepairer,
		Message:  reply,
		Guidance: reply,
	}, nil
}
