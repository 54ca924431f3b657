package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/birdsql/internal/config"
	"github.com/fyrsmithlabs/birdsql/internal/conversation"
)

const generatorSystemPrompt = `You are a SQL Generator Agent. Your job is to:

1. Write one SQLite SELECT query that answers the user's question
2. Use only tables and columns present in the provided schema
3. Apply any repair guidance from earlier attempts

Format your response as follows:

RATIONALE: <one or two sentences on how the query answers the question>

` + "```sql\nSELECT ...\n```" + `

Return exactly one query. Do not invent tables or columns.`

// Generator produces a SQL candidate from the question, the schema and any
// accumulated repair guidance.
type Generator struct {
	model llms.Model
	rc    config.RoleConfig
}

// NewGenerator creates a generator backed by model.
func NewGenerator(model llms.Model, rc config.RoleConfig) *Generator {
	return &Generator{model: model, rc: rc}
}

// Generate asks the model for a query. An empty Output.SQL means the reply
// held no parseable SQL; routing that case is the orchestrator's decision.
func (a *Generator) Generate(ctx context.Context, in Input) (Output, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "USER QUESTION: %s\n\n", in.Question)
	fmt.Fprintf(&b, "DATABASE: %s\n\nSCHEMA:\n%s\n", in.DatabaseID, in.Schema.Describe())

	// Repair guidance and prior failures live in the transcript; replay
	// the repairer turns so a regeneration attempt sees them.
	for _, msg := range in.Transcript {
		if msg.Speaker == conversation.RoleRepairer {
			fmt.Fprintf(&b, "\nREPAIR GUIDANCE:\n%s\n", msg.Content)
		}
	}

	reply, err := generate(ctx, a.model, a.rc, generatorSystemPrompt, b.String())
	if err != nil {
		return Output{}, err
	}

	return Output{
		Role:      conversation.RoleGenerator,
		Message:   reply,
		SQL:       ExtractSQL(reply),
		Rationale: parseRationale(reply),
	}, nil
}

// parseRationale reads the RATIONALE: line of the reply.
func parseRationale(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "RATIONALE:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
