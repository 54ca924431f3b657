package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/birdsql/internal/config"
	"github.com/fyrsmithlabs/birdsql/internal/conversation"
)

const interpreterSystemPrompt = `You are a Query Interpreter Agent. Your job is to:

1. Analyze a natural language question about a relational database
2. Identify the target database when the question names one
3. List the entities (tables, columns, values) the question refers to
4. Restate the question precisely so a SQL generator can work from it

Format your response as follows:

DATABASE: <database id, or UNKNOWN>
ENTITIES: <comma-separated entity list>
INTERPRETATION: <one paragraph restating the question>`

// Interpreter resolves the target database and the entities a question
// refers to. It runs exactly once at the start of a conversation, and once
// more at most if the generator produces no parseable SQL.
type Interpreter struct {
	model llms.Model
	rc    config.RoleConfig
}

// NewInterpreter creates an interpreter backed by model.
func NewInterpreter(model llms.Model, rc config.RoleConfig) *Interpreter {
	return &Interpreter{model: model, rc: rc}
}

// Interpret analyzes the question. The resolved database id falls back to an
// explicit "database <id>" mention in the question when the model reply
// omits one.
func (a *Interpreter) Interpret(ctx context.Context, in Input) (Output, error) {
	user := fmt.Sprintf("USER QUESTION: %s", in.Question)
	if in.FailureDetail != "" {
		user += fmt.Sprintf("\n\nThe previous SQL generation attempt failed: %s\nClarify the question so a valid query can be generated.", in.FailureDetail)
	}

	reply, err := generate(ctx, a.model, a.rc, interpreterSystemPrompt, user)
	if err != nil {
		return Output{}, err
	}

	dbID := parseInterpreterDatabase(reply)
	if dbID == "" {
		dbID = ExtractDatabaseID(in.Question)
	}

	return Output{
		Role:       conversation.RoleInterpreter,
		Message:    reply,
		DatabaseID: dbID,
		Entities:   parseInterpreterEntities(reply),
	}, nil
}

// parseInterpreterDatabase reads the DATABASE: line of the reply.
func parseInterpreterDatabase(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "DATABASE:")
		if !ok {
			continue
		}
		id := strings.TrimSpace(rest)
		if id == "" || strings.EqualFold(id, "UNKNOWN") {
			return ""
		}
		return id
	}
	return ""
}

// parseInterpreterEntities reads the ENTITIES: line of the reply.
func parseInterpreterEntities(reply string) []string {
	for _, line := range strings.Split(reply, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "ENTITIES:")
		if !ok {
			continue
		}
		var entities []string
		for _, e := range strings.Split(rest, ",") {
			if e = strings.TrimSpace(e); e != "" {
				entities = append(entities, e)
			}
		}
		return entities
	}
	return nil
}
