package agent

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/birdsql/internal/conversation"
	"github.com/fyrsmithlabs/birdsql/internal/database"
)

// SchemaRetriever loads table and column metadata for the target database.
// It is rule-based: schema introspection needs no model call.
type SchemaRetriever struct {
	store *database.Store
}

// NewSchemaRetriever creates a schema retriever over store.
func NewSchemaRetriever(store *database.Store) *SchemaRetriever {
	return &SchemaRetriever{store: store}
}

// Retrieve introspects the database named by in.DatabaseID. A missing or
// unreadable database is a collaborator failure: there is no SQL yet to
// repair, so it surfaces as unavailable rather than a recoverable outcome.
func (a *SchemaRetriever) Retrieve(ctx context.Context, in Input) (Output, error) {
	if in.DatabaseID == "" {
		return Output{}, fmt.Errorf("%w: no database id resolved", ErrUnavailable)
	}

	schema, err := a.store.Describe(ctx, in.DatabaseID)
	if err != nil {
		return Output{}, fmt.Errorf("%w: schema retrieval for %s: %v", ErrUnavailable, in.DatabaseID, err)
	}

	return Output{
		Role:    conversation.RoleSchemaRetriever,
		Message: fmt.Sprintf("DATABASE SCHEMA for %s:\n%s", in.DatabaseID, schema.Describe()),
		Schema:  schema,
	}, nil
}
