package subagents

import (
	"context"
	"strings"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/genmodel"
)

// SQLDatabase is the read-only query surface DatabaseQuery executes a
// validated SELECT statement against.
type SQLDatabase interface {
	Query(ctx context.Context, sql string) (headers []string, rows [][]interface{}, err error)
}

// DatabaseQueryAgent performs NL->SQL translation via the generative
// model under a strict SELECT-only system prompt, validates the result
// (spec.md P4), and executes it. Required field: request (alias:
// query); optional: schema_hint.
type DatabaseQueryAgent struct {
	model  *genmodel.Client
	db     SQLDatabase
	logger core.Logger
}

func NewDatabaseQueryAgent(model *genmodel.Client, db SQLDatabase, logger core.Logger) *DatabaseQueryAgent {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &DatabaseQueryAgent{model: model, db: db, logger: logger}
}

const nlToSQLSystemPrompt = "You translate natural language requests into PostgreSQL SQL.\n" +
	"Constraints: SELECT-only, safe, no writes, no DDL/DML. Output strict JSON only: {\"sql\": \"<SQL>\"}."

// Execute implements Agent. Any non-SELECT SQL returned by the model
// is rejected without execution (spec.md's UnsafeSQL error kind).
func (a *DatabaseQueryAgent) Execute(ctx context.Context, sessionID string, payload Payload) Output {
	request := stringField(payload, "request", "query")
	if request == "" {
		return Output{"error": "DatabaseQuery requires request"}
	}
	schemaHint := stringField(payload, "schema_hint")

	system := nlToSQLSystemPrompt
	if schemaHint != "" {
		system += "\nSchema hint: " + schemaHint
	}

	var parsed struct {
		SQL string `json:"sql"`
	}
	if _, err := a.model.JSONCompletion(ctx, system, "NL: "+request, &parsed); err != nil {
		return Output{"error": err.Error()}
	}
	sql := strings.TrimSpace(parsed.SQL)
	if !isSelectOnly(sql) {
		return Output{"sql": sql, "error": "generated SQL is not a read-only select"}
	}
	if a.db == nil {
		return Output{"sql": sql, "error": "no database configured"}
	}

	headers, rows, err := a.db.Query(ctx, sql)
	if err != nil {
		return Output{"sql": sql, "error": err.Error()}
	}
	return Output{"sql": sql, "headers": headers, "rows": rows}
}

// isSelectOnly enforces spec.md P4: the trimmed lowercase prefix of
// sql must be "select".
func isSelectOnly(sql string) bool {
	if sql == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(sql)), "select")
}
