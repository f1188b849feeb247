package subagents

import (
	"time"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/genmodel"
	"github.com/gomind-labs/taskrunner/ragcollab"
)

// Bounded wall-time defaults (spec.md §4.1): 30s for network-bound
// agents, 5s for the shell tool.
const (
	NetworkTimeout = 30 * time.Second
	ShellTimeout   = 5 * time.Second
)

// Dependencies bundles the collaborators the default registry wires
// in. DB may be nil; DatabaseQuery still validates and rejects unsafe
// SQL without it, it just can't execute a validated SELECT.
type Dependencies struct {
	RAG    ragcollab.Collaborator
	Model  *genmodel.Client
	DB     SQLDatabase
	Logger core.Logger
}

// NewDefaultRegistry builds the fixed five-agent registry (spec.md
// §4.1). Every agent is wrapped with a per-call timeout and Safe so a
// panic or a stuck external call can never escape (P2).
func NewDefaultRegistry(deps Dependencies) Registry {
	return Registry{
		RetrievalQA:     Safe(WithTimeout(NewRetrievalQAAgent(deps.RAG, deps.Logger), NetworkTimeout)),
		DatabaseQuery:   Safe(WithTimeout(NewDatabaseQueryAgent(deps.Model, deps.DB, deps.Logger), NetworkTimeout)),
		WebSearch:       Safe(WithTimeout(NewWebSearchAgent(deps.Logger), NetworkTimeout)),
		ShellTool:       Safe(WithTimeout(NewShellToolAgent(deps.Logger), ShellTimeout)),
		ReportSynthesis: Safe(WithTimeout(NewReportSynthesisAgent(deps.Model, deps.Logger), NetworkTimeout)),
	}
}
