package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/convoflow/convoflow/forge"
)

// CredentialsResolver fetches and decrypts one stored credentials entry.
type CredentialsResolver interface {
	Resolve(ctx context.Context, credentialsID string) (forge.Credentials, error)
}

// variableStore adapts a flow's variable table to the forge contract.
type variableStore struct {
	variables Variables
}

func (s variableStore) Get(id string) any {
	value, _ := s.variables.Get(id)
	return value
}

func (s variableStore) Parse(text string) string {
	return Parse(s.variables, text)
}

func (s variableStore) Set(id string, value any) {
	s.variables.Set(id, value)
}

// NewVariableStore returns the full read/write view handed to server runs.
func NewVariableStore(variables Variables) forge.Variables {
	return variableStore{variables: variables}
}

// NewReadOnlyVariableStore returns the get+parse view handed to stream runs.
func NewReadOnlyVariableStore(variables Variables) forge.ReadOnlyVariables {
	return variableStore{variables: variables}
}

// Bridge is the contract boundary to forge actions: it locates the action
// for a block, resolves options and credentials, invokes the run and feeds
// results back into the variable table through the action's response
// mapping. Action-level failures are contained here; only structural
// client-state problems propagate.
type Bridge struct {
	registry    *forge.Registry
	credentials CredentialsResolver
	logger      *slog.Logger
}

func NewBridge(registry *forge.Registry, credentials CredentialsResolver, logger *slog.Logger) *Bridge {
	return &Bridge{
		registry:    registry,
		credentials: credentials,
		logger:      logger,
	}
}

// RunAction executes a forged block's server run against the session's head
// flow. Upstream and credential failures are logged and set no variables;
// the session-advance loop keeps going. A returned error is always a
// *ClientError (unknown action, missing capability).
func (b *Bridge) RunAction(ctx context.Context, state *SessionState, block *Block) ([]forge.Log, error) {
	options, err := forge.DecodeOptions[ForgedOptions](block.Options)
	if err != nil || options.Action == "" {
		return nil, NewClientError("Current block does not declare an action")
	}

	action, ok := b.registry.Find(block.Type, options.Action)
	if !ok {
		return nil, NewClientError("Action not found for current block")
	}
	if action.Server == nil {
		return nil, NewClientError("This action does not have a server function")
	}

	variables := state.CurrentVariables()
	logs := &forge.Logs{}

	var credentials forge.Credentials
	if options.CredentialsID != "" {
		credentials, err = b.credentials.Resolve(ctx, options.CredentialsID)
		if err != nil {
			b.logger.ErrorContext(ctx, "Could not decrypt credentials",
				"block", block.ID,
				"error", err)
			logs.Error("Could not decrypt credentials", err.Error())
			return logs.Entries(), nil
		}
	}

	run := forge.ServerRun{
		Ctx:         ctx,
		Credentials: credentials,
		Options:     DeepParse(variables, block.Options).(map[string]any),
		Variables:   NewVariableStore(variables),
		Logs:        logs,
	}
	if err := action.Server(run); err != nil {
		b.logger.ErrorContext(ctx, "Action run failed",
			"block", block.ID,
			"action", action.Name,
			"error", err)
		logs.Error(action.Name+" failed", err.Error())
	}
	return logs.Entries(), nil
}

// StreamAction locates the stream run for the session's current block and
// opens it. Every structural miss (no current block, no options, action
// without stream capability, missing credentials) is a *ClientError with a
// distinguishing message; the upstream call itself may return a
// *forge.ProviderError. Variable state is never mutated: a partial stream
// must not feed response mappings.
func (b *Bridge) StreamAction(ctx context.Context, state *SessionState) (io.ReadCloser, error) {
	flow := state.CurrentFlow()
	if flow == nil || state.CurrentBlockID == "" {
		return nil, NewClientError("No state found")
	}

	_, block, err := flow.FindBlock(state.CurrentBlockID)
	if err != nil {
		return nil, NewClientError("Current block not found")
	}
	if block.Options == nil {
		return nil, NewClientError("Current block does not have options")
	}

	options, err := forge.DecodeOptions[ForgedOptions](block.Options)
	if err != nil {
		return nil, NewClientError("Current block does not have options")
	}

	action, ok := b.registry.Find(block.Type, options.Action)
	if !ok || action.Stream == nil {
		return nil, NewClientError("This action does not have a stream function")
	}

	var credentials forge.Credentials
	if options.CredentialsID != "" {
		credentials, err = b.credentials.Resolve(ctx, options.CredentialsID)
		if err != nil {
			return nil, NewClientError("Could not find credentials")
		}
	}

	variables := state.CurrentVariables()
	stream, err := action.Stream(forge.StreamRun{
		Ctx:         ctx,
		Credentials: credentials,
		Options:     DeepParse(variables, block.Options).(map[string]any),
		Variables:   NewReadOnlyVariableStore(variables),
	})
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, NewClientError("Could not create stream")
	}
	return stream, nil
}
