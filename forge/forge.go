package forge

import (
	"context"
	"io"
)

// Credentials is a decrypted secret map for one saved credentials entry,
// e.g. {"apiKey": "..."}.
type Credentials map[string]string

// Variables is the variable access surface handed to server-side action runs.
// Set on an unknown variable id is a silent no-op.
type Variables interface {
	Get(id string) any
	Parse(text string) string
	Set(id string, value any)
}

// ReadOnlyVariables is the restricted view handed to streaming runs.
// Streaming output is forwarded verbatim to the caller, so a stream run
// never writes variables.
type ReadOnlyVariables interface {
	Get(id string) any
	Parse(text string) string
}

// ResponseMapping binds one named output item of an action to a target
// variable. Entries without a variable id are skipped, not errors.
type ResponseMapping struct {
	Item       string `json:"item"`
	VariableID string `json:"variableId"`
}

// ServerRun carries everything a one-shot action run needs.
type ServerRun struct {
	Ctx         context.Context
	Credentials Credentials
	Options     map[string]any
	Variables   Variables
	Logs        *Logs
}

// StreamRun carries everything a streaming action run needs.
type StreamRun struct {
	Ctx         context.Context
	Credentials Credentials
	Options     map[string]any
	Variables   ReadOnlyVariables
}

// Action is one operation a block exposes. Server and Stream are both
// optional, but a usable action declares at least one of them.
type Action struct {
	Name string

	// Server executes the one-shot call. Variable writes happen inside the
	// run through ServerRun.Variables, driven by the action's response
	// mapping. A returned error means no variables were set.
	Server func(run ServerRun) error

	// Stream opens a streaming call. The returned reader is forwarded to
	// the caller as-is and must be closed by the caller.
	Stream func(run StreamRun) (io.ReadCloser, error)

	// SetVariableIDs projects which variable ids the action may write for
	// the given raw options. Used for static analysis of flows.
	SetVariableIDs func(options map[string]any) []string
}

// Block groups the actions of one integration under its block type
// discriminant, e.g. "chatnode".
type Block struct {
	ID      string
	Actions []Action
}

// Registry is the immutable action table built once at process start and
// passed by reference into the engine. There is deliberately no mutable
// package-level registry, so tests can inject fake actions.
type Registry struct {
	blocks map[string]Block
}

func NewRegistry(blocks ...Block) *Registry {
	m := make(map[string]Block, len(blocks))
	for _, b := range blocks {
		m[b.ID] = b
	}
	return &Registry{blocks: m}
}

func (r *Registry) Block(id string) (Block, bool) {
	b, ok := r.blocks[id]
	return b, ok
}

// Find locates an action by block type and action name.
func (r *Registry) Find(blockType, actionName string) (Action, bool) {
	b, ok := r.blocks[blockType]
	if !ok {
		return Action{}, false
	}
	for _, a := range b.Actions {
		if a.Name == actionName {
			return a, true
		}
	}
	return Action{}, false
}

// MappedVariableIDs is the common SetVariableIDs implementation for actions
// whose writes are fully described by a "responseMapping" option.
func MappedVariableIDs(options map[string]any) []string {
	raw, ok := options["responseMapping"].([]any)
	if !ok {
		return nil
	}
	var ids []string
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := m["variableId"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
