package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"

	"github.com/convoflow/convoflow/forge"
)

// ChatMessage is one rendered bubble handed to the client.
type ChatMessage struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Content map[string]any `json:"content,omitempty"`
}

// ContinueResult is the outcome of one session-advance request: the bubbles
// produced on the way, the resolved input block the conversation suspended
// on (nil when the flow ended) and the action logs collected.
type ContinueResult struct {
	Messages []ChatMessage `json:"messages"`
	Input    *Block        `json:"input,omitempty"`
	Logs     []forge.Log   `json:"logs,omitempty"`
}

// Ended reports whether the flow ran to completion.
func (r *ContinueResult) Ended() bool {
	return r.Input == nil
}

// Executor advances a session's state machine block-by-block. One request
// owns one session; there is no internal parallelism, and CurrentBlockID
// only moves after the in-flight block has fully resolved (success or
// logged failure).
type Executor struct {
	bridge *Bridge
	logger *slog.Logger
}

func NewExecutor(bridge *Bridge, logger *slog.Logger) *Executor {
	return &Executor{bridge: bridge, logger: logger}
}

// Start begins execution at the flow's entry block.
func (e *Executor) Start(ctx context.Context, state *SessionState) (*ContinueResult, error) {
	flow := state.CurrentFlow()
	if flow == nil {
		return nil, NewClientError("Session has no flow to execute")
	}
	block, ok := flow.FirstBlock()
	if !ok {
		return nil, NewClientError("Flow has no blocks")
	}
	return e.walk(ctx, state, block)
}

// Continue resumes a session suspended on an input block with the end
// user's reply, then walks forward until the next input or the end.
func (e *Executor) Continue(ctx context.Context, state *SessionState, reply string) (*ContinueResult, error) {
	flow := state.CurrentFlow()
	if flow == nil || state.CurrentBlockID == "" {
		return nil, NewClientError("No state found")
	}
	_, block, err := flow.FindBlock(state.CurrentBlockID)
	if err != nil {
		return nil, NewClientError("Current block not found")
	}
	if block.Type != BlockTypeChoiceInput {
		return nil, NewClientError("Current block is not an input block")
	}

	var next *Block
	var ok bool
	if itemEdgeID := e.saveChoiceReply(state, block, reply); itemEdgeID != "" {
		next, ok = flow.NextBlock(itemEdgeID)
	} else {
		next, ok = flow.Successor(block)
	}
	if !ok {
		state.CurrentBlockID = ""
		return &ContinueResult{Messages: []ChatMessage{}}, nil
	}
	return e.walk(ctx, state, next)
}

// walk executes blocks until an input block suspends the session or the
// flow runs out of edges.
func (e *Executor) walk(ctx context.Context, state *SessionState, block *Block) (*ContinueResult, error) {
	flow := state.CurrentFlow()
	result := &ContinueResult{Messages: []ChatMessage{}}

	for block != nil {
		switch block.Type {
		case BlockTypeText:
			content, _ := DeepParse(state.CurrentVariables(), block.Content).(map[string]any)
			result.Messages = append(result.Messages, ChatMessage{
				ID:      uuid.New().String(),
				Type:    BlockTypeText,
				Content: content,
			})

		case BlockTypeChoiceInput:
			resolved := InjectVariableValuesInChoiceBlock(state, *block)
			state.CurrentBlockID = block.ID
			result.Input = &resolved
			return result, nil

		case BlockTypeSetVariable:
			e.executeSetVariable(ctx, state.CurrentVariables(), block)

		default:
			logs, err := e.bridge.RunAction(ctx, state, block)
			if err != nil {
				return nil, err
			}
			result.Logs = append(result.Logs, logs...)
		}

		// The block has fully resolved; only now does the pointer move.
		state.CurrentBlockID = block.ID
		next, ok := flow.Successor(block)
		if !ok {
			state.CurrentBlockID = ""
			return result, nil
		}
		block = next
	}
	return result, nil
}

// saveChoiceReply writes the reply into the block's target variable and
// returns the outgoing edge of the matched item, if any. The reply is
// matched against the rendered items the user was shown: resolved content,
// filtered by display conditions. Rendering happens before the reply
// variable is written so it reproduces the suspended block exactly.
func (e *Executor) saveChoiceReply(state *SessionState, block *Block, reply string) string {
	rendered := InjectVariableValuesInChoiceBlock(state, *block)

	options, err := forge.DecodeOptions[ChoiceOptions](block.Options)
	if err == nil && options.VariableID != "" && reply != "" {
		state.CurrentVariables().Set(options.VariableID, reply)
	}
	for _, item := range rendered.Items {
		if item.Content == reply && item.OutgoingEdgeID != "" {
			return item.OutgoingEdgeID
		}
	}
	return ""
}

// executeSetVariable evaluates the block's expression against the variable
// table and writes the result. Evaluation failures degrade to storing the
// reference-resolved expression text; they never abort the walk.
func (e *Executor) executeSetVariable(ctx context.Context, variables Variables, block *Block) {
	options, err := forge.DecodeOptions[SetVariableOptions](block.Options)
	if err != nil || options.VariableID == "" {
		return
	}
	parsed := Parse(variables, options.ExpressionToEvaluate)
	env := variables.Env()
	program, err := expr.Compile(parsed, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		e.logger.DebugContext(ctx, "Set-variable expression did not compile, storing literal",
			"block", block.ID,
			"expression", parsed,
			"error", err)
		variables.Set(options.VariableID, parsed)
		return
	}
	value, err := expr.Run(program, env)
	if err != nil {
		variables.Set(options.VariableID, parsed)
		return
	}
	variables.Set(options.VariableID, normalizeValue(value))
}

// normalizeValue keeps stored values JSON-shaped so a persisted session
// round-trips without type drift.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case nil, string, bool, float64, []any, map[string]any:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case []string:
		list := make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
		return list
	default:
		return fmt.Sprintf("%v", v)
	}
}
