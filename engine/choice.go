package engine

import (
	"encoding/json"
	"strconv"

	"github.com/expr-lang/expr"

	"github.com/convoflow/convoflow/forge"
)

// labeledOption is the structured shape a dynamic list element may carry.
// An element that parses as JSON with both fields non-empty renders as a
// labeled option instead of a plain display string.
type labeledOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InjectVariableValuesInChoiceBlock produces a render-ready choice block
// from a raw definition plus current session state. With a dynamic data
// source declared, the source variable's value is coerced to a list (a
// persisting store write) and each non-nil element becomes one item, in
// order. Without one, statically declared items are filtered by their
// display conditions and deep-resolved.
//
// The returned block carries no unresolved reference syntax. The input
// block is not mutated; only the variable table may be (list coercion).
func InjectVariableValuesInChoiceBlock(state *SessionState, block Block) Block {
	variables := state.CurrentVariables()

	options, err := forge.DecodeOptions[ChoiceOptions](block.Options)
	if err != nil || options.DynamicVariableID == "" {
		return deepParseBlock(variables, filterChoiceItems(variables, block))
	}

	value, ok := ReadOrMaterialize(variables, options.DynamicVariableID)
	if !ok {
		// Unknown variable or absent value: no items synthesized.
		return deepParseBlock(variables, block)
	}

	resolved := deepParseBlock(variables, block)
	// Nil holes are dropped before indexing, so item ids are contiguous
	// positions in the rendered list.
	resolved.Items = make([]Item, 0, len(value))
	for _, element := range value {
		if element == nil {
			continue
		}
		item := Item{
			ID:      strconv.Itoa(len(resolved.Items)),
			BlockID: block.ID,
		}
		content := Stringify(element)
		if option, ok := parseLabeledOption(content); ok {
			item.Content = option.Name
			item.ContentID = option.ID
		} else {
			item.Content = content
		}
		resolved.Items = append(resolved.Items, item)
	}
	return resolved
}

// parseLabeledOption classifies one dynamic element. Malformed JSON or
// missing fields are a classification signal, not an error: the element
// falls back to plain-string treatment.
func parseLabeledOption(content string) (labeledOption, bool) {
	var option labeledOption
	if err := json.Unmarshal([]byte(content), &option); err != nil {
		return labeledOption{}, false
	}
	if option.Name == "" || option.ID == "" {
		return labeledOption{}, false
	}
	return option, true
}

// filterChoiceItems drops statically declared items whose display condition
// evaluates false. A condition that fails to evaluate keeps its item.
func filterChoiceItems(variables Variables, block Block) Block {
	if len(block.Items) == 0 {
		return block
	}
	env := variables.Env()
	kept := make([]Item, 0, len(block.Items))
	for _, item := range block.Items {
		if item.DisplayCondition == "" || evaluateCondition(variables, env, item.DisplayCondition) {
			kept = append(kept, item)
		}
	}
	filtered := block
	filtered.Items = kept
	return filtered
}

func evaluateCondition(variables Variables, env map[string]any, condition string) bool {
	program, err := expr.Compile(
		Parse(variables, condition),
		expr.Env(env),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return true
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return true
	}
	if b, ok := result.(bool); ok {
		return b
	}
	return result != nil
}

// deepParseBlock resolves every string field of a block against the
// variable table: content, options and item contents.
func deepParseBlock(variables Variables, block Block) Block {
	resolved := block
	if block.Content != nil {
		resolved.Content = DeepParse(variables, block.Content).(map[string]any)
	}
	if block.Options != nil {
		resolved.Options = DeepParse(variables, block.Options).(map[string]any)
	}
	if len(block.Items) > 0 {
		items := make([]Item, len(block.Items))
		copy(items, block.Items)
		for i := range items {
			items[i].Content = Parse(variables, items[i].Content)
		}
		resolved.Items = items
	}
	return resolved
}
