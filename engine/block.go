package engine

// Built-in block types form a closed set the engine dispatches over.
// Any other type discriminant is looked up in the forge action registry.
const (
	BlockTypeText        = "text"
	BlockTypeChoiceInput = "choice input"
	BlockTypeSetVariable = "set variable"
)

// Block is one node of a flow graph. Options is the type-specific payload;
// its string leaves may contain variable references at any nesting depth.
type Block struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Content        map[string]any `json:"content,omitempty"`
	Items          []Item         `json:"items,omitempty"`
	Options        map[string]any `json:"options,omitempty"`
	OutgoingEdgeID string         `json:"outgoingEdgeId,omitempty"`
}

// Item is one selectable choice of an input block. For dynamic items the id
// is the positional index as a string and ContentID carries the structured
// element's id when the element classified as a labeled option.
type Item struct {
	ID               string `json:"id"`
	BlockID          string `json:"blockId,omitempty"`
	Content          string `json:"content,omitempty"`
	ContentID        string `json:"contentId,omitempty"`
	DisplayCondition string `json:"displayCondition,omitempty"`
	OutgoingEdgeID   string `json:"outgoingEdgeId,omitempty"`
}

// Group is an ordered run of blocks; execution enters at the first block.
type Group struct {
	ID     string  `json:"id"`
	Title  string  `json:"title,omitempty"`
	Blocks []Block `json:"blocks"`
}

// Edge connects a block (or one of its items) to a target group or block.
type Edge struct {
	ID   string     `json:"id"`
	From EdgeSource `json:"from"`
	To   EdgeTarget `json:"to"`
}

type EdgeSource struct {
	BlockID string `json:"blockId"`
	ItemID  string `json:"itemId,omitempty"`
}

type EdgeTarget struct {
	GroupID string `json:"groupId"`
	BlockID string `json:"blockId,omitempty"`
}

// ChoiceOptions is the typed view of a choice input block's options.
type ChoiceOptions struct {
	DynamicVariableID string `json:"dynamicVariableId"`
	VariableID        string `json:"variableId"`
	IsMultipleChoice  bool   `json:"isMultipleChoice"`
}

// SetVariableOptions is the typed view of a set-variable block's options.
// The expression is evaluated against the variable table before the write.
type SetVariableOptions struct {
	VariableID           string `json:"variableId"`
	ExpressionToEvaluate string `json:"expressionToEvaluate"`
}

// ForgedOptions is the subset of a forged block's options the engine itself
// inspects; the rest is decoded by the action.
type ForgedOptions struct {
	Action        string `json:"action"`
	CredentialsID string `json:"credentialsId"`
}
