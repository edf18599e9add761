package engine

// ReadOrMaterialize returns the value of the variable with the given id in
// list shape. A value that is already a list is returned as-is with no
// store write. A scalar is wrapped into a single-element list and that list
// shape is persisted back under the same id, so repeated reads within the
// session (and the session's persisted state) see the coerced shape.
//
// The materialization step is an explicit store write, not a hidden getter
// side effect: callers own the mutation timing.
//
// The second result reports whether the variable exists and has a value;
// absence yields (nil, false) with no mutation.
func ReadOrMaterialize(variables Variables, id string) ([]any, bool) {
	v := variables.FindByID(id)
	if v == nil || v.Value == nil {
		return nil, false
	}

	switch value := v.Value.(type) {
	case []any:
		return value, true
	case []string:
		list := make([]any, len(value))
		for i, s := range value {
			list[i] = s
		}
		variables.Set(id, list)
		return list, true
	default:
		list := []any{value}
		variables.Set(id, list)
		return list, true
	}
}
