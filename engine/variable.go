package engine

// Variable is one named storage slot in a flow's variable table. Value is
// nil (absent), a scalar, or an ordered list of scalars. Absence is distinct
// from an empty string or an empty list.
type Variable struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

// Variables is the ordered variable table of one flow. Entries are created
// when the flow is loaded and never removed during a session; only values
// are replaced. Resolution is always by id; names are not guaranteed unique.
type Variables []Variable

// FindByID returns the variable with the given id, or nil if unknown.
func (vs Variables) FindByID(id string) *Variable {
	for i := range vs {
		if vs[i].ID == id {
			return &vs[i]
		}
	}
	return nil
}

// FindByName returns the first variable with the given name, or nil.
func (vs Variables) FindByName(name string) *Variable {
	for i := range vs {
		if vs[i].Name == name {
			return &vs[i]
		}
	}
	return nil
}

// Get returns the current value of the variable with the given id.
// The second result reports whether the variable exists at all.
func (vs Variables) Get(id string) (any, bool) {
	v := vs.FindByID(id)
	if v == nil {
		return nil, false
	}
	return v.Value, true
}

// Set replaces the value of an existing variable. Setting an unknown id is
// a silent no-op; the rest of the engine is tolerant in the same way.
func (vs Variables) Set(id string, value any) {
	if v := vs.FindByID(id); v != nil {
		v.Value = value
	}
}

// Env builds an expression environment keyed by variable name, for
// display conditions and set-variable expressions.
func (vs Variables) Env() map[string]any {
	env := make(map[string]any, len(vs))
	for i := range vs {
		env[vs[i].Name] = vs[i].Value
	}
	return env
}
