package scene

type OperatorInfo struct {
	Label string `json:"label" yaml:"label"`
	Key   string `json:"operatorKey" yaml:"operatorKey"`
}

// FieldInfo describes one scene filter for UI builders.
type FieldInfo struct {
	Label     string         `json:"label" yaml:"label"`
	Type      string         `json:"type" yaml:"type"`
	Operators []OperatorInfo `json:"operators" yaml:"operators"`
}

// Describe maps every registered key to its label, type and operators.
func (r *Registry[T]) Describe() map[string]FieldInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]FieldInfo, len(r.fields))
	for key, f := range r.fields {
		info := FieldInfo{Label: f.Label, Type: f.Kind.String(), Operators: []OperatorInfo{}}
		if info.Label == "" {
			info.Label = key
		}
		if reg, ok := r.operators.ForKind(f.Kind); ok {
			for _, op := range reg.Operators() {
				info.Operators = append(info.Operators, OperatorInfo{Label: op.Label, Key: op.Key})
			}
		}
		out[key] = info
	}
	return out
}
