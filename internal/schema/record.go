package schema

// Record is one typed row ready for storage. Values is keyed by canonical
// field name and holds int64, float64, time.Time, bool, string or nil.
type Record struct {
	Kind   Kind           `json:"kind"`
	Values map[string]any `json:"values"`
}

// Get returns the value stored for field.
func (r Record) Get(field string) any {
	if r.Values == nil {
		return nil
	}
	return r.Values[field]
}

// Row lays the record out in the order of fields.
func (r Record) Row(fields []Field) []any {
	row := make([]any, len(fields))
	for i, field := range fields {
		row[i] = r.Get(field.Name)
	}
	return row
}
