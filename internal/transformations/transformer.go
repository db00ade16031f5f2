package transformations

import (
	"strings"

	"github.com/AlexTsimba/traffboard-sub001/internal/schema"
)

// Transformer coerces raw rows into typed records using each field's declared
// type and absence policy. It degrades to defaults instead of failing.
type Transformer struct {
	registry *schema.Registry
	mapper   *schema.Mapper
}

// NewTransformer builds a transformer over registry.
func NewTransformer(registry *schema.Registry) *Transformer {
	if registry == nil {
		registry = schema.Default()
	}
	return &Transformer{registry: registry, mapper: schema.NewMapper(registry)}
}

// Transform returns a record with every stored field of kind populated.
func (t *Transformer) Transform(row, headers []string, kind schema.Kind) schema.Record {
	record := schema.Record{Kind: kind, Values: map[string]any{}}
	def, ok := t.registry.Definition(kind)
	if !ok {
		return record
	}

	for _, field := range def.StoredFields() {
		record.Values[field.Name] = defaultValue(field)
	}

	seen := make(map[string]struct{}, len(headers))
	for idx, header := range headers {
		name, known := t.mapper.Lookup(header, kind)
		if !known {
			continue
		}
		field, _ := def.Field(name)
		if !field.Stored() {
			continue
		}
		// First occurrence wins when a file repeats a column.
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		raw := ""
		if idx < len(row) {
			raw = row[idx]
		}
		record.Values[name] = coerce(field, raw)
	}
	return record
}

func coerce(field schema.Field, raw string) any {
	value := strings.TrimSpace(raw)
	switch field.Type {
	case schema.FieldTypeInteger:
		if v, err := schema.ParseInteger(value); err == nil {
			return v
		}
	case schema.FieldTypeDecimal:
		if v, err := schema.ParseDecimal(value); err == nil {
			return v
		}
	case schema.FieldTypeDate:
		if v, err := schema.ParseDate(value); err == nil {
			return v
		}
	case schema.FieldTypeBoolean:
		return schema.ParseFlag(value)
	default:
		return value
	}
	return defaultValue(field)
}

func defaultValue(field schema.Field) any {
	switch field.Type {
	case schema.FieldTypeInteger:
		if field.OnAbsent == schema.AbsentNull {
			return nil
		}
		return int64(0)
	case schema.FieldTypeDecimal:
		if field.OnAbsent == schema.AbsentNull {
			return nil
		}
		return float64(0)
	case schema.FieldTypeDate:
		return nil
	case schema.FieldTypeBoolean:
		return false
	default:
		return ""
	}
}
