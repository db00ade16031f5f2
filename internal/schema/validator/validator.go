package validator

import (
	"fmt"
	"strings"

	"github.com/AlexTsimba/traffboard-sub001/internal/domain"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema"
)

const (
	msgInvalidDate    = "Invalid date format"
	msgInvalidInteger = "Invalid integer format"
	msgInvalidDecimal = "Invalid number format"
	msgOutOfRange     = "Number out of range"
)

// RowValidator checks uploaded rows against the field rules of a record shape.
// It never mutates its input and reports bad data as ValidationErrors.
type RowValidator struct {
	registry *schema.Registry
	mapper   *schema.Mapper
}

// NewRowValidator builds a validator over registry.
func NewRowValidator(registry *schema.Registry) *RowValidator {
	if registry == nil {
		registry = schema.Default()
	}
	return &RowValidator{registry: registry, mapper: schema.NewMapper(registry)}
}

// Validate returns every problem found in row. Only the columns present in
// headers are checked; unknown columns are ignored.
func (v *RowValidator) Validate(row, headers []string, kind schema.Kind, rowNumber int) []domain.ValidationError {
	def, ok := v.registry.Definition(kind)
	if !ok {
		return []domain.ValidationError{{
			Row:      rowNumber,
			Message:  fmt.Sprintf("Unknown record type %q", kind),
			Severity: domain.SeverityError,
		}}
	}

	var errs []domain.ValidationError
	for idx, header := range headers {
		name, known := v.mapper.Lookup(header, kind)
		if !known {
			continue
		}
		field, _ := def.Field(name)

		raw := ""
		if idx < len(row) {
			raw = row[idx]
		}
		value := strings.TrimSpace(raw)

		if value == "" {
			if field.Required && !field.Nullable {
				errs = append(errs, newError(rowNumber, header, field, raw,
					fmt.Sprintf("Required field %q is empty", header)))
			}
			continue
		}

		if msg, bad := checkFormat(field, value); bad {
			errs = append(errs, newError(rowNumber, header, field, raw, msg))
		}
	}
	return errs
}

func checkFormat(field schema.Field, value string) (string, bool) {
	switch field.Type {
	case schema.FieldTypeDate:
		if _, err := schema.ParseDate(value); err != nil {
			return msgInvalidDate, true
		}
	case schema.FieldTypeInteger:
		if _, err := schema.ParseInteger(value); err != nil {
			return msgInvalidInteger, true
		}
	case schema.FieldTypeDecimal:
		v, err := schema.ParseDecimal(value)
		if err != nil {
			return msgInvalidDecimal, true
		}
		if !field.InRange(v) {
			return msgOutOfRange, true
		}
	}
	return "", false
}

func newError(rowNumber int, header string, field schema.Field, raw, message string) domain.ValidationError {
	return domain.ValidationError{
		Row:      rowNumber,
		Column:   header,
		Field:    field.Name,
		Message:  message,
		Value:    raw,
		Severity: domain.SeverityError,
	}
}
