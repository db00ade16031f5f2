package domain

import "encoding/json"

// SeverityError is the only severity row validation produces today.
const SeverityError = "error"

// ValidationError describes one problem found in one cell of an uploaded row.
type ValidationError struct {
	// Row is 1-based and excludes the header row.
	Row int `json:"row"`
	// Column is the header exactly as it appeared in the file.
	Column   string `json:"column"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
	Value    string `json:"value"`
	Severity string `json:"severity"`
}

// ValidationErrorsToJSON marshals errors into the JSONB layout stored on import jobs.
func ValidationErrorsToJSON(errs []ValidationError) (json.RawMessage, error) {
	if errs == nil {
		errs = []ValidationError{}
	}
	return json.Marshal(errs)
}

// ValidationErrorsFromJSON unmarshals a persisted error list.
func ValidationErrorsFromJSON(data []byte) ([]ValidationError, error) {
	if len(data) == 0 {
		return []ValidationError{}, nil
	}
	var errs []ValidationError
	if err := json.Unmarshal(data, &errs); err != nil {
		return nil, err
	}
	if errs == nil {
		errs = []ValidationError{}
	}
	return errs, nil
}
