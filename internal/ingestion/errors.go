package ingestion

import (
	"errors"
	"strings"

	"github.com/AlexTsimba/traffboard-sub001/internal/schema"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not a CSV file.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrFileTooLarge is returned when an upload exceeds the configured size cap.
	ErrFileTooLarge = errors.New("file exceeds the upload size limit")
	// ErrEmptyFile is returned for uploads without a header row.
	ErrEmptyFile = errors.New("file is empty")
	// ErrMalformedFile is returned when the body cannot be read as CSV.
	ErrMalformedFile = errors.New("file is not valid csv")
	// ErrUserRequired is returned when an upload carries no owner.
	ErrUserRequired = errors.New("user id is required")
	// ErrJobNotFound is returned when a job id does not resolve.
	ErrJobNotFound = errors.New("import job not found")
	// ErrJobNotRunnable is returned when a job was already claimed or finished.
	ErrJobNotRunnable = errors.New("import job is no longer runnable")
)

// DetectionError reports that the uploaded headers did not identify a record type.
// No job is created when it is returned.
type DetectionError struct {
	Result schema.DetectionResult
}

func (e *DetectionError) Error() string {
	if len(e.Result.Diagnostics) == 0 {
		return "could not detect file type"
	}
	return "could not detect file type: " + strings.Join(e.Result.Diagnostics, "; ")
}
