package ingestion

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// stagedPath is where an accepted upload waits for its worker.
func (s *Service) stagedPath(jobID uuid.UUID) string {
	return filepath.Join(s.stagingDir, jobID.String()+".csv")
}

func (s *Service) stage(jobID uuid.UUID, payload []byte) error {
	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	path := s.stagedPath(jobID)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("stage upload: %w", err)
	}
	return nil
}

func (s *Service) readStaged(jobID uuid.UUID) ([]byte, error) {
	payload, err := os.ReadFile(s.stagedPath(jobID))
	if err != nil {
		return nil, fmt.Errorf("read staged upload: %w", err)
	}
	return payload, nil
}

// discardStaged removes the staged file once a job completes. Failed jobs keep
// theirs for inspection.
func (s *Service) discardStaged(jobID uuid.UUID) {
	if err := os.Remove(s.stagedPath(jobID)); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).WithField("job_id", jobID).Warn("failed to remove staged upload")
	}
}
