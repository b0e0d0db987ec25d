package plagiarism

import (
	"context"
	"fmt"
	"sync"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/rs/zerolog/log"
)

var validSteps = map[models.Step]bool{
	models.StepInitiated: true,
	models.StepCaching:   true,
	models.StepComparing: true,
	models.StepCompleted: true,
	models.StepFailed:    true,
}

// ValidateStep rejects steps outside the check lifecycle.
func ValidateStep(step models.Step) error {
	if !validSteps[step] {
		return fmt.Errorf("unknown step: %s", step)
	}
	return nil
}

// reportStep publishes progress; failures are logged and never fail the check.
func (s *Service) reportStep(ctx context.Context, documentVersionID string, step models.Step) {
	if err := s.status.Report(ctx, documentVersionID, step); err != nil {
		log.Warn().
			Err(err).
			Str("documentVersionId", documentVersionID).
			Str("step", string(step)).
			Msg("Failed to update check status")
		return
	}

	log.Trace().
		Str("documentVersionId", documentVersionID).
		Str("step", string(step)).
		Msg("Status updated")
}

// LocalStatus keeps check steps in process memory when Redis is not configured.
type LocalStatus struct {
	mu    sync.RWMutex
	steps map[string]models.Step
}

func NewLocalStatus() *LocalStatus {
	return &LocalStatus{steps: make(map[string]models.Step)}
}

func (s *LocalStatus) Report(_ context.Context, documentVersionID string, step models.Step) error {
	if err := ValidateStep(step); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[documentVersionID] = step
	return nil
}

func (s *LocalStatus) Get(_ context.Context, documentVersionID string) (models.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.steps[documentVersionID]
	if !ok {
		return "", ErrNotFound
	}
	return step, nil
}
