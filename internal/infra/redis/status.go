package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "cellguard:status:"
	statusTTL       = 24 * time.Hour
)

// StatusStore keeps the latest check step per version in Redis.
type StatusStore struct {
	client *redis.Client
}

func NewStatusStore(client *redis.Client) *StatusStore {
	return &StatusStore{client: client}
}

func (s *StatusStore) Report(ctx context.Context, documentVersionID string, step models.Step) error {
	if err := plagiarism.ValidateStep(step); err != nil {
		return err
	}
	if err := s.client.Set(ctx, statusKeyPrefix+documentVersionID, string(step), statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return nil
}

func (s *StatusStore) Get(ctx context.Context, documentVersionID string) (models.Step, error) {
	step, err := s.client.Get(ctx, statusKeyPrefix+documentVersionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", plagiarism.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	return models.Step(step), nil
}
