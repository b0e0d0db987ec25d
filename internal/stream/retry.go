package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	defaultMaxDelay   = 10 * time.Second
)

// RetryHandler retries a failed message with exponential backoff and moves it
// to the dead letter stream once retries are exhausted.
type RetryHandler struct {
	client        *redis.Client
	deadLetterKey string
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
}

func NewRetryHandler(client *redis.Client, deadLetterKey string) *RetryHandler {
	return &RetryHandler{
		client:        client,
		deadLetterKey: deadLetterKey,
		maxRetries:    defaultMaxRetries,
		baseDelay:     defaultBaseDelay,
		maxDelay:      defaultMaxDelay,
	}
}

// backoff returns the delay before the given retry (1-based)
func (h *RetryHandler) backoff(attempt int) time.Duration {
	delay := h.baseDelay << (attempt - 1)
	if delay <= 0 || delay > h.maxDelay {
		return h.maxDelay
	}
	return delay
}

// RetryWithBackoff runs fn up to maxRetries+1 times. A missing notebook is not
// retried. The last error is returned after the message is dead-lettered.
func (h *RetryHandler) RetryWithBackoff(ctx context.Context, fn func() error, messageID string, fields map[string]interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			delay := h.backoff(attempt)
			log.Debug().
				Str("message_id", messageID).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying message")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, plagiarism.ErrNotFound) || errors.Is(lastErr, context.Canceled) {
			break
		}

		log.Warn().
			Err(lastErr).
			Str("message_id", messageID).
			Int("attempt", attempt+1).
			Msg("Message processing failed")
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := h.sendToDeadLetter(ctx, messageID, fields, lastErr); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("Failed to send message to dead letter stream")
	}

	return lastErr
}

func (h *RetryHandler) sendToDeadLetter(ctx context.Context, messageID string, fields map[string]interface{}, cause error) error {
	values := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		values[k] = v
	}
	values["original_id"] = messageID
	values["error"] = cause.Error()
	values["failed_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := h.client.XAdd(ctx, &redis.XAddArgs{
		Stream: h.deadLetterKey,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter stream: %w", err)
	}

	log.Warn().
		Str("message_id", messageID).
		Str("dead_letter_key", h.deadLetterKey).
		Msg("Message moved to dead letter stream")

	return nil
}
