package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RishiKendai/cellguard/internal/metrics"
	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	readBatchSize    = 10
	readBlock        = time.Second
	claimMinIdle     = time.Minute
	claimBatchSize   = 100
	defaultReclaim   = 30 * time.Second
	defaultTrimEvery = time.Hour
)

// VersionProcessor handles one upload event.
type VersionProcessor interface {
	ProcessVersion(ctx context.Context, event *models.VersionEvent) error
}

// ConsumerConfig names the stream and group a consumer joins.
type ConsumerConfig struct {
	StreamKey string
	Group     string
	Name      string
	Retention time.Duration
}

// Consumer reads upload events from a Redis stream consumer group and
// pre-warms the fragment cache for every uploaded version.
type Consumer struct {
	client         *redis.Client
	cfg            ConsumerConfig
	processor      VersionProcessor
	retryHandler   *RetryHandler
	reclaimEvery   time.Duration
	trimEvery      time.Duration
	reclaimCursor  string
	lastReclaimRun time.Time
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig, processor VersionProcessor, retryHandler *RetryHandler) *Consumer {
	return &Consumer{
		client:        client,
		cfg:           cfg,
		processor:     processor,
		retryHandler:  retryHandler,
		reclaimEvery:  defaultReclaim,
		trimEvery:     defaultTrimEvery,
		reclaimCursor: "0-0",
	}
}

// Start blocks until ctx is cancelled. Pending entries left by crashed
// consumers are reclaimed on startup and then periodically.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	if err := c.reclaimIdle(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to reclaim pending messages on startup")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.trimPeriodically(gctx)
		return nil
	})
	g.Go(func() error {
		return c.readLoop(gctx)
	})

	log.Info().
		Str("stream", c.cfg.StreamKey).
		Str("group", c.cfg.Group).
		Str("consumer", c.cfg.Name).
		Dur("retention", c.cfg.Retention).
		Msg("Stream consumer running")

	return g.Wait()
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	// MKSTREAM creates the stream on first start
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.StreamKey, c.cfg.Group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (c *Consumer) readLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if time.Since(c.lastReclaimRun) > c.reclaimEvery {
			if err := c.reclaimIdle(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to reclaim pending messages")
			}
		}

		if err := c.readBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Error reading stream")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) readBatch(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		Streams:  []string{c.cfg.StreamKey, ">"},
		Count:    readBatchSize,
		Block:    readBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, s := range streams {
		if s.Stream != c.cfg.StreamKey {
			continue
		}
		for i := range s.Messages {
			c.handle(ctx, &s.Messages[i])
		}
	}
	return nil
}

// reclaimIdle takes over entries another consumer read but never acknowledged
func (c *Consumer) reclaimIdle(ctx context.Context) error {
	c.lastReclaimRun = time.Now()

	messages, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.StreamKey,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		MinIdle:  claimMinIdle,
		Start:    c.reclaimCursor,
		Count:    claimBatchSize,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to claim pending messages: %w", err)
	}
	c.reclaimCursor = next

	if len(messages) > 0 {
		log.Info().Int("claimed", len(messages)).Msg("Claimed idle pending messages")
	}
	for i := range messages {
		c.handle(ctx, &messages[i])
	}
	return nil
}

// handle processes one entry and acknowledges it unless ctx ended first.
// Entries that cannot be parsed or that were dead-lettered are acknowledged too.
func (c *Consumer) handle(ctx context.Context, msg *redis.XMessage) {
	fields := stringFields(msg.Values)

	event, err := ParseVersionEvent(&StreamMessage{ID: msg.ID, Fields: fields})
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping malformed stream message")
		metrics.StreamMessages.WithLabelValues("invalid").Inc()
		c.acknowledge(ctx, msg.ID)
		return
	}

	err = c.retryHandler.RetryWithBackoff(ctx, func() error {
		return c.processor.ProcessVersion(ctx, event)
	}, msg.ID, msg.Values)
	if ctx.Err() != nil {
		// Left in the PEL for the next reclaim
		return
	}

	if err != nil {
		log.Error().
			Err(err).
			Str("message_id", msg.ID).
			Str("documentVersionId", event.DocumentVersionID).
			Msg("Failed to pre-warm version")
		metrics.StreamMessages.WithLabelValues("dead_lettered").Inc()
	} else {
		metrics.StreamMessages.WithLabelValues("processed").Inc()
	}
	c.acknowledge(ctx, msg.ID)
}

func (c *Consumer) trimPeriodically(ctx context.Context) {
	ticker := time.NewTicker(c.trimEvery)
	defer ticker.Stop()

	for {
		if err := c.trim(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Failed to trim stream")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// trim drops entries older than the retention window
func (c *Consumer) trim(ctx context.Context) error {
	minID := retentionMinID(time.Now(), c.cfg.Retention)
	trimmed, err := c.client.XTrimMinID(ctx, c.cfg.StreamKey, minID).Result()
	if err != nil {
		return fmt.Errorf("failed to trim stream: %w", err)
	}
	if trimmed > 0 {
		log.Debug().
			Int64("trimmed", trimmed).
			Str("min_id", minID).
			Msg("Trimmed stream")
	}
	return nil
}

func (c *Consumer) acknowledge(ctx context.Context, messageID string) {
	if err := c.client.XAck(ctx, c.cfg.StreamKey, c.cfg.Group, messageID).Err(); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("Failed to acknowledge message")
		return
	}
	log.Trace().Str("message_id", messageID).Msg("Message acknowledged")
}

// retentionMinID is the smallest stream id kept by a trim at now
func retentionMinID(now time.Time, retention time.Duration) string {
	return fmt.Sprintf("%d-0", now.Add(-retention).UnixMilli())
}

func stringFields(values map[string]interface{}) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return fields
}
