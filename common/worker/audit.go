package worker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cortexlab/neuroscan/common/logger"
	"github.com/cortexlab/neuroscan/common/queue"
)

const (
	// auditListKey is the redis list holding recent audit events, newest first.
	auditListKey = "audit:prediction_events"

	// auditListCap bounds the trail; older events fall off.
	auditListCap = 10000

	// liveChannelPrefix is the pub/sub channel family the livefeed service
	// subscribes to; the suffix is the owning user id.
	liveChannelPrefix = "predictions:live:"
)

// AuditRecorder consumes storage audit events from the queue and keeps a
// capped trail in redis for operators to inspect.
type AuditRecorder struct {
	events queue.Queue
	redis  *redis.Client
	log    *logger.Logger
}

// NewAuditRecorder creates an audit recorder.
func NewAuditRecorder(events queue.Queue, redisClient *redis.Client, log *logger.Logger) *AuditRecorder {
	return &AuditRecorder{
		events: events,
		redis:  redisClient,
		log:    log,
	}
}

// Start subscribes to the topic and records events until ctx is cancelled.
// Recording failures are logged and the event dropped; the trail is an
// operational aid, not a system of record.
func (a *AuditRecorder) Start(ctx context.Context, topic string) error {
	if err := a.events.Subscribe(ctx, topic, a.record); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	a.log.Info("audit recorder started", "topic", topic)
	return nil
}

func (a *AuditRecorder) record(ctx context.Context, key string, value []byte) error {
	pipe := a.redis.TxPipeline()
	pipe.LPush(ctx, auditListKey, value)
	pipe.LTrim(ctx, auditListKey, 0, auditListCap-1)
	if key != "" {
		// Relay to the owner's live channel for connected browsers
		pipe.Publish(ctx, liveChannelPrefix+key, value)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		a.log.Warn("failed to record audit event", "error", err, "key", key)
		return nil
	}

	a.log.Debug("audit event recorded", "key", key)
	return nil
}

// Recent returns up to n of the most recent audit events, newest first.
func (a *AuditRecorder) Recent(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 || n > auditListCap {
		n = 100
	}
	entries, err := a.redis.LRange(ctx, auditListKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}
	return entries, nil
}
