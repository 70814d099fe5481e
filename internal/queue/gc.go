package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// GarbageCollector periodically purges dead-lettered messages older than the
// retention window.
type GarbageCollector struct {
	dlqPurger DLQPurger
	logger    *zap.Logger
	interval  time.Duration
	retention time.Duration
}

// NewGarbageCollector creates a new garbage collector over the given purger.
func NewGarbageCollector(purger DLQPurger, logger *zap.Logger, interval, retention time.Duration) *GarbageCollector {
	return &GarbageCollector{
		dlqPurger: purger,
		logger:    logger,
		interval:  interval,
		retention: retention,
	}
}

// Start runs the GC loop until ctx is cancelled.
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := gc.collect(ctx); err != nil {
				gc.logger.Error("dlq_gc_failed", zap.Error(err))
			}
		}
	}
}

func (gc *GarbageCollector) collect(ctx context.Context) error {
	if gc.dlqPurger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	n, err := gc.dlqPurger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		return err
	}
	if n > 0 {
		gc.logger.Info("dlq_gc_purged",
			zap.Int("messages", n),
			zap.Duration("retention", gc.retention),
		)
	}
	return nil
}
