package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"
)

const (
	// Connection establishment retry policy.
	maxConnectRetries   = 5
	initialConnectDelay = 1 * time.Second
	maxConnectDelay     = 15 * time.Second

	// Operation retry policy for connection-class failures.
	DefaultOperationRetries = 3
	initialOperationDelay   = 500 * time.Millisecond
	maxOperationDelay       = 5 * time.Second

	// Pool configuration.
	maxOpenConns   = 20
	connectTimeout = 10 * time.Second
	idleTimeout    = 60 * time.Second
)

// connectionErrorMarkers are message fragments that identify transient
// connection-class failures, as opposed to logical query errors.
var connectionErrorMarkers = []string{
	"terminating connection",
	"Connection terminated",
	"Connection failed",
}

// DB owns the pooled connection to Postgres and executes operations against
// it with automatic reconnect-and-retry on connection-class failures.
// Construct one per process (or per test) with New; there is no package-level
// singleton.
type DB struct {
	url    string
	logger *zap.Logger

	mu       chan struct{} // 1-slot semaphore guarding pool/inflight
	pool     *sql.DB
	inflight chan struct{} // closed when the in-flight connect attempt finishes
	closed   bool

	// Seams for tests; production values are set by New.
	open  func(url string) (*sql.DB, error)
	sleep func(d time.Duration)
	randf func() float64
}

// Option configures a DB.
type Option func(*DB)

// WithLogger attaches a logger used for retry/reconnect diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}

// New creates a connection manager for the given database URL. No connection
// is dialed until the first operation (or an explicit Connect) needs one.
func New(databaseURL string, opts ...Option) *DB {
	db := &DB{
		url:    databaseURL,
		logger: zap.NewNop(),
		mu:     make(chan struct{}, 1),
		open:   openPool,
		sleep:  time.Sleep,
		randf:  rand.Float64,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func openPool(url string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pool.SetMaxOpenConns(maxOpenConns)
	pool.SetConnMaxIdleTime(idleTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func (db *DB) lock()   { db.mu <- struct{}{} }
func (db *DB) unlock() { <-db.mu }

// Connect returns the active pool, dialing one if necessary. When a connect
// attempt is already in flight, concurrent callers wait on its completion
// rather than starting a second attempt.
func (db *DB) Connect(ctx context.Context) (*sql.DB, error) {
	for {
		db.lock()
		if db.closed {
			db.unlock()
			return nil, errors.New("connection manager is closed")
		}
		if db.pool != nil {
			pool := db.pool
			db.unlock()
			return pool, nil
		}
		if db.inflight != nil {
			done := db.inflight
			db.unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		done := make(chan struct{})
		db.inflight = done
		db.unlock()

		pool, err := db.dial(ctx)

		db.lock()
		db.inflight = nil
		if err == nil {
			db.pool = pool
		}
		db.unlock()
		close(done)

		if err != nil {
			return nil, err
		}
		return pool, nil
	}
}

// dial attempts to open the pool, retrying with jittered exponential backoff.
func (db *DB) dial(ctx context.Context) (*sql.DB, error) {
	var lastErr error
	for retry := 0; retry < maxConnectRetries; retry++ {
		if retry > 0 {
			delay := db.connectBackoff(retry - 1)
			db.logger.Warn("database_connect_retrying",
				zap.Int("attempt", retry+1),
				zap.Int("max_retries", maxConnectRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			db.sleep(delay)
		}

		pool, err := db.open(db.url)
		if err == nil {
			if retry > 0 {
				db.logger.Info("database_connected_after_retry", zap.Int("attempts", retry+1))
			}
			return pool, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxConnectRetries, lastErr)
}

// connectBackoff computes the delay before connect attempt retryCount+1:
// min(maxDelay, initialDelay * 2^retryCount), jittered to 80-120%.
func (db *DB) connectBackoff(retryCount int) time.Duration {
	delay := initialConnectDelay << uint(retryCount)
	if delay > maxConnectDelay || delay <= 0 {
		delay = maxConnectDelay
	}
	return time.Duration(float64(delay) * (0.8 + db.randf()*0.4))
}

// operationBackoff computes the delay before operation retry attempt+1:
// min(5s, 500ms * 2^attempt).
func operationBackoff(attempt int) time.Duration {
	delay := initialOperationDelay << uint(attempt)
	if delay > maxOperationDelay || delay <= 0 {
		delay = maxOperationDelay
	}
	return delay
}

// ExecuteWithRetry runs op against a connected pool with the default retry
// budget for connection-class failures.
func (db *DB) ExecuteWithRetry(ctx context.Context, op func(*sql.DB) error) error {
	return db.ExecuteWithRetryN(ctx, op, DefaultOperationRetries)
}

// ExecuteWithRetryN runs op against a connected pool. Connection-class
// failures drop the stale pool, force a fresh Connect, and retry with capped
// exponential backoff up to maxRetries times. Any other error propagates
// immediately without retry.
func (db *DB) ExecuteWithRetryN(ctx context.Context, op func(*sql.DB) error, maxRetries int) error {
	pool, err := db.Connect(ctx)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := op(pool)
		if err == nil {
			return nil
		}
		if !IsConnectionError(err) {
			return err
		}
		lastErr = err
		if attempt >= maxRetries {
			return lastErr
		}

		db.logger.Warn("database_operation_connection_error",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)

		db.dropPool()
		db.sleep(operationBackoff(attempt))

		pool, err = db.Connect(ctx)
		if err != nil {
			return err
		}
	}
}

// dropPool closes and discards the current pool so the next Connect dials
// fresh. A failed Close on an already-broken pool is not actionable.
func (db *DB) dropPool() {
	db.lock()
	pool := db.pool
	db.pool = nil
	db.unlock()
	if pool != nil {
		if err := pool.Close(); err != nil {
			db.logger.Warn("failed_to_close_stale_pool", zap.Error(err))
		}
	}
}

// Ping verifies the database is reachable, reconnecting if needed.
func (db *DB) Ping(ctx context.Context) error {
	return db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		return pool.PingContext(ctx)
	})
}

// Close releases the pool. Idempotent; subsequent operations fail.
func (db *DB) Close() error {
	db.lock()
	if db.closed {
		db.unlock()
		return nil
	}
	db.closed = true
	pool := db.pool
	db.pool = nil
	db.unlock()

	if pool != nil {
		return pool.Close()
	}
	return nil
}

// IsConnectionError reports whether err is a transient connection-class
// failure that warrants a reconnect-and-retry, as opposed to a logical
// query or constraint error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := err.Error()
	for _, marker := range connectionErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
