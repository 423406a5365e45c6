package pgtuner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pgtuner/pgtuner-mcp/internal/redact"
	"github.com/pgtuner/pgtuner-mcp/internal/remedy"
	"github.com/pgtuner/pgtuner-mcp/internal/timeout"
)

// PgTuner is the core engine behind every tool. All exported methods are
// safe for concurrent use from multiple goroutines.
//
// Connection state is a single pool handle swapped atomically under a
// lock: Connect builds and verifies a new pool before publishing it, and
// the prior pool is closed only after the swap, so no request ever
// observes a mixed old/new pool state.
type PgTuner struct {
	config     Config
	semaphore  chan struct{}
	redactor   *redact.Redactor
	remedies   *remedy.Matcher
	timeoutMgr *timeout.Manager
	logger     zerolog.Logger

	mu   sync.RWMutex
	pool *pgxpool.Pool
	info ConnectionInfo
}

// New creates a new PgTuner instance. No connection is established until
// Connect is called. Panics on invalid config values; returns an error
// only for invalid regex rules.
func New(config Config, logger zerolog.Logger) (*PgTuner, error) {
	config.applyDefaults()

	if config.Pool.MaxConns <= 0 {
		panic("pgtuner: pool.max_conns must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("pgtuner: query.default_timeout_seconds must be > 0")
	}
	if config.Query.DefaultRowLimit <= 0 {
		panic("pgtuner: query.default_row_limit must be > 0")
	}

	redactRules := make([]redact.Rule, len(config.Redaction))
	for i, r := range config.Redaction {
		redactRules[i] = redact.Rule{Pattern: r.Pattern, Replacement: r.Replacement}
	}
	redactor, err := redact.New(redactRules)
	if err != nil {
		return nil, err
	}

	remedyRules := make([]remedy.Rule, len(config.ErrorPrompts))
	for i, r := range config.ErrorPrompts {
		remedyRules[i] = remedy.Rule{Pattern: r.Pattern, Message: r.Message}
	}
	remedies, err := remedy.NewMatcher(remedyRules)
	if err != nil {
		return nil, err
	}

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	timeoutMgr, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		return nil, err
	}

	return &PgTuner{
		config:     config,
		semaphore:  make(chan struct{}, config.Pool.MaxConns),
		redactor:   redactor,
		remedies:   remedies,
		timeoutMgr: timeoutMgr,
		logger:     logger,
	}, nil
}

// Connect establishes a new connection pool and makes it the active one.
// The new pool is created and verified first; only then is the prior pool
// (if any) torn down. A failed Connect leaves the prior pool in place.
func (p *PgTuner) Connect(ctx context.Context, input ConnectInput) error {
	port := input.Port
	if port == 0 {
		port = DefaultPort
	}
	info := ConnectionInfo{
		Host:     input.Host,
		Port:     port,
		Database: input.Database,
		User:     input.User,
		SSL:      input.SSL,
	}

	poolConfig, err := pgxpool.ParseConfig(buildConnString(info, input.Password))
	if err != nil {
		return &ConnectionError{Err: err}
	}

	poolConfig.MaxConns = int32(p.config.Pool.MaxConns)
	poolConfig.MinConns = int32(p.config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if p.config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(p.config.Pool.MaxConnLifetime)
		if err != nil {
			return fmt.Errorf("invalid pool.max_conn_lifetime %q: %w", p.config.Pool.MaxConnLifetime, err)
		}
		poolConfig.MaxConnLifetime = d
	}
	if p.config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(p.config.Pool.MaxConnIdleTime)
		if err != nil {
			return fmt.Errorf("invalid pool.max_conn_idle_time %q: %w", p.config.Pool.MaxConnIdleTime, err)
		}
		poolConfig.MaxConnIdleTime = d
	}
	if p.config.Pool.HealthCheckPeriod != "" {
		d, err := time.ParseDuration(p.config.Pool.HealthCheckPeriod)
		if err != nil {
			return fmt.Errorf("invalid pool.health_check_period %q: %w", p.config.Pool.HealthCheckPeriod, err)
		}
		poolConfig.HealthCheckPeriod = d
	}

	// Session-level read-only enforcement: the textual validator is only a
	// heuristic, the database session is the real safety boundary.
	timezone := p.config.Timezone
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
			return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
		}
		if timezone != "" {
			escaped := strings.ReplaceAll(timezone, "'", "''")
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
				return fmt.Errorf("failed to SET timezone: %w", err)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return &ConnectionError{Err: err}
	}

	p.mu.Lock()
	old := p.pool
	p.pool = pool
	p.info = info
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}

	p.logger.Info().
		Str("host", info.Host).
		Int("port", info.Port).
		Str("database", info.Database).
		Str("user", info.User).
		Bool("ssl", info.SSL).
		Msg("connected")

	return nil
}

// Disconnect tears down the active pool. A no-op when not connected.
func (p *PgTuner) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	old := p.pool
	p.pool = nil
	p.info = ConnectionInfo{}
	p.mu.Unlock()

	if old == nil {
		return ErrNotConnected
	}
	old.Close()
	p.logger.Info().Msg("disconnected")
	return nil
}

// Close releases all resources. Equivalent to Disconnect but never errors;
// for use in defer at shutdown.
func (p *PgTuner) Close(ctx context.Context) {
	p.mu.Lock()
	old := p.pool
	p.pool = nil
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Ping verifies the active connection.
func (p *PgTuner) Ping(ctx context.Context) error {
	pool, err := p.getPool()
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return &ConnectionError{Err: err}
	}
	return nil
}

// ConnInfo returns the active connection parameters (without credentials).
func (p *PgTuner) ConnInfo() (ConnectionInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pool == nil {
		return ConnectionInfo{}, ErrNotConnected
	}
	return p.info, nil
}

// getPool snapshots the active pool handle.
func (p *PgTuner) getPool() (*pgxpool.Pool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pool == nil {
		return nil, ErrNotConnected
	}
	return p.pool, nil
}

// acquireSlot takes a semaphore slot, respecting context cancellation to
// prevent deadlock when all slots are in use.
func (p *PgTuner) acquireSlot(ctx context.Context) error {
	select {
	case p.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(p.semaphore), ctx.Err())
	}
}

func (p *PgTuner) releaseSlot() {
	<-p.semaphore
}

// withReadOnlyTx runs fn inside a read-only transaction with the given
// timeout. The transaction is always rolled back — reads never commit —
// and rollback/release are reached on every exit path: rollback uses a
// context detached from the caller's so cancellation mid-query cannot
// leak an open transaction.
func (p *PgTuner) withReadOnlyTx(ctx context.Context, d time.Duration, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if err := p.acquireSlot(ctx); err != nil {
		return err
	}
	defer p.releaseSlot()

	pool, err := p.getPool()
	if err != nil {
		return err
	}

	queryCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	conn, err := pool.Acquire(queryCtx)
	if err != nil {
		return &QueryError{Err: err}
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return &QueryError{Err: err}
	}
	defer func() {
		rbCtx, rbCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer rbCancel()
		_ = tx.Rollback(rbCtx)
	}()

	if err := fn(queryCtx, tx); err != nil {
		if isEngineError(err) {
			return err
		}
		return &QueryError{Err: err}
	}
	return nil
}

// defaultTimeout is the configured default query timeout.
func (p *PgTuner) defaultTimeout() time.Duration {
	return time.Duration(p.config.Query.DefaultTimeoutSeconds) * time.Second
}

// isEngineError reports whether err is already one of the engine's typed
// error kinds and should not be re-wrapped as a QueryError.
func isEngineError(err error) bool {
	var forbidden *ForbiddenOperationError
	var unavailable *ExtensionUnavailableError
	var connErr *ConnectionError
	var queryErr *QueryError
	return errors.Is(err, ErrNotConnected) ||
		errors.As(err, &forbidden) ||
		errors.As(err, &unavailable) ||
		errors.As(err, &connErr) ||
		errors.As(err, &queryErr)
}

// errorMessage converts an engine error into the single textual payload
// returned at the tool boundary, appending any matching remediation
// guidance, and logs the failure.
func (p *PgTuner) errorMessage(err error) string {
	msg := err.Error()
	patterns := p.remedies.MatchedPatterns(msg)

	logEvent := p.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("tool error")

	if guidance := p.remedies.Match(msg); guidance != "" {
		msg = msg + "\n\n" + guidance
	}
	return msg
}

// buildConnString renders a pgx key/value connection string.
func buildConnString(info ConnectionInfo, password string) string {
	sslMode := "disable"
	if info.SSL {
		sslMode = "require"
	}
	parts := []string{
		fmt.Sprintf("host=%s", info.Host),
		fmt.Sprintf("port=%d", info.Port),
		fmt.Sprintf("dbname=%s", info.Database),
		fmt.Sprintf("user=%s", info.User),
		fmt.Sprintf("sslmode=%s", sslMode),
	}
	if password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", password))
	}
	return strings.Join(parts, " ")
}
