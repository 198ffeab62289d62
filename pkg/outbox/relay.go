package outbox

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Relay polls one outbox table and hands unpublished rows to a Dispatcher.
// Rows are claimed with FOR UPDATE SKIP LOCKED, so several relays may share a
// table; SingleActive narrows that to one leader.
type Relay struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	dispatcher Dispatcher
	opts       RelayOptions

	lockKey    int64
	tableLabel string
	m          *metrics
	tracer     trace.Tracer
}

func NewRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	switch {
	case pool == nil:
		return nil, invalidConfig("pool is required")
	case len(table) == 0:
		return nil, invalidConfig("table is required")
	case dispatcher == nil:
		return nil, invalidConfig("dispatcher is required")
	}
	opts.setDefaults()
	label := TableLabel(table)
	return &Relay{
		pool:       pool,
		table:      table,
		dispatcher: dispatcher,
		opts:       opts,
		lockKey:    advisoryLockKey("outbox:" + label),
		tableLabel: label,
		m:          getMetrics(),
		tracer:     otel.Tracer("outbox"),
	}, nil
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if !r.opts.SingleActive {
		r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
		return r.loop(ctx, nil)
	}
	for {
		conn, leader, err := r.elect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.opts.Logger.WithError(err).Warn("outbox relay: leader election failed")
		}
		if leader {
			r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
			r.opts.Logger.Info("outbox relay: became leader")
			err := r.loop(ctx, conn)
			r.release(conn)
			r.m.relayLeader.WithLabelValues(r.tableLabel).Set(0)
			return err
		}
		r.m.relayLeader.WithLabelValues(r.tableLabel).Set(0)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.PollInterval):
		}
	}
}

// Drain dispatches due rows until a pass finds none, for shutdown and tests.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.processOnce(ctx, nil)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

func (r *Relay) elect(ctx context.Context) (*pgxpool.Conn, bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "acquire connection")
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, errors.Wrap(err, "try advisory lock")
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	return conn, true, nil
}

func (r *Relay) release(conn *pgxpool.Conn) {
	if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey); err != nil {
		r.opts.Logger.WithError(err).Warn("outbox relay: advisory unlock failed")
	}
	conn.Release()
}

func (r *Relay) loop(ctx context.Context, conn *pgxpool.Conn) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	nextDepthAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(nextDepthAt) {
			if err := r.observeQueueDepth(ctx, conn); err != nil {
				r.opts.Logger.WithError(err).Debug("outbox relay: queue depth query failed")
			}
			nextDepthAt = time.Now().Add(r.opts.ObserveQueueDepthEvery)
		}
		if _, err := r.processOnce(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.opts.Logger.WithError(err).Warn("outbox relay: tick failed")
		}
	}
}

type claimedRow struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Topic    string
	Payload  []byte
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

// processOnce claims one batch and settles every row in it. One failing row
// never blocks the others.
func (r *Relay) processOnce(ctx context.Context, conn *pgxpool.Conn) (int, error) {
	rows, err := r.claim(ctx, conn, time.Now())
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		dispatchErr := r.dispatch(ctx, row)
		log := r.opts.Logger.WithFields(map[string]any{
			"topic":     row.Topic,
			"event_id":  row.EventID.String(),
			"tenant_id": row.TenantID.String(),
			"sequence":  row.Sequence,
			"attempts":  row.Attempts,
		})

		var settleErr error
		switch {
		case dispatchErr == nil:
			settleErr = r.settle(ctx, conn, row.ID, `published_at = now(), last_error = NULL`)
		case row.Attempts >= r.opts.MaxAttempts:
			r.m.deadTotal.WithLabelValues(r.tableLabel, row.Topic).Inc()
			log.WithError(dispatchErr).Error("outbox relay: event is dead")
			settleErr = r.settle(ctx, conn, row.ID, `last_error = $2`, truncateError(dispatchErr, r.opts.LastErrorMaxLen))
		default:
			next := time.Now().Add(backoff(row.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
			log.WithError(dispatchErr).Warn("outbox relay: dispatch failed, retrying")
			settleErr = r.settle(ctx, conn, row.ID, `last_error = $2, available_at = $3`, truncateError(dispatchErr, r.opts.LastErrorMaxLen), next)
		}
		if settleErr != nil {
			log.WithError(settleErr).Warn("outbox relay: settle failed")
		}
	}
	return len(rows), nil
}

func (r *Relay) dispatch(ctx context.Context, row claimedRow) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
	defer cancel()
	ctx, span := r.tracer.Start(ctx, "outbox.dispatch", trace.WithAttributes(
		attribute.String("outbox.table", r.tableLabel),
		attribute.String("outbox.topic", row.Topic),
		attribute.String("outbox.event_id", row.EventID.String()),
		attribute.Int("outbox.attempts", row.Attempts),
	))
	defer span.End()

	start := time.Now()
	err := r.dispatcher.Dispatch(ctx, DispatchedMessage{
		Meta: Meta{
			Table:    r.table,
			TenantID: row.TenantID,
			Topic:    row.Topic,
			EventID:  row.EventID,
			Sequence: row.Sequence,
			Attempts: row.Attempts,
		},
		Payload: row.Payload,
	})
	result := "success"
	if err != nil {
		result = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	r.m.dispatchTotal.WithLabelValues(r.tableLabel, row.Topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(r.tableLabel, row.Topic, result).Observe(time.Since(start).Seconds())
	return err
}

func (r *Relay) claim(ctx context.Context, conn *pgxpool.Conn, now time.Time) ([]claimedRow, error) {
	var out []claimedRow
	err := r.inTx(ctx, conn, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, fmt.Sprintf(`
SELECT id, tenant_id, topic, payload, event_id, sequence, attempts
  FROM %s
 WHERE published_at IS NULL
   AND available_at <= $1
   AND attempts < $2
   AND (locked_at IS NULL OR locked_at < $3)
 ORDER BY available_at, sequence
 LIMIT $4
 FOR UPDATE SKIP LOCKED`, r.table.Sanitize()),
			now, r.opts.MaxAttempts, now.Add(-r.opts.LockTTL), r.opts.BatchSize)
		if err != nil {
			return errors.Wrap(err, "outbox claim select")
		}
		ids := make([]uuid.UUID, 0, r.opts.BatchSize)
		for rows.Next() {
			var c claimedRow
			if err := rows.Scan(&c.ID, &c.TenantID, &c.Topic, &c.Payload, &c.EventID, &c.Sequence, &c.Attempts); err != nil {
				rows.Close()
				return errors.Wrap(err, "outbox claim scan")
			}
			c.Attempts++
			out = append(out, c)
			ids = append(ids, c.ID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, "outbox claim rows")
		}
		if len(ids) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`, r.table.Sanitize()),
			now, pgtype.FlatArray[uuid.UUID](ids))
		return errors.Wrap(err, "outbox claim update")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// settle releases the claim on one row and applies set. Extra args start
// at $2.
func (r *Relay) settle(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID, set string, args ...any) error {
	q := fmt.Sprintf(`UPDATE %s SET locked_at = NULL, %s WHERE id = $1 AND published_at IS NULL`, r.table.Sanitize(), set)
	_, err := r.exec(conn).Exec(ctx, q, append([]any{id}, args...)...)
	return errors.Wrap(err, "outbox settle")
}

func (r *Relay) observeQueueDepth(ctx context.Context, conn *pgxpool.Conn) error {
	var pending, locked int64
	err := r.exec(conn).QueryRow(ctx, fmt.Sprintf(`
SELECT count(*), count(*) FILTER (WHERE locked_at IS NOT NULL)
  FROM %s
 WHERE published_at IS NULL`, r.table.Sanitize())).Scan(&pending, &locked)
	if err != nil {
		return errors.Wrap(err, "outbox queue depth")
	}
	r.m.pending.WithLabelValues(r.tableLabel).Set(float64(pending))
	r.m.locked.WithLabelValues(r.tableLabel).Set(float64(locked))
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// exec prefers the leader connection so the advisory lock session does the
// work.
func (r *Relay) exec(conn *pgxpool.Conn) execer {
	if conn != nil {
		return conn
	}
	return r.pool
}

func (r *Relay) inTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if conn != nil {
		tx, err = conn.Begin(ctx)
	} else {
		tx, err = r.pool.Begin(ctx)
	}
	if err != nil {
		return errors.Wrap(err, "outbox begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
