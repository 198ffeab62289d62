package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cleaner purges published rows older than Retention and, optionally, dead
// rows older than DeadRetention.
type Cleaner struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	opts       CleanerOptions
	tableLabel string
}

func NewCleaner(pool *pgxpool.Pool, table pgx.Identifier, opts CleanerOptions) (*Cleaner, error) {
	switch {
	case pool == nil:
		return nil, invalidConfig("pool is required")
	case len(table) == 0:
		return nil, invalidConfig("table is required")
	case opts.DeadRetention > 0 && opts.DeadAttemptsThreshold <= 0:
		return nil, invalidConfig("dead retention requires DeadAttemptsThreshold > 0")
	}
	opts.setDefaults()
	return &Cleaner{
		pool:       pool,
		table:      table,
		opts:       opts,
		tableLabel: TableLabel(table),
	}, nil
}

func (c *Cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		purged, err := c.CleanOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.opts.Logger.WithError(err).WithField("table", c.tableLabel).Warn("outbox cleaner: tick failed")
			continue
		}
		if purged > 0 {
			c.opts.Logger.WithField("table", c.tableLabel).WithField("purged", purged).Debug("outbox cleaner: purged rows")
		}
	}
}

// CleanOnce runs one purge pass and reports how many rows it removed.
func (c *Cleaner) CleanOnce(ctx context.Context) (int64, error) {
	now := time.Now()
	table := c.table.Sanitize()

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "outbox cleaner begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NOT NULL AND published_at < $1`, table),
		now.Add(-c.opts.Retention))
	if err != nil {
		return 0, errors.Wrap(err, "outbox cleaner delete published")
	}
	purged := tag.RowsAffected()

	if c.opts.DeadRetention > 0 {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`
DELETE FROM %s
 WHERE published_at IS NULL
   AND attempts >= $1
   AND created_at < $2`, table),
			c.opts.DeadAttemptsThreshold, now.Add(-c.opts.DeadRetention))
		if err != nil {
			return 0, errors.Wrap(err, "outbox cleaner delete dead")
		}
		purged += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "outbox cleaner commit")
	}
	return purged, nil
}
