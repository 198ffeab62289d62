package outbox

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldcrew/mobsched/pkg/repo"
)

type Publisher interface {
	// Enqueue inserts msg through tx. Enqueueing the same EventID twice is a
	// no-op that returns the original sequence.
	Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (sequence int64, err error)
}

type publisher struct {
	m *metrics
}

func NewPublisher() Publisher {
	return &publisher{m: getMetrics()}
}

func (p *publisher) Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (int64, error) {
	switch {
	case msg.TenantID == uuid.Nil:
		return 0, invalidConfig("tenant_id is required")
	case msg.EventID == uuid.Nil:
		return 0, invalidConfig("event_id is required")
	case msg.Topic == "":
		return 0, invalidConfig("topic is required")
	case len(table) == 0:
		return 0, invalidConfig("table is required")
	case tx == nil:
		return 0, invalidConfig("tx is required")
	}

	q := fmt.Sprintf(`
INSERT INTO %s (tenant_id, topic, payload, event_id, available_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
RETURNING sequence`, table.Sanitize())

	var sequence int64
	if err := tx.QueryRow(ctx, q, msg.TenantID, msg.Topic, []byte(msg.Payload), msg.EventID).Scan(&sequence); err != nil {
		return 0, errors.Wrap(err, "outbox enqueue")
	}
	p.m.enqueueTotal.WithLabelValues(TableLabel(table), msg.Topic).Inc()
	return sequence, nil
}
