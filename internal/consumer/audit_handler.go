package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditHandler writes consumed change events into Postgres for auditing.
type AuditHandler struct {
	pool *pgxpool.Pool
}

// NewAuditHandler constructs a handler backed by the provided pool.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool}
}

// Handle stores the event in the change_event_log table.
func (h *AuditHandler) Handle(ctx context.Context, event ChangeEvent) error {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO change_event_log (event_type, record_kind, user_id, schema_id, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		event.EventType,
		event.RecordKind,
		event.UserID,
		event.SchemaID,
		event.Topic,
		event.Partition,
		event.Offset,
		event.Row,
		event.Timestamp,
	)
	return err
}
