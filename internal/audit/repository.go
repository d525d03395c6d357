package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audit_logs row as served to the timeline.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Filter narrows the timeline. All fields are optional.
type Filter struct {
	Entity   string
	EntityID string
	ActorID  int64
	Action   string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Timeline returns matching entries, newest first.
func (r *Repository) Timeline(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, actor_id, action, entity, entity_id, meta, occurred_at FROM audit_logs WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Entity != "" {
		query += ` AND entity = ` + arg(f.Entity)
	}
	if f.EntityID != "" {
		query += ` AND entity_id = ` + arg(f.EntityID)
	}
	if f.ActorID != 0 {
		query += ` AND actor_id = ` + arg(f.ActorID)
	}
	if f.Action != "" {
		query += ` AND action = ` + arg(f.Action)
	}
	if !f.From.IsZero() {
		query += ` AND occurred_at >= ` + arg(f.From)
	}
	if !f.To.IsZero() {
		query += ` AND occurred_at < ` + arg(f.To)
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(` ORDER BY occurred_at DESC, id DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit timeline: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &metaJSON, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Meta); err != nil {
				return nil, fmt.Errorf("decode audit meta: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
