package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type eventRepoPG struct{ pool *pgxpool.Pool }

func NewEventRepoPG(pool *pgxpool.Pool) EventRepository { return &eventRepoPG{pool: pool} }

const eventCols = `id, owner_id, day, month, year, title, emoji, start_time, end_time,
	duration_days, color_gradient, category, created_at, updated_at`

func (r *eventRepoPG) scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.OwnerID, &e.Day, &e.Month, &e.Year, &e.Title, &e.Emoji,
		&e.StartTime, &e.EndTime, &e.DurationDays, &e.ColorGradient, &e.Category,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Source = SourceUser
	return &e, nil
}

func (r *eventRepoPG) Create(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO calendar_event (id, owner_id, day, month, year, title, emoji,
			start_time, end_time, duration_days, color_gradient, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		e.ID, e.OwnerID, e.Day, e.Month, e.Year, e.Title, e.Emoji,
		e.StartTime, e.EndTime, e.DurationDays, e.ColorGradient, e.Category,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *eventRepoPG) GetByID(ctx context.Context, id string) (*Event, error) {
	return r.scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM calendar_event WHERE id = $1`, id))
}

func (r *eventRepoPG) Update(ctx context.Context, e *Event) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calendar_event SET day=$2, month=$3, year=$4, title=$5, emoji=$6,
			start_time=$7, end_time=$8, duration_days=$9, color_gradient=$10, category=$11,
			updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.Day, e.Month, e.Year, e.Title, e.Emoji,
		e.StartTime, e.EndTime, e.DurationDays, e.ColorGradient, e.Category)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM calendar_event WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepoPG) ListByOwner(ctx context.Context, ownerID string) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventCols+` FROM calendar_event
		WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	defer rows.Close()
	var items []Event
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

func (r *eventRepoPG) ListByOwnerPaged(ctx context.Context, ownerID string, limit, offset int) ([]*Event, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM calendar_event WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+eventCols+` FROM calendar_event
		WHERE owner_id = $1 ORDER BY year, month, day, start_time LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
