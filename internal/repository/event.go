package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AdjustAttendees атомарно меняет attendees_count события на delta
// и возвращает новое значение. При delta > 0 проверяется capacity:
// если мест нет — ErrCapacityReached. Счётчик не опускается ниже нуля.
func (s *Store) AdjustAttendees(ctx context.Context, eventID string, delta int) (int, error) {
	query := `
		UPDATE events
		SET attendees_count = GREATEST(attendees_count + $2, 0), updated_at = now()
		WHERE id = $1
		  AND ($2 <= 0 OR capacity IS NULL OR attendees_count + $2 <= capacity)
		RETURNING attendees_count`

	var count int
	err := s.db.QueryRow(ctx, query, eventID, delta).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("ошибка обновления attendees_count: %w", err)
	}

	// Строка не обновлена: либо события нет, либо нет мест
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("ошибка проверки события: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: events.id = %s", ErrNotFound, eventID)
	}
	return 0, ErrCapacityReached
}
