package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flextime-hq/flextime-api/internal/models"
)

// FlexDateRepository provides persistence for flex dates.
type FlexDateRepository struct {
	db *sqlx.DB
}

// NewFlexDateRepository constructs the repository.
func NewFlexDateRepository(db *sqlx.DB) *FlexDateRepository {
	return &FlexDateRepository{db: db}
}

// FindByID fetches a flex date by primary key.
func (r *FlexDateRepository) FindByID(ctx context.Context, id string) (*models.FlexDate, error) {
	var fd models.FlexDate
	const query = `SELECT * FROM flex_dates WHERE id = $1`
	if err := r.db.GetContext(ctx, &fd, query, id); err != nil {
		return nil, err
	}
	return &fd, nil
}

// FindByDate fetches the flex date for a calendar day, if one exists.
func (r *FlexDateRepository) FindByDate(ctx context.Context, date time.Time) (*models.FlexDate, error) {
	var fd models.FlexDate
	const query = `SELECT * FROM flex_dates WHERE date = $1`
	if err := r.db.GetContext(ctx, &fd, query, date); err != nil {
		return nil, err
	}
	return &fd, nil
}

// List returns flex dates on or after the cutoff with session and
// registration counts, ordered by date.
func (r *FlexDateRepository) List(ctx context.Context, from time.Time) ([]models.FlexDateOverview, error) {
	const query = `SELECT fd.*,
       (SELECT COUNT(*) FROM sessions s WHERE s.date = fd.date) AS session_count,
       (SELECT COUNT(*) FROM registrations reg WHERE reg.date = fd.date) AS registration_count
FROM flex_dates fd
WHERE fd.date >= $1
ORDER BY fd.date ASC`
	var dates []models.FlexDateOverview
	if err := r.db.SelectContext(ctx, &dates, query, from); err != nil {
		return nil, fmt.Errorf("list flex dates: %w", err)
	}
	return dates, nil
}

// ListBetween returns flex dates within [from, to] ordered by date, without
// aggregate counts. Used for the student selection window.
func (r *FlexDateRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.FlexDate, error) {
	const query = `SELECT * FROM flex_dates WHERE date >= $1 AND date <= $2 ORDER BY date ASC`
	var dates []models.FlexDate
	if err := r.db.SelectContext(ctx, &dates, query, from, to); err != nil {
		return nil, fmt.Errorf("list flex dates between: %w", err)
	}
	return dates, nil
}

// ListFutureByType returns flex dates strictly after the given date that
// share its flex type, ordered ascending and capped at limit. Used to
// expand recurring sessions.
func (r *FlexDateRepository) ListFutureByType(ctx context.Context, after time.Time, flexType models.FlexType, limit int) ([]models.FlexDate, error) {
	const query = `SELECT * FROM flex_dates WHERE date > $1 AND flex_type = $2 ORDER BY date ASC LIMIT $3`
	var dates []models.FlexDate
	if err := r.db.SelectContext(ctx, &dates, query, after, flexType, limit); err != nil {
		return nil, fmt.Errorf("list future flex dates: %w", err)
	}
	return dates, nil
}

// NextFlexDate returns the earliest flex date on or after the given day,
// or nil when none exists.
func (r *FlexDateRepository) NextFlexDate(ctx context.Context, from time.Time) (*models.FlexDate, error) {
	var fd models.FlexDate
	const query = `SELECT * FROM flex_dates WHERE date >= $1 ORDER BY date ASC LIMIT 1`
	if err := r.db.GetContext(ctx, &fd, query, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &fd, nil
}

// CountUpcoming returns the number of flex dates on or after the given day.
func (r *FlexDateRepository) CountUpcoming(ctx context.Context, from time.Time) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM flex_dates WHERE date >= $1`
	if err := r.db.GetContext(ctx, &count, query, from); err != nil {
		return 0, fmt.Errorf("count upcoming flex dates: %w", err)
	}
	return count, nil
}

// CountSessionsForDate returns the number of sessions scheduled on a day.
func (r *FlexDateRepository) CountSessionsForDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM sessions WHERE date = $1`
	if err := r.db.GetContext(ctx, &count, query, date); err != nil {
		return 0, fmt.Errorf("count sessions for date: %w", err)
	}
	return count, nil
}

// Create inserts a new flex date.
func (r *FlexDateRepository) Create(ctx context.Context, fd *models.FlexDate) error {
	if fd.ID == "" {
		fd.ID = uuid.NewString()
	}
	fd.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO flex_dates (id, date, flex_type, duration_minutes, selection_deadline, is_locked, created_at)
VALUES (:id, :date, :flex_type, :duration_minutes, :selection_deadline, :is_locked, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fd); err != nil {
		return fmt.Errorf("insert flex date: %w", err)
	}
	return nil
}

// Update persists mutable fields of a flex date.
func (r *FlexDateRepository) Update(ctx context.Context, fd *models.FlexDate) error {
	const query = `UPDATE flex_dates SET flex_type = :flex_type, duration_minutes = :duration_minutes,
selection_deadline = :selection_deadline, is_locked = :is_locked WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, fd); err != nil {
		return fmt.Errorf("update flex date: %w", err)
	}
	return nil
}

// Delete removes a flex date. Sessions on the date are the service's
// concern; deletion is refused there when any exist.
func (r *FlexDateRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM flex_dates WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete flex date: %w", err)
	}
	return nil
}
