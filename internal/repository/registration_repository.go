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

// RegistrationRepository provides persistence for registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// FindByID fetches a registration by primary key.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	var reg models.Registration
	const query = `SELECT * FROM registrations WHERE id = $1`
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

const registrationDetailQuery = `SELECT reg.*,
       s.title AS session_title, s.room_number, s.teacher_id,
       t.full_name AS teacher_name,
       st.full_name AS student_name, st.email AS student_email,
       fd.flex_type, fd.duration_minutes, fd.selection_deadline
FROM registrations reg
JOIN sessions s ON s.id = reg.session_id
JOIN users t ON t.id = s.teacher_id
JOIN users st ON st.id = reg.student_id
JOIN flex_dates fd ON fd.date = reg.date`

// FindDetailByID fetches a registration with session, people, and flex
// date context.
func (r *RegistrationRepository) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	var detail models.RegistrationDetail
	query := registrationDetailQuery + ` WHERE reg.id = $1`
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByStudentAndDate fetches the student's registration for a flex date,
// or nil when the student has none.
func (r *RegistrationRepository) FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.Registration, error) {
	var reg models.Registration
	const query = `SELECT * FROM registrations WHERE student_id = $1 AND date = $2`
	if err := r.db.GetContext(ctx, &reg, query, studentID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &reg, nil
}

// FindLockedByStudentAndDate returns lock details when the student's
// registration for the date is locked, or nil otherwise.
func (r *RegistrationRepository) FindLockedByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.LockInfo, error) {
	var info models.LockInfo
	const query = `SELECT reg.id AS registration_id, reg.session_id,
       reg.locked_by_teacher_id AS teacher_id, t.full_name AS teacher_name
FROM registrations reg
JOIN users t ON t.id = reg.locked_by_teacher_id
WHERE reg.student_id = $1 AND reg.date = $2 AND reg.status = 'locked'`
	if err := r.db.GetContext(ctx, &info, query, studentID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &info, nil
}

// Replace removes the student's existing registration for the date and
// inserts the new one in a single transaction. The UNIQUE(student_id,
// date) constraint backs this up against races.
func (r *RegistrationRepository) Replace(ctx context.Context, reg *models.Registration) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM registrations WHERE student_id = $1 AND date = $2`,
		reg.StudentID, reg.Date); err != nil {
		return fmt.Errorf("clear existing registration: %w", err)
	}

	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	reg.CreatedAt = time.Now().UTC()
	if _, err = tx.NamedExecContext(ctx,
		`INSERT INTO registrations (id, session_id, student_id, date, status, locked_by_teacher_id, created_at)
VALUES (:id, :session_id, :student_id, :date, :status, :locked_by_teacher_id, :created_at)`,
		reg); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit registration replace: %w", err)
	}
	return nil
}

// Delete removes a registration by primary key.
func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM registrations WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return nil
}

// Unlock reverts a locked registration to selected.
func (r *RegistrationRepository) Unlock(ctx context.Context, id string) error {
	const query = `UPDATE registrations SET status = 'selected', locked_by_teacher_id = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("unlock registration: %w", err)
	}
	return nil
}

// ListByStudentFromDate returns the student's registrations on or after
// the cutoff with full detail, ordered by date.
func (r *RegistrationRepository) ListByStudentFromDate(ctx context.Context, studentID string, from time.Time) ([]models.RegistrationDetail, error) {
	query := registrationDetailQuery + ` WHERE reg.student_id = $1 AND reg.date >= $2 ORDER BY reg.date ASC`
	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, query, studentID, from); err != nil {
		return nil, fmt.Errorf("list student registrations: %w", err)
	}
	return regs, nil
}

// CountBySession returns registrations held against a session.
func (r *RegistrationRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM registrations WHERE session_id = $1`
	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count session registrations: %w", err)
	}
	return count, nil
}

// StudentIDsForDate returns the distinct student IDs registered on a date.
func (r *RegistrationRepository) StudentIDsForDate(ctx context.Context, date time.Time) ([]string, error) {
	const query = `SELECT DISTINCT student_id FROM registrations WHERE date = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, date); err != nil {
		return nil, fmt.Errorf("list registered students for date: %w", err)
	}
	return ids, nil
}

// CountStudentsWithoutSelection returns how many active students have no
// registration for the given flex date.
func (r *RegistrationRepository) CountStudentsWithoutSelection(ctx context.Context, date time.Time) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM users u
WHERE u.role = 'STUDENT' AND u.active
  AND NOT EXISTS (SELECT 1 FROM registrations reg WHERE reg.student_id = u.id AND reg.date = $1)`
	if err := r.db.GetContext(ctx, &count, query, date); err != nil {
		return 0, fmt.Errorf("count students without selection: %w", err)
	}
	return count, nil
}
