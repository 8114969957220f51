package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flextime-hq/flextime-api/internal/models"
)

// SessionRepository provides persistence for sessions and session templates.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID fetches a session by primary key.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	const query = `SELECT * FROM sessions WHERE id = $1`
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindDetailByID fetches a session joined with its teacher.
func (r *SessionRepository) FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	var detail models.SessionDetail
	const query = `SELECT s.*, u.full_name AS teacher_name, u.email AS teacher_email
FROM sessions s
JOIN users u ON u.id = s.teacher_id
WHERE s.id = $1`
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Roster returns the registered students for a session ordered by name.
func (r *SessionRepository) Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error) {
	const query = `SELECT reg.id AS registration_id, reg.status, reg.locked_by_teacher_id,
       u.id AS student_id, u.full_name AS student_name, u.email AS student_email, u.grade, u.homeroom
FROM registrations reg
JOIN users u ON u.id = reg.student_id
WHERE reg.session_id = $1
ORDER BY u.full_name ASC`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, sessionID); err != nil {
		return nil, fmt.Errorf("session roster: %w", err)
	}
	return entries, nil
}

// ListByDate returns session details for one flex date, ordered by title.
func (r *SessionRepository) ListByDate(ctx context.Context, date time.Time) ([]models.SessionDetail, error) {
	const query = `SELECT s.*, u.full_name AS teacher_name, u.email AS teacher_email
FROM sessions s
JOIN users u ON u.id = s.teacher_id
WHERE s.date = $1
ORDER BY s.title ASC`
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, date); err != nil {
		return nil, fmt.Errorf("list sessions by date: %w", err)
	}
	return sessions, nil
}

// ListByDateForGrade returns session details for one flex date restricted
// to sessions open to the given grade.
func (r *SessionRepository) ListByDateForGrade(ctx context.Context, date time.Time, grade int) ([]models.SessionDetail, error) {
	const query = `SELECT s.*, u.full_name AS teacher_name, u.email AS teacher_email
FROM sessions s
JOIN users u ON u.id = s.teacher_id
WHERE s.date = $1 AND $2 = ANY(s.allowed_grades)
ORDER BY s.title ASC`
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, date, grade); err != nil {
		return nil, fmt.Errorf("list sessions by date for grade: %w", err)
	}
	return sessions, nil
}

// ListByTeacherFromDate returns a teacher's sessions on or after the cutoff.
func (r *SessionRepository) ListByTeacherFromDate(ctx context.Context, teacherID string, from time.Time) ([]models.SessionDetail, error) {
	const query = `SELECT s.*, u.full_name AS teacher_name, u.email AS teacher_email
FROM sessions s
JOIN users u ON u.id = s.teacher_id
WHERE s.teacher_id = $1 AND s.date >= $2
ORDER BY s.date ASC, s.title ASC`
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, teacherID, from); err != nil {
		return nil, fmt.Errorf("list teacher sessions: %w", err)
	}
	return sessions, nil
}

// ExistsForTeacherOnDate reports whether the teacher already offers a
// session on the date.
func (r *SessionRepository) ExistsForTeacherOnDate(ctx context.Context, teacherID string, date time.Time) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM sessions WHERE teacher_id = $1 AND date = $2)`
	if err := r.db.GetContext(ctx, &exists, query, teacherID, date); err != nil {
		return false, fmt.Errorf("check teacher session exists: %w", err)
	}
	return exists, nil
}

// CountEnrolled returns the number of registrations held against a session.
func (r *SessionRepository) CountEnrolled(ctx context.Context, sessionID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM registrations WHERE session_id = $1`
	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count enrolled: %w", err)
	}
	return count, nil
}

// CreateBatch inserts one or more sessions atomically. All sessions are
// created or none are.
func (r *SessionRepository) CreateBatch(ctx context.Context, sessions []*models.Session) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO sessions (id, date, teacher_id, room_number, capacity, title, long_description, allowed_grades, created_from_template_id, created_at, updated_at)
VALUES (:id, :date, :teacher_id, :room_number, :capacity, :title, :long_description, :allowed_grades, :created_from_template_id, :created_at, :updated_at)`
	now := time.Now().UTC()
	for _, session := range sessions {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		session.CreatedAt = now
		session.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, session); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit session batch: %w", err)
	}
	return nil
}

// Update persists mutable fields of a session.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET room_number = :room_number, capacity = :capacity, title = :title,
long_description = :long_description, allowed_grades = :allowed_grades, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// DeleteCascade removes a session together with its registrations, in one
// transaction. Returns the student IDs that were registered so the caller
// can notify them.
func (r *SessionRepository) DeleteCascade(ctx context.Context, sessionID string) (studentIDs []string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.SelectContext(ctx, &studentIDs,
		`SELECT student_id FROM registrations WHERE session_id = $1`, sessionID); err != nil {
		return nil, fmt.Errorf("collect session students: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM registrations WHERE session_id = $1`, sessionID); err != nil {
		return nil, fmt.Errorf("delete session registrations: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session delete: %w", err)
	}
	return studentIDs, nil
}

// CountOverCapacity counts upcoming sessions with more registrations than
// seats. Locked registrations can push a session past capacity.
func (r *SessionRepository) CountOverCapacity(ctx context.Context, from time.Time) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM sessions s
WHERE s.date >= $1
  AND (SELECT COUNT(*) FROM registrations reg WHERE reg.session_id = s.id) > s.capacity`
	if err := r.db.GetContext(ctx, &count, query, from); err != nil {
		return 0, fmt.Errorf("count over-capacity sessions: %w", err)
	}
	return count, nil
}

// CountEmpty counts upcoming sessions with no registrations at all.
func (r *SessionRepository) CountEmpty(ctx context.Context, from time.Time) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM sessions s
WHERE s.date >= $1
  AND NOT EXISTS (SELECT 1 FROM registrations reg WHERE reg.session_id = s.id)`
	if err := r.db.GetContext(ctx, &count, query, from); err != nil {
		return 0, fmt.Errorf("count empty sessions: %w", err)
	}
	return count, nil
}

// CreateTemplate saves a reusable session definition.
func (r *SessionRepository) CreateTemplate(ctx context.Context, tmpl *models.SessionTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	tmpl.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO session_templates (id, teacher_id, name, room_number, capacity, title, long_description, allowed_grades, created_at)
VALUES (:id, :teacher_id, :name, :room_number, :capacity, :title, :long_description, :allowed_grades, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tmpl); err != nil {
		return fmt.Errorf("insert session template: %w", err)
	}
	return nil
}

// FindTemplateByID fetches a session template by primary key.
func (r *SessionRepository) FindTemplateByID(ctx context.Context, id string) (*models.SessionTemplate, error) {
	var tmpl models.SessionTemplate
	const query = `SELECT * FROM session_templates WHERE id = $1`
	if err := r.db.GetContext(ctx, &tmpl, query, id); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// ListTemplatesByTeacher returns a teacher's saved templates by name.
func (r *SessionRepository) ListTemplatesByTeacher(ctx context.Context, teacherID string) ([]models.SessionTemplate, error) {
	const query = `SELECT * FROM session_templates WHERE teacher_id = $1 ORDER BY name ASC`
	var templates []models.SessionTemplate
	if err := r.db.SelectContext(ctx, &templates, query, teacherID); err != nil {
		return nil, fmt.Errorf("list session templates: %w", err)
	}
	return templates, nil
}

// DeleteTemplate removes a saved template.
func (r *SessionRepository) DeleteTemplate(ctx context.Context, id string) error {
	const query = `DELETE FROM session_templates WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session template: %w", err)
	}
	return nil
}
