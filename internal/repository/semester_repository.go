package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

// SemesterRepository manages persistence for semesters.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository constructs a SemesterRepository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// List returns every semester ordered by start date.
func (r *SemesterRepository) List(ctx context.Context) ([]models.Semester, error) {
	const query = `SELECT id, name, start_date, end_date, created_at, updated_at FROM semesters ORDER BY start_date`
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// Search returns semesters whose name contains the query, case-insensitively.
func (r *SemesterRepository) Search(ctx context.Context, query string) ([]models.Semester, error) {
	const q = `SELECT id, name, start_date, end_date, created_at, updated_at FROM semesters WHERE LOWER(name) LIKE $1 ORDER BY start_date`
	pattern := "%" + strings.ToLower(query) + "%"
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, q, pattern); err != nil {
		return nil, fmt.Errorf("search semesters: %w", err)
	}
	return semesters, nil
}

// FindByName fetches a semester by its natural key.
func (r *SemesterRepository) FindByName(ctx context.Context, name string) (*models.Semester, error) {
	const query = `SELECT id, name, start_date, end_date, created_at, updated_at FROM semesters WHERE name = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, name); err != nil {
		return nil, err
	}
	return &semester, nil
}

// ExistsByName checks if another semester uses the same name.
func (r *SemesterRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM semesters WHERE name = $1"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check semester name: %w", err)
	}
	return true, nil
}

// Create inserts a new semester record.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if semester.CreatedAt.IsZero() {
		semester.CreatedAt = now
	}
	semester.UpdatedAt = now

	const query = `INSERT INTO semesters (id, name, start_date, end_date, created_at, updated_at)
		VALUES (:id, :name, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("create semester: %w", err)
	}
	return nil
}

// Update modifies an existing semester record.
func (r *SemesterRepository) Update(ctx context.Context, semester *models.Semester) error {
	semester.UpdatedAt = time.Now().UTC()
	const query = `UPDATE semesters SET name = :name, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("update semester: %w", err)
	}
	return nil
}

// DeleteCascade removes a semester together with its courses, sections and
// assignments in a single transaction.
func (r *SemesterRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin semester delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	statements := []string{
		`DELETE FROM ta_lab_assignments WHERE lab_section_id IN (
			SELECT ls.id FROM lab_sections ls JOIN courses c ON c.id = ls.course_id WHERE c.semester_id = $1)`,
		`DELETE FROM lab_sections WHERE course_id IN (SELECT id FROM courses WHERE semester_id = $1)`,
		`DELETE FROM course_sections WHERE course_id IN (SELECT id FROM courses WHERE semester_id = $1)`,
		`DELETE FROM ta_course_assignments WHERE course_id IN (SELECT id FROM courses WHERE semester_id = $1)`,
		`DELETE FROM courses WHERE semester_id = $1`,
		`DELETE FROM semesters WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("cascade delete semester: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit semester delete: %w", err)
	}
	return nil
}
