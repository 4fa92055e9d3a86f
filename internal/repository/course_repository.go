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

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindBySemesterAndCode resolves a course by its natural key within a
// semester. Course codes are only unique per semester, never globally.
func (r *CourseRepository) FindBySemesterAndCode(ctx context.Context, semesterID, code string) (*models.Course, error) {
	const query = `SELECT id, code, name, semester_id, created_at, updated_at FROM courses WHERE semester_id = $1 AND code = $2`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, semesterID, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByCode checks if another course in the same semester uses the code.
func (r *CourseRepository) ExistsByCode(ctx context.Context, semesterID, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE semester_id = $1 AND code = $2"
	args := []interface{}{semesterID, code}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Search returns courses whose code or name contains the query. An empty
// query matches every course; a semester id narrows the scope.
func (r *CourseRepository) Search(ctx context.Context, query string, semesterID string) ([]models.CourseWithSemester, error) {
	base := `SELECT c.id, c.code, c.name, c.semester_id, c.created_at, c.updated_at, s.name AS semester_name
		FROM courses c JOIN semesters s ON s.id = c.semester_id WHERE 1=1`
	var args []interface{}

	if semesterID != "" {
		base += fmt.Sprintf(" AND c.semester_id = $%d", len(args)+1)
		args = append(args, semesterID)
	}
	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		base += fmt.Sprintf(" AND (LOWER(c.code) LIKE $%d OR LOWER(c.name) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, pattern)
	}
	base += " ORDER BY c.created_at, c.id"

	var courses []models.CourseWithSemester
	if err := r.db.SelectContext(ctx, &courses, base, args...); err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	return courses, nil
}

// InstructorIDs returns the distinct instructors of record across the
// course's sections. Used by the permission engine for the instructor
// self-service policy.
func (r *CourseRepository) InstructorIDs(ctx context.Context, courseID string) ([]string, error) {
	const query = `SELECT DISTINCT instructor_id FROM course_sections WHERE course_id = $1 AND instructor_id IS NOT NULL`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("course instructors: %w", err)
	}
	return ids, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, code, name, semester_id, created_at, updated_at)
		VALUES (:id, :code, :name, :semester_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course record.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, name = :name, semester_id = :semester_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// DeleteCascade removes a course with its sections and assignments in a
// single transaction.
func (r *CourseRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	statements := []string{
		`DELETE FROM ta_lab_assignments WHERE lab_section_id IN (SELECT id FROM lab_sections WHERE course_id = $1)`,
		`DELETE FROM lab_sections WHERE course_id = $1`,
		`DELETE FROM course_sections WHERE course_id = $1`,
		`DELETE FROM ta_course_assignments WHERE course_id = $1`,
		`DELETE FROM courses WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("cascade delete course: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit course delete: %w", err)
	}
	return nil
}
