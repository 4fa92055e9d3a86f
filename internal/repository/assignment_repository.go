package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

// AssignmentRepository manages TA course and lab assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FirstLabAssignment returns the earliest-created assignment for a lab
// section, the read that enforces the one-TA-per-lab policy.
func (r *AssignmentRepository) FirstLabAssignment(ctx context.Context, labSectionID string) (*models.TALabAssignment, error) {
	const query = `SELECT id, lab_section_id, ta_id, created_at FROM ta_lab_assignments
		WHERE lab_section_id = $1 ORDER BY created_at, id LIMIT 1`
	var assignment models.TALabAssignment
	if err := r.db.GetContext(ctx, &assignment, query, labSectionID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// CreateLabAssignment inserts a lab assignment.
func (r *AssignmentRepository) CreateLabAssignment(ctx context.Context, assignment *models.TALabAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ta_lab_assignments (id, lab_section_id, ta_id, created_at)
		VALUES (:id, :lab_section_id, :ta_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create lab assignment: %w", err)
	}
	return nil
}

// DeleteLabAssignmentsBySection clears every assignment for a lab section.
func (r *AssignmentRepository) DeleteLabAssignmentsBySection(ctx context.Context, labSectionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ta_lab_assignments WHERE lab_section_id = $1`, labSectionID); err != nil {
		return fmt.Errorf("delete lab assignments: %w", err)
	}
	return nil
}

// ListLabAssignmentsByTA returns a TA's lab assignments with section and
// course context.
func (r *AssignmentRepository) ListLabAssignmentsByTA(ctx context.Context, taID string) ([]models.TALabAssignmentDetail, error) {
	const query = `SELECT a.id, a.lab_section_id, a.ta_id, a.created_at,
			ls.section_number, ls.course_id, c.code AS course_code, c.name AS course_name
		FROM ta_lab_assignments a
		JOIN lab_sections ls ON ls.id = a.lab_section_id
		JOIN courses c ON c.id = ls.course_id
		WHERE a.ta_id = $1
		ORDER BY a.created_at, a.id`
	var assignments []models.TALabAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, taID); err != nil {
		return nil, fmt.Errorf("list lab assignments: %w", err)
	}
	return assignments, nil
}

// FindCourseAssignment fetches a TA's assignment to a course, if any.
func (r *AssignmentRepository) FindCourseAssignment(ctx context.Context, taID, courseID string) (*models.TACourseAssignment, error) {
	const query = `SELECT id, ta_id, course_id, grader_status, created_at FROM ta_course_assignments
		WHERE ta_id = $1 AND course_id = $2`
	var assignment models.TACourseAssignment
	if err := r.db.GetContext(ctx, &assignment, query, taID, courseID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// CreateCourseAssignment inserts a course assignment.
func (r *AssignmentRepository) CreateCourseAssignment(ctx context.Context, assignment *models.TACourseAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ta_course_assignments (id, ta_id, course_id, grader_status, created_at)
		VALUES (:id, :ta_id, :course_id, :grader_status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create course assignment: %w", err)
	}
	return nil
}

// UpdateCourseAssignment updates the grader flag on an existing assignment.
func (r *AssignmentRepository) UpdateCourseAssignment(ctx context.Context, assignment *models.TACourseAssignment) error {
	const query = `UPDATE ta_course_assignments SET grader_status = :grader_status WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update course assignment: %w", err)
	}
	return nil
}

// DeleteCourseAssignment removes a TA's assignment to a course.
func (r *AssignmentRepository) DeleteCourseAssignment(ctx context.Context, taID, courseID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ta_course_assignments WHERE ta_id = $1 AND course_id = $2`, taID, courseID); err != nil {
		return fmt.Errorf("delete course assignment: %w", err)
	}
	return nil
}

// ListCourseAssignmentsByTA returns a TA's course assignments with course
// context.
func (r *AssignmentRepository) ListCourseAssignmentsByTA(ctx context.Context, taID string) ([]models.TACourseAssignmentDetail, error) {
	const query = `SELECT a.id, a.ta_id, a.course_id, a.grader_status, a.created_at,
			c.code AS course_code, c.name AS course_name
		FROM ta_course_assignments a
		JOIN courses c ON c.id = a.course_id
		WHERE a.ta_id = $1
		ORDER BY a.created_at, a.id`
	var assignments []models.TACourseAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, taID); err != nil {
		return nil, fmt.Errorf("list course assignments: %w", err)
	}
	return assignments, nil
}
