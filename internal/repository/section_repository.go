package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

// SectionRepository manages persistence for course and lab sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// ListCourseSections returns a course's sections with instructor display
// fields, in insertion order.
func (r *SectionRepository) ListCourseSections(ctx context.Context, courseID string) ([]models.CourseSectionDetail, error) {
	const query = `SELECT cs.id, cs.course_id, cs.section_number, cs.instructor_id, cs.days, cs.start_time, cs.end_time, cs.created_at, cs.updated_at,
			u.username AS instructor_username, u.first_name AS instructor_first_name, u.last_name AS instructor_last_name
		FROM course_sections cs
		LEFT JOIN users u ON u.id = cs.instructor_id
		WHERE cs.course_id = $1
		ORDER BY cs.created_at, cs.id`
	var sections []models.CourseSectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list course sections: %w", err)
	}
	return sections, nil
}

// ListLabSections returns a course's lab sections with their assigned TA, in
// insertion order. When multiple assignments exist for a lab section the
// earliest-created one wins.
func (r *SectionRepository) ListLabSections(ctx context.Context, courseID string) ([]models.LabSectionDetail, error) {
	const query = `SELECT ls.id, ls.course_id, ls.section_number, ls.days, ls.start_time, ls.end_time, ls.created_at, ls.updated_at,
			u.username AS ta_username, u.first_name AS ta_first_name, u.last_name AS ta_last_name
		FROM lab_sections ls
		LEFT JOIN LATERAL (
			SELECT ta_id FROM ta_lab_assignments a WHERE a.lab_section_id = ls.id ORDER BY a.created_at, a.id LIMIT 1
		) first_assignment ON TRUE
		LEFT JOIN users u ON u.id = first_assignment.ta_id
		WHERE ls.course_id = $1
		ORDER BY ls.created_at, ls.id`
	var sections []models.LabSectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list lab sections: %w", err)
	}
	return sections, nil
}

// FindCourseSection fetches a course section by course and section number.
func (r *SectionRepository) FindCourseSection(ctx context.Context, courseID string, number int) (*models.CourseSection, error) {
	const query = `SELECT id, course_id, section_number, instructor_id, days, start_time, end_time, created_at, updated_at
		FROM course_sections WHERE course_id = $1 AND section_number = $2`
	var section models.CourseSection
	if err := r.db.GetContext(ctx, &section, query, courseID, number); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindLabSection fetches a lab section by course and section number.
func (r *SectionRepository) FindLabSection(ctx context.Context, courseID string, number int) (*models.LabSection, error) {
	const query = `SELECT id, course_id, section_number, days, start_time, end_time, created_at, updated_at
		FROM lab_sections WHERE course_id = $1 AND section_number = $2`
	var section models.LabSection
	if err := r.db.GetContext(ctx, &section, query, courseID, number); err != nil {
		return nil, err
	}
	return &section, nil
}

// ExistsCourseSection checks if another course section uses the number
// within the course. The section being updated identifies itself by
// excludeID so renumbering a section to its own number never collides.
func (r *SectionRepository) ExistsCourseSection(ctx context.Context, courseID string, number int, excludeID string) (bool, error) {
	return r.existsSection(ctx, "course_sections", courseID, number, excludeID)
}

// ExistsLabSection checks if another lab section uses the number within the
// course.
func (r *SectionRepository) ExistsLabSection(ctx context.Context, courseID string, number int, excludeID string) (bool, error) {
	return r.existsSection(ctx, "lab_sections", courseID, number, excludeID)
}

func (r *SectionRepository) existsSection(ctx context.Context, table, courseID string, number int, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE course_id = $1 AND section_number = $2", table)
	args := []interface{}{courseID, number}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check section number: %w", err)
	}
	return true, nil
}

// CreateCourseSection inserts a new course section.
func (r *SectionRepository) CreateCourseSection(ctx context.Context, section *models.CourseSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now

	const query = `INSERT INTO course_sections (id, course_id, section_number, instructor_id, days, start_time, end_time, created_at, updated_at)
		VALUES (:id, :course_id, :section_number, :instructor_id, :days, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create course section: %w", err)
	}
	return nil
}

// UpdateCourseSection modifies an existing course section.
func (r *SectionRepository) UpdateCourseSection(ctx context.Context, section *models.CourseSection) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE course_sections SET section_number = :section_number, instructor_id = :instructor_id, days = :days,
		start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update course section: %w", err)
	}
	return nil
}

// DeleteCourseSection removes a course section.
func (r *SectionRepository) DeleteCourseSection(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM course_sections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course section: %w", err)
	}
	return nil
}

// CreateLabSection inserts a new lab section.
func (r *SectionRepository) CreateLabSection(ctx context.Context, section *models.LabSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now

	const query = `INSERT INTO lab_sections (id, course_id, section_number, days, start_time, end_time, created_at, updated_at)
		VALUES (:id, :course_id, :section_number, :days, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create lab section: %w", err)
	}
	return nil
}

// UpdateLabSection modifies an existing lab section.
func (r *SectionRepository) UpdateLabSection(ctx context.Context, section *models.LabSection) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lab_sections SET section_number = :section_number, days = :days,
		start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update lab section: %w", err)
	}
	return nil
}

// DeleteLabSection removes a lab section and its TA assignments in one
// transaction.
func (r *SectionRepository) DeleteLabSection(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lab section delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM ta_lab_assignments WHERE lab_section_id = $1`, id); err != nil {
		return fmt.Errorf("delete lab assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lab_sections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete lab section: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lab section delete: %w", err)
	}
	return nil
}
