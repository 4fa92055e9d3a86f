package models

import "time"

// Course belongs to exactly one semester. (Code, SemesterID) is unique.
type Course struct {
	ID         string    `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	SemesterID string    `db:"semester_id" json:"semester_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CourseWithSemester enriches a course row with its semester name for search
// results and exports.
type CourseWithSemester struct {
	Course
	SemesterName string `db:"semester_name" json:"semester_name"`
}

// SectionType distinguishes scheduled course sections from lab sections.
type SectionType string

const (
	SectionTypeCourse SectionType = "course"
	SectionTypeLab    SectionType = "lab"
)

// Valid reports whether the section type is known.
func (t SectionType) Valid() bool {
	return t == SectionTypeCourse || t == SectionTypeLab
}

// CourseSection is a scheduled meeting block taught by an instructor.
// (CourseID, SectionNumber) is unique. InstructorID is nullable so that
// deleting an instructor keeps the section itself intact.
type CourseSection struct {
	ID            string    `db:"id" json:"id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	SectionNumber int       `db:"section_number" json:"section_number"`
	InstructorID  *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	Days          *string   `db:"days" json:"days,omitempty"`
	StartTime     string    `db:"start_time" json:"start_time"`
	EndTime       string    `db:"end_time" json:"end_time"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// LabSection is a lab meeting block with zero or one assigned TA.
// (CourseID, SectionNumber) is unique.
type LabSection struct {
	ID            string    `db:"id" json:"id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	SectionNumber int       `db:"section_number" json:"section_number"`
	Days          *string   `db:"days" json:"days,omitempty"`
	StartTime     string    `db:"start_time" json:"start_time"`
	EndTime       string    `db:"end_time" json:"end_time"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CourseSectionDetail joins a course section with its instructor's display
// fields for the overview aggregator.
type CourseSectionDetail struct {
	CourseSection
	InstructorUsername  *string `db:"instructor_username"`
	InstructorFirstName *string `db:"instructor_first_name"`
	InstructorLastName  *string `db:"instructor_last_name"`
}

// LabSectionDetail joins a lab section with its assigned TA, resolved by the
// first-assignment-wins policy.
type LabSectionDetail struct {
	LabSection
	TAUsername  *string `db:"ta_username"`
	TAFirstName *string `db:"ta_first_name"`
	TALastName  *string `db:"ta_last_name"`
}
