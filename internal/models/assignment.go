package models

import "time"

// TACourseAssignment links a TA to a course with an independent grader flag.
type TACourseAssignment struct {
	ID           string    `db:"id" json:"id"`
	TAID         string    `db:"ta_id" json:"ta_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	GraderStatus bool      `db:"grader_status" json:"grader_status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TALabAssignment links a TA to a lab section. At most one TA per lab
// section by policy; reads resolve duplicates by earliest CreatedAt.
type TALabAssignment struct {
	ID           string    `db:"id" json:"id"`
	LabSectionID string    `db:"lab_section_id" json:"lab_section_id"`
	TAID         string    `db:"ta_id" json:"ta_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TACourseAssignmentDetail enriches a course assignment with course fields.
type TACourseAssignmentDetail struct {
	TACourseAssignment
	CourseCode string `db:"course_code"`
	CourseName string `db:"course_name"`
}

// TALabAssignmentDetail enriches a lab assignment with section and course
// fields for profile aggregation.
type TALabAssignmentDetail struct {
	TALabAssignment
	SectionNumber int    `db:"section_number"`
	CourseID      string `db:"course_id"`
	CourseCode    string `db:"course_code"`
	CourseName    string `db:"course_name"`
}
