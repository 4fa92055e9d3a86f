package models

// Read-only projections assembled by the aggregation services. Never
// persisted.

// UserRef exposes just enough to display a user's name and link to their
// profile.
type UserRef struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// CourseRef exposes a course code and name.
type CourseRef struct {
	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
}

// SectionRef exposes a section number and the staff member teaching it: the
// instructor for course sections, the assigned TA for lab sections. Nil when
// nobody is assigned.
type SectionRef struct {
	SectionNumber string   `json:"section_number"`
	Instructor    *UserRef `json:"instructor"`
}

// CourseOverview aggregates a course with its sections. Section ordering
// follows storage insertion order; callers sort themselves if needed.
type CourseOverview struct {
	Code           string       `json:"code"`
	Name           string       `json:"name"`
	Semester       string       `json:"semester"`
	CourseSections []SectionRef `json:"course_sections"`
	LabSections    []SectionRef `json:"lab_sections"`
}

// TACourseRef describes a TA's connection to a course: the course, its
// primary instructor if one exists, the TA's grader status, and the sorted
// lab section numbers the TA proctors within the course.
type TACourseRef struct {
	CourseRef
	Instructor          *UserRef `json:"instructor"`
	IsGrader            bool     `json:"is_grader"`
	AssignedLabSections []int    `json:"assigned_lab_sections"`
}

// UserProfile is the role-appropriate projection of a user. The private
// fields (Address, Phone) are populated only when the requesting principal
// is an admin; the TA fields only when the target user is a TA. The
// projection width is selected once at the aggregation boundary.
type UserProfile struct {
	Name            string      `json:"name"`
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	Role            UserRole    `json:"role"`
	OfficeHours     *string     `json:"office_hours"`
	CoursesAssigned []CourseRef `json:"courses_assigned"`

	// Private extension, admin requesters only.
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`

	// TA extension, TA targets only.
	LabAssignments    []int         `json:"lab_assignments,omitempty"`
	CourseAssignments []TACourseRef `json:"course_assignments,omitempty"`
}
