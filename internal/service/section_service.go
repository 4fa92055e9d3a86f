package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/authz"
	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/internal/repository"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

// timeLayout is the wire format for section meeting times.
const timeLayout = "15:04"

type sectionRepository interface {
	ListCourseSections(ctx context.Context, courseID string) ([]models.CourseSectionDetail, error)
	ListLabSections(ctx context.Context, courseID string) ([]models.LabSectionDetail, error)
	FindCourseSection(ctx context.Context, courseID string, number int) (*models.CourseSection, error)
	FindLabSection(ctx context.Context, courseID string, number int) (*models.LabSection, error)
	ExistsCourseSection(ctx context.Context, courseID string, number int, excludeID string) (bool, error)
	ExistsLabSection(ctx context.Context, courseID string, number int, excludeID string) (bool, error)
	CreateCourseSection(ctx context.Context, section *models.CourseSection) error
	UpdateCourseSection(ctx context.Context, section *models.CourseSection) error
	DeleteCourseSection(ctx context.Context, id string) error
	CreateLabSection(ctx context.Context, section *models.LabSection) error
	UpdateLabSection(ctx context.Context, section *models.LabSection) error
	DeleteLabSection(ctx context.Context, id string) error
}

type staffLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

type assignmentRepository interface {
	FirstLabAssignment(ctx context.Context, labSectionID string) (*models.TALabAssignment, error)
	CreateLabAssignment(ctx context.Context, assignment *models.TALabAssignment) error
	DeleteLabAssignmentsBySection(ctx context.Context, labSectionID string) error
	FindCourseAssignment(ctx context.Context, taID, courseID string) (*models.TACourseAssignment, error)
	CreateCourseAssignment(ctx context.Context, assignment *models.TACourseAssignment) error
	UpdateCourseAssignment(ctx context.Context, assignment *models.TACourseAssignment) error
	DeleteCourseAssignment(ctx context.Context, taID, courseID string) error
}

// SaveSectionRequest represents payload for creating or updating a section.
// Course sections require an instructor; lab sections never carry one here.
type SaveSectionRequest struct {
	Type               models.SectionType `json:"type" validate:"required"`
	SectionNumber      int                `json:"section_number" validate:"min=1"`
	Days               *string            `json:"days"`
	StartTime          string             `json:"start_time" validate:"required"`
	EndTime            string             `json:"end_time" validate:"required"`
	InstructorUsername string             `json:"instructor_username"`
}

// AssignStaffRequest assigns an instructor to a course section or a TA to a
// lab section.
type AssignStaffRequest struct {
	Username string `json:"username" validate:"required"`
}

// AssignCourseTARequest links a TA to a course with a grader flag.
type AssignCourseTARequest struct {
	Username     string `json:"username" validate:"required"`
	GraderStatus bool   `json:"grader_status"`
}

// SectionService orchestrates section and assignment operations.
type SectionService struct {
	sections    sectionRepository
	courses     courseRepository
	semesters   semesterRepository
	users       staffLookup
	assignments assignmentRepository
	engine      *authz.Engine
	cache       cacheStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSectionService constructs a SectionService.
func NewSectionService(sections sectionRepository, courses courseRepository, semesters semesterRepository, users staffLookup, assignments assignmentRepository, engine *authz.Engine, cache cacheStore, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{
		sections:    sections,
		courses:     courses,
		semesters:   semesters,
		users:       users,
		assignments: assignments,
		engine:      engine,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

func (s *SectionService) resolveCourse(ctx context.Context, semesterName, code string) (*models.Semester, *models.Course, error) {
	semester, err := s.semesters.FindByName(ctx, semesterName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	course, err := s.courses.FindBySemesterAndCode(ctx, semester.ID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found in semester")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return semester, course, nil
}

func (s *SectionService) authorizeManage(ctx context.Context, principal authz.Principal, action authz.Action, courseID string) error {
	instructorIDs, err := s.courses.InstructorIDs(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course instructors")
	}
	return s.engine.Authorize(principal, action, authz.Target{CourseInstructorIDs: instructorIDs})
}

// Save creates or updates a section of a course. When existingNumber is
// provided the section identified by it is updated; the duplicate check
// excludes that section so renumbering to its own number never fails.
func (s *SectionService) Save(ctx context.Context, principal authz.Principal, semesterName, courseCode string, req SaveSectionRequest, existingNumber *int) error {
	if !req.Type.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidFormat, "section type must be course or lab")
	}
	if req.SectionNumber < 1 {
		return appErrors.Clone(appErrors.ErrMissingField, "section number is required")
	}
	if req.StartTime == "" || req.EndTime == "" {
		return appErrors.Clone(appErrors.ErrMissingField, "start and end times are required")
	}
	if _, err := time.Parse(timeLayout, req.StartTime); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidFormat, "start time must be formatted HH:MM")
	}
	if _, err := time.Parse(timeLayout, req.EndTime); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidFormat, "end time must be formatted HH:MM")
	}

	semester, course, err := s.resolveCourse(ctx, semesterName, courseCode)
	if err != nil {
		return err
	}
	if err := s.authorizeManage(ctx, principal, authz.ActionManageSection, course.ID); err != nil {
		return err
	}

	if req.Type == models.SectionTypeCourse {
		return s.saveCourseSection(ctx, semester, course, req, existingNumber)
	}
	return s.saveLabSection(ctx, semester, course, req, existingNumber)
}

func (s *SectionService) saveCourseSection(ctx context.Context, semester *models.Semester, course *models.Course, req SaveSectionRequest, existingNumber *int) error {
	if strings.TrimSpace(req.InstructorUsername) == "" {
		return appErrors.Clone(appErrors.ErrMissingField, "course sections require an instructor")
	}
	instructor, err := s.users.FindByUsername(ctx, req.InstructorUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if instructor.Role != models.RoleInstructor {
		return appErrors.Clone(appErrors.ErrRoleMismatch, "course section staff must hold the Instructor role")
	}

	var section *models.CourseSection
	if existingNumber != nil {
		section, err = s.sections.FindCourseSection(ctx, course.ID, *existingNumber)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "course section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course section")
		}
	}

	excludeID := ""
	if section != nil {
		excludeID = section.ID
	}
	exists, err := s.sections.ExistsCourseSection(ctx, course.ID, req.SectionNumber, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateField, "a course section with this number already exists for the course")
	}

	if section == nil {
		section = &models.CourseSection{CourseID: course.ID}
	}
	section.SectionNumber = req.SectionNumber
	section.InstructorID = &instructor.ID
	section.Days = req.Days
	section.StartTime = req.StartTime
	section.EndTime = req.EndTime

	if excludeID == "" {
		err = s.sections.CreateCourseSection(ctx, section)
	} else {
		err = s.sections.UpdateCourseSection(ctx, section)
	}
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicateField, "a course section with this number already exists for the course")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save course section")
	}

	s.invalidateOverview(ctx, semester.Name, course.Code)
	return nil
}

func (s *SectionService) saveLabSection(ctx context.Context, semester *models.Semester, course *models.Course, req SaveSectionRequest, existingNumber *int) error {
	var section *models.LabSection
	var err error
	if existingNumber != nil {
		section, err = s.sections.FindLabSection(ctx, course.ID, *existingNumber)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "lab section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab section")
		}
	}

	excludeID := ""
	if section != nil {
		excludeID = section.ID
	}
	exists, err := s.sections.ExistsLabSection(ctx, course.ID, req.SectionNumber, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateField, "a lab section with this number already exists for the course")
	}

	if section == nil {
		section = &models.LabSection{CourseID: course.ID}
	}
	section.SectionNumber = req.SectionNumber
	section.Days = req.Days
	section.StartTime = req.StartTime
	section.EndTime = req.EndTime

	if excludeID == "" {
		err = s.sections.CreateLabSection(ctx, section)
	} else {
		err = s.sections.UpdateLabSection(ctx, section)
	}
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicateField, "a lab section with this number already exists for the course")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save lab section")
	}

	s.invalidateOverview(ctx, semester.Name, course.Code)
	return nil
}

// Delete removes a section of either type.
func (s *SectionService) Delete(ctx context.Context, principal authz.Principal, semesterName, courseCode string, sectionType models.SectionType, number int) error {
	if !sectionType.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidFormat, "section type must be course or lab")
	}
	semester, course, err := s.resolveCourse(ctx, semesterName, courseCode)
	if err != nil {
		return err
	}
	if err := s.authorizeManage(ctx, principal, authz.ActionManageSection, course.ID); err != nil {
		return err
	}

	if sectionType == models.SectionTypeCourse {
		section, err := s.sections.FindCourseSection(ctx, course.ID, number)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "course section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course section")
		}
		if err := s.sections.DeleteCourseSection(ctx, section.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course section")
		}
	} else {
		section, err := s.sections.FindLabSection(ctx, course.ID, number)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "lab section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab section")
		}
		if err := s.sections.DeleteLabSection(ctx, section.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lab section")
		}
	}

	s.invalidateOverview(ctx, semester.Name, course.Code)
	return nil
}

// AssignStaff sets the instructor of a course section or the TA of a lab
// section, enforcing role fitness. Assigning a lab TA replaces any existing
// assignment so the one-TA-per-lab policy holds.
func (s *SectionService) AssignStaff(ctx context.Context, principal authz.Principal, semesterName, courseCode string, sectionType models.SectionType, number int, req AssignStaffRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	if !sectionType.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidFormat, "section type must be course or lab")
	}

	semester, course, err := s.resolveCourse(ctx, semesterName, courseCode)
	if err != nil {
		return err
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if sectionType == models.SectionTypeCourse {
		if err := s.authorizeManage(ctx, principal, authz.ActionManageSection, course.ID); err != nil {
			return err
		}
		if user.Role != models.RoleInstructor {
			return appErrors.Clone(appErrors.ErrRoleMismatch, "course section staff must hold the Instructor role")
		}
		section, err := s.sections.FindCourseSection(ctx, course.ID, number)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "course section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course section")
		}
		previousID := ""
		if section.InstructorID != nil {
			previousID = *section.InstructorID
		}
		section.InstructorID = &user.ID
		if err := s.sections.UpdateCourseSection(ctx, section); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign instructor")
		}
		invalidateProfileKeys(ctx, s.cache, s.logger, user.Username)
		if previousID != "" && previousID != user.ID {
			s.invalidateProfileByID(ctx, previousID)
		}
	} else {
		if err := s.engine.Authorize(principal, authz.ActionManageAssignment, authz.Target{}); err != nil {
			return err
		}
		if user.Role != models.RoleTA {
			return appErrors.Clone(appErrors.ErrRoleMismatch, "lab section staff must hold the TA role")
		}
		section, err := s.sections.FindLabSection(ctx, course.ID, number)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "lab section not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab section")
		}
		// The single-occupancy replacement displaces any sitting TA, whose
		// cached profile goes stale along with the incoming one's.
		displacedID := s.currentLabTA(ctx, section.ID)
		if err := s.assignments.DeleteLabAssignmentsBySection(ctx, section.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear lab assignment")
		}
		assignment := &models.TALabAssignment{LabSectionID: section.ID, TAID: user.ID}
		if err := s.assignments.CreateLabAssignment(ctx, assignment); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign lab TA")
		}
		invalidateProfileKeys(ctx, s.cache, s.logger, user.Username)
		if displacedID != "" && displacedID != user.ID {
			s.invalidateProfileByID(ctx, displacedID)
		}
	}

	s.invalidateOverview(ctx, semester.Name, course.Code)
	return nil
}

// UnassignLabTA clears the TA assignment of a lab section.
func (s *SectionService) UnassignLabTA(ctx context.Context, principal authz.Principal, semesterName, courseCode string, number int) error {
	if err := s.engine.Authorize(principal, authz.ActionManageAssignment, authz.Target{}); err != nil {
		return err
	}
	semester, course, err := s.resolveCourse(ctx, semesterName, courseCode)
	if err != nil {
		return err
	}
	section, err := s.sections.FindLabSection(ctx, course.ID, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lab section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab section")
	}
	displacedID := s.currentLabTA(ctx, section.ID)
	if err := s.assignments.DeleteLabAssignmentsBySection(ctx, section.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear lab assignment")
	}
	s.invalidateOverview(ctx, semester.Name, course.Code)
	s.invalidateProfileByID(ctx, displacedID)
	return nil
}

// AssignCourseTA links a TA to a course, updating the grader flag when the
// assignment already exists.
func (s *SectionService) AssignCourseTA(ctx context.Context, principal authz.Principal, semesterName, courseCode string, req AssignCourseTARequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if err := s.engine.Authorize(principal, authz.ActionManageAssignment, authz.Target{}); err != nil {
		return err
	}

	_, course, err := s.resolveCourse(ctx, semesterName, courseCode)
	if err != nil {
		return err
	}
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleTA {
		return appErrors.Clone(appErrors.ErrRoleMismatch, "course assignments require the TA role")
	}

	existing, err := s.assignments.FindCourseAssignment(ctx, user.ID, course.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course assignment")
	}
	if existing != nil {
		existing.GraderStatus = req.GraderStatus
		if err := s.assignments.UpdateCourseAssignment(ctx, existing); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course assignment")
		}
		invalidateProfileKeys(ctx, s.cache, s.logger, user.Username)
		return nil
	}

	assignment := &models.TACourseAssignment{TAID: user.ID, CourseID: course.ID, GraderStatus: req.GraderStatus}
	if err := s.assignments.CreateCourseAssignment(ctx, assignment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course assignment")
	}
	invalidateProfileKeys(ctx, s.cache, s.logger, user.Username)
	return nil
}

// RemoveCourseTA deletes a TA's course assignment.
func (s *SectionService) RemoveCourseTA(ctx context.Context, principal authz.Principal, semesterName, courseCode, username string) error {
	if err := s.engine.Authorize(principal, authz.ActionManageAssignment, authz.Target{}); err != nil {
		return err
	}
	_, course, err := s.resolveCourse(ctx, semesterName, courseCode)
	if err != nil {
		return err
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.assignments.DeleteCourseAssignment(ctx, user.ID, course.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course assignment")
	}
	invalidateProfileKeys(ctx, s.cache, s.logger, user.Username)
	return nil
}

func (s *SectionService) invalidateOverview(ctx context.Context, semesterName, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, overviewCacheKey(semesterName, code)); err != nil {
		s.logger.Warn("failed to invalidate course overview cache", zap.Error(err))
	}
}

// currentLabTA returns the ID of the TA holding the lab section, empty when
// the section is vacant.
func (s *SectionService) currentLabTA(ctx context.Context, labSectionID string) string {
	assignment, err := s.assignments.FirstLabAssignment(ctx, labSectionID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load lab assignment", zap.Error(err))
		}
		return ""
	}
	if assignment == nil {
		return ""
	}
	return assignment.TAID
}

func (s *SectionService) invalidateProfileByID(ctx context.Context, userID string) {
	if s.cache == nil || userID == "" {
		return
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to resolve user for cache invalidation", zap.Error(err))
		}
		return
	}
	invalidateProfileKeys(ctx, s.cache, s.logger, user.Username)
}
