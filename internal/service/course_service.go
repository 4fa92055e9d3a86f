package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/internal/repository"
	"github.com/campusops/ta-scheduler-api/pkg/config"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

type courseRepository interface {
	FindBySemesterAndCode(ctx context.Context, semesterID, code string) (*models.Course, error)
	ExistsByCode(ctx context.Context, semesterID, code, excludeID string) (bool, error)
	Search(ctx context.Context, query string, semesterID string) ([]models.CourseWithSemester, error)
	InstructorIDs(ctx context.Context, courseID string) ([]string, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	DeleteCascade(ctx context.Context, id string) error
}

type sectionLister interface {
	ListCourseSections(ctx context.Context, courseID string) ([]models.CourseSectionDetail, error)
	ListLabSections(ctx context.Context, courseID string) ([]models.LabSectionDetail, error)
}

// cacheStore is the projection cache surface shared by the read-side
// services. *repository.CacheRepository satisfies it.
type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SaveCourseRequest represents payload for creating or updating courses.
type SaveCourseRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// CourseService orchestrates course operations and the overview aggregation.
type CourseService struct {
	courses   courseRepository
	semesters semesterRepository
	sections  sectionLister
	cache     cacheStore
	cacheCfg  config.CacheConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(courses courseRepository, semesters semesterRepository, sections sectionLister, cache cacheStore, cacheCfg config.CacheConfig, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		courses:   courses,
		semesters: semesters,
		sections:  sections,
		cache:     cache,
		cacheCfg:  cacheCfg,
		validator: validate,
		logger:    logger,
	}
}

func overviewCacheKey(semesterName, code string) string {
	return fmt.Sprintf("course_overview:%s:%s", semesterName, code)
}

// resolve performs the two-stage semester then course lookup. Course codes
// are ambiguous across semesters, so the semester always resolves first.
func (s *CourseService) resolve(ctx context.Context, semesterName, code string) (*models.Semester, *models.Course, error) {
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

// Save creates a course in the named semester, or updates the one
// identified by existingCode. Course codes are unique per semester only.
func (s *CourseService) Save(ctx context.Context, semesterName string, req SaveCourseRequest, existingCode string) (*models.Course, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "course code is required")
	}
	if req.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "course name is required")
	}
	if strings.TrimSpace(semesterName) == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "semester is required")
	}

	semester, err := s.semesters.FindByName(ctx, semesterName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	var course *models.Course
	if existingCode != "" {
		course, err = s.courses.FindBySemesterAndCode(ctx, semester.ID, existingCode)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found in semester")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
	}

	excludeID := ""
	if course != nil {
		excludeID = course.ID
	}
	exists, err := s.courses.ExistsByCode(ctx, semester.ID, req.Code, excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateField, "a course with this code already exists in the semester")
	}

	if course == nil {
		course = &models.Course{Code: req.Code, Name: req.Name, SemesterID: semester.ID}
		if err := s.courses.Create(ctx, course); err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, appErrors.Clone(appErrors.ErrDuplicateField, "a course with this code already exists in the semester")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
		}
	} else {
		s.invalidateOverview(ctx, semester.Name, course.Code)
		course.Code = req.Code
		course.Name = req.Name
		if err := s.courses.Update(ctx, course); err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, appErrors.Clone(appErrors.ErrDuplicateField, "a course with this code already exists in the semester")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
		}
		s.invalidateProfiles(ctx)
	}

	s.invalidateOverview(ctx, semester.Name, course.Code)
	return course, nil
}

// Get assembles the course overview: the course with its sections and their
// staff, in storage insertion order.
func (s *CourseService) Get(ctx context.Context, semesterName, code string) (*models.CourseOverview, error) {
	cacheKey := overviewCacheKey(semesterName, code)
	if s.cacheCfg.Enabled && s.cache != nil {
		var cached models.CourseOverview
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	semester, course, err := s.resolve(ctx, semesterName, code)
	if err != nil {
		return nil, err
	}

	courseSections, err := s.sections.ListCourseSections(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course sections")
	}
	labSections, err := s.sections.ListLabSections(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab sections")
	}

	overview := &models.CourseOverview{
		Code:           course.Code,
		Name:           course.Name,
		Semester:       semester.Name,
		CourseSections: make([]models.SectionRef, 0, len(courseSections)),
		LabSections:    make([]models.SectionRef, 0, len(labSections)),
	}

	for _, section := range courseSections {
		// Instructor is mandatory for course sections; a missing one is a
		// data integrity issue, so map to nil instead of failing the read.
		overview.CourseSections = append(overview.CourseSections, models.SectionRef{
			SectionNumber: strconv.Itoa(section.SectionNumber),
			Instructor:    staffRef(section.InstructorUsername, section.InstructorFirstName, section.InstructorLastName),
		})
	}
	for _, lab := range labSections {
		overview.LabSections = append(overview.LabSections, models.SectionRef{
			SectionNumber: strconv.Itoa(lab.SectionNumber),
			Instructor:    staffRef(lab.TAUsername, lab.TAFirstName, lab.TALastName),
		})
	}

	if s.cacheCfg.Enabled && s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, s.cacheCfg.OverviewTTL); err != nil {
			s.logger.Warn("failed to cache course overview", zap.Error(err))
		}
	}
	return overview, nil
}

// Search returns courses matching the query. An empty query returns every
// course; a semester name narrows the scope to that semester.
func (s *CourseService) Search(ctx context.Context, query, semesterName string) ([]models.CourseRef, error) {
	semesterID := ""
	if strings.TrimSpace(semesterName) != "" {
		semester, err := s.semesters.FindByName(ctx, semesterName)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
		}
		semesterID = semester.ID
	}

	courses, err := s.courses.Search(ctx, strings.TrimSpace(query), semesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search courses")
	}

	refs := make([]models.CourseRef, 0, len(courses))
	for _, course := range courses {
		refs = append(refs, models.CourseRef{CourseCode: course.Code, CourseName: course.Name})
	}
	return refs, nil
}

// Delete removes a course with its sections and assignments.
func (s *CourseService) Delete(ctx context.Context, semesterName, code string) error {
	semester, course, err := s.resolve(ctx, semesterName, code)
	if err != nil {
		return err
	}
	if err := s.courses.DeleteCascade(ctx, course.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateOverview(ctx, semester.Name, course.Code)
	s.invalidateProfiles(ctx)
	s.logger.Info("course deleted", zap.String("semester", semester.Name), zap.String("code", course.Code))
	return nil
}

// InstructorTarget returns the instructors of record for a course, for the
// permission engine's instructor self-service policy.
func (s *CourseService) InstructorTarget(ctx context.Context, courseID string) ([]string, error) {
	ids, err := s.courses.InstructorIDs(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course instructors")
	}
	return ids, nil
}

func (s *CourseService) invalidateOverview(ctx context.Context, semesterName, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, overviewCacheKey(semesterName, code)); err != nil {
		s.logger.Warn("failed to invalidate course overview cache", zap.Error(err))
	}
}

// invalidateProfiles flushes every cached profile. Profiles embed course
// names and the course service does not track which TAs reference a course,
// so a rename or delete flushes the lot.
func (s *CourseService) invalidateProfiles(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "user_profile:*"); err != nil {
		s.logger.Warn("failed to invalidate cached profiles", zap.Error(err))
	}
}

// staffRef builds a UserRef from nullable join columns, nil when the row
// has no staff member attached.
func staffRef(username, firstName, lastName *string) *models.UserRef {
	if username == nil {
		return nil
	}
	name := ""
	if firstName != nil {
		name = *firstName
	}
	if lastName != nil {
		name = strings.TrimSpace(name + " " + *lastName)
	}
	return &models.UserRef{Name: name, Username: *username}
}
