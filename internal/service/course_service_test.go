package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/pkg/config"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

type mockCourseRepo struct {
	items   map[string]*models.Course
	deleted []string
}

func (m *mockCourseRepo) FindBySemesterAndCode(ctx context.Context, semesterID, code string) (*models.Course, error) {
	for _, c := range m.items {
		if c.SemesterID == semesterID && c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ExistsByCode(ctx context.Context, semesterID, code, excludeID string) (bool, error) {
	for _, c := range m.items {
		if c.SemesterID == semesterID && c.Code == code && (excludeID == "" || c.ID != excludeID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCourseRepo) Search(ctx context.Context, query, semesterID string) ([]models.CourseWithSemester, error) {
	out := make([]models.CourseWithSemester, 0, len(m.items))
	for _, c := range m.items {
		if semesterID != "" && c.SemesterID != semesterID {
			continue
		}
		out = append(out, models.CourseWithSemester{Course: *c})
	}
	return out, nil
}

func (m *mockCourseRepo) InstructorIDs(ctx context.Context, courseID string) ([]string, error) {
	return nil, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.items == nil {
		m.items = make(map[string]*models.Course)
	}
	if course.ID == "" {
		course.ID = fmt.Sprintf("generated-%d", len(m.items)+1)
	}
	cp := *course
	m.items[course.ID] = &cp
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	cp := *course
	m.items[course.ID] = &cp
	return nil
}

func (m *mockCourseRepo) DeleteCascade(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type mockSectionLister struct {
	courseSections []models.CourseSectionDetail
	labSections    []models.LabSectionDetail
}

func (m *mockSectionLister) ListCourseSections(ctx context.Context, courseID string) ([]models.CourseSectionDetail, error) {
	return m.courseSections, nil
}

func (m *mockSectionLister) ListLabSections(ctx context.Context, courseID string) ([]models.LabSectionDetail, error) {
	return m.labSections, nil
}

func strPtr(s string) *string { return &s }

// fakeCache records invalidations so tests can assert on them. Get always
// misses.
type fakeCache struct {
	deleted  []string
	patterns []string
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

func (f *fakeCache) DeleteByPattern(ctx context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	return nil
}

func newCourseFixture() (*mockCourseRepo, *mockSemesterRepo, *mockSectionLister, *CourseService) {
	semesters := &mockSemesterRepo{items: map[string]*models.Semester{
		"s1": seedSemester("s1", "Fall 2025"),
		"s2": seedSemester("s2", "Spring 2026"),
	}}
	courses := &mockCourseRepo{items: map[string]*models.Course{}}
	sections := &mockSectionLister{}
	service := NewCourseService(courses, semesters, sections, nil, config.CacheConfig{}, validator.New(), zap.NewNop())
	return courses, semesters, sections, service
}

func TestCourseServiceSave(t *testing.T) {
	courses, _, _, service := newCourseFixture()

	course, err := service.Save(context.Background(), "Fall 2025", SaveCourseRequest{
		Code: "CSE 230", Name: "Systems Programming",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "s1", course.SemesterID)
	assert.Len(t, courses.items, 1)
}

func TestCourseServiceSaveDuplicateWithinSemester(t *testing.T) {
	_, _, _, service := newCourseFixture()

	_, err := service.Save(context.Background(), "Fall 2025", SaveCourseRequest{Code: "CSE 230", Name: "Systems"}, "")
	require.NoError(t, err)

	_, err = service.Save(context.Background(), "Fall 2025", SaveCourseRequest{Code: "CSE 230", Name: "Systems Again"}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateField))
}

func TestCourseServiceSaveSameCodeAcrossSemesters(t *testing.T) {
	courses, _, _, service := newCourseFixture()

	_, err := service.Save(context.Background(), "Fall 2025", SaveCourseRequest{Code: "CSE 230", Name: "Systems"}, "")
	require.NoError(t, err)
	_, err = service.Save(context.Background(), "Spring 2026", SaveCourseRequest{Code: "CSE 230", Name: "Systems"}, "")
	require.NoError(t, err)
	assert.Len(t, courses.items, 2)
}

func TestCourseServiceSaveUnknownSemester(t *testing.T) {
	_, _, _, service := newCourseFixture()

	_, err := service.Save(context.Background(), "Winter 2030", SaveCourseRequest{Code: "CSE 230", Name: "Systems"}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestCourseServiceOverview(t *testing.T) {
	_, _, sections, service := newCourseFixture()

	_, err := service.Save(context.Background(), "Fall 2025", SaveCourseRequest{Code: "CSE 230", Name: "Systems"}, "")
	require.NoError(t, err)

	sections.courseSections = []models.CourseSectionDetail{
		{CourseSection: models.CourseSection{SectionNumber: 2}, InstructorUsername: strPtr("ateacher"), InstructorFirstName: strPtr("Ada"), InstructorLastName: strPtr("Lovelace")},
		{CourseSection: models.CourseSection{SectionNumber: 1}},
	}
	sections.labSections = []models.LabSectionDetail{
		{LabSection: models.LabSection{SectionNumber: 7}, TAUsername: strPtr("bgrader"), TAFirstName: strPtr("Bo"), TALastName: strPtr("Grader")},
	}

	overview, err := service.Get(context.Background(), "Fall 2025", "CSE 230")
	require.NoError(t, err)
	assert.Equal(t, "CSE 230", overview.Code)
	assert.Equal(t, "Fall 2025", overview.Semester)

	// Sections stay in the order the repository returned them.
	require.Len(t, overview.CourseSections, 2)
	assert.Equal(t, "2", overview.CourseSections[0].SectionNumber)
	require.NotNil(t, overview.CourseSections[0].Instructor)
	assert.Equal(t, "Ada Lovelace", overview.CourseSections[0].Instructor.Name)
	assert.Nil(t, overview.CourseSections[1].Instructor)

	require.Len(t, overview.LabSections, 1)
	require.NotNil(t, overview.LabSections[0].Instructor)
	assert.Equal(t, "bgrader", overview.LabSections[0].Instructor.Username)
}

func TestCourseServiceSearchEmptyQueryReturnsAll(t *testing.T) {
	_, _, _, service := newCourseFixture()

	_, err := service.Save(context.Background(), "Fall 2025", SaveCourseRequest{Code: "CSE 230", Name: "Systems"}, "")
	require.NoError(t, err)

	refs, err := service.Search(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestCourseServiceSearchUnknownSemester(t *testing.T) {
	_, _, _, service := newCourseFixture()

	_, err := service.Search(context.Background(), "", "Winter 2030")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestCourseServiceDelete(t *testing.T) {
	courses, _, _, service := newCourseFixture()

	_, err := service.Save(context.Background(), "Fall 2025", SaveCourseRequest{Code: "CSE 230", Name: "Systems"}, "")
	require.NoError(t, err)

	require.NoError(t, service.Delete(context.Background(), "Fall 2025", "CSE 230"))
	assert.Len(t, courses.deleted, 1)

	err = service.Delete(context.Background(), "Fall 2025", "CSE 230")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestCourseServiceRenameFlushesCachedProjections(t *testing.T) {
	semesters := &mockSemesterRepo{items: map[string]*models.Semester{
		"s1": seedSemester("s1", "Fall 2025"),
	}}
	courses := &mockCourseRepo{items: map[string]*models.Course{}}
	cache := &fakeCache{}
	service := NewCourseService(courses, semesters, &mockSectionLister{}, cache, config.CacheConfig{Enabled: true}, validator.New(), zap.NewNop())

	_, err := service.Save(context.Background(), "Fall 2025", SaveCourseRequest{Code: "CSE 230", Name: "Systems"}, "")
	require.NoError(t, err)

	// Profiles embed the course name, so a rename must flush them along
	// with the overview.
	_, err = service.Save(context.Background(), "Fall 2025", SaveCourseRequest{Code: "CSE 230", Name: "Systems Programming"}, "CSE 230")
	require.NoError(t, err)
	assert.Contains(t, cache.deleted, overviewCacheKey("Fall 2025", "CSE 230"))
	assert.Contains(t, cache.patterns, "user_profile:*")
}

func TestCourseServiceDeleteFlushesCachedProjections(t *testing.T) {
	semesters := &mockSemesterRepo{items: map[string]*models.Semester{
		"s1": seedSemester("s1", "Fall 2025"),
	}}
	courses := &mockCourseRepo{items: map[string]*models.Course{}}
	cache := &fakeCache{}
	service := NewCourseService(courses, semesters, &mockSectionLister{}, cache, config.CacheConfig{Enabled: true}, validator.New(), zap.NewNop())

	_, err := service.Save(context.Background(), "Fall 2025", SaveCourseRequest{Code: "CSE 230", Name: "Systems"}, "")
	require.NoError(t, err)

	require.NoError(t, service.Delete(context.Background(), "Fall 2025", "CSE 230"))
	assert.Contains(t, cache.deleted, overviewCacheKey("Fall 2025", "CSE 230"))
	assert.Contains(t, cache.patterns, "user_profile:*")
}
