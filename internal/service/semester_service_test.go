package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

type mockSemesterRepo struct {
	items   map[string]*models.Semester
	deleted []string
}

func (m *mockSemesterRepo) List(ctx context.Context) ([]models.Semester, error) {
	out := make([]models.Semester, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockSemesterRepo) Search(ctx context.Context, query string) ([]models.Semester, error) {
	return m.List(ctx)
}

func (m *mockSemesterRepo) FindByName(ctx context.Context, name string) (*models.Semester, error) {
	for _, s := range m.items {
		if s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSemesterRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, s := range m.items {
		if s.Name == name && (excludeID == "" || s.ID != excludeID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSemesterRepo) Create(ctx context.Context, semester *models.Semester) error {
	if m.items == nil {
		m.items = make(map[string]*models.Semester)
	}
	if semester.ID == "" {
		semester.ID = "generated"
	}
	cp := *semester
	m.items[semester.ID] = &cp
	return nil
}

func (m *mockSemesterRepo) Update(ctx context.Context, semester *models.Semester) error {
	cp := *semester
	m.items[semester.ID] = &cp
	return nil
}

func (m *mockSemesterRepo) DeleteCascade(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

func seedSemester(id, name string) *models.Semester {
	return &models.Semester{
		ID:        id,
		Name:      name,
		StartDate: time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 12, 0, 0, 0, 0, time.UTC),
	}
}

func TestSemesterServiceSave(t *testing.T) {
	repo := &mockSemesterRepo{}
	service := NewSemesterService(repo, validator.New(), zap.NewNop())

	semester, err := service.Save(context.Background(), SaveSemesterRequest{
		Name:      "Fall 2025",
		StartDate: "2025-08-25",
		EndDate:   "2025-12-12",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "Fall 2025", semester.Name)
	assert.Len(t, repo.items, 1)
}

func TestSemesterServiceSaveMissingFields(t *testing.T) {
	service := NewSemesterService(&mockSemesterRepo{}, validator.New(), zap.NewNop())

	_, err := service.Save(context.Background(), SaveSemesterRequest{Name: "Fall 2025"}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrMissingField))
}

func TestSemesterServiceSaveBadDateFormat(t *testing.T) {
	service := NewSemesterService(&mockSemesterRepo{}, validator.New(), zap.NewNop())

	_, err := service.Save(context.Background(), SaveSemesterRequest{
		Name:      "Fall 2025",
		StartDate: "08/25/2025",
		EndDate:   "2025-12-12",
	}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidFormat))
}

func TestSemesterServiceSaveInvertedDates(t *testing.T) {
	service := NewSemesterService(&mockSemesterRepo{}, validator.New(), zap.NewNop())

	_, err := service.Save(context.Background(), SaveSemesterRequest{
		Name:      "Fall 2025",
		StartDate: "2025-12-12",
		EndDate:   "2025-08-25",
	}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidDateRange))
}

func TestSemesterServiceSaveEqualDatesAllowed(t *testing.T) {
	repo := &mockSemesterRepo{}
	service := NewSemesterService(repo, validator.New(), zap.NewNop())

	_, err := service.Save(context.Background(), SaveSemesterRequest{
		Name:      "Exam Week",
		StartDate: "2025-12-12",
		EndDate:   "2025-12-12",
	}, "")
	require.NoError(t, err)
}

func TestSemesterServiceSaveDuplicateName(t *testing.T) {
	repo := &mockSemesterRepo{items: map[string]*models.Semester{
		"s1": seedSemester("s1", "Fall 2025"),
	}}
	service := NewSemesterService(repo, validator.New(), zap.NewNop())

	_, err := service.Save(context.Background(), SaveSemesterRequest{
		Name:      "Fall 2025",
		StartDate: "2025-08-25",
		EndDate:   "2025-12-12",
	}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateField))
}

func TestSemesterServiceUpdateKeepOwnName(t *testing.T) {
	repo := &mockSemesterRepo{items: map[string]*models.Semester{
		"s1": seedSemester("s1", "Fall 2025"),
	}}
	service := NewSemesterService(repo, validator.New(), zap.NewNop())

	semester, err := service.Save(context.Background(), SaveSemesterRequest{
		Name:      "Fall 2025",
		StartDate: "2025-08-18",
		EndDate:   "2025-12-12",
	}, "Fall 2025")
	require.NoError(t, err)
	assert.Equal(t, "2025-08-18", semester.StartDate.Format("2006-01-02"))
}

func TestSemesterServiceUpdateNotFound(t *testing.T) {
	service := NewSemesterService(&mockSemesterRepo{}, validator.New(), zap.NewNop())

	_, err := service.Save(context.Background(), SaveSemesterRequest{
		Name:      "Fall 2025",
		StartDate: "2025-08-25",
		EndDate:   "2025-12-12",
	}, "Spring 2026")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestSemesterServiceDelete(t *testing.T) {
	repo := &mockSemesterRepo{items: map[string]*models.Semester{
		"s1": seedSemester("s1", "Fall 2025"),
	}}
	service := NewSemesterService(repo, validator.New(), zap.NewNop())

	require.NoError(t, service.Delete(context.Background(), "Fall 2025"))
	assert.Equal(t, []string{"s1"}, repo.deleted)

	err := service.Delete(context.Background(), "Fall 2025")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}
