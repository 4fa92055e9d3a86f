package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

type mockOverviewProvider struct {
	overview *models.CourseOverview
}

func (m *mockOverviewProvider) Get(ctx context.Context, semesterName, code string) (*models.CourseOverview, error) {
	return m.overview, nil
}

func rosterFixtureOverview() *models.CourseOverview {
	return &models.CourseOverview{
		Code:     "CSE 230",
		Name:     "Systems",
		Semester: "Fall 2025",
		CourseSections: []models.SectionRef{
			{SectionNumber: "1", Instructor: &models.UserRef{Name: "Ina Lovelace", Username: "iteach"}},
		},
		LabSections: []models.SectionRef{
			{SectionNumber: "1", Instructor: &models.UserRef{Name: "Tom Grader", Username: "tgrade"}},
			{SectionNumber: "2"},
		},
	}
}

func TestExportServiceRosterCSV(t *testing.T) {
	service := NewExportService(&mockOverviewProvider{overview: rosterFixtureOverview()}, nil, nil, zap.NewNop())

	result, err := service.Roster(context.Background(), "Fall 2025", "CSE 230", RosterFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Payload)
	assert.Contains(t, body, "Section Type")
	assert.Contains(t, body, "iteach")
	assert.Contains(t, body, "tgrade")
	// Header plus three section rows; unstaffed labs still appear.
	lines := strings.Split(strings.TrimSpace(body), "\n")
	assert.Len(t, lines, 4)
}

func TestExportServiceRosterPDF(t *testing.T) {
	service := NewExportService(&mockOverviewProvider{overview: rosterFixtureOverview()}, nil, nil, zap.NewNop())

	result, err := service.Roster(context.Background(), "Fall 2025", "CSE 230", RosterFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Payload), "%PDF"))
}

func TestExportServiceRosterUnknownFormat(t *testing.T) {
	service := NewExportService(&mockOverviewProvider{overview: rosterFixtureOverview()}, nil, nil, zap.NewNop())

	_, err := service.Roster(context.Background(), "Fall 2025", "CSE 230", RosterFormat("xlsx"))
	require.Error(t, err)
}
