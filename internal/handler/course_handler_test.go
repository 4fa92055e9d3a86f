package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/internal/service"
)

type overviewProviderMock struct {
	overview *models.CourseOverview
	err      error
}

func (m *overviewProviderMock) Get(ctx context.Context, semesterName, code string) (*models.CourseOverview, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.overview, nil
}

func TestCourseHandlerRosterStreamsCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &overviewProviderMock{overview: &models.CourseOverview{
		Code:     "CSE 110",
		Name:     "Intro to Programming",
		Semester: "Fall 2026",
		CourseSections: []models.SectionRef{
			{SectionNumber: "1", Instructor: &models.UserRef{Username: "iteach", Name: "Ada Lovelace"}},
		},
		LabSections: []models.SectionRef{
			{SectionNumber: "1", Instructor: &models.UserRef{Username: "tgrade", Name: "Tom Grader"}},
		},
	}}
	exports := service.NewExportService(provider, nil, nil, nil)
	handler := NewCourseHandler(nil, exports)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/semesters/Fall%202026/courses/CSE%20110/roster?format=csv", nil)
	c.Request = req
	c.Params = gin.Params{
		{Key: "semester", Value: "Fall 2026"},
		{Key: "code", Value: "CSE 110"},
	}

	handler.Roster(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, w.Body.String(), "iteach")
	assert.Contains(t, w.Body.String(), "Tom Grader")
}

func TestCourseHandlerRosterRejectsUnknownFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &overviewProviderMock{overview: &models.CourseOverview{Code: "CSE 110", Semester: "Fall 2026"}}
	exports := service.NewExportService(provider, nil, nil, nil)
	handler := NewCourseHandler(nil, exports)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/semesters/Fall%202026/courses/CSE%20110/roster?format=xlsx", nil)
	c.Request = req
	c.Params = gin.Params{
		{Key: "semester", Value: "Fall 2026"},
		{Key: "code", Value: "CSE 110"},
	}

	handler.Roster(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
