package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusops/ta-scheduler-api/internal/service"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
	"github.com/campusops/ta-scheduler-api/pkg/response"
)

// CourseHandler wires HTTP endpoints to the course service.
type CourseHandler struct {
	service *service.CourseService
	exports *service.ExportService
}

// NewCourseHandler creates a new handler.
func NewCourseHandler(svc *service.CourseService, exports *service.ExportService) *CourseHandler {
	return &CourseHandler{service: svc, exports: exports}
}

// List godoc
// @Summary List courses in a semester
// @Description Returns courses of a semester in insertion order, optionally filtered by a search query
// @Tags Courses
// @Produce json
// @Param semester path string true "Semester name"
// @Param search query string false "Code or name fragment"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester}/courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.service.Search(c.Request.Context(), c.Query("search"), c.Param("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, courses, nil)
}

// Search godoc
// @Summary Search courses
// @Description Returns courses matching the query, optionally scoped to a semester
// @Tags Courses
// @Produce json
// @Param search query string false "Code or name fragment"
// @Param semester query string false "Semester name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) Search(c *gin.Context) {
	courses, err := h.service.Search(c.Request.Context(), c.Query("search"), c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, courses, nil)
}

// Get godoc
// @Summary Get course overview
// @Description Returns the course with its sections, lab sections and assigned staff
// @Tags Courses
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	overview, err := h.service.Get(c.Request.Context(), c.Param("semester"), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, overview, nil)
}

// Create godoc
// @Summary Create course
// @Description Create a course inside a semester; the code must be unique within the semester
// @Tags Courses
// @Accept json
// @Produce json
// @Param semester path string true "Semester name"
// @Param payload body service.SaveCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters/{semester}/courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.SaveCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	course, err := h.service.Save(c.Request.Context(), c.Param("semester"), req, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Description Update an existing course addressed by its current code
// @Tags Courses
// @Accept json
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Param payload body service.SaveCourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.SaveCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	course, err := h.service.Save(c.Request.Context(), c.Param("semester"), req, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Description Delete a course and cascade to its sections and assignments
// @Tags Courses
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("semester"), c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Roster godoc
// @Summary Export course roster
// @Description Streams the staffing roster of a course as a CSV or PDF download
// @Tags Courses
// @Produce text/csv
// @Produce application/pdf
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code}/roster [get]
func (h *CourseHandler) Roster(c *gin.Context) {
	format := service.RosterFormat(c.DefaultQuery("format", string(service.RosterFormatCSV)))

	roster, err := h.exports.Roster(c.Request.Context(), c.Param("semester"), c.Param("code"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", roster.Filename))
	c.Data(http.StatusOK, roster.ContentType, roster.Payload)
}
