package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campusops/ta-scheduler-api/internal/middleware"
	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/internal/service"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
	"github.com/campusops/ta-scheduler-api/pkg/response"
)

// SectionHandler wires HTTP endpoints to the section service.
type SectionHandler struct {
	service *service.SectionService
}

// NewSectionHandler creates a new handler.
func NewSectionHandler(svc *service.SectionService) *SectionHandler {
	return &SectionHandler{service: svc}
}

func sectionTypeParam(c *gin.Context) (models.SectionType, error) {
	sectionType := models.SectionType(c.Param("type"))
	if !sectionType.Valid() {
		return "", appErrors.Clone(appErrors.ErrInvalidFormat, "section type must be course or lab")
	}
	return sectionType, nil
}

func sectionNumberParam(c *gin.Context) (int, error) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		return 0, appErrors.Clone(appErrors.ErrInvalidFormat, "section number must be a positive integer")
	}
	return number, nil
}

// Create godoc
// @Summary Create section
// @Description Create a course or lab section inside a course
// @Tags Sections
// @Accept json
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Param payload body service.SaveSectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code}/sections [post]
func (h *SectionHandler) Create(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SaveSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.Save(c.Request.Context(), principal, c.Param("semester"), c.Param("code"), req, nil); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"section_number": req.SectionNumber, "type": req.Type})
}

// Update godoc
// @Summary Update section
// @Description Update a section addressed by its type and current number
// @Tags Sections
// @Accept json
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Param type path string true "Section type (course or lab)"
// @Param number path int true "Section number"
// @Param payload body service.SaveSectionRequest true "Section payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code}/sections/{type}/{number} [put]
func (h *SectionHandler) Update(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sectionType, err := sectionTypeParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	number, err := sectionNumberParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.SaveSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	// The path addresses the section; the body may carry a new number.
	req.Type = sectionType

	if err := h.service.Save(c.Request.Context(), principal, c.Param("semester"), c.Param("code"), req, &number); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Delete godoc
// @Summary Delete section
// @Description Delete a section and its staffing assignments
// @Tags Sections
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Param type path string true "Section type (course or lab)"
// @Param number path int true "Section number"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code}/sections/{type}/{number} [delete]
func (h *SectionHandler) Delete(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sectionType, err := sectionTypeParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	number, err := sectionNumberParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal, c.Param("semester"), c.Param("code"), sectionType, number); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// AssignStaff godoc
// @Summary Assign staff to a section
// @Description Assign an instructor to a course section or a TA to a lab section; an existing lab TA is replaced
// @Tags Sections
// @Accept json
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Param type path string true "Section type (course or lab)"
// @Param number path int true "Section number"
// @Param payload body service.AssignStaffRequest true "Staff payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code}/sections/{type}/{number}/staff [put]
func (h *SectionHandler) AssignStaff(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sectionType, err := sectionTypeParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	number, err := sectionNumberParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.AssignStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.AssignStaff(c.Request.Context(), principal, c.Param("semester"), c.Param("code"), sectionType, number, req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// UnassignStaff godoc
// @Summary Unassign a lab TA
// @Description Remove the TA assigned to a lab section; course section instructors are replaced, not removed
// @Tags Sections
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Param type path string true "Section type (lab only)"
// @Param number path int true "Section number"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code}/sections/{type}/{number}/staff [delete]
func (h *SectionHandler) UnassignStaff(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sectionType, err := sectionTypeParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if sectionType != models.SectionTypeLab {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "only lab section staff can be unassigned"))
		return
	}
	number, err := sectionNumberParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.UnassignLabTA(c.Request.Context(), principal, c.Param("semester"), c.Param("code"), number); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// AssignCourseTA godoc
// @Summary Assign a TA to a course
// @Description Link a TA to a course with a grader flag; repeated calls update the flag
// @Tags Sections
// @Accept json
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Param payload body service.AssignCourseTARequest true "Course TA payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code}/tas [post]
func (h *SectionHandler) AssignCourseTA(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AssignCourseTARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.AssignCourseTA(c.Request.Context(), principal, c.Param("semester"), c.Param("code"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// RemoveCourseTA godoc
// @Summary Remove a TA from a course
// @Description Unlink a TA from a course
// @Tags Sections
// @Produce json
// @Param semester path string true "Semester name"
// @Param code path string true "Course code"
// @Param username path string true "TA username"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester}/courses/{code}/tas/{username} [delete]
func (h *SectionHandler) RemoveCourseTA(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.RemoveCourseTA(c.Request.Context(), principal, c.Param("semester"), c.Param("code"), c.Param("username")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
