package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusops/ta-scheduler-api/internal/service"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
	"github.com/campusops/ta-scheduler-api/pkg/response"
)

// SemesterHandler wires HTTP endpoints to the semester service.
type SemesterHandler struct {
	service *service.SemesterService
}

// NewSemesterHandler creates a new handler.
func NewSemesterHandler(svc *service.SemesterService) *SemesterHandler {
	return &SemesterHandler{service: svc}
}

// List godoc
// @Summary List semesters
// @Description Returns semesters in insertion order, optionally filtered by a search query
// @Tags Semesters
// @Produce json
// @Param search query string false "Name fragment"
// @Success 200 {object} response.Envelope
// @Router /semesters [get]
func (h *SemesterHandler) List(c *gin.Context) {
	query := c.Query("search")

	var err error
	var semesters interface{}
	if query != "" {
		semesters, err = h.service.Search(c.Request.Context(), query)
	} else {
		semesters, err = h.service.List(c.Request.Context())
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, semesters, nil)
}

// Get godoc
// @Summary Get semester
// @Description Returns a single semester by name
// @Tags Semesters
// @Produce json
// @Param semester path string true "Semester name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester} [get]
func (h *SemesterHandler) Get(c *gin.Context) {
	semester, err := h.service.Get(c.Request.Context(), c.Param("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, semester, nil)
}

// Create godoc
// @Summary Create semester
// @Description Create a semester with a unique name and a valid date range
// @Tags Semesters
// @Accept json
// @Produce json
// @Param payload body service.SaveSemesterRequest true "Semester payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters [post]
func (h *SemesterHandler) Create(c *gin.Context) {
	var req service.SaveSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	semester, err := h.service.Save(c.Request.Context(), req, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, semester)
}

// Update godoc
// @Summary Update semester
// @Description Update an existing semester addressed by its current name
// @Tags Semesters
// @Accept json
// @Produce json
// @Param semester path string true "Semester name"
// @Param payload body service.SaveSemesterRequest true "Semester payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters/{semester} [put]
func (h *SemesterHandler) Update(c *gin.Context) {
	var req service.SaveSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	semester, err := h.service.Save(c.Request.Context(), req, c.Param("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, semester, nil)
}

// Delete godoc
// @Summary Delete semester
// @Description Delete a semester and cascade to its courses, sections and assignments
// @Tags Semesters
// @Produce json
// @Param semester path string true "Semester name"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{semester} [delete]
func (h *SemesterHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("semester")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
