package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/internal/repository"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

// dateLayout is the wire format for semester dates.
const dateLayout = "2006-01-02"

type semesterRepository interface {
	List(ctx context.Context) ([]models.Semester, error)
	Search(ctx context.Context, query string) ([]models.Semester, error)
	FindByName(ctx context.Context, name string) (*models.Semester, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, semester *models.Semester) error
	Update(ctx context.Context, semester *models.Semester) error
	DeleteCascade(ctx context.Context, id string) error
}

// SaveSemesterRequest represents payload for creating or updating semesters.
type SaveSemesterRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// SemesterService orchestrates semester operations.
type SemesterService struct {
	repo      semesterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService constructs a SemesterService.
func NewSemesterService(repo semesterRepository, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, validator: validate, logger: logger}
}

// List returns every semester ordered by start date.
func (s *SemesterService) List(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, nil
}

// Search returns semesters matching the query; an empty query matches all.
func (s *SemesterService) Search(ctx context.Context, query string) ([]models.Semester, error) {
	semesters, err := s.repo.Search(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search semesters")
	}
	return semesters, nil
}

// Get returns a semester by its name.
func (s *SemesterService) Get(ctx context.Context, name string) (*models.Semester, error) {
	semester, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	return semester, nil
}

// Save creates a semester, or updates the one named existingName.
func (s *SemesterService) Save(ctx context.Context, req SaveSemesterRequest, existingName string) (*models.Semester, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "semester name is required")
	}
	if req.StartDate == "" || req.EndDate == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "start and end dates are required")
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidFormat, "start date must be formatted YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidFormat, "end date must be formatted YYYY-MM-DD")
	}
	if start.After(end) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, "start date cannot be after end date")
	}

	var semester *models.Semester
	if existingName != "" {
		semester, err = s.repo.FindByName(ctx, existingName)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
		}
	}

	excludeID := ""
	if semester != nil {
		excludeID = semester.ID
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check semester name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateField, "a semester with this name already exists")
	}

	if semester == nil {
		semester = &models.Semester{Name: req.Name, StartDate: start, EndDate: end}
		if err := s.repo.Create(ctx, semester); err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, appErrors.Clone(appErrors.ErrDuplicateField, "a semester with this name already exists")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
		}
		return semester, nil
	}

	semester.Name = req.Name
	semester.StartDate = start
	semester.EndDate = end
	if err := s.repo.Update(ctx, semester); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateField, "a semester with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update semester")
	}
	return semester, nil
}

// Delete removes a semester and everything under it.
func (s *SemesterService) Delete(ctx context.Context, name string) error {
	semester, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	if err := s.repo.DeleteCascade(ctx, semester.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete semester")
	}
	s.logger.Info("semester deleted", zap.String("semester", name))
	return nil
}
