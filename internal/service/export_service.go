package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/pkg/export"
)

// RosterFormat selects the rendering for a roster export.
type RosterFormat string

const (
	RosterFormatCSV RosterFormat = "csv"
	RosterFormatPDF RosterFormat = "pdf"
)

type overviewProvider interface {
	Get(ctx context.Context, semesterName, code string) (*models.CourseOverview, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// RosterExport is a rendered roster ready to stream to the client.
type RosterExport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders course staffing rosters as downloadable files.
type ExportService struct {
	overviews overviewProvider
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(overviews overviewProvider, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{overviews: overviews, csv: csv, pdf: pdf, logger: logger}
}

// Roster renders the staffing roster of a course in the requested format.
func (s *ExportService) Roster(ctx context.Context, semesterName, code string, format RosterFormat) (*RosterExport, error) {
	overview, err := s.overviews.Get(ctx, semesterName, code)
	if err != nil {
		return nil, err
	}

	dataset := buildRosterDataset(overview)
	title := fmt.Sprintf("Staff Roster %s (%s)", overview.Code, overview.Semester)

	var payload []byte
	var contentType string
	switch format {
	case RosterFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case RosterFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, fmt.Errorf("unsupported roster format %q", format)
	}
	if err != nil {
		return nil, err
	}

	return &RosterExport{
		Filename:    buildRosterFilename(overview, format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func buildRosterDataset(overview *models.CourseOverview) export.Dataset {
	rows := make([]map[string]string, 0, len(overview.CourseSections)+len(overview.LabSections))
	appendRows := func(kind string, sections []models.SectionRef) {
		for _, section := range sections {
			staffName, staffUsername := "", ""
			if section.Instructor != nil {
				staffName = section.Instructor.Name
				staffUsername = section.Instructor.Username
			}
			rows = append(rows, map[string]string{
				"Section Type":   kind,
				"Section Number": section.SectionNumber,
				"Staff Name":     staffName,
				"Staff Username": staffUsername,
			})
		}
	}
	appendRows("Course", overview.CourseSections)
	appendRows("Lab", overview.LabSections)

	return export.Dataset{
		Headers: []string{"Section Type", "Section Number", "Staff Name", "Staff Username"},
		Rows:    rows,
	}
}

func buildRosterFilename(overview *models.CourseOverview, format RosterFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	sanitize := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-")
	return fmt.Sprintf("roster_%s_%s_%s.%s",
		sanitize.Replace(overview.Code),
		sanitize.Replace(overview.Semester),
		timestamp,
		format,
	)
}
