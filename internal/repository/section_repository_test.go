package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

func TestSectionRepositoryListCourseSections(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "section_number", "instructor_id", "days", "start_time", "end_time", "created_at", "updated_at", "instructor_username", "instructor_first_name", "instructor_last_name"}).
		AddRow("cs1", "c1", 1, "u1", nil, "09:00", "10:15", time.Now(), time.Now(), "iteach", "Ina", "Teacher").
		AddRow("cs2", "c1", 2, nil, nil, "11:00", "12:15", time.Now(), time.Now(), nil, nil, nil)
	mock.ExpectQuery("FROM course_sections cs").
		WithArgs("c1").
		WillReturnRows(rows)

	sections, err := repo.ListCourseSections(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	require.NotNil(t, sections[0].InstructorUsername)
	assert.Equal(t, "iteach", *sections[0].InstructorUsername)
	assert.Nil(t, sections[1].InstructorUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryListLabSectionsResolvesFirstAssignment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "section_number", "days", "start_time", "end_time", "created_at", "updated_at", "ta_username", "ta_first_name", "ta_last_name"}).
		AddRow("ls1", "c1", 1, nil, "14:00", "15:50", time.Now(), time.Now(), "tgrade", "Tom", "Grader")
	mock.ExpectQuery("LEFT JOIN LATERAL").
		WithArgs("c1").
		WillReturnRows(rows)

	sections, err := repo.ListLabSections(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, sections, 1)
	require.NotNil(t, sections[0].TAUsername)
	assert.Equal(t, "tgrade", *sections[0].TAUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryExistsCourseSectionExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM course_sections WHERE course_id = $1 AND section_number = $2 AND id <> $3 LIMIT 1")).
		WithArgs("c1", 1, "cs1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := repo.ExistsCourseSection(context.Background(), "c1", 1, "cs1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryExistsLabSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM lab_sections WHERE course_id = $1 AND section_number = $2 LIMIT 1")).
		WithArgs("c1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsLabSection(context.Background(), "c1", 1, "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryCreateCourseSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectExec("INSERT INTO course_sections").
		WillReturnResult(sqlmock.NewResult(1, 1))

	instructor := "u1"
	section := &models.CourseSection{CourseID: "c1", SectionNumber: 1, InstructorID: &instructor, StartTime: "09:00", EndTime: "10:15"}
	require.NoError(t, repo.CreateCourseSection(context.Background(), section))
	assert.NotEmpty(t, section.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryDeleteLabSectionCascades(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ta_lab_assignments WHERE lab_section_id = $1")).
		WithArgs("ls1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lab_sections WHERE id = $1")).
		WithArgs("ls1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteLabSection(context.Background(), "ls1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
