package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

func courseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "code", "name", "semester_id", "created_at", "updated_at"}).
		AddRow("c1", "CSE 230", "Systems", "s1", time.Now(), time.Now())
}

func TestCourseRepositoryFindBySemesterAndCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE semester_id = $1 AND code = $2")).
		WithArgs("s1", "CSE 230").
		WillReturnRows(courseRows())

	course, err := repo.FindBySemesterAndCode(context.Background(), "s1", "CSE 230")
	require.NoError(t, err)
	assert.Equal(t, "c1", course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryExistsByCodeExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE semester_id = $1 AND code = $2 AND id <> $3 LIMIT 1")).
		WithArgs("s1", "CSE 230", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := repo.ExistsByCode(context.Background(), "s1", "CSE 230", "c1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositorySearchScopedToSemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "name", "semester_id", "created_at", "updated_at", "semester_name"}).
		AddRow("c1", "CSE 230", "Systems", "s1", time.Now(), time.Now(), "Fall 2025")
	mock.ExpectQuery(regexp.QuoteMeta("AND c.semester_id = $1 AND (LOWER(c.code) LIKE $2 OR LOWER(c.name) LIKE $2) ORDER BY c.created_at, c.id")).
		WithArgs("s1", "%cse%").
		WillReturnRows(rows)

	courses, err := repo.Search(context.Background(), "CSE", "s1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Fall 2025", courses[0].SemesterName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Course{Code: "CSE 230", Name: "Systems", SemesterID: "s1"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryInstructorIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"instructor_id"}).AddRow("u1").AddRow("u2")
	mock.ExpectQuery("SELECT DISTINCT instructor_id FROM course_sections").
		WithArgs("c1").
		WillReturnRows(rows)

	ids, err := repo.InstructorIDs(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM ta_lab_assignments").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM lab_sections").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM course_sections").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM ta_course_assignments").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM courses").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteCascade(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
