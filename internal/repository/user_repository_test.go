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

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "first_name", "last_name", "email", "password_hash", "role", "phone", "address", "office_hours", "created_at", "updated_at"}).
		AddRow("u1", "tgrade", "Tom", "Grader", "tom@example.edu", "hash", "TA", nil, nil, nil, time.Now(), time.Now())
}

func TestUserRepositoryFindByUsername(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE username = \\$1").
		WithArgs("tgrade").
		WillReturnRows(userRows())

	user, err := repo.FindByUsername(context.Background(), "tgrade")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTA, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySearchEmptyQueryReturnsAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE 1=1 ORDER BY username").
		WillReturnRows(userRows())

	users, err := repo.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySearchMatchesNameFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LOWER(username) LIKE $1 OR LOWER(first_name) LIKE $1 OR LOWER(last_name) LIKE $1")).
		WithArgs("%tom%").
		WillReturnRows(userRows())

	users, err := repo.Search(context.Background(), "Tom")
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateOmitsUsername(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE users SET first_name = (.+) WHERE id = (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.User{ID: "u1", Username: "tgrade", FirstName: "Tom", LastName: "Grader", Email: "tom@example.edu", Role: models.RoleTA})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET instructor_id = NULL WHERE instructor_id = $1")).
		WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM ta_lab_assignments").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM ta_course_assignments").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM refresh_tokens").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM users").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteCascade(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCoursesAssigned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"course_code", "course_name"}).
		AddRow("CSE 230", "Systems")
	mock.ExpectQuery("SELECT DISTINCT c.code AS course_code").
		WithArgs("u1").
		WillReturnRows(rows)

	courses, err := repo.CoursesAssigned(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "CSE 230", courses[0].CourseCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRevokeRefreshToken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE").
		WithArgs("rt1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RevokeRefreshToken(context.Background(), "rt1", time.Now().UTC()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
