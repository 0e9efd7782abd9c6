package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
)

func TestStudentRepositoryListInjectsOrganization(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "organization_id", "admission_no", "full_name", "birth_date", "active", "created_at", "updated_at"}).
		AddRow("student-1", "org-1", "A-001", "Jane Roe", now, true, now, now)
	mock.ExpectQuery("SELECT id, organization_id, .+ FROM students WHERE organization_id = \\$1 ORDER BY full_name ASC LIMIT 20 OFFSET 0").
		WithArgs("org-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM students WHERE organization_id = \\$1").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), "org-1", models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "org-1", students[0].OrganizationID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDScoped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT id, organization_id, .+ FROM students WHERE id = \\$1 AND organization_id = \\$2").
		WithArgs("student-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "admission_no", "full_name", "birth_date", "active", "created_at", "updated_at"}))

	_, err := repo.FindByID(context.Background(), "org-1", "student-1")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{OrganizationID: "org-1", AdmissionNo: "A-001", FullName: "Jane Roe", Active: true}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
