package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

func TestFeeRepositoryBulkCreateAssignments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT organization_id FROM students WHERE id = $1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow("org-1"))
	mock.ExpectExec("INSERT INTO fee_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT organization_id FROM students WHERE id = $1")).
		WithArgs("student-2").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow("org-1"))
	mock.ExpectExec("INSERT INTO fee_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assignments := []models.FeeAssignment{
		{TermID: "term-1", FeeStructureID: "fee-1", StudentID: "student-1", AmountCents: 100},
		{TermID: "term-1", FeeStructureID: "fee-1", StudentID: "student-2", AmountCents: 100},
	}
	err := repo.BulkCreateAssignments(context.Background(), "org-1", assignments)
	require.NoError(t, err)
	assert.NotEmpty(t, assignments[0].ID)
	assert.Equal(t, models.FeeAssignmentPending, assignments[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// One student outside the organization rolls back the whole batch, including
// rows already inserted before the mismatch was seen.
func TestFeeRepositoryBulkCreateAssignmentsForeignStudentRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT organization_id FROM students WHERE id = $1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow("org-1"))
	mock.ExpectExec("INSERT INTO fee_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT organization_id FROM students WHERE id = $1")).
		WithArgs("student-foreign").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow("org-2"))
	mock.ExpectRollback()

	assignments := []models.FeeAssignment{
		{TermID: "term-1", FeeStructureID: "fee-1", StudentID: "student-1", AmountCents: 100},
		{TermID: "term-1", FeeStructureID: "fee-1", StudentID: "student-foreign", AmountCents: 100},
	}
	err := repo.BulkCreateAssignments(context.Background(), "org-1", assignments)
	assert.ErrorIs(t, err, appErrors.ErrCrossTenantReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryBulkCreateAssignmentsUnknownStudentRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT organization_id FROM students WHERE id = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}))
	mock.ExpectRollback()

	err := repo.BulkCreateAssignments(context.Background(), "org-1", []models.FeeAssignment{
		{TermID: "term-1", FeeStructureID: "fee-1", StudentID: "ghost", AmountCents: 100},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCrossTenantReference.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryListStructures(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery("SELECT id, organization_id, term_id, .+ FROM fee_structures WHERE organization_id = \\$1 AND term_id = \\$2").
		WithArgs("org-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "term_id", "name", "amount_cents", "created_at", "updated_at"}))

	structures, err := repo.ListStructures(context.Background(), "org-1", "term-1")
	require.NoError(t, err)
	assert.Empty(t, structures)
	assert.NoError(t, mock.ExpectationsWereMet())
}
