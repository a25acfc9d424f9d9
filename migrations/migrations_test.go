package migrations

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesAreOrdered(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"0001_create_companies.sql",
		"0002_create_company_sequences.sql",
		"0003_create_members.sql",
		"0004_create_admins_and_audit_log.sql",
		"0005_create_company_prefix_history.sql",
	}, names)
}

func TestApplySkipsRecordedVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).
			AddRow("0001_create_companies.sql").
			AddRow("0002_create_company_sequences.sql"))

	pending := []string{
		"0003_create_members.sql",
		"0004_create_admins_and_audit_log.sql",
		"0005_create_company_prefix_history.sql",
	}
	for _, name := range pending {
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(name).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	ran, err := Apply(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Equal(t, pending, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRollsBackFailedMigration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS companies").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	ran, err := Apply(context.Background(), db, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_create_companies.sql")
	assert.Empty(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).
			AddRow("0001_create_companies.sql").
			AddRow("0002_create_company_sequences.sql").
			AddRow("0003_create_members.sql"))

	pending, err := Pending(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"0004_create_admins_and_audit_log.sql",
		"0005_create_company_prefix_history.sql",
	}, pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterKindsAreNotPinnedBySchema(t *testing.T) {
	content, err := files.ReadFile("0005_create_company_prefix_history.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "DROP CONSTRAINT IF EXISTS chk_company_sequences_kind")
}
