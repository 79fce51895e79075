package ingest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/openbusmap/frequency-backend/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archiveFile struct {
	name string
	body string
}

// writeArchive materializes a zip of timetable documents under a temp dir
// and returns the directory, ready for ProcessDir.
func writeArchive(t *testing.T, name string, files []archiveFile) string {
	t.Helper()

	dir := t.TempDir()
	out, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)

	w := zip.NewWriter(out)
	for _, file := range files {
		entry, err := w.Create(file.name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(file.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	return dir
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	pg := &database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}
	return NewOrchestrator(pg, testRefMonday(t), logger), mock
}

const operatorDocument = `<?xml version="1.0" encoding="UTF-8"?>
<TransXChange xmlns="http://www.transxchange.org.uk/">
	<Operators>
		<Operator id="OId_SCCM">
			<OperatorShortName>Stagecoach</OperatorShortName>
		</Operator>
	</Operators>
</TransXChange>`

func TestProcessDirIngestsClaimedDocument(t *testing.T) {
	o, mock := newTestOrchestrator(t)
	dir := writeArchive(t, "EA.zip", []archiveFile{{"ea_20-1-A.xml", operatorDocument}})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO source`).
		WithArgs("EA.zip", "ea_20-1-A.xml").
		WillReturnRows(sqlmock.NewRows([]string{"source_id"}).AddRow(7))
	mock.ExpectExec(`SET CONSTRAINTS ALL DEFERRED`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO interned_code`).
		WithArgs("operator", int64(7), "OId_SCCM").
		WillReturnRows(sqlmock.NewRows([]string{"code_id"}).AddRow(8))
	mock.ExpectExec(`INSERT INTO operator`).
		WithArgs(int64(8), int64(7), "Stagecoach").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := o.ProcessDir(dir)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessDirSkipsAlreadyIngestedDocument(t *testing.T) {
	o, mock := newTestOrchestrator(t)
	dir := writeArchive(t, "EA.zip", []archiveFile{{"ea_20-1-A.xml", operatorDocument}})

	// The claim finds an existing source row: the document body must not
	// be touched, so no further statements are expected.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO source`).
		WithArgs("EA.zip", "ea_20-1-A.xml").
		WillReturnRows(sqlmock.NewRows([]string{"source_id"}))
	mock.ExpectRollback()

	report, err := o.ProcessDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessDirRollsBackMalformedDocumentAndContinues(t *testing.T) {
	o, mock := newTestOrchestrator(t)

	malformed := `<TransXChange><Operators><Operator id="OId_BAD"/></Operators></TransXChange>`
	dir := writeArchive(t, "EA.zip", []archiveFile{
		{"a_bad.xml", malformed},
		{"b_good.xml", operatorDocument},
	})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO source`).
		WithArgs("EA.zip", "a_bad.xml").
		WillReturnRows(sqlmock.NewRows([]string{"source_id"}).AddRow(1))
	mock.ExpectExec(`SET CONSTRAINTS ALL DEFERRED`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO source`).
		WithArgs("EA.zip", "b_good.xml").
		WillReturnRows(sqlmock.NewRows([]string{"source_id"}).AddRow(2))
	mock.ExpectExec(`SET CONSTRAINTS ALL DEFERRED`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO interned_code`).
		WithArgs("operator", int64(2), "OId_SCCM").
		WillReturnRows(sqlmock.NewRows([]string{"code_id"}).AddRow(3))
	mock.ExpectExec(`INSERT INTO operator`).
		WithArgs(int64(3), int64(2), "Stagecoach").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := o.ProcessDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessDirCountsCommitFailure(t *testing.T) {
	o, mock := newTestOrchestrator(t)
	dir := writeArchive(t, "EA.zip", []archiveFile{{"ea_20-1-A.xml", operatorDocument}})

	// A deferred FK firing at commit means the document referenced an
	// entity it never defined.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO source`).
		WillReturnRows(sqlmock.NewRows([]string{"source_id"}).AddRow(7))
	mock.ExpectExec(`SET CONSTRAINTS ALL DEFERRED`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO interned_code`).
		WillReturnRows(sqlmock.NewRows([]string{"code_id"}).AddRow(8))
	mock.ExpectExec(`INSERT INTO operator`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(io.ErrUnexpectedEOF)

	report, err := o.ProcessDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
