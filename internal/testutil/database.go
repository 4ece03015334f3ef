// Package testutil provides helpers shared by package tests.
//
// Repository tests run against go-sqlmock instead of live databases:
//
//	db, mock := testutil.NewSQLMock(t)
//	mock.ExpectExec(testutil.Query("INSERT INTO outbox_messages")).WillReturnResult(sqlmock.NewResult(0, 1))
//
// Unmet expectations fail the test automatically through t.Cleanup.
package testutil

import (
	"database/sql"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewSQLMock opens a sqlmock-backed *sql.DB and registers cleanup that closes
// it and verifies every expectation was met.
func NewSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unmet sqlmock expectations")
		_ = db.Close()
	})

	return db, mock
}

// Query turns a literal SQL fragment into a sqlmock regular expression.
func Query(fragment string) string {
	return regexp.QuoteMeta(fragment)
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
