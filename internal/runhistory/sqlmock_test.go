package runhistory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// TestSaveRunPropagatesDriverError exercises the postgres dialector
// path without a real server, using sqlmock to simulate a failing
// INSERT and asserting SaveRun surfaces (rather than swallows) it.
func TestSaveRunPropagatesDriverError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "run_records"`).
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: mockDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	s := &gormStore{db: db}
	err = s.SaveRun(context.Background(), &RunRecord{
		ID:        "run-err",
		StartedAt: time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}
