package repository

import (
	"context"
	"errors"
	"testing"

	"metajuke/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return NewGormStore(db), mock
}

func TestGetTrackPropagatesDriverError(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `tracks`").WillReturnError(errors.New("connection reset"))

	track, err := store.GetTrack(context.Background(), model.ID{1})
	require.Error(t, err)
	assert.Nil(t, track)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionLocksRowsOnMySQL(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `artists` WHERE address = \\? .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"address", "artist_name", "revenue_balance"}).
			AddRow("alice", "Alice", "250"))
	mock.ExpectCommit()

	var got *model.Artist
	err := store.Transaction(context.Background(), func(tx Store) error {
		var err error
		got, err = tx.GetArtist(context.Background(), "alice")
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "250", got.RevenueBalance.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
