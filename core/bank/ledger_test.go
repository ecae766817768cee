package bank

import (
	"context"
	"fmt"
	"testing"

	"metajuke/model"
	"metajuke/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupLedger(t *testing.T) *Ledger {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))
	return NewLedger(repository.NewGormStore(db))
}

func balanceOf(t *testing.T, l *Ledger, account string) string {
	t.Helper()
	amount, err := l.Balance(context.Background(), "XLM", account)
	require.NoError(t, err)
	return amount.String()
}

func TestTransferMovesValue(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, "XLM", "alice", model.NewAmount(100)))

	require.NoError(t, l.Transfer(ctx, "XLM", "alice", "bob", model.NewAmount(30)))
	assert.Equal(t, "70", balanceOf(t, l, "alice"))
	assert.Equal(t, "30", balanceOf(t, l, "bob"))
}

func TestTransferInsufficientLeavesBalances(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, "XLM", "alice", model.NewAmount(10)))

	err := l.Transfer(ctx, "XLM", "alice", "bob", model.NewAmount(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "10", balanceOf(t, l, "alice"))
	assert.Equal(t, "0", balanceOf(t, l, "bob"))
}

func TestTransferRejectsNonPositive(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	require.ErrorIs(t, l.Transfer(ctx, "XLM", "alice", "bob", model.NewAmount(0)), ErrInvalidAmount)
	require.ErrorIs(t, l.Transfer(ctx, "XLM", "alice", "bob", model.NewAmount(-5)), ErrInvalidAmount)
}

func TestHolds(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, "profile-1", "alice", model.NewAmount(1)))

	ok, err := l.Holds(ctx, "profile-1", "alice", model.NewAmount(1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Holds(ctx, "profile-1", "bob", model.NewAmount(1))
	require.NoError(t, err)
	assert.False(t, ok)
}
