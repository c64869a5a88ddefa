package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxManager_BeginFunc(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	m := NewTxManager(mockPool)

	t.Run("CommitsOnSuccess", func(t *testing.T) {
		mockPool.ExpectBegin()
		mockPool.ExpectExec(`UPDATE accounts`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()

		err := m.BeginFunc(context.Background(), func(tx pgx.Tx) error {
			_, err := tx.Exec(context.Background(), `UPDATE accounts SET wallet_balance = 1`)
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("RollsBackOnError", func(t *testing.T) {
		fnErr := errors.New("insufficient balance")
		mockPool.ExpectBegin()
		mockPool.ExpectRollback()

		err := m.BeginFunc(context.Background(), func(tx pgx.Tx) error {
			return fnErr
		})
		assert.ErrorIs(t, err, fnErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("IgnoresCancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		mockPool.ExpectBegin()
		mockPool.ExpectCommit()

		err := m.BeginFunc(ctx, func(tx pgx.Tx) error { return nil })
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("CancelInsideUnitRollsBack", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		mockPool.ExpectBegin()
		mockPool.ExpectRollback()

		err := m.BeginFunc(ctx, func(tx pgx.Tx) error {
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
