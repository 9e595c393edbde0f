package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestIdempotencyGuard_CheckAndReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("first observation reserves the key", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(redisClient, time.Hour)

		mock.Regexp().ExpectSetNX("idempotency:funding:paystack:PSK-001", `\d+`, time.Hour).SetVal(true)

		firstSeen, err := guard.CheckAndReserve(ctx, "funding:paystack:PSK-001")
		assert.NoError(t, err)
		assert.True(t, firstSeen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second observation is rejected", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(redisClient, time.Hour)

		mock.Regexp().ExpectSetNX("idempotency:funding:paystack:PSK-001", `\d+`, time.Hour).SetVal(false)

		firstSeen, err := guard.CheckAndReserve(ctx, "funding:paystack:PSK-001")
		assert.NoError(t, err)
		assert.False(t, firstSeen)
	})

	t.Run("redis failure falls through open", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		guard := NewIdempotencyGuard(redisClient, time.Hour)

		mock.Regexp().ExpectSetNX("idempotency:debit:REF-1", `\d+`, time.Hour).SetErr(errors.New("connection refused"))

		firstSeen, err := guard.CheckAndReserve(ctx, "debit:REF-1")
		assert.NoError(t, err)
		assert.True(t, firstSeen)
	})

	t.Run("nil redis degrades to pass-through", func(t *testing.T) {
		guard := NewIdempotencyGuard(nil, 0)

		firstSeen, err := guard.CheckAndReserve(ctx, "debit:REF-1")
		assert.NoError(t, err)
		assert.True(t, firstSeen)
	})
}

func TestIdempotencyGuard_Release(t *testing.T) {
	redisClient, mock := redismock.NewClientMock()
	guard := NewIdempotencyGuard(redisClient, time.Hour)

	mock.ExpectDel("idempotency:debit:REF-1").SetVal(1)

	guard.Release(context.Background(), "debit:REF-1")
	assert.NoError(t, mock.ExpectationsWereMet())

	// Nil redis must not panic.
	NewIdempotencyGuard(nil, 0).Release(context.Background(), "debit:REF-1")
}
