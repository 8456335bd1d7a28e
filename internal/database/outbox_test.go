package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRetryAt(t *testing.T) {
	t.Run("exponential backoff", func(t *testing.T) {
		now := time.Now()

		first := nextRetryAt(1)
		second := nextRetryAt(2)
		third := nextRetryAt(3)

		assert.True(t, first.After(now))
		assert.True(t, second.After(first))
		assert.True(t, third.After(second))
	})

	t.Run("capped at five minutes", func(t *testing.T) {
		next := nextRetryAt(20)
		assert.True(t, next.Before(time.Now().Add(301*time.Second)))
	})
}

func TestOutboxRepository_InsertWithTx(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)

	t.Run("successful insert with transaction", func(t *testing.T) {
		event := &OutboxEvent{
			AggregateType: "product",
			AggregateID:   "B001TEST",
			EventType:     "VARIANTS_EXTRACTED",
			Payload:       json.RawMessage(`{"asin":"B001TEST","title":"Test Product"}`),
			TargetStream:  StreamVariantVerdicts,
		}

		err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			return repo.InsertWithTx(ctx, tx, event)
		})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, event.ID)
		assert.Equal(t, "pending", event.Status)
		assert.Equal(t, 0, event.RetryCount)
		assert.False(t, event.CreatedAt.IsZero())
	})

	t.Run("rollback on transaction failure", func(t *testing.T) {
		event := &OutboxEvent{
			AggregateType: "product",
			AggregateID:   "B002TEST",
			EventType:     "VARIANTS_EXTRACTED",
			Payload:       json.RawMessage(`{"asin":"B002TEST"}`),
			TargetStream:  StreamVariantVerdicts,
		}

		err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			if err := repo.InsertWithTx(ctx, tx, event); err != nil {
				return err
			}
			// Force rollback
			return pgx.ErrTxClosed
		})

		assert.Error(t, err)

		events, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)
		for _, e := range events {
			assert.NotEqual(t, "B002TEST", e.AggregateID)
		}
	})
}

func TestOutboxRepository_GetPending(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)

	now := time.Now()
	events := []*OutboxEvent{
		{
			AggregateType: "product",
			AggregateID:   "B001TEST",
			EventType:     "VARIANTS_EXTRACTED",
			Payload:       json.RawMessage(`{"asin":"B001TEST"}`),
			TargetStream:  StreamVariantVerdicts,
			Status:        "pending",
			NextRetryAt:   &now,
		},
		{
			AggregateType: "product",
			AggregateID:   "B002TEST",
			EventType:     "VARIANTS_EXTRACTED",
			Payload:       json.RawMessage(`{"asin":"B002TEST"}`),
			TargetStream:  StreamVariantVerdicts,
			Status:        "processed",
			NextRetryAt:   &now,
		},
		{
			AggregateType: "product",
			AggregateID:   "B003TEST",
			EventType:     "VARIANTS_EXTRACTED",
			Payload:       json.RawMessage(`{"asin":"B003TEST"}`),
			TargetStream:  StreamVariantVerdicts,
			Status:        "failed",
			RetryCount:    2,
			NextRetryAt:   &now,
		},
	}

	for _, event := range events {
		err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			return repo.InsertWithTx(ctx, tx, event)
		})
		require.NoError(t, err)
	}

	t.Run("get pending events with limit", func(t *testing.T) {
		pending, err := repo.GetPending(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		for _, e := range pending {
			assert.Contains(t, []string{"pending", "failed"}, e.Status)
		}
	})

	t.Run("respects next_retry_at", func(t *testing.T) {
		future := time.Now().Add(1 * time.Hour)
		_, err := db.pool.Exec(ctx,
			"UPDATE outbox_event SET next_retry_at = $1 WHERE aggregate_id = $2",
			future, "B003TEST")
		require.NoError(t, err)

		pending, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)

		for _, e := range pending {
			assert.NotEqual(t, "B003TEST", e.AggregateID)
		}
	})
}

func TestOutboxRepository_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)

	event := &OutboxEvent{
		AggregateType: "product",
		AggregateID:   "B001TEST",
		EventType:     "VARIANTS_EXTRACTED",
		Payload:       json.RawMessage(`{"asin":"B001TEST"}`),
		TargetStream:  StreamVariantVerdicts,
	}

	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		return repo.InsertWithTx(ctx, tx, event)
	})
	require.NoError(t, err)

	t.Run("mark as processed", func(t *testing.T) {
		err := repo.MarkProcessed(ctx, event.ID)
		require.NoError(t, err)

		var status string
		var processedAt *time.Time
		err = db.pool.QueryRow(ctx,
			"SELECT status, processed_at FROM outbox_event WHERE id = $1",
			event.ID).Scan(&status, &processedAt)
		require.NoError(t, err)

		assert.Equal(t, "processed", status)
		assert.NotNil(t, processedAt)
	})

	t.Run("mark non-existent event", func(t *testing.T) {
		err := repo.MarkProcessed(ctx, uuid.New())
		assert.Error(t, err)
	})
}

func TestOutboxRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)

	t.Run("increment retry count and set backoff", func(t *testing.T) {
		event := &OutboxEvent{
			AggregateType: "product",
			AggregateID:   "B001TEST",
			EventType:     "VARIANTS_EXTRACTED",
			Payload:       json.RawMessage(`{"asin":"B001TEST"}`),
			TargetStream:  StreamVariantVerdicts,
		}

		err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			return repo.InsertWithTx(ctx, tx, event)
		})
		require.NoError(t, err)

		err = repo.MarkFailed(ctx, event.ID, assert.AnError)
		require.NoError(t, err)

		var status string
		var retryCount int
		var nextRetry *time.Time
		err = db.pool.QueryRow(ctx,
			"SELECT status, retry_count, next_retry_at FROM outbox_event WHERE id = $1",
			event.ID).Scan(&status, &retryCount, &nextRetry)
		require.NoError(t, err)

		assert.Equal(t, "failed", status)
		assert.Equal(t, 1, retryCount)
		assert.NotNil(t, nextRetry)
		assert.True(t, nextRetry.After(time.Now()))
	})

	t.Run("move to dead letter after max retries", func(t *testing.T) {
		event := &OutboxEvent{
			AggregateType: "product",
			AggregateID:   "B002TEST",
			EventType:     "VARIANTS_EXTRACTED",
			Payload:       json.RawMessage(`{"asin":"B002TEST"}`),
			TargetStream:  StreamVariantVerdicts,
			RetryCount:    MaxRelayAttempts - 1,
		}

		err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			return repo.InsertWithTx(ctx, tx, event)
		})
		require.NoError(t, err)

		err = repo.MarkFailed(ctx, event.ID, assert.AnError)
		require.NoError(t, err)

		var status string
		var retryCount int
		err = db.pool.QueryRow(ctx,
			"SELECT status, retry_count FROM outbox_event WHERE id = $1",
			event.ID).Scan(&status, &retryCount)
		require.NoError(t, err)

		assert.Equal(t, "dead_letter", status)
		assert.Equal(t, 5, retryCount)
	})
}

// setupTestDB creates a test database connection. Skips when no test
// database is configured.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	t.Skip("Test database not configured")
	return nil
}
