package store

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// WriteOp is a single write executed inside a unit of work.
type WriteOp func(ctx context.Context, tx Tx) error

// Commit runs ops in order inside one transaction. Either every op lands or none does.
// Nil ops are skipped.
func (s *Store) Commit(ctx context.Context, ops ...WriteOp) error {
	pending := make([]WriteOp, 0, len(ops))
	for _, op := range ops {
		if op != nil {
			pending = append(pending, op)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	return s.driver.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		for _, op := range pending {
			if err := op(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateConversationMessageOp inserts create and fills in its generated fields.
func CreateConversationMessageOp(create *ConversationMessage) WriteOp {
	return func(ctx context.Context, tx Tx) error {
		if create.UID == "" {
			create.UID = shortuuid.New()
		}
		if create.CreatedTs == 0 {
			create.CreatedTs = time.Now().Unix()
		}
		created, err := tx.CreateConversationMessage(ctx, create)
		if err != nil {
			return err
		}
		*create = *created
		return nil
	}
}

// UpdateConversationMemoryOp applies a prepared summary update and fills in
// update.Summary. It is nil for a nil update.
func UpdateConversationMemoryOp(update *UpdateConversationMemory) WriteOp {
	if update == nil {
		return nil
	}
	return func(ctx context.Context, tx Tx) error {
		summary, err := tx.UpdateConversationMemory(ctx, update)
		if err != nil {
			return err
		}
		update.Summary = summary
		return nil
	}
}

// CreateLearningAttemptOp inserts create and fills in its generated fields.
func CreateLearningAttemptOp(create *LearningAttempt) WriteOp {
	return func(ctx context.Context, tx Tx) error {
		if create.UID == "" {
			create.UID = shortuuid.New()
		}
		if create.CreatedTs == 0 {
			create.CreatedTs = time.Now().Unix()
		}
		created, err := tx.CreateLearningAttempt(ctx, create)
		if err != nil {
			return err
		}
		*create = *created
		return nil
	}
}

// UpsertTopicStatisticsOp adds upsert.Score to the user's topic totals. When result is
// not nil it receives the row as stored after the write.
func UpsertTopicStatisticsOp(upsert *UpsertTopicStatistics, result **TopicStatistics) WriteOp {
	return func(ctx context.Context, tx Tx) error {
		if upsert.UpdatedTs == 0 {
			upsert.UpdatedTs = time.Now().Unix()
		}
		stats, err := tx.UpsertTopicStatistics(ctx, upsert)
		if err != nil {
			return err
		}
		if result != nil {
			*result = stats
		}
		return nil
	}
}
