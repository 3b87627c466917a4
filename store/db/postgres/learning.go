package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/tutormind/store"
)

const (
	attemptColumns    = "id, uid, user_id, topic_id, ai_model, question, difficulty, user_answer, feedback, improved_answer, score, created_ts"
	statisticsColumns = "id, user_id, topic_id, total_score, questions_asked, updated_ts"
)

func createLearningAttempt(ctx context.Context, q querier, create *store.LearningAttempt) (*store.LearningAttempt, error) {
	fields := []string{"uid", "user_id", "topic_id", "ai_model", "question", "difficulty", "user_answer", "feedback", "improved_answer", "score", "created_ts"}
	args := []any{
		create.UID,
		create.UserID,
		create.TopicID,
		create.AIModel,
		create.Question,
		string(create.Difficulty),
		create.UserAnswer,
		create.Feedback,
		create.ImprovedAnswer,
		create.Score,
		create.CreatedTs,
	}

	stmt := "INSERT INTO learning_attempt (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING id"
	if err := q.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, wrapWriteError(err, "failed to create learning_attempt")
	}
	return create, nil
}

func scanStatistics(row *sql.Row) (*store.TopicStatistics, error) {
	stats := &store.TopicStatistics{}
	if err := row.Scan(&stats.ID, &stats.UserID, &stats.TopicID, &stats.TotalScore, &stats.QuestionsAsked, &stats.UpdatedTs); err != nil {
		return nil, err
	}
	return stats, nil
}

// upsertTopicStatistics adds one answered question to the totals in a single statement,
// so concurrent gradings of the same topic never lose an increment.
func upsertTopicStatistics(ctx context.Context, q querier, upsert *store.UpsertTopicStatistics) (*store.TopicStatistics, error) {
	stmt := `INSERT INTO topic_statistics (user_id, topic_id, total_score, questions_asked, updated_ts)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, topic_id) DO UPDATE SET
			total_score = topic_statistics.total_score + EXCLUDED.total_score,
			questions_asked = topic_statistics.questions_asked + 1,
			updated_ts = EXCLUDED.updated_ts
		RETURNING ` + statisticsColumns
	stats, err := scanStatistics(q.QueryRowContext(ctx, stmt, upsert.UserID, upsert.TopicID, upsert.Score, upsert.UpdatedTs))
	if err != nil {
		return nil, wrapWriteError(err, "failed to upsert topic_statistics")
	}
	return stats, nil
}

func buildAttemptWhere(find *store.FindLearningAttempt) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TopicID; v != nil {
		where, args = append(where, "topic_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Difficulty; v != nil {
		where, args = append(where, "difficulty = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	return where, args
}

func listLearningAttempts(ctx context.Context, q querier, find *store.FindLearningAttempt) ([]*store.LearningAttempt, error) {
	where, args := buildAttemptWhere(find)
	query := "SELECT " + attemptColumns + " FROM learning_attempt WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_ts DESC, id DESC" + limitOffset(find.Limit, find.Offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list learning_attempts: %w", err)
	}
	defer rows.Close()

	list := make([]*store.LearningAttempt, 0)
	for rows.Next() {
		a := &store.LearningAttempt{}
		var difficulty string
		if err := rows.Scan(
			&a.ID,
			&a.UID,
			&a.UserID,
			&a.TopicID,
			&a.AIModel,
			&a.Question,
			&difficulty,
			&a.UserAnswer,
			&a.Feedback,
			&a.ImprovedAnswer,
			&a.Score,
			&a.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan learning_attempt: %w", err)
		}
		a.Difficulty = store.Difficulty(difficulty)
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) ListLearningAttempts(ctx context.Context, find *store.FindLearningAttempt) ([]*store.LearningAttempt, error) {
	if find == nil {
		return nil, fmt.Errorf("find parameter cannot be nil")
	}
	return listLearningAttempts(ctx, d.db, find)
}

func (d *DB) PageLearningAttempts(ctx context.Context, find *store.FindLearningAttempt) (*store.LearningAttemptPage, error) {
	if find == nil {
		return nil, fmt.Errorf("find parameter cannot be nil")
	}

	tx, err := d.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	where, args := buildAttemptWhere(find)
	page := &store.LearningAttemptPage{}
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM learning_attempt WHERE "+strings.Join(where, " AND "), args...).Scan(&page.Count); err != nil {
		return nil, fmt.Errorf("failed to count learning_attempts: %w", err)
	}
	if page.Attempts, err = listLearningAttempts(ctx, tx, find); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read transaction: %w", err)
	}

	page.NextOffset = store.NextOffset(page.Count, find.Limit, find.Offset)
	return page, nil
}

func (d *DB) GetTopicStatistics(ctx context.Context, find *store.FindTopicStatistics) (*store.TopicStatistics, error) {
	query := "SELECT " + statisticsColumns + " FROM topic_statistics WHERE user_id = $1 AND topic_id = $2"
	stats, err := scanStatistics(d.db.QueryRowContext(ctx, query, find.UserID, find.TopicID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get topic_statistics: %w", err)
	}
	return stats, nil
}
