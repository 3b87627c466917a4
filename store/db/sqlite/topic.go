package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/tutormind/store"
)

func (d *DB) CreateTopic(ctx context.Context, create *store.Topic) (*store.Topic, error) {
	fields := []string{"name", "category", "description"}
	args := []any{create.Name, create.Category, create.Description}

	stmt := `INSERT INTO topic (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `) RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, wrapWriteError(err, "failed to create topic")
	}
	return create, nil
}

func (d *DB) GetTopic(ctx context.Context, find *store.FindTopic) (*store.Topic, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}

	query := `SELECT id, name, category, description FROM topic WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC LIMIT 1`
	topic := &store.Topic{}
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&topic.ID, &topic.Name, &topic.Category, &topic.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return topic, nil
}
