package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/tutormind/store"
)

const memoryColumns = "id, user_id, persona_id, summary, created_ts, updated_ts"

func scanMemory(row *sql.Row) (*store.ConversationMemory, error) {
	memory := &store.ConversationMemory{}
	var persona sql.NullInt32
	if err := row.Scan(&memory.ID, &memory.UserID, &persona, &memory.Summary, &memory.CreatedTs, &memory.UpdatedTs); err != nil {
		return nil, err
	}
	memory.PersonaID = persona.Int32
	return memory, nil
}

func (d *DB) GetOrCreateConversationMemory(ctx context.Context, userID, personaID int32) (*store.ConversationMemory, error) {
	now := time.Now().Unix()
	stmt := `INSERT INTO conversation_memory (user_id, persona_id, summary, created_ts, updated_ts)
		VALUES ($1, $2, '', $3, $3)
		ON CONFLICT (user_id, persona_id) DO NOTHING
		RETURNING ` + memoryColumns
	memory, err := scanMemory(d.db.QueryRowContext(ctx, stmt, userID, personaID, now))
	if err == nil {
		return memory, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to create conversation_memory: %w", err)
	}

	// Another request created the row first.
	query := "SELECT " + memoryColumns + " FROM conversation_memory WHERE user_id = $1 AND persona_id = $2"
	memory, err = scanMemory(d.db.QueryRowContext(ctx, query, userID, personaID))
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation_memory: %w", err)
	}
	return memory, nil
}

func updateConversationMemory(ctx context.Context, q querier, update *store.UpdateConversationMemory) (string, error) {
	var current string
	if err := q.QueryRowContext(ctx, "SELECT summary FROM conversation_memory WHERE id = $1 FOR UPDATE", update.ID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("conversation_memory %d not found", update.ID)
		}
		return "", fmt.Errorf("failed to lock conversation_memory: %w", err)
	}

	merged := update.Merge(current)
	if _, err := q.ExecContext(ctx, "UPDATE conversation_memory SET summary = $1, updated_ts = $2 WHERE id = $3", merged, update.UpdatedTs, update.ID); err != nil {
		return "", wrapWriteError(err, "failed to update conversation_memory")
	}
	return merged, nil
}

func createConversationMessage(ctx context.Context, q querier, create *store.ConversationMessage) (*store.ConversationMessage, error) {
	fields := []string{"uid", "user_id", "persona_id", "sender", "message", "created_ts"}
	args := []any{create.UID, create.UserID, create.PersonaID, string(create.Sender), create.Message, create.CreatedTs}

	stmt := "INSERT INTO conversation_message (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING id"
	if err := q.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, wrapWriteError(err, "failed to create conversation_message")
	}
	return create, nil
}

func buildMessageWhere(find *store.FindConversationMessage) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.PersonaID; v != nil {
		where, args = append(where, "persona_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if find.ExcludeEmpty {
		where = append(where, "BTRIM(message) <> ''")
	}
	return where, args
}

func listConversationMessages(ctx context.Context, q querier, find *store.FindConversationMessage) ([]*store.ConversationMessage, error) {
	where, args := buildMessageWhere(find)
	order := "created_ts ASC, id ASC"
	if find.NewestFirst {
		order = "created_ts DESC, id DESC"
	}

	query := `SELECT id, uid, user_id, persona_id, sender, message, created_ts
		FROM conversation_message WHERE ` + strings.Join(where, " AND ") + " ORDER BY " + order + limitOffset(find.Limit, find.Offset)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation_messages: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ConversationMessage, 0)
	for rows.Next() {
		m := &store.ConversationMessage{}
		var persona sql.NullInt32
		var sender string
		if err := rows.Scan(&m.ID, &m.UID, &m.UserID, &persona, &sender, &m.Message, &m.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan conversation_message: %w", err)
		}
		m.PersonaID = persona.Int32
		m.Sender = store.MessageSender(sender)
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) ListConversationMessages(ctx context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error) {
	if find == nil {
		return nil, fmt.Errorf("find parameter cannot be nil")
	}
	return listConversationMessages(ctx, d.db, find)
}

func (d *DB) PageConversationMessages(ctx context.Context, find *store.FindConversationMessage) (*store.ConversationMessagePage, error) {
	if find == nil {
		return nil, fmt.Errorf("find parameter cannot be nil")
	}

	tx, err := d.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	where, args := buildMessageWhere(find)
	page := &store.ConversationMessagePage{}
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversation_message WHERE "+strings.Join(where, " AND "), args...).Scan(&page.Count); err != nil {
		return nil, fmt.Errorf("failed to count conversation_messages: %w", err)
	}

	slice := *find
	slice.NewestFirst = false
	if page.Messages, err = listConversationMessages(ctx, tx, &slice); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read transaction: %w", err)
	}

	page.NextOffset = store.NextOffset(page.Count, find.Limit, find.Offset)
	return page, nil
}
