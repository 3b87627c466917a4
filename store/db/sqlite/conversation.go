package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/tutormind/store"
)

func (d *DB) GetOrCreateConversationMemory(ctx context.Context, userID, personaID int32) (*store.ConversationMemory, error) {
	now := time.Now().Unix()
	stmt := `INSERT INTO conversation_memory (user_id, persona_id, summary, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (user_id, persona_id) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, stmt, userID, personaID, "", now, now); err != nil {
		return nil, fmt.Errorf("failed to create conversation_memory: %w", err)
	}

	memory := &store.ConversationMemory{}
	var persona sql.NullInt32
	query := `SELECT id, user_id, persona_id, summary, created_ts, updated_ts
		FROM conversation_memory WHERE user_id = ` + placeholder(1) + ` AND persona_id = ` + placeholder(2)
	if err := d.db.QueryRowContext(ctx, query, userID, personaID).Scan(
		&memory.ID,
		&memory.UserID,
		&persona,
		&memory.Summary,
		&memory.CreatedTs,
		&memory.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to load conversation_memory: %w", err)
	}
	memory.PersonaID = persona.Int32
	return memory, nil
}

// updateConversationMemory reads and rewrites the summary in the caller's transaction.
// The driver holds a single connection, so no other transaction runs in between.
func updateConversationMemory(ctx context.Context, q querier, update *store.UpdateConversationMemory) (string, error) {
	var current string
	if err := q.QueryRowContext(ctx, `SELECT summary FROM conversation_memory WHERE id = `+placeholder(1), update.ID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("conversation_memory %d not found", update.ID)
		}
		return "", fmt.Errorf("failed to load conversation_memory: %w", err)
	}

	merged := update.Merge(current)
	stmt := `UPDATE conversation_memory SET summary = ` + placeholder(1) + `, updated_ts = ` + placeholder(2) + ` WHERE id = ` + placeholder(3)
	if _, err := q.ExecContext(ctx, stmt, merged, update.UpdatedTs, update.ID); err != nil {
		return "", wrapWriteError(err, "failed to update conversation_memory")
	}
	return merged, nil
}

func createConversationMessage(ctx context.Context, q querier, create *store.ConversationMessage) (*store.ConversationMessage, error) {
	fields := []string{"uid", "user_id", "persona_id", "sender", "message", "created_ts"}
	args := []any{create.UID, create.UserID, create.PersonaID, string(create.Sender), create.Message, create.CreatedTs}

	stmt := `INSERT INTO conversation_message (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `) RETURNING id`
	if err := q.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, wrapWriteError(err, "failed to create conversation_message")
	}
	return create, nil
}

func buildMessageWhere(find *store.FindConversationMessage) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.PersonaID != nil {
		where, args = append(where, "persona_id = "+placeholder(len(args)+1)), append(args, *find.PersonaID)
	}
	if find.ExcludeEmpty {
		where = append(where, "TRIM(message) <> ''")
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
		FROM conversation_message WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + order + limitOffset(find.Limit, find.Offset)

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
		return nil, fmt.Errorf("failed to iterate conversation_messages: %w", err)
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

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	where, args := buildMessageWhere(find)
	page := &store.ConversationMessagePage{}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversation_message WHERE `+strings.Join(where, " AND "), args...).Scan(&page.Count); err != nil {
		return nil, fmt.Errorf("failed to count conversation_messages: %w", err)
	}

	slice := *find
	slice.NewestFirst = false
	if page.Messages, err = listConversationMessages(ctx, tx, &slice); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	page.NextOffset = store.NextOffset(page.Count, find.Limit, find.Offset)
	return page, nil
}
