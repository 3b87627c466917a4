package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/tutormind/store"
)

func (d *DB) CreatePersona(ctx context.Context, create *store.Persona) (*store.Persona, error) {
	personality, err := store.EncodePersonality(create.Personality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode personality: %w", err)
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = create.CreatedTs
	}

	fields := []string{"name", "role", "description", "personality", "avatar_url", "is_active", "topic_id", "created_ts", "updated_ts"}
	args := []any{create.Name, string(create.Role), create.Description, personality, create.AvatarURL, create.IsActive, create.TopicID, create.CreatedTs, create.UpdatedTs}

	stmt := `INSERT INTO persona (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `) RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, wrapWriteError(err, "failed to create persona")
	}
	return create, nil
}

func buildPersonaWhere(find *store.FindPersona) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "p.id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.TopicID != nil {
		where, args = append(where, "p.topic_id = "+placeholder(len(args)+1)), append(args, *find.TopicID)
	}
	if find.Role != nil {
		where, args = append(where, "p.role = "+placeholder(len(args)+1)), append(args, string(*find.Role))
	}
	if find.IsActive != nil {
		where, args = append(where, "p.is_active = "+placeholder(len(args)+1)), append(args, *find.IsActive)
	}
	if find.Search != nil && *find.Search != "" {
		where, args = append(where, "LOWER(p.name) LIKE LOWER("+placeholder(len(args)+1)+")"), append(args, "%"+*find.Search+"%")
	}
	return where, args
}

func (d *DB) ListPersonas(ctx context.Context, find *store.FindPersona) ([]*store.Persona, error) {
	if find == nil {
		return nil, fmt.Errorf("find parameter cannot be nil")
	}
	where, args := buildPersonaWhere(find)

	query := `SELECT p.id, p.name, p.role, p.description, p.personality, p.avatar_url, p.is_active, p.topic_id, p.created_ts, p.updated_ts, t.name, t.category
		FROM persona p JOIN topic t ON t.id = p.topic_id
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY p.name ASC, p.id ASC` + limitOffset(find.Limit, find.Offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Persona, 0)
	for rows.Next() {
		p := &store.Persona{}
		var role string
		var personality []byte
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&role,
			&p.Description,
			&personality,
			&p.AvatarURL,
			&p.IsActive,
			&p.TopicID,
			&p.CreatedTs,
			&p.UpdatedTs,
			&p.TopicName,
			&p.TopicCategory,
		); err != nil {
			return nil, fmt.Errorf("failed to scan persona: %w", err)
		}
		p.Role = store.PersonaRole(role)
		if p.Personality, err = store.DecodePersonality(personality); err != nil {
			return nil, fmt.Errorf("failed to decode personality of persona %d: %w", p.ID, err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate personas: %w", err)
	}
	return list, nil
}

func (d *DB) CountPersonas(ctx context.Context, find *store.FindPersona) (int, error) {
	where, args := buildPersonaWhere(find)

	var count int
	query := `SELECT COUNT(*) FROM persona p WHERE ` + strings.Join(where, " AND ")
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count personas: %w", err)
	}
	return count, nil
}

func (d *DB) UpdatePersona(ctx context.Context, update *store.UpdatePersona) (*store.Persona, error) {
	if update.UpdatedTs == 0 {
		update.UpdatedTs = time.Now().Unix()
	}
	set, args := []string{"updated_ts = " + placeholder(1)}, []any{update.UpdatedTs}
	if update.IsActive != nil {
		set, args = append(set, "is_active = "+placeholder(len(args)+1)), append(args, *update.IsActive)
	}
	args = append(args, update.ID)

	stmt := `UPDATE persona SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update persona: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, nil
	}

	list, err := d.ListPersonas(ctx, &store.FindPersona{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
