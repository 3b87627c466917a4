package session

import (
	"context"

	apperrors "github.com/hrygo/tutormind/server/internal/errors"
	"github.com/hrygo/tutormind/store"
)

const (
	DefaultMessageLimit = 20
	DefaultHistoryLimit = 50
	MaxPageLimit        = 100
)

// Page selects a slice of a list. Nil fields take their defaults.
type Page struct {
	Limit  *int
	Offset *int
}

// resolve applies defaults and bounds. Limits above MaxPageLimit are capped; negative
// values are rejected.
func (p Page) resolve(defaultLimit int) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0
	if p.Limit != nil {
		if *p.Limit < 0 {
			return 0, 0, apperrors.Validation("limit must not be negative")
		}
		if *p.Limit > 0 {
			limit = min(*p.Limit, MaxPageLimit)
		}
	}
	if p.Offset != nil {
		if *p.Offset < 0 {
			return 0, 0, apperrors.Validation("offset must not be negative")
		}
		offset = *p.Offset
	}
	return limit, offset, nil
}

// ListMessages returns one page of the learner's conversation with a persona, oldest
// message first. Conversations with deactivated personas stay readable.
func (s *Service) ListMessages(ctx context.Context, learner Learner, personaID int32, page Page) (*store.ConversationMessagePage, error) {
	if learner.IsAnonymous() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if personaID <= 0 {
		return nil, apperrors.Validation("persona id must be a positive integer")
	}
	limit, offset, err := page.resolve(DefaultMessageLimit)
	if err != nil {
		return nil, err
	}

	result, err := s.store.PageConversationMessages(ctx, &store.FindConversationMessage{
		UserID:    &learner.ID,
		PersonaID: &personaID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, apperrors.Persistence("failed to load messages", err)
	}
	return result, nil
}

// ListLearningHistory returns one page of the learner's graded attempts on a topic,
// newest first.
func (s *Service) ListLearningHistory(ctx context.Context, learner Learner, topicID int32, page Page) (*store.LearningAttemptPage, error) {
	if learner.IsAnonymous() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if topicID <= 0 {
		return nil, apperrors.Validation("topic id must be a positive integer")
	}
	limit, offset, err := page.resolve(DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	if _, err := s.findTopic(ctx, topicID); err != nil {
		return nil, err
	}

	result, err := s.store.PageLearningAttempts(ctx, &store.FindLearningAttempt{
		UserID:  &learner.ID,
		TopicID: &topicID,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, apperrors.Persistence("failed to load learning history", err)
	}
	return result, nil
}
