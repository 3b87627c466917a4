package session

import (
	"context"
	"strings"

	apperrors "github.com/hrygo/tutormind/server/internal/errors"
	"github.com/hrygo/tutormind/store"
)

const DefaultPersonaLimit = 50

type PersonaFilter struct {
	Search  string
	TopicID *int32
	Role    string
	Page    Page
}

type PersonaList struct {
	Count      int
	NextOffset *int
	Personas   []*store.Persona
}

// ListPersonas lists active personas in name order.
func (s *Service) ListPersonas(ctx context.Context, filter PersonaFilter) (*PersonaList, error) {
	limit, offset, err := filter.Page.resolve(DefaultPersonaLimit)
	if err != nil {
		return nil, err
	}

	active := true
	find := &store.FindPersona{
		TopicID:  filter.TopicID,
		IsActive: &active,
		Limit:    limit,
		Offset:   offset,
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		find.Search = &search
	}
	if filter.Role != "" {
		role := store.PersonaRole(strings.ToLower(filter.Role))
		if !role.IsValid() {
			return nil, apperrors.Validation("unknown persona role %q", filter.Role)
		}
		find.Role = &role
	}

	count, err := s.store.CountPersonas(ctx, find)
	if err != nil {
		return nil, apperrors.Persistence("failed to count personas", err)
	}
	personas, err := s.store.ListPersonas(ctx, find)
	if err != nil {
		return nil, apperrors.Persistence("failed to list personas", err)
	}
	return &PersonaList{
		Count:      count,
		NextOffset: store.NextOffset(count, limit, offset),
		Personas:   personas,
	}, nil
}

// GetPersona returns an active persona.
func (s *Service) GetPersona(ctx context.Context, id int32) (*store.Persona, error) {
	if id <= 0 {
		return nil, apperrors.Validation("persona id must be a positive integer")
	}
	persona, err := s.store.FindActivePersona(ctx, id)
	if err != nil {
		return nil, apperrors.Persistence("failed to load persona", err)
	}
	if persona == nil {
		return nil, apperrors.NotFound("persona %d not found or inactive", id)
	}
	return persona, nil
}

type TopicDetails struct {
	Topic *store.Topic
	// Statistics is nil for anonymous callers and zero-valued before the first answer.
	Statistics *store.TopicStatistics
}

// GetTopic returns a topic and, for a known learner, their running totals on it.
func (s *Service) GetTopic(ctx context.Context, learner Learner, topicID int32) (*TopicDetails, error) {
	if topicID <= 0 {
		return nil, apperrors.Validation("topic id must be a positive integer")
	}
	topic, err := s.findTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	details := &TopicDetails{Topic: topic}
	if learner.IsAnonymous() {
		return details, nil
	}

	stats, err := s.store.GetTopicStatistics(ctx, &store.FindTopicStatistics{UserID: learner.ID, TopicID: topic.ID})
	if err != nil {
		return nil, apperrors.Persistence("failed to load topic statistics", err)
	}
	if stats == nil {
		stats = &store.TopicStatistics{UserID: learner.ID, TopicID: topic.ID}
	}
	details.Statistics = stats
	return details, nil
}
