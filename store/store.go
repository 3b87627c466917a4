package store

import (
	"context"
	"strings"
	"time"

	"github.com/hrygo/tutormind/internal/profile"
	"github.com/hrygo/tutormind/store/cache"
)

const (
	personaCacheSize = 256
	personaCacheTTL  = time.Minute
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// activePersonaCache holds active personas by id.
	activePersonaCache *cache.LRU[int32, *Persona]
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:             driver,
		profile:            profile,
		activePersonaCache: cache.NewLRU[int32, *Persona](personaCacheSize, personaCacheTTL),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.activePersonaCache.Purge()
	return s.driver.Close()
}

func (s *Store) CreateTopic(ctx context.Context, create *Topic) (*Topic, error) {
	return s.driver.CreateTopic(ctx, create)
}

// GetTopic returns nil when no topic matches.
func (s *Store) GetTopic(ctx context.Context, find *FindTopic) (*Topic, error) {
	return s.driver.GetTopic(ctx, find)
}

func (s *Store) CreatePersona(ctx context.Context, create *Persona) (*Persona, error) {
	return s.driver.CreatePersona(ctx, create)
}

func (s *Store) ListPersonas(ctx context.Context, find *FindPersona) ([]*Persona, error) {
	return s.driver.ListPersonas(ctx, find)
}

func (s *Store) CountPersonas(ctx context.Context, find *FindPersona) (int, error) {
	return s.driver.CountPersonas(ctx, find)
}

func (s *Store) UpdatePersona(ctx context.Context, update *UpdatePersona) (*Persona, error) {
	persona, err := s.driver.UpdatePersona(ctx, update)
	s.activePersonaCache.Delete(update.ID)
	return persona, err
}

// FindActivePersona returns the persona with the given id, or nil when it does not exist
// or has been deactivated.
func (s *Store) FindActivePersona(ctx context.Context, id int32) (*Persona, error) {
	if cached, ok := s.activePersonaCache.Get(id); ok {
		persona := *cached
		return &persona, nil
	}

	active := true
	list, err := s.driver.ListPersonas(ctx, &FindPersona{ID: &id, IsActive: &active})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	persona := list[0]
	cached := *persona
	s.activePersonaCache.Set(id, &cached)
	return persona, nil
}

func (s *Store) GetOrCreateConversationMemory(ctx context.Context, userID, personaID int32) (*ConversationMemory, error) {
	return s.driver.GetOrCreateConversationMemory(ctx, userID, personaID)
}

// SummaryUpdate prepares the write that extends memory's summary with addition.
// It returns nil when addition is blank, in which case nothing must be written.
func (s *Store) SummaryUpdate(memory *ConversationMemory, addition string) *UpdateConversationMemory {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return nil
	}
	update := &UpdateConversationMemory{
		ID:        memory.ID,
		Addition:  addition,
		UpdatedTs: time.Now().Unix(),
	}
	if s.profile != nil {
		update.MaxRunes = s.profile.MaxSummaryRunes
	}
	return update
}

// AppendSummary extends memory's summary with addition in its own unit of work.
func (s *Store) AppendSummary(ctx context.Context, memory *ConversationMemory, addition string) error {
	update := s.SummaryUpdate(memory, addition)
	if update == nil {
		return nil
	}
	if err := s.Commit(ctx, UpdateConversationMemoryOp(update)); err != nil {
		return err
	}
	memory.Summary = update.Summary
	memory.UpdatedTs = update.UpdatedTs
	return nil
}

// AppendConversationMessage adds a single message to the conversation log.
func (s *Store) AppendConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error) {
	if err := s.Commit(ctx, CreateConversationMessageOp(create)); err != nil {
		return nil, err
	}
	return create, nil
}

// ListRecentConversationMessages returns up to limit of the newest non-empty messages
// of a conversation, oldest first.
func (s *Store) ListRecentConversationMessages(ctx context.Context, userID, personaID int32, limit int) ([]*ConversationMessage, error) {
	if limit <= 0 {
		return []*ConversationMessage{}, nil
	}
	list, err := s.driver.ListConversationMessages(ctx, &FindConversationMessage{
		UserID:       &userID,
		PersonaID:    &personaID,
		ExcludeEmpty: true,
		NewestFirst:  true,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

func (s *Store) PageConversationMessages(ctx context.Context, find *FindConversationMessage) (*ConversationMessagePage, error) {
	return s.driver.PageConversationMessages(ctx, find)
}

func (s *Store) ListLearningAttempts(ctx context.Context, find *FindLearningAttempt) ([]*LearningAttempt, error) {
	return s.driver.ListLearningAttempts(ctx, find)
}

func (s *Store) PageLearningAttempts(ctx context.Context, find *FindLearningAttempt) (*LearningAttemptPage, error) {
	return s.driver.PageLearningAttempts(ctx, find)
}

// GetTopicStatistics returns nil when the user has not answered any question on the topic.
func (s *Store) GetTopicStatistics(ctx context.Context, find *FindTopicStatistics) (*TopicStatistics, error) {
	return s.driver.GetTopicStatistics(ctx, find)
}

// NextOffset returns the offset of the page following [offset, offset+limit), or nil
// when that page reaches the end of count rows.
func NextOffset(count, limit, offset int) *int {
	if offset+limit >= count {
		return nil
	}
	next := offset + limit
	return &next
}
