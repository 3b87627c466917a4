package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// ErrConstraint is wrapped by driver errors caused by a violated unique or check constraint.
var ErrConstraint = errors.New("constraint violation")

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// WithTx runs fn inside a single transaction. The transaction commits only when fn
	// returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Topic model related methods.
	CreateTopic(ctx context.Context, create *Topic) (*Topic, error)
	GetTopic(ctx context.Context, find *FindTopic) (*Topic, error)

	// Persona model related methods.
	CreatePersona(ctx context.Context, create *Persona) (*Persona, error)
	ListPersonas(ctx context.Context, find *FindPersona) ([]*Persona, error)
	CountPersonas(ctx context.Context, find *FindPersona) (int, error)
	UpdatePersona(ctx context.Context, update *UpdatePersona) (*Persona, error)

	// ConversationMemory model related methods.
	GetOrCreateConversationMemory(ctx context.Context, userID, personaID int32) (*ConversationMemory, error)

	// ConversationMessage model related methods.
	ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error)
	// PageConversationMessages counts and slices inside one read transaction.
	PageConversationMessages(ctx context.Context, find *FindConversationMessage) (*ConversationMessagePage, error)

	// LearningAttempt model related methods.
	ListLearningAttempts(ctx context.Context, find *FindLearningAttempt) ([]*LearningAttempt, error)
	PageLearningAttempts(ctx context.Context, find *FindLearningAttempt) (*LearningAttemptPage, error)

	// TopicStatistics model related methods.
	GetTopicStatistics(ctx context.Context, find *FindTopicStatistics) (*TopicStatistics, error)
}

// Tx holds the writes that are only allowed inside a unit of work.
type Tx interface {
	CreateConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error)
	// UpdateConversationMemory locks the memory row, merges the addition onto the
	// stored summary and returns the result.
	UpdateConversationMemory(ctx context.Context, update *UpdateConversationMemory) (string, error)
	CreateLearningAttempt(ctx context.Context, create *LearningAttempt) (*LearningAttempt, error)
	UpsertTopicStatistics(ctx context.Context, upsert *UpsertTopicStatistics) (*TopicStatistics, error)
}
