package store

import "strings"

// Difficulty of a quiz question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty normalizes s and falls back to easy for unknown values.
func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	}
	return DifficultyEasy
}

const (
	MinScore = 0
	MaxScore = 10
)

// LearningAttempt is one graded answer to a quiz question.
type LearningAttempt struct {
	ID             int32
	UID            string
	UserID         int32
	TopicID        int32
	AIModel        string
	Question       string
	Difficulty     Difficulty
	UserAnswer     string
	Feedback       string
	ImprovedAnswer string
	Score          int32
	CreatedTs      int64
}

type FindLearningAttempt struct {
	UserID     *int32
	TopicID    *int32
	Difficulty *Difficulty
	Limit      int
	Offset     int
}

// LearningAttemptPage is one page of learning history, newest attempt first.
type LearningAttemptPage struct {
	Count      int
	NextOffset *int
	Attempts   []*LearningAttempt
}

// TopicStatistics aggregates a user's scores on one topic.
type TopicStatistics struct {
	ID             int32
	UserID         int32
	TopicID        int32
	TotalScore     int32
	QuestionsAsked int32
	UpdatedTs      int64
}

type FindTopicStatistics struct {
	UserID  int32
	TopicID int32
}

// UpsertTopicStatistics adds Score to the running total and counts one more question.
type UpsertTopicStatistics struct {
	UserID    int32
	TopicID   int32
	Score     int32
	UpdatedTs int64
}
