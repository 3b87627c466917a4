package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"

	"github.com/hrygo/tutormind/plugin/ai"
	"github.com/hrygo/tutormind/plugin/ai/extract"
	"github.com/hrygo/tutormind/plugin/ai/prompt"
	apperrors "github.com/hrygo/tutormind/server/internal/errors"
	"github.com/hrygo/tutormind/server/internal/observability"
	"github.com/hrygo/tutormind/store"
)

const (
	// recentQuestions is how many earlier questions the question prompt asks to avoid.
	recentQuestions   = 5
	questionMaxTokens = 150
)

type GradeRequest struct {
	TopicID    int32
	Question   string
	Answer     string
	Difficulty string
}

type GradeResponse struct {
	Feedback       string
	ImprovedAnswer string
	Score          int
	Difficulty     store.Difficulty
	Extraction     extract.Status
	// Attempt and Statistics are nil for anonymous callers, whose answers are not kept,
	// and when the reply carried no readable score.
	Attempt    *store.LearningAttempt
	Statistics *store.TopicStatistics
}

// GradeAnswer reviews an answer to a quiz question. For a known learner the attempt and
// the topic totals are written in one unit of work, but only once a score was read.
func (s *Service) GradeAnswer(ctx context.Context, learner Learner, req *GradeRequest) (resp *GradeResponse, err error) {
	rc := observability.ForFlow(ctx, FlowGrade, learner.ID)
	defer func() {
		s.finish(rc, err, slog.Int64(observability.LogFieldTopicID, int64(req.TopicID)))
	}()

	if req.TopicID <= 0 {
		return nil, apperrors.Validation("topic_id must be a positive integer")
	}
	question, err := requireText("question", req.Question)
	if err != nil {
		return nil, err
	}
	answer, err := requireText("answer", req.Answer)
	if err != nil {
		return nil, err
	}
	difficulty := store.ParseDifficulty(req.Difficulty)

	topic, err := s.findTopic(ctx, req.TopicID)
	if err != nil {
		return nil, err
	}

	raw, err := s.generate(ctx, rc, prompt.BuildGrade(prompt.GradeInput{
		TopicName:     topic.Name,
		TopicCategory: topic.Category,
		Difficulty:    string(difficulty),
		Question:      question,
		Answer:        answer,
	}),
		ai.WithTemperature(s.profile.QuizTemperature),
		ai.WithMaxTokens(s.profile.QuizMaxTokens),
		ai.WithResponseSchema("grade", extract.GradeSchema),
	)
	if err != nil {
		return nil, err
	}

	grade, status := extract.ExtractGrade(raw)
	s.noteExtraction(rc, status, raw)

	resp = &GradeResponse{
		Feedback:       grade.Feedback,
		ImprovedAnswer: grade.ImprovedAnswer,
		Score:          grade.Score,
		Difficulty:     difficulty,
		Extraction:     status,
	}
	if learner.IsAnonymous() {
		return resp, nil
	}
	if !grade.Scored {
		rc.Warn("grading reply carried no score, attempt not recorded", slog.Int64(observability.LogFieldTopicID, int64(topic.ID)))
		return resp, nil
	}

	attempt := &store.LearningAttempt{
		UserID:         learner.ID,
		TopicID:        topic.ID,
		AIModel:        s.modelTag(),
		Question:       question,
		Difficulty:     difficulty,
		UserAnswer:     answer,
		Feedback:       grade.Feedback,
		ImprovedAnswer: grade.ImprovedAnswer,
		Score:          int32(grade.Score),
	}
	var stats *store.TopicStatistics
	if err := s.store.Commit(ctx,
		store.CreateLearningAttemptOp(attempt),
		store.UpsertTopicStatisticsOp(&store.UpsertTopicStatistics{
			UserID:  learner.ID,
			TopicID: topic.ID,
			Score:   attempt.Score,
		}, &stats),
	); err != nil {
		return nil, apperrors.Persistence("failed to save the learning attempt", err)
	}
	resp.Attempt = attempt
	resp.Statistics = stats
	return resp, nil
}

type QuestionRequest struct {
	TopicID    int32
	Difficulty string
}

type QuestionResponse struct {
	Question   string
	Difficulty store.Difficulty
	// Repeated is set when the question closely matches one the learner was recently asked.
	Repeated   bool
	Extraction extract.Status
}

// GenerateQuestion asks the model for a new quiz question, steering it away from the
// learner's latest questions on the same topic and difficulty.
func (s *Service) GenerateQuestion(ctx context.Context, learner Learner, req *QuestionRequest) (resp *QuestionResponse, err error) {
	rc := observability.ForFlow(ctx, FlowQuestion, learner.ID)
	defer func() {
		s.finish(rc, err, slog.Int64(observability.LogFieldTopicID, int64(req.TopicID)))
	}()

	if req.TopicID <= 0 {
		return nil, apperrors.Validation("topic_id must be a positive integer")
	}
	difficulty := store.ParseDifficulty(req.Difficulty)
	topic, err := s.findTopic(ctx, req.TopicID)
	if err != nil {
		return nil, err
	}

	var asked []string
	if !learner.IsAnonymous() {
		attempts, err := s.store.ListLearningAttempts(ctx, &store.FindLearningAttempt{
			UserID:     &learner.ID,
			TopicID:    &topic.ID,
			Difficulty: &difficulty,
			Limit:      recentQuestions,
		})
		if err != nil {
			return nil, apperrors.Persistence("failed to load recent questions", err)
		}
		asked = lo.Map(attempts, func(a *store.LearningAttempt, _ int) string { return a.Question })
	}

	raw, err := s.generate(ctx, rc, prompt.BuildQuestion(prompt.QuestionInput{
		TopicName:     topic.Name,
		TopicCategory: topic.Category,
		Difficulty:    string(difficulty),
		Asked:         asked,
	}),
		ai.WithTemperature(s.profile.QuizTemperature),
		ai.WithMaxTokens(questionMaxTokens),
		ai.WithResponseSchema("question", extract.QuestionSchema),
	)
	if err != nil {
		return nil, err
	}

	question, status := extract.ExtractQuestion(raw)
	s.noteExtraction(rc, status, raw)

	repeated := isRepeat(question.Question, asked)
	if repeated {
		s.metrics.RepeatedQuestions.Inc()
		rc.Warn("generated question repeats a recent one", slog.Int64(observability.LogFieldTopicID, int64(topic.ID)))
	}
	return &QuestionResponse{
		Question:   question.Question,
		Difficulty: difficulty,
		Repeated:   repeated,
		Extraction: status,
	}, nil
}

func (s *Service) findTopic(ctx context.Context, id int32) (*store.Topic, error) {
	topic, err := s.store.GetTopic(ctx, &store.FindTopic{ID: &id})
	if err != nil {
		return nil, apperrors.Persistence("failed to load topic", err)
	}
	if topic == nil {
		return nil, apperrors.NotFound("topic %d not found", id)
	}
	return topic, nil
}

func normalizeQuestion(q string) string {
	return strings.TrimRight(strings.TrimSpace(q), "?.! ")
}

// isRepeat reports whether question is the same as, or within a few characters of, one
// of the asked questions.
func isRepeat(question string, asked []string) bool {
	q := normalizeQuestion(question)
	if q == "" {
		return false
	}
	return lo.SomeBy(asked, func(a string) bool {
		a = normalizeQuestion(a)
		if a == "" {
			return false
		}
		if strings.EqualFold(a, q) {
			return true
		}
		short, long := q, a
		if len(short) > len(long) {
			short, long = long, short
		}
		distance := fuzzy.RankMatchNormalizedFold(short, long)
		return distance >= 0 && distance <= len(long)/10
	})
}
