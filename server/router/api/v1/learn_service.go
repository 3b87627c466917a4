package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/hrygo/tutormind/server/service/session"
)

type GradeRequest struct {
	TopicID    int32  `json:"topic_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

type GradeResponse struct {
	Feedback       string           `json:"feedback"`
	ImprovedAnswer string           `json:"improved_answer"`
	Score          int              `json:"score"`
	Difficulty     string           `json:"difficulty"`
	Extraction     string           `json:"extraction"`
	AttemptUID     string           `json:"attempt_uid,omitempty"`
	UserStatistics *TopicStatistics `json:"user_statistics,omitempty"`
}

type QuestionResponse struct {
	Question   string `json:"question"`
	Difficulty string `json:"difficulty"`
	Repeated   bool   `json:"repeated"`
	Extraction string `json:"extraction"`
}

// GradeAnswer reviews an answer. Anonymous answers are graded but not kept.
// POST /api/v1/learn/answer
func (s *APIV1Service) GradeAnswer(c echo.Context) error {
	req := &GradeRequest{}
	if err := bindJSON(c, req); err != nil {
		return err
	}
	resp, err := s.Session.GradeAnswer(c.Request().Context(), learnerFrom(c), &session.GradeRequest{
		TopicID:    req.TopicID,
		Question:   req.Question,
		Answer:     req.Answer,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		return err
	}

	out := &GradeResponse{
		Feedback:       resp.Feedback,
		ImprovedAnswer: resp.ImprovedAnswer,
		Score:          resp.Score,
		Difficulty:     string(resp.Difficulty),
		Extraction:     string(resp.Extraction),
	}
	if resp.Attempt != nil {
		out.AttemptUID = resp.Attempt.UID
	}
	if resp.Statistics != nil {
		out.UserStatistics = &TopicStatistics{TotalScore: resp.Statistics.TotalScore, QuestionsAsked: resp.Statistics.QuestionsAsked}
	}
	return respond(c, http.StatusOK, "answer graded", out)
}

// GenerateQuestion asks for a new quiz question on a topic.
// GET /api/v1/learn/topics/:id/question?difficulty
func (s *APIV1Service) GenerateQuestion(c echo.Context) error {
	topicID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	resp, err := s.Session.GenerateQuestion(c.Request().Context(), learnerFrom(c), &session.QuestionRequest{
		TopicID:    topicID,
		Difficulty: c.QueryParam("difficulty"),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "question generated", &QuestionResponse{
		Question:   resp.Question,
		Difficulty: string(resp.Difficulty),
		Repeated:   resp.Repeated,
		Extraction: string(resp.Extraction),
	})
}

// GetTopic returns a topic, with the caller's totals when authenticated.
// GET /api/v1/learn/topics/:id
func (s *APIV1Service) GetTopic(c echo.Context) error {
	topicID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	details, err := s.Session.GetTopic(c.Request().Context(), learnerFrom(c), topicID)
	if err != nil {
		return err
	}

	out := &TopicDetails{Topic: convertTopic(details.Topic)}
	if details.Statistics != nil {
		out.UserStatistics = &TopicStatistics{
			TotalScore:     details.Statistics.TotalScore,
			QuestionsAsked: details.Statistics.QuestionsAsked,
		}
	}
	return respond(c, http.StatusOK, "topic retrieved", out)
}

// ListLearningHistory returns the caller's graded attempts on a topic, newest first.
// GET /api/v1/learn/topics/:id/history?limit&offset
func (s *APIV1Service) ListLearningHistory(c echo.Context) error {
	topicID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	page, err := pageFrom(c)
	if err != nil {
		return err
	}
	result, err := s.Session.ListLearningHistory(c.Request().Context(), learnerFrom(c), topicID, page)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "history retrieved", &LearningAttemptPage{
		Count:      result.Count,
		NextOffset: result.NextOffset,
		Items:      lo.Map(result.Attempts, convertLearningAttempt),
	})
}
