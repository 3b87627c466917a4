package v1

import (
	"github.com/samber/lo"

	"github.com/hrygo/tutormind/store"
)

type Message struct {
	UID       string `json:"uid"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	HTML      string `json:"html,omitempty"`
	CreatedTs int64  `json:"created_ts"`
}

type MessagePage struct {
	Count      int        `json:"count"`
	NextOffset *int       `json:"next_offset"`
	Messages   []*Message `json:"messages"`
}

type Persona struct {
	ID            int32             `json:"id"`
	Name          string            `json:"name"`
	Role          string            `json:"role"`
	Description   string            `json:"description"`
	Personality   map[string]string `json:"personality"`
	AvatarURL     string            `json:"avatar_url,omitempty"`
	TopicID       int32             `json:"topic_id"`
	TopicName     string            `json:"topic_name"`
	TopicCategory string            `json:"topic_category"`
}

type PersonaPage struct {
	Count      int        `json:"count"`
	NextOffset *int       `json:"next_offset"`
	Personas   []*Persona `json:"personas"`
}

type Topic struct {
	ID          int32  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type TopicStatistics struct {
	TotalScore     int32 `json:"total_score"`
	QuestionsAsked int32 `json:"questions_asked"`
}

type TopicDetails struct {
	Topic
	UserStatistics *TopicStatistics `json:"user_statistics,omitempty"`
}

type LearningAttempt struct {
	UID            string `json:"uid"`
	Question       string `json:"question"`
	Difficulty     string `json:"difficulty"`
	UserAnswer     string `json:"user_answer"`
	Feedback       string `json:"feedback"`
	ImprovedAnswer string `json:"improved_answer"`
	Score          int32  `json:"score"`
	AIModel        string `json:"ai_model,omitempty"`
	CreatedTs      int64  `json:"created_ts"`
}

type LearningAttemptPage struct {
	Count      int                `json:"count"`
	NextOffset *int               `json:"next_offset"`
	Items      []*LearningAttempt `json:"items"`
}

func convertMessage(m *store.ConversationMessage, _ int) *Message {
	return &Message{
		UID:       m.UID,
		Sender:    string(m.Sender),
		Message:   m.Message,
		CreatedTs: m.CreatedTs,
	}
}

func convertPersona(p *store.Persona, _ int) *Persona {
	return &Persona{
		ID:            p.ID,
		Name:          p.Name,
		Role:          string(p.Role),
		Description:   p.Description,
		Personality:   p.Personality,
		AvatarURL:     p.AvatarURL,
		TopicID:       p.TopicID,
		TopicName:     p.TopicName,
		TopicCategory: p.TopicCategory,
	}
}

func convertTopic(t *store.Topic) Topic {
	return Topic{ID: t.ID, Name: t.Name, Category: t.Category, Description: t.Description}
}

func convertLearningAttempt(a *store.LearningAttempt, _ int) *LearningAttempt {
	return &LearningAttempt{
		UID:            a.UID,
		Question:       a.Question,
		Difficulty:     string(a.Difficulty),
		UserAnswer:     a.UserAnswer,
		Feedback:       a.Feedback,
		ImprovedAnswer: a.ImprovedAnswer,
		Score:          a.Score,
		AIModel:        a.AIModel,
		CreatedTs:      a.CreatedTs,
	}
}

func convertMessagePage(page *store.ConversationMessagePage) *MessagePage {
	return &MessagePage{
		Count:      page.Count,
		NextOffset: page.NextOffset,
		Messages:   lo.Map(page.Messages, convertMessage),
	}
}
