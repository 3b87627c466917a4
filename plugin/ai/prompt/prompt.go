// Package prompt renders the instructions sent to the generation service. Every builder
// is pure: it formats what it is given and never validates content.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/hrygo/tutormind/plugin/ai"
)

// Role selects the tone template of a persona.
type Role string

const (
	RoleFriend Role = "friend"
	RoleMentor Role = "mentor"
)

const (
	noSummary     = "None"
	noPersonality = "N/A"
	noQuestions   = "none"
	defaultName   = "the learner"
)

// Persona is what the prompt needs to know about the character speaking.
type Persona struct {
	Name        string
	Role        Role
	Personality map[string]string
	TopicName   string
}

// Turn is one message of the recent conversation window.
type Turn struct {
	FromUser bool
	Text     string
}

// ChatInput is everything a chat turn prompt is built from.
type ChatInput struct {
	Persona     Persona
	LearnerName string
	// Summary is the long-term memory of the conversation, possibly empty.
	Summary string
	// History is the recent window, oldest first.
	History []Turn
	Message string
}

type chatData struct {
	persona     string
	learner     string
	topic       string
	summary     string
	personality string
}

// roleTemplate renders the role-specific part of the system prompt.
type roleTemplate func(d chatData) string

func templateFor(role Role) roleTemplate {
	switch role {
	case RoleFriend:
		return friendTemplate
	default:
		return mentorTemplate
	}
}

func friendTemplate(d chatData) string {
	return fmt.Sprintf(`You are %s, a friendly AI companion chatting with %s.
Your topic of focus is %s.
Previous summary: "%s"
Your personality: %s

Guidelines:
- Act natural and empathetic.
- Keep it short and friendly.
- Remember past chats naturally.`, d.persona, d.learner, d.topic, d.summary, d.personality)
}

func mentorTemplate(d chatData) string {
	return fmt.Sprintf(`You are %s, a kind and encouraging mentor guiding %s in %s.
Previous summary: "%s"
Your personality: %s

Guidelines:
- Teach gently and motivate.
- Use practical examples.
- Keep responses short and professional.`, d.persona, d.learner, d.topic, d.summary, d.personality)
}

const chatOutputContract = `

Reply with a single JSON object and nothing else:
{"response": "<your message to the learner>", "summary": "<new facts about the learner from this exchange worth remembering, or an empty string>"}
Do not wrap the JSON in markdown code fences.`

// ChatSystemPrompt renders the system instruction of a chat turn.
func ChatSystemPrompt(in ChatInput) string {
	data := chatData{
		persona:     in.Persona.Name,
		learner:     lo.Ternary(strings.TrimSpace(in.LearnerName) == "", defaultName, in.LearnerName),
		topic:       in.Persona.TopicName,
		summary:     lo.Ternary(strings.TrimSpace(in.Summary) == "", noSummary, in.Summary),
		personality: FormatPersonality(in.Persona.Personality),
	}
	return templateFor(in.Persona.Role)(data) + chatOutputContract
}

// BuildChat returns the full turn list of a chat request: the system prompt, the recent
// window and the current user message.
func BuildChat(in ChatInput) []ai.Message {
	history := lo.FilterMap(in.History, func(turn Turn, _ int) (ai.Message, bool) {
		if strings.TrimSpace(turn.Text) == "" {
			return ai.Message{}, false
		}
		if turn.FromUser {
			return ai.UserMessage(turn.Text), true
		}
		return ai.AssistantMessage(turn.Text), true
	})
	return ai.FormatMessages(ChatSystemPrompt(in), in.Message, history)
}

// FormatPersonality renders traits as "key: value" pairs in key order.
func FormatPersonality(personality map[string]string) string {
	if len(personality) == 0 {
		return noPersonality
	}
	keys := lo.Keys(personality)
	sort.Strings(keys)
	return strings.Join(lo.Map(keys, func(k string, _ int) string {
		return k + ": " + personality[k]
	}), ", ")
}
