package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tutormind/plugin/ai"
)

func TestChatSystemPrompt(t *testing.T) {
	in := ChatInput{
		Persona: Persona{
			Name:        "Lex",
			Role:        RoleFriend,
			Personality: map[string]string{"tone": "friendly", "humor": "light"},
			TopicName:   "Python",
		},
		LearnerName: "Sam",
		Summary:     "Likes decorators.",
	}

	system := ChatSystemPrompt(in)
	assert.Contains(t, system, "You are Lex, a friendly AI companion chatting with Sam.")
	assert.Contains(t, system, `Previous summary: "Likes decorators."`)
	assert.Contains(t, system, "Your personality: humor: light, tone: friendly")
	assert.Contains(t, system, `{"response":`)
	assert.Contains(t, system, `"summary":`)
	assert.Contains(t, system, "Do not wrap the JSON in markdown code fences.")
}

func TestChatSystemPromptDefaults(t *testing.T) {
	system := ChatSystemPrompt(ChatInput{Persona: Persona{Name: "Ada", Role: RoleMentor, TopicName: "Go"}})
	assert.Contains(t, system, "mentor guiding the learner in Go")
	assert.Contains(t, system, `Previous summary: "None"`)
	assert.Contains(t, system, "Your personality: N/A")
}

func TestUnknownRoleUsesMentorTemplate(t *testing.T) {
	persona := Persona{Name: "Ada", TopicName: "Go"}
	persona.Role = Role("wizard")
	mentor := persona
	mentor.Role = RoleMentor
	assert.Equal(t, ChatSystemPrompt(ChatInput{Persona: mentor}), ChatSystemPrompt(ChatInput{Persona: persona}))
}

func TestBuildChat(t *testing.T) {
	messages := BuildChat(ChatInput{
		Persona: Persona{Name: "Lex", Role: RoleFriend, TopicName: "Python"},
		History: []Turn{
			{FromUser: true, Text: "hi"},
			{FromUser: false, Text: "hello!"},
			{FromUser: true, Text: "   "},
			{FromUser: false, Text: "how can I help?"},
		},
		Message: "what is a list?",
	})

	require.Len(t, messages, 5)
	assert.Equal(t, ai.RoleSystem, messages[0].Role)
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "hi"}, messages[1])
	assert.Equal(t, ai.Message{Role: ai.RoleAssistant, Content: "hello!"}, messages[2])
	assert.Equal(t, ai.Message{Role: ai.RoleAssistant, Content: "how can I help?"}, messages[3])
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "what is a list?"}, messages[4])
}

func TestFormatPersonality(t *testing.T) {
	assert.Equal(t, "N/A", FormatPersonality(nil))
	assert.Equal(t, "a: 1, b: 2, c: 3", FormatPersonality(map[string]string{"c": "3", "a": "1", "b": "2"}))
}

func TestBuildGrade(t *testing.T) {
	messages := BuildGrade(GradeInput{
		TopicName:     "Go",
		TopicCategory: "Programming Languages",
		Difficulty:    "hard",
		Question:      "What is a channel?",
		Answer:        "A pipe between goroutines.",
	})
	require.Len(t, messages, 2)
	assert.Equal(t, quizSystem, messages[0].Content)
	assert.Contains(t, messages[1].Content, `Review this answer "A pipe between goroutines." for the question "What is a channel?"`)
	assert.Contains(t, messages[1].Content, `"improved_answer"`)
	assert.Contains(t, messages[1].Content, "Difficulty: hard")
}

func TestBuildQuestion(t *testing.T) {
	messages := BuildQuestion(QuestionInput{TopicName: "Go", TopicCategory: "Programming Languages", Difficulty: "easy"})
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1].Content, "[none]")

	messages = BuildQuestion(QuestionInput{TopicName: "Go", Difficulty: "easy", Asked: []string{"What is a slice?", "", "What is a map?"}})
	assert.Contains(t, messages[1].Content, "[- What is a slice?\n- What is a map?]")
}
