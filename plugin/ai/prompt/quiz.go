package prompt

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/hrygo/tutormind/plugin/ai"
)

const (
	quizSystem     = "You are a helpful, friendly mentor and reviewer."
	questionSystem = "You are a helpful, friendly mentor."
)

// GradeInput describes an answer to grade.
type GradeInput struct {
	TopicName     string
	TopicCategory string
	Difficulty    string
	Question      string
	Answer        string
}

// BuildGrade returns the turn list asking the model to grade an answer.
func BuildGrade(in GradeInput) []ai.Message {
	instruction := fmt.Sprintf(`Review this answer "%s" for the question "%s" (Topic: %s, Category: %s, Difficulty: %s).
Instructions:
- Reply with a single JSON object and nothing else: {"feedback": "...", "improved_answer": "...", "score": <integer 0-10>}.
- Score 8-10: mostly correct with minor gaps. 5-7: partially correct. 1-4: incorrect. 0: irrelevant or no attempt.
- Feedback should be short, friendly and slightly funny.
- Do not wrap the JSON in markdown code fences.`,
		in.Answer, in.Question, in.TopicName, in.TopicCategory, in.Difficulty)
	return ai.FormatMessages(quizSystem, instruction, nil)
}

// QuestionInput describes the question to generate.
type QuestionInput struct {
	TopicName     string
	TopicCategory string
	Difficulty    string
	// Asked holds the latest questions already put to the learner.
	Asked []string
}

// BuildQuestion returns the turn list asking the model for one new quiz question.
func BuildQuestion(in QuestionInput) []ai.Message {
	asked := lo.Filter(in.Asked, func(q string, _ int) bool { return strings.TrimSpace(q) != "" })
	avoid := noQuestions
	if len(asked) > 0 {
		avoid = strings.Join(lo.Map(asked, func(q string, _ int) string { return "- " + q }), "\n")
	}

	instruction := fmt.Sprintf(`Ask one theoretical question on the topic "%s" in the category "%s" with "%s" difficulty.
Avoid these previously asked questions:
[%s]
Instructions:
1. Reply with a single JSON object and nothing else: {"question": "<the question, without its answer>"}
2. Do not wrap the JSON in markdown code fences.
3. Make the question clear, concise and suitable for an interview or learning assessment.`,
		in.TopicName, in.TopicCategory, in.Difficulty, avoid)
	return ai.FormatMessages(questionSystem, instruction, nil)
}
