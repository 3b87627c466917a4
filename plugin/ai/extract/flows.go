package extract

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ChatReply is the reply of a chat turn.
type ChatReply struct {
	Response string `json:"response" jsonschema:"required,description=The message shown to the learner"`
	Summary  string `json:"summary" jsonschema:"required,description=New facts about the learner worth remembering; empty when there are none"`
}

// Grade is the review of a quiz answer.
type Grade struct {
	Feedback       string `json:"feedback" jsonschema:"required,description=Short friendly feedback on the answer"`
	ImprovedAnswer string `json:"improved_answer" jsonschema:"required,description=A better version of the answer"`
	Score          int    `json:"score" jsonschema:"required,description=Score from 0 to 10"`
	// Scored is false when no score could be read from the reply; Score is then zero
	// and must not be recorded.
	Scored bool `json:"-"`
}

// Question is a generated quiz question.
type Question struct {
	Question string `json:"question" jsonschema:"required,description=The question without its answer"`
}

var (
	chatShape = Shape{
		Fields:  []Field{{Name: "response"}, {Name: "summary"}},
		Primary: "response",
	}
	gradeShape = Shape{
		Fields:  []Field{{Name: "feedback"}, {Name: "improved_answer"}, {Name: "score", Kind: KindInt}},
		Primary: "feedback",
	}
	questionShape = Shape{
		Fields:  []Field{{Name: "question"}},
		Primary: "question",
	}
)

// ExtractChatReply reads a chat reply.
func ExtractChatReply(raw string) (ChatReply, Status) {
	r := Extract(raw, chatShape)
	return ChatReply{
		Response: r.Strings["response"],
		Summary:  r.Strings["summary"],
	}, r.Status
}

// ExtractGrade reads a quiz review. The score is clamped to [0, 10].
func ExtractGrade(raw string) (Grade, Status) {
	r := Extract(raw, gradeShape)
	return Grade{
		Feedback:       r.Strings["feedback"],
		ImprovedAnswer: r.Strings["improved_answer"],
		Score:          ClampScore(r.Ints["score"]),
		Scored:         r.Found["score"],
	}, r.Status
}

// ExtractQuestion reads a generated question.
func ExtractQuestion(raw string) (Question, Status) {
	r := Extract(raw, questionShape)
	return Question{Question: r.Strings["question"]}, r.Status
}

// ClampScore limits score to the 0 to 10 grading scale.
func ClampScore(score int) int {
	return min(max(score, 0), 10)
}

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

func schemaOf(v any) json.Marshaler {
	schema := reflector.Reflect(v)
	// The response_format endpoint rejects the meta-schema keys.
	schema.Version = ""
	schema.ID = ""
	return schema
}

// Schemas for structured output requests.
var (
	ChatReplySchema = schemaOf(&ChatReply{})
	GradeSchema     = schemaOf(&Grade{})
	QuestionSchema  = schemaOf(&Question{})
)
