package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/lithammer/shortuuid/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tutormind/internal/profile"
	"github.com/hrygo/tutormind/plugin/ai"
	"github.com/hrygo/tutormind/plugin/ai/extract"
	apperrors "github.com/hrygo/tutormind/server/internal/errors"
	"github.com/hrygo/tutormind/store"
	storetest "github.com/hrygo/tutormind/store/test"
)

// fakeLLM replays canned replies and records every request.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]ai.Message
}

func (f *fakeLLM) Chat(_ context.Context, messages []ai.Message, _ ...ai.ChatOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", &ai.GenerationError{Provider: "fake", Model: "fake-model", Cause: ai.ErrEmptyResponse}
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func (*fakeLLM) Provider() string { return "fake" }
func (*fakeLLM) Model() string    { return "fake-model" }

func (f *fakeLLM) lastCall() []ai.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	ctx     context.Context
	store   *store.Store
	llm     *fakeLLM
	service *Service
	topic   *store.Topic
	persona *store.Persona
	learner Learner
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t)

	topic, err := ts.CreateTopic(ctx, &store.Topic{Name: "Go-" + shortuuid.New(), Category: "Programming Languages"})
	require.NoError(t, err)
	persona, err := ts.CreatePersona(ctx, &store.Persona{
		Name:        "Ada-" + shortuuid.New(),
		Role:        store.PersonaRoleMentor,
		Personality: map[string]string{"tone": "warm"},
		IsActive:    true,
		TopicID:     topic.ID,
	})
	require.NoError(t, err)

	llm := &fakeLLM{replies: replies}
	p := &profile.Profile{
		ChatContextWindow: 4,
		ChatTemperature:   0.8,
		ChatMaxTokens:     600,
		QuizTemperature:   0.7,
		QuizMaxTokens:     300,
	}
	return &fixture{
		ctx:     ctx,
		store:   ts,
		llm:     llm,
		service: NewService(ts, llm, p, nil),
		topic:   topic,
		persona: persona,
		learner: Learner{ID: rand.Int32N(1<<30) + 1000, Name: "Sam"},
	}
}

func (f *fixture) messages(t *testing.T) *store.ConversationMessagePage {
	t.Helper()
	page, err := f.service.ListMessages(f.ctx, f.learner, f.persona.ID, Page{})
	require.NoError(t, err)
	return page
}

func TestChat(t *testing.T) {
	f := newFixture(t,
		`{"response": "Hi Sam, let's talk about channels.", "summary": "Sam is learning Go."}`,
		"```json\n{\"response\": \"Buffered channels block when full.\", \"summary\": \"\"}\n```",
	)

	resp, err := f.service.Chat(f.ctx, f.learner, &ChatRequest{PersonaID: f.persona.ID, Message: "  Hello!  "})
	require.NoError(t, err)
	assert.Equal(t, "Hi Sam, let's talk about channels.", resp.Response)
	assert.Equal(t, extract.StatusStrict, resp.Extraction)
	assert.NotEmpty(t, resp.UserMessageUID)
	assert.NotEmpty(t, resp.AIMessageUID)

	page := f.messages(t)
	require.Equal(t, 2, page.Count)
	assert.Equal(t, store.SenderUser, page.Messages[0].Sender)
	assert.Equal(t, "Hello!", page.Messages[0].Message)
	assert.Equal(t, store.SenderAI, page.Messages[1].Sender)

	memory, err := f.store.GetOrCreateConversationMemory(f.ctx, f.learner.ID, f.persona.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam is learning Go.", memory.Summary)

	// The second turn sees the summary and the first exchange.
	_, err = f.service.Chat(f.ctx, f.learner, &ChatRequest{PersonaID: f.persona.ID, Message: "What about buffers?"})
	require.NoError(t, err)
	call := f.llm.lastCall()
	require.Len(t, call, 4)
	assert.Contains(t, call[0].Content, "Sam is learning Go.")
	assert.Contains(t, call[0].Content, "tone: warm")
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "Hello!"}, call[1])
	assert.Equal(t, ai.Message{Role: ai.RoleAssistant, Content: "Hi Sam, let's talk about channels."}, call[2])
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "What about buffers?"}, call[3])

	memory, err = f.store.GetOrCreateConversationMemory(f.ctx, f.learner.ID, f.persona.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam is learning Go.", memory.Summary, "an empty summary leaves the memory untouched")
	assert.Equal(t, 4, f.messages(t).Count)
}

func TestChatRejectsBadInput(t *testing.T) {
	f := newFixture(t, `{"response": "unused", "summary": ""}`)

	inactive := false
	_, err := f.store.UpdatePersona(f.ctx, &store.UpdatePersona{ID: f.persona.ID, IsActive: &inactive})
	require.NoError(t, err)

	tests := []struct {
		name    string
		learner Learner
		req     *ChatRequest
		code    apperrors.ErrorCode
	}{
		{"anonymous", Learner{}, &ChatRequest{PersonaID: f.persona.ID, Message: "hi"}, apperrors.ErrCodeUnauthorized},
		{"missing persona id", f.learner, &ChatRequest{Message: "hi"}, apperrors.ErrCodeValidation},
		{"blank message", f.learner, &ChatRequest{PersonaID: f.persona.ID, Message: " \n\t"}, apperrors.ErrCodeValidation},
		{"message too long", f.learner, &ChatRequest{PersonaID: f.persona.ID, Message: strings.Repeat("é", MaxMessageRunes+1)}, apperrors.ErrCodeValidation},
		{"inactive persona", f.learner, &ChatRequest{PersonaID: f.persona.ID, Message: "hi"}, apperrors.ErrCodeNotFound},
		{"unknown persona", f.learner, &ChatRequest{PersonaID: f.persona.ID + 1000, Message: "hi"}, apperrors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Chat(f.ctx, tt.learner, tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tt.code), "got %v", err)
		})
	}
	assert.Zero(t, f.llm.callCount(), "invalid requests never reach the model")
}

func TestChatGenerationFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.llm.err = &ai.GenerationError{Provider: "fake", Model: "fake-model", Timeout: true, Cause: context.DeadlineExceeded}

	_, err := f.service.Chat(f.ctx, f.learner, &ChatRequest{PersonaID: f.persona.ID, Message: "Hello?"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeGeneration))

	genErr, ok := ai.AsGenerationError(err)
	require.True(t, ok)
	assert.True(t, genErr.Timeout)

	assert.Zero(t, f.messages(t).Count)
}

func TestChatDegradedReply(t *testing.T) {
	f := newFixture(t, "Sure! Goroutines are cheap threads managed by the runtime.")

	resp, err := f.service.Chat(f.ctx, f.learner, &ChatRequest{PersonaID: f.persona.ID, Message: "What is a goroutine?"})
	require.NoError(t, err)
	assert.Equal(t, extract.StatusDegraded, resp.Extraction)
	assert.Equal(t, "Sure! Goroutines are cheap threads managed by the runtime.", resp.Response)

	page := f.messages(t)
	require.Equal(t, 2, page.Count)
	assert.Equal(t, resp.Response, page.Messages[1].Message)

	memory, err := f.store.GetOrCreateConversationMemory(f.ctx, f.learner.ID, f.persona.ID)
	require.NoError(t, err)
	assert.Empty(t, memory.Summary)
}

// barrierLLM holds every call until all expected calls have arrived, then answers each
// with a summary naming the learner's message.
type barrierLLM struct {
	arrived sync.WaitGroup
}

func (b *barrierLLM) Chat(_ context.Context, messages []ai.Message, _ ...ai.ChatOption) (string, error) {
	b.arrived.Done()
	b.arrived.Wait()
	message := messages[len(messages)-1].Content
	return fmt.Sprintf(`{"response": "Noted.", "summary": "fact %s"}`, message), nil
}

func (*barrierLLM) Provider() string { return "fake" }
func (*barrierLLM) Model() string    { return "fake-model" }

func TestChatConcurrentTurnsKeepEverySummary(t *testing.T) {
	f := newFixture(t)
	llm := &barrierLLM{}
	service := NewService(f.store, llm, &profile.Profile{ChatContextWindow: 4, MaxSummaryRunes: 4000}, nil)

	messages := []string{"A", "B", "C"}
	llm.arrived.Add(len(messages))
	var wg sync.WaitGroup
	errs := make([]error, len(messages))
	for i, message := range messages {
		wg.Add(1)
		go func(i int, message string) {
			defer wg.Done()
			_, errs[i] = service.Chat(f.ctx, f.learner, &ChatRequest{PersonaID: f.persona.ID, Message: message})
		}(i, message)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	memory, err := f.store.GetOrCreateConversationMemory(f.ctx, f.learner.ID, f.persona.ID)
	require.NoError(t, err)
	for _, message := range messages {
		assert.Contains(t, memory.Summary, "fact "+message)
	}
	assert.Equal(t, 2*len(messages), f.messages(t).Count)
}

func TestGradeAnswer(t *testing.T) {
	f := newFixture(t,
		`{"feedback": "Close!", "improved_answer": "A goroutine is a lightweight thread.", "score": 6}`,
		`{"feedback": "Great", "improved_answer": "Same.", "score": "8"}`,
	)

	req := &GradeRequest{TopicID: f.topic.ID, Question: "What is a goroutine?", Answer: "A thread", Difficulty: "MEDIUM"}
	first, err := f.service.GradeAnswer(f.ctx, f.learner, req)
	require.NoError(t, err)
	assert.Equal(t, 6, first.Score)
	assert.Equal(t, store.DifficultyMedium, first.Difficulty)
	require.NotNil(t, first.Attempt)
	assert.Equal(t, "fake/fake-model", first.Attempt.AIModel)

	second, err := f.service.GradeAnswer(f.ctx, f.learner, req)
	require.NoError(t, err)
	require.NotNil(t, second.Statistics)
	assert.Equal(t, int32(14), second.Statistics.TotalScore)
	assert.Equal(t, int32(2), second.Statistics.QuestionsAsked)

	details, err := f.service.GetTopic(f.ctx, f.learner, f.topic.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(14), details.Statistics.TotalScore)

	history, err := f.service.ListLearningHistory(f.ctx, f.learner, f.topic.ID, Page{})
	require.NoError(t, err)
	require.Equal(t, 2, history.Count)
	assert.Equal(t, second.Attempt.UID, history.Attempts[0].UID, "history is newest first")
}

func TestGradeAnswerAnonymous(t *testing.T) {
	f := newFixture(t, `{"feedback": "Fine", "improved_answer": "", "score": 42}`)

	resp, err := f.service.GradeAnswer(f.ctx, Learner{}, &GradeRequest{
		TopicID:    f.topic.ID,
		Question:   "What is a slice?",
		Answer:     "A view over an array",
		Difficulty: "impossible",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.Score, "scores are clamped")
	assert.Equal(t, store.DifficultyEasy, resp.Difficulty)
	assert.Nil(t, resp.Attempt)
	assert.Nil(t, resp.Statistics)

	attempts, err := f.store.ListLearningAttempts(f.ctx, &store.FindLearningAttempt{TopicID: &f.topic.ID})
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestGradeAnswerWithoutScore(t *testing.T) {
	f := newFixture(t,
		"Great answer, you nailed it! Ten out of ten.",
		`{"feedback": "Good.", "improved_answer": "Same."}`,
	)
	req := &GradeRequest{TopicID: f.topic.ID, Question: "What is a map?", Answer: "A hash table"}

	for i := 0; i < 2; i++ {
		resp, err := f.service.GradeAnswer(f.ctx, f.learner, req)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Feedback)
		assert.Zero(t, resp.Score)
		assert.Nil(t, resp.Attempt)
		assert.Nil(t, resp.Statistics)
	}
	assert.Equal(t, 2, f.llm.callCount())

	attempts, err := f.store.ListLearningAttempts(f.ctx, &store.FindLearningAttempt{UserID: &f.learner.ID})
	require.NoError(t, err)
	assert.Empty(t, attempts)

	details, err := f.service.GetTopic(f.ctx, f.learner, f.topic.ID)
	require.NoError(t, err)
	assert.Zero(t, details.Statistics.QuestionsAsked)
}

func TestGradeAnswerUnknownTopic(t *testing.T) {
	f := newFixture(t, `{"feedback": "unused", "improved_answer": "", "score": 1}`)

	_, err := f.service.GradeAnswer(f.ctx, f.learner, &GradeRequest{TopicID: f.topic.ID + 1000, Question: "q", Answer: "a"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, err = f.service.GradeAnswer(f.ctx, f.learner, &GradeRequest{TopicID: f.topic.ID, Question: "q", Answer: " "})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	assert.Zero(t, f.llm.callCount())
}

func TestGenerateQuestion(t *testing.T) {
	f := newFixture(t,
		`{"feedback": "ok", "improved_answer": "", "score": 5}`,
		`{"question": "what is a goroutine"}`,
	)

	_, err := f.service.GradeAnswer(f.ctx, f.learner, &GradeRequest{TopicID: f.topic.ID, Question: "What is a goroutine?", Answer: "A thread"})
	require.NoError(t, err)

	resp, err := f.service.GenerateQuestion(f.ctx, f.learner, &QuestionRequest{TopicID: f.topic.ID})
	require.NoError(t, err)
	assert.Equal(t, "what is a goroutine", resp.Question)
	assert.Equal(t, store.DifficultyEasy, resp.Difficulty)
	assert.True(t, resp.Repeated)

	call := f.llm.lastCall()
	require.Len(t, call, 2)
	assert.Contains(t, call[1].Content, "- What is a goroutine?")
}

func TestGenerateQuestionAnonymous(t *testing.T) {
	f := newFixture(t, `{"question": "Explain interfaces."}`)

	resp, err := f.service.GenerateQuestion(f.ctx, Learner{}, &QuestionRequest{TopicID: f.topic.ID, Difficulty: "hard"})
	require.NoError(t, err)
	assert.Equal(t, "Explain interfaces.", resp.Question)
	assert.False(t, resp.Repeated)
	assert.Contains(t, f.llm.lastCall()[1].Content, "[none]")
}

func TestGenerationUnavailable(t *testing.T) {
	f := newFixture(t)
	f.service.llm = nil

	_, err := f.service.GenerateQuestion(f.ctx, Learner{}, &QuestionRequest{TopicID: f.topic.ID})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
}

func TestListMessagesPaging(t *testing.T) {
	f := newFixture(t, `{"response": "ok", "summary": ""}`)
	for range 3 {
		_, err := f.service.Chat(f.ctx, f.learner, &ChatRequest{PersonaID: f.persona.ID, Message: "ping"})
		require.NoError(t, err)
	}

	limit, offset := 4, 0
	page, err := f.service.ListMessages(f.ctx, f.learner, f.persona.ID, Page{Limit: &limit, Offset: &offset})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Count)
	assert.Len(t, page.Messages, 4)
	require.NotNil(t, page.NextOffset)
	assert.Equal(t, 4, *page.NextOffset)

	huge := 1000
	page, err = f.service.ListMessages(f.ctx, f.learner, f.persona.ID, Page{Limit: &huge})
	require.NoError(t, err)
	assert.Len(t, page.Messages, 6)
	assert.Nil(t, page.NextOffset)

	negative := -1
	_, err = f.service.ListMessages(f.ctx, f.learner, f.persona.ID, Page{Offset: &negative})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	_, err = f.service.ListMessages(f.ctx, f.learner, f.persona.ID, Page{Limit: &negative})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestPageResolve(t *testing.T) {
	ptr := func(v int) *int { return &v }
	tests := []struct {
		name         string
		page         Page
		limit, offst int
		wantErr      bool
	}{
		{"defaults", Page{}, 20, 0, false},
		{"zero limit uses default", Page{Limit: ptr(0)}, 20, 0, false},
		{"capped", Page{Limit: ptr(500), Offset: ptr(40)}, MaxPageLimit, 40, false},
		{"negative limit", Page{Limit: ptr(-5)}, 0, 0, true},
		{"negative offset", Page{Offset: ptr(-1)}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset, err := tt.page.resolve(DefaultMessageLimit)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offst, offset)
		})
	}
}

func TestListPersonas(t *testing.T) {
	f := newFixture(t)

	list, err := f.service.ListPersonas(f.ctx, PersonaFilter{TopicID: &f.topic.ID})
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, f.persona.ID, list.Personas[0].ID)
	assert.Equal(t, f.topic.Name, list.Personas[0].TopicName)

	list, err = f.service.ListPersonas(f.ctx, PersonaFilter{TopicID: &f.topic.ID, Role: "Friend"})
	require.NoError(t, err)
	assert.Zero(t, list.Count)

	_, err = f.service.ListPersonas(f.ctx, PersonaFilter{Role: "villain"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	persona, err := f.service.GetPersona(f.ctx, f.persona.ID)
	require.NoError(t, err)
	assert.Equal(t, f.persona.Name, persona.Name)
}

func TestGetTopicWithoutAttempts(t *testing.T) {
	f := newFixture(t)

	details, err := f.service.GetTopic(f.ctx, f.learner, f.topic.ID)
	require.NoError(t, err)
	require.NotNil(t, details.Statistics)
	assert.Zero(t, details.Statistics.TotalScore)
	assert.Zero(t, details.Statistics.QuestionsAsked)

	details, err = f.service.GetTopic(f.ctx, Learner{}, f.topic.ID)
	require.NoError(t, err)
	assert.Nil(t, details.Statistics)
}

func TestIsRepeat(t *testing.T) {
	asked := []string{"What is a goroutine?", "Explain the difference between a slice and an array."}
	tests := []struct {
		question string
		want     bool
	}{
		{"What is a goroutine?", true},
		{"what is a goroutine", true},
		{"Explain the difference between a slice and an array", true},
		{"What is a channel?", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, isRepeat(tt.question, asked))
		})
	}
	assert.False(t, isRepeat("What is a goroutine?", nil))
}
