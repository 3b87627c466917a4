package session

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/tutormind/plugin/ai"
	"github.com/hrygo/tutormind/plugin/ai/extract"
	"github.com/hrygo/tutormind/plugin/ai/prompt"
	apperrors "github.com/hrygo/tutormind/server/internal/errors"
	"github.com/hrygo/tutormind/server/internal/observability"
	"github.com/hrygo/tutormind/store"
)

type ChatRequest struct {
	PersonaID int32
	Message   string
}

type ChatResponse struct {
	Response string
	// UserMessageUID and AIMessageUID identify the two log entries written by the turn.
	UserMessageUID string
	AIMessageUID   string
	Extraction     extract.Status
}

// Chat runs one conversational turn with a persona. Nothing is written unless the model
// answered; when it did, both messages and the summary addition land together.
func (s *Service) Chat(ctx context.Context, learner Learner, req *ChatRequest) (resp *ChatResponse, err error) {
	rc := observability.ForFlow(ctx, FlowChat, learner.ID)
	defer func() {
		s.finish(rc, err,
			slog.Int64(observability.LogFieldPersonaID, int64(req.PersonaID)),
			slog.Int(observability.LogFieldMessageLen, len(req.Message)),
		)
	}()

	if learner.IsAnonymous() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if req.PersonaID <= 0 {
		return nil, apperrors.Validation("persona_id must be a positive integer")
	}
	message, err := requireText("message", req.Message)
	if err != nil {
		return nil, err
	}

	persona, err := s.store.FindActivePersona(ctx, req.PersonaID)
	if err != nil {
		return nil, apperrors.Persistence("failed to load persona", err)
	}
	if persona == nil {
		return nil, apperrors.NotFound("persona %d not found or inactive", req.PersonaID)
	}

	memory, recent, err := s.loadConversation(ctx, learner.ID, persona.ID)
	if err != nil {
		return nil, apperrors.Persistence("failed to load conversation", err)
	}

	messages := prompt.BuildChat(prompt.ChatInput{
		Persona: prompt.Persona{
			Name:        persona.Name,
			Role:        prompt.Role(persona.Role),
			Personality: persona.Personality,
			TopicName:   persona.TopicName,
		},
		LearnerName: learner.Name,
		Summary:     memory.Summary,
		History:     toTurns(recent),
		Message:     message,
	})
	raw, err := s.generate(ctx, rc, messages,
		ai.WithTemperature(s.profile.ChatTemperature),
		ai.WithMaxTokens(s.profile.ChatMaxTokens),
		ai.WithResponseSchema("chat_reply", extract.ChatReplySchema),
	)
	if err != nil {
		return nil, err
	}

	reply, status := extract.ExtractChatReply(raw)
	s.noteExtraction(rc, status, raw)

	userMessage := &store.ConversationMessage{
		UserID:    learner.ID,
		PersonaID: persona.ID,
		Sender:    store.SenderUser,
		Message:   message,
	}
	aiMessage := &store.ConversationMessage{
		UserID:    learner.ID,
		PersonaID: persona.ID,
		Sender:    store.SenderAI,
		Message:   reply.Response,
	}
	summary := s.store.SummaryUpdate(memory, reply.Summary)
	if err := s.store.Commit(ctx,
		store.CreateConversationMessageOp(userMessage),
		store.CreateConversationMessageOp(aiMessage),
		store.UpdateConversationMemoryOp(summary),
	); err != nil {
		return nil, apperrors.Persistence("failed to save the conversation", err)
	}

	return &ChatResponse{
		Response:       reply.Response,
		UserMessageUID: userMessage.UID,
		AIMessageUID:   aiMessage.UID,
		Extraction:     status,
	}, nil
}

// loadConversation reads the memory and the recent window concurrently.
func (s *Service) loadConversation(ctx context.Context, userID, personaID int32) (*store.ConversationMemory, []*store.ConversationMessage, error) {
	var (
		memory *store.ConversationMemory
		recent []*store.ConversationMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		memory, err = s.store.GetOrCreateConversationMemory(gctx, userID, personaID)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.store.ListRecentConversationMessages(gctx, userID, personaID, s.profile.ChatContextWindow)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return memory, recent, nil
}

func toTurns(messages []*store.ConversationMessage) []prompt.Turn {
	turns := make([]prompt.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, prompt.Turn{FromUser: m.Sender == store.SenderUser, Text: m.Message})
	}
	return turns
}
