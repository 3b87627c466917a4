// Package session runs the learner-facing flows: chat turns with a persona, quiz
// question generation and grading, and the read-only history and catalog views.
//
// Every generating flow follows the same sequence. Input is validated and the context it
// needs is read before the model is called; the model call holds no lock or transaction;
// the reply is extracted (never failing, possibly degraded) and then everything the turn
// produced is written in a single unit of work.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hrygo/tutormind/internal/profile"
	"github.com/hrygo/tutormind/plugin/ai"
	"github.com/hrygo/tutormind/plugin/ai/extract"
	"github.com/hrygo/tutormind/plugin/ai/timeout"
	apperrors "github.com/hrygo/tutormind/server/internal/errors"
	"github.com/hrygo/tutormind/server/internal/observability"
	"github.com/hrygo/tutormind/store"
)

// Flow names used in logs and metrics.
const (
	FlowChat     = "chat"
	FlowGrade    = "quiz_grade"
	FlowQuestion = "quiz_question"
)

// MaxMessageRunes bounds user-supplied text: chat messages, quiz questions and answers.
const MaxMessageRunes = 4000

const codeOK = "OK"

// Learner is the caller of a flow. A zero ID is an anonymous caller.
type Learner struct {
	ID   int32
	Name string
}

func (l Learner) IsAnonymous() bool {
	return l.ID <= 0
}

type Service struct {
	store   *store.Store
	llm     ai.LLMService
	profile *profile.Profile
	metrics *observability.Metrics
}

// NewService wires the flows. llm may be nil when no provider is configured, in which case
// generating flows report the service as unavailable.
func NewService(store *store.Store, llm ai.LLMService, profile *profile.Profile, metrics *observability.Metrics) *Service {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Service{
		store:   store,
		llm:     llm,
		profile: profile,
		metrics: metrics,
	}
}

// generate makes the single model call of a flow.
func (s *Service) generate(ctx context.Context, rc *observability.RequestContext, messages []ai.Message, opts ...ai.ChatOption) (string, error) {
	if s.llm == nil {
		return "", apperrors.ServiceUnavailable("the generation service is not configured")
	}

	start := time.Now()
	raw, err := s.llm.Chat(ctx, messages, opts...)
	s.metrics.ObserveGeneration(rc.Flow, time.Since(start))
	if err == nil {
		return raw, nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return "", apperrors.ContextCanceled(err)
	}
	timedOut := false
	if genErr, ok := ai.AsGenerationError(err); ok {
		timedOut = genErr.Timeout
	}
	s.metrics.GenerationErrors.WithLabelValues(s.llm.Provider(), strconv.FormatBool(timedOut)).Inc()
	rc.Error("generation failed", err,
		slog.String(observability.LogFieldProvider, s.llm.Provider()),
		slog.Bool("timeout", timedOut),
	)
	return "", apperrors.Generation(err)
}

// noteExtraction logs and counts replies that needed the fallback parser.
func (s *Service) noteExtraction(rc *observability.RequestContext, status extract.Status, raw string) {
	if status != extract.StatusDegraded {
		return
	}
	s.metrics.ExtractionDegraded.WithLabelValues(rc.Flow).Inc()
	rc.Warn("model reply was not valid JSON, used fallback extraction",
		slog.String(observability.LogFieldExtraction, string(status)),
		slog.String("raw", timeout.Truncate(raw)),
	)
}

// finish records the outcome of a flow.
func (s *Service) finish(rc *observability.RequestContext, err error, attrs ...slog.Attr) {
	code := codeOK
	if err != nil {
		code = string(apperrors.GetCodeFromError(err, apperrors.ErrCodeInternal))
	}
	s.metrics.Requests.WithLabelValues(rc.Flow, code).Inc()

	attrs = append(attrs, slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	switch {
	case err == nil:
		rc.Info("request completed", attrs...)
	case isClientError(err):
		rc.Warn("request rejected", append(attrs, slog.String(observability.LogFieldErrorCode, code), slog.String("error", err.Error()))...)
	default:
		rc.Error("request failed", err, append(attrs, slog.String(observability.LogFieldErrorCode, code))...)
	}
}

func isClientError(err error) bool {
	appErr, ok := apperrors.As(err)
	return ok && appErr.HTTPStatus() < 500
}

// requireText trims s and checks it is present and not too long.
func requireText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperrors.Validation("%s must not be empty", field)
	}
	if utf8.RuneCountInString(s) > MaxMessageRunes {
		return "", apperrors.Validation("%s must be at most %d characters", field, MaxMessageRunes)
	}
	return s, nil
}

func (s *Service) modelTag() string {
	if s.llm == nil {
		return ""
	}
	return s.llm.Provider() + "/" + s.llm.Model()
}
