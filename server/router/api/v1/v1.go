// Package v1 serves the JSON API under /api/v1.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/hrygo/tutormind/internal/profile"
	"github.com/hrygo/tutormind/server/auth"
	"github.com/hrygo/tutormind/server/internal/observability"
	"github.com/hrygo/tutormind/server/middleware"
	"github.com/hrygo/tutormind/server/service/session"
)

type APIV1Service struct {
	Profile  *profile.Profile
	Session  *session.Service
	Auth     *auth.Authenticator
	Limiter  *middleware.RateLimiter
	Metrics  *observability.Metrics
	Markdown *MarkdownRenderer
}

func NewAPIV1Service(profile *profile.Profile, sessionService *session.Service, authenticator *auth.Authenticator, metrics *observability.Metrics) *APIV1Service {
	return &APIV1Service{
		Profile:  profile,
		Session:  sessionService,
		Auth:     authenticator,
		Limiter:  middleware.NewRateLimiter(profile.RateLimitRPS, profile.RateLimitBurst),
		Metrics:  metrics,
		Markdown: NewMarkdownRenderer(),
	}
}

// RegisterRoutes mounts every endpoint. Routes that call the generation service are rate
// limited per user, or per client address for anonymous callers.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	limited := s.Limiter.Middleware(auth.RateLimitKey, func() {
		if s.Metrics != nil {
			s.Metrics.RateLimitedRequests.Inc()
		}
	})

	api := e.Group("/api/v1", s.Auth.Middleware())

	api.POST("/chat", s.Chat, auth.RequireUser, limited)
	api.GET("/personas", s.ListPersonas)
	api.GET("/personas/:id", s.GetPersona)
	api.GET("/personas/:id/messages", s.ListMessages, auth.RequireUser)

	api.GET("/learn/topics/:id", s.GetTopic)
	api.GET("/learn/topics/:id/question", s.GenerateQuestion, limited)
	api.GET("/learn/topics/:id/history", s.ListLearningHistory, auth.RequireUser)
	api.POST("/learn/answer", s.GradeAnswer, limited)
}

func learnerFrom(c echo.Context) session.Learner {
	user, ok := auth.UserFromContext(c.Request().Context())
	if !ok {
		return session.Learner{}
	}
	return session.Learner{ID: user.ID, Name: user.Name}
}
