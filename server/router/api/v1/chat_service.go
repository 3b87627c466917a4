package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/tutormind/server/service/session"
)

type ChatRequest struct {
	PersonaID int32  `json:"persona_id"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	Response       string `json:"response"`
	UserMessageUID string `json:"user_message_uid"`
	AIMessageUID   string `json:"ai_message_uid"`
	Extraction     string `json:"extraction"`
}

// Chat sends one message to a persona.
// POST /api/v1/chat
func (s *APIV1Service) Chat(c echo.Context) error {
	req := &ChatRequest{}
	if err := bindJSON(c, req); err != nil {
		return err
	}
	resp, err := s.Session.Chat(c.Request().Context(), learnerFrom(c), &session.ChatRequest{
		PersonaID: req.PersonaID,
		Message:   req.Message,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "reply generated", &ChatResponse{
		Response:       resp.Response,
		UserMessageUID: resp.UserMessageUID,
		AIMessageUID:   resp.AIMessageUID,
		Extraction:     string(resp.Extraction),
	})
}

// ListMessages returns the caller's conversation with a persona, oldest first.
// With render=html every message also carries its markdown rendered as HTML.
// GET /api/v1/personas/:id/messages?limit&offset&render
func (s *APIV1Service) ListMessages(c echo.Context) error {
	personaID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	page, err := pageFrom(c)
	if err != nil {
		return err
	}

	result, err := s.Session.ListMessages(c.Request().Context(), learnerFrom(c), personaID, page)
	if err != nil {
		return err
	}

	out := convertMessagePage(result)
	if c.QueryParam("render") == "html" {
		for _, m := range out.Messages {
			if m.HTML, err = s.Markdown.Render(m.Message); err != nil {
				return err
			}
		}
	}
	return respond(c, http.StatusOK, "messages retrieved", out)
}

func pageFrom(c echo.Context) (session.Page, error) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return session.Page{}, err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return session.Page{}, err
	}
	return session.Page{Limit: limit, Offset: offset}, nil
}
