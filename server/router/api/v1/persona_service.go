package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/hrygo/tutormind/server/service/session"
)

// ListPersonas lists the active personas.
// GET /api/v1/personas?search&topic_id&role&limit&offset
func (s *APIV1Service) ListPersonas(c echo.Context) error {
	page, err := pageFrom(c)
	if err != nil {
		return err
	}
	filter := session.PersonaFilter{
		Search: c.QueryParam("search"),
		Role:   c.QueryParam("role"),
		Page:   page,
	}
	if c.QueryParam("topic_id") != "" {
		topicID, err := queryInt(c, "topic_id")
		if err != nil {
			return err
		}
		filter.TopicID = lo.ToPtr(int32(*topicID))
	}

	list, err := s.Session.ListPersonas(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "personas retrieved", &PersonaPage{
		Count:      list.Count,
		NextOffset: list.NextOffset,
		Personas:   lo.Map(list.Personas, convertPersona),
	})
}

// GetPersona returns one active persona.
// GET /api/v1/personas/:id
func (s *APIV1Service) GetPersona(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	persona, err := s.Session.GetPersona(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "persona retrieved", convertPersona(persona, 0))
}
