package store

import (
	"encoding/json"
	"fmt"
)

// PersonaRole is the closed set of tutor roles a persona can play.
type PersonaRole string

const (
	PersonaRoleFriend PersonaRole = "friend"
	PersonaRoleMentor PersonaRole = "mentor"
)

func (r PersonaRole) IsValid() bool {
	switch r {
	case PersonaRoleFriend, PersonaRoleMentor:
		return true
	}
	return false
}

// Persona is a configured AI character bound to a topic.
type Persona struct {
	ID          int32
	Name        string
	Role        PersonaRole
	Description string
	// Personality maps trait name to trait value.
	Personality map[string]string
	AvatarURL   string
	IsActive    bool
	TopicID     int32
	CreatedTs   int64
	UpdatedTs   int64

	// Joined from topic.
	TopicName     string
	TopicCategory string
}

type FindPersona struct {
	ID       *int32
	TopicID  *int32
	Role     *PersonaRole
	IsActive *bool
	// Search matches persona names case-insensitively.
	Search *string
	Limit  int
	Offset int
}

type UpdatePersona struct {
	ID        int32
	UpdatedTs int64
	IsActive  *bool
}

// EncodePersonality renders a personality map as a JSON object.
func EncodePersonality(personality map[string]string) (string, error) {
	if len(personality) == 0 {
		return "{}", nil
	}
	buf, err := json.Marshal(personality)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// DecodePersonality reads a JSON object of traits. Non-string trait values are kept in
// their printed form.
func DecodePersonality(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var traits map[string]any
	if err := json.Unmarshal(raw, &traits); err != nil {
		return nil, err
	}
	personality := make(map[string]string, len(traits))
	for k, v := range traits {
		switch v := v.(type) {
		case string:
			personality[k] = v
		case nil:
			personality[k] = ""
		default:
			personality[k] = fmt.Sprint(v)
		}
	}
	return personality, nil
}
