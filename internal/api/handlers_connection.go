package api

import (
	"net/http"

	"hubgate/internal/application"
	"hubgate/internal/domain"
)

// connectionView never carries the hub password or token.
type connectionView struct {
	ID                int64   `json:"id"`
	Username          string  `json:"haUsername"`
	BaseURL           string  `json:"baseUrl"`
	CloudURL          *string `json:"cloudUrl"`
	OwnerID           int64   `json:"ownerId"`
	HasPassword       bool    `json:"hasPassword"`
	HasLongLivedToken bool    `json:"hasLongLivedToken"`
}

func newConnectionView(c *domain.Connection) connectionView {
	return connectionView{
		ID:                c.ID,
		Username:          c.Username,
		BaseURL:           c.BaseURL,
		CloudURL:          c.CloudURL,
		OwnerID:           c.OwnerID,
		HasPassword:       c.Password != "",
		HasLongLivedToken: c.LongLivedToken != "",
	}
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.settings.Connection(r.Context(), sessionFrom(r.Context()).User.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newConnectionView(conn))
}

type connectionRequest struct {
	Username       string  `json:"haUsername"`
	BaseURL        string  `json:"baseUrl"`
	CloudURL       *string `json:"cloudUrl"`
	Password       string  `json:"haPassword"`
	LongLivedToken string  `json:"longLivedToken"`
}

func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.settings.UpdateHubSettings(r.Context(), sessionFrom(r.Context()).User.ID, application.HubSettings{
		Username:       req.Username,
		BaseURL:        req.BaseURL,
		CloudURL:       req.CloudURL,
		Password:       req.Password,
		LongLivedToken: req.LongLivedToken,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newConnectionView(conn))
}
