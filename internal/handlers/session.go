// internal/handlers/session.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/models"
)

type sessionResponse struct {
	PlayerID uuid.UUID `json:"player_id"`
	Admin    bool      `json:"admin"`
	Token    string    `json:"token"`
}

func (s *ArenaServer) issue(w http.ResponseWriter, id auth.Identity, status int) {
	token, err := auth.CreateToken(id)
	if err != nil {
		s.Logger.WithError(err).Error("failed to sign session token")
		writeJSON(w, http.StatusInternalServerError, errorBody{"failed to create session"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.TokenMaxAge.Seconds()),
	})
	writeJSON(w, status, sessionResponse{PlayerID: id.PlayerID, Admin: id.Admin, Token: token})
}

// AdminLoginHandler exchanges the admin passphrase for an admin token.
//
// Request payload:
//
//	{
//	  "passphrase": "..."
//	}
//
// A caller that already holds a player token keeps its player id.
func (s *ArenaServer) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	if s.AdminPassphraseHash == "" {
		writeJSON(w, http.StatusForbidden, errorBody{"admin login disabled"})
		return
	}
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid request payload"})
		return
	}

	ok, err := auth.VerifyPassphrase(req.Passphrase, s.AdminPassphraseHash)
	if err != nil {
		s.Logger.WithError(err).Error("admin passphrase hash is unusable")
		writeJSON(w, http.StatusInternalServerError, errorBody{"admin login misconfigured"})
		return
	}
	if !ok {
		s.Logger.WithField("remote", r.RemoteAddr).Warn("admin login failed")
		writeJSON(w, http.StatusForbidden, errorBody{"authentication failed"})
		return
	}

	id := auth.Identity{PlayerID: uuid.New(), Admin: true}
	if existing, err := auth.FromRequest(r); err == nil {
		id.PlayerID = existing.PlayerID
	}
	s.issue(w, id, http.StatusOK)
}

// GuestHandler creates an ephemeral profile and signs a player token for it.
// A caller with a valid token gets its existing identity back.
func (s *ArenaServer) GuestHandler(w http.ResponseWriter, r *http.Request) {
	if id, err := auth.FromRequest(r); err == nil {
		s.issue(w, id, http.StatusOK)
		return
	}

	var req struct {
		Pseudo string `json:"pseudo"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid request payload"})
		return
	}
	pseudo := strings.TrimSpace(req.Pseudo)
	if len(pseudo) > 40 {
		writeJSON(w, http.StatusBadRequest, errorBody{"pseudo too long"})
		return
	}

	profile := models.Profile{ID: uuid.New(), Pseudo: pseudo, IsEphemeral: true}
	if err := s.Profiles.PutProfile(r.Context(), profile); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	s.issue(w, auth.Identity{PlayerID: profile.ID}, http.StatusCreated)
}
