// internal/handlers/arena.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/sirupsen/logrus"
)

// activeRoomID resolves the session's active room once per request; every
// coordinator call below receives it explicitly.
func (s *ArenaServer) activeRoomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	room, err := s.Coordinator.ActiveRoom(r.Context())
	if err != nil {
		writeError(w, s.Logger, err)
		return uuid.Nil, false
	}
	return room.ID, true
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

// CreateRoomHandler opens a new lobby and makes it the active room.
func (s *ArenaServer) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, err := s.Coordinator.CreateRoom(r.Context())
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

type startRoundRequest struct {
	GiftID     *uuid.UUID `json:"gift_id"`
	QuestionID *uuid.UUID `json:"question_id"`
}

// StartRoundHandler opens a round on the active room. When only one player
// and one gift remain the response carries direct_award instead of a round.
func (s *ArenaServer) StartRoundHandler(w http.ResponseWriter, r *http.Request) {
	var req startRoundRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid request payload"})
		return
	}
	roomID, ok := s.activeRoomID(w, r)
	if !ok {
		return
	}
	res, err := s.Coordinator.StartRound(r.Context(), roomID, req.GiftID, req.QuestionID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	status := http.StatusCreated
	if res.DirectAward != nil {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *ArenaServer) EndRoundHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := s.activeRoomID(w, r)
	if !ok {
		return
	}
	out, err := s.Coordinator.EndRound(r.Context(), roomID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *ArenaServer) AdvanceHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := s.activeRoomID(w, r)
	if !ok {
		return
	}
	room, err := s.Coordinator.AdvanceToNextRound(r.Context(), roomID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// ClaimGiftSlotHandler hands a gift to a participant outside any round.
func (s *ArenaServer) ClaimGiftSlotHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GiftID   uuid.UUID `json:"gift_id"`
		PlayerID uuid.UUID `json:"player_id"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.GiftID == uuid.Nil || req.PlayerID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"gift_id and player_id are required"})
		return
	}
	roomID, ok := s.activeRoomID(w, r)
	if !ok {
		return
	}
	award, err := s.Coordinator.ClaimGiftSlot(r.Context(), roomID, req.GiftID, req.PlayerID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, award)
}

// JoinHandler adds the caller to the active room. Joining twice returns the
// existing participant with 200 instead of 201.
func (s *ArenaServer) JoinHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := s.activeRoomID(w, r)
	if !ok {
		return
	}
	p, created, err := s.Coordinator.JoinRoom(r.Context(), roomID, identity(r).PlayerID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, p)
}

type submitAnswerRequest struct {
	RoundID     uuid.UUID `json:"round_id"`
	OptionIndex *int      `json:"option_index"`
}

type submitAnswerResponse struct {
	Accepted bool        `json:"accepted"`
	Answer   interface{} `json:"answer,omitempty"`
}

// SubmitAnswerHandler records the caller's answer. A late or repeated answer
// is not an error for the client: it gets 200 with accepted=false and keeps
// its "answered" state.
func (s *ArenaServer) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := decodeBody(w, r, &req); err != nil || req.RoundID == uuid.Nil || req.OptionIndex == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"round_id and option_index are required"})
		return
	}
	playerID := identity(r).PlayerID

	answer, err := s.Coordinator.SubmitAnswer(r.Context(), req.RoundID, playerID, *req.OptionIndex)
	if arena.IsSwallowed(err) {
		s.Logger.WithFields(logrus.Fields{
			"roundID":  req.RoundID,
			"playerID": playerID,
			"reason":   err,
		}).Debug("answer not accepted")
		writeJSON(w, http.StatusOK, submitAnswerResponse{Accepted: false})
		return
	}
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitAnswerResponse{Accepted: true, Answer: answer})
}

// ClaimAvatarHandler claims an avatar for the caller. On a lost race the 409
// body names the current holder; the client refreshes /avatars and asks the
// user to pick again.
func (s *ArenaServer) ClaimAvatarHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AvatarID uuid.UUID `json:"avatar_id"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.AvatarID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"avatar_id is required"})
		return
	}
	avatar, err := s.Coordinator.ClaimAvatar(r.Context(), req.AvatarID, identity(r).PlayerID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, avatar)
}
