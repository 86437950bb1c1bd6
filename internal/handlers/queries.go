package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/models"
)

// roomResponse is the public snapshot of the active room: the question
// without its correct index, and the answer count instead of the answers.
type roomResponse struct {
	*arena.Snapshot
	Question     *models.PublicQuestion `json:"question,omitempty"`
	AnswerCount  int                    `json:"answer_count"`
	RemainingSec float64                `json:"remaining_sec"`
}

func (s *ArenaServer) RoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := s.activeRoomID(w, r)
	if !ok {
		return
	}
	snap, err := s.Coordinator.Snapshot(r.Context(), roomID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	resp := roomResponse{
		Snapshot:     snap,
		AnswerCount:  len(snap.Answers),
		RemainingSec: snap.Remaining().Seconds(),
	}
	if snap.Question != nil {
		resp.Question = snap.Question.Public()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *ArenaServer) ParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := s.activeRoomID(w, r)
	if !ok {
		return
	}
	ps, err := s.Coordinator.Participants(r.Context(), roomID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *ArenaServer) AvailableGiftsHandler(w http.ResponseWriter, r *http.Request) {
	gifts, err := s.Coordinator.AvailableGifts(r.Context())
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, gifts)
}

// AvailableQuestionsHandler lists the questions not yet played in the
// active room, without their correct index.
func (s *ArenaServer) AvailableQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := s.activeRoomID(w, r)
	if !ok {
		return
	}
	qs, err := s.Coordinator.AvailableQuestions(r.Context(), roomID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	out := make([]*models.PublicQuestion, 0, len(qs))
	for i := range qs {
		out = append(out, qs[i].Public())
	}
	writeJSON(w, http.StatusOK, out)
}

func roundID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid round id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *ArenaServer) AnswersHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := roundID(w, r)
	if !ok {
		return
	}
	if _, err := s.Coordinator.Round(r.Context(), id); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	answers, err := s.Coordinator.Answers(r.Context(), id)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (s *ArenaServer) WinnerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := roundID(w, r)
	if !ok {
		return
	}
	pseudo, err := s.Coordinator.WinnerPseudo(r.Context(), id)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"winner_pseudo": pseudo})
}

func (s *ArenaServer) AvatarsHandler(w http.ResponseWriter, r *http.Request) {
	avatars, err := s.Coordinator.Avatars(r.Context())
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, avatars)
}
