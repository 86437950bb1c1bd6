// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/models"
)

// Memory is a single-process arena.Store. A transaction works on a private
// copy of the state under the store mutex and swaps it in on commit, so a
// failed transaction leaves nothing behind. Intended for tests, local
// development and single-instance deployments.
type Memory struct {
	mu sync.Mutex
	st *state
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// InTx runs fn against a working copy and commits it when fn returns nil.
func (m *Memory) InTx(ctx context.Context, fn func(tx arena.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", arena.ErrStoreUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.st.clone()
	if err := fn(working); err != nil {
		return err
	}
	m.st = working
	return nil
}

func (m *Memory) ActiveRoomID(ctx context.Context) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ActiveRoomID(ctx)
}

func (m *Memory) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetRoom(ctx, id)
}

func (m *Memory) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetRound(ctx, id)
}

func (m *Memory) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetQuestion(ctx, id)
}

func (m *Memory) GetGift(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetGift(ctx, id)
}

func (m *Memory) GetAvatar(ctx context.Context, id uuid.UUID) (*models.Avatar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetAvatar(ctx, id)
}

func (m *Memory) GetParticipant(ctx context.Context, roomID, playerID uuid.UUID) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetParticipant(ctx, roomID, playerID)
}

func (m *Memory) GetProfile(ctx context.Context, playerID uuid.UUID) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetProfile(ctx, playerID)
}

func (m *Memory) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListParticipants(ctx, roomID)
}

func (m *Memory) ListAvailableGifts(ctx context.Context) ([]models.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListAvailableGifts(ctx)
}

func (m *Memory) ListUnusedQuestions(ctx context.Context, roomID uuid.UUID) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListUnusedQuestions(ctx, roomID)
}

func (m *Memory) ListAnswers(ctx context.Context, roundID uuid.UUID) ([]models.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListAnswers(ctx, roundID)
}

func (m *Memory) ListAvatars(ctx context.Context) ([]models.Avatar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListAvatars(ctx)
}

// PutQuestion inserts or replaces a question.
func (m *Memory) PutQuestion(_ context.Context, q models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.questions[q.ID]; !ok {
		m.st.questionOrder = append(m.st.questionOrder, q.ID)
	}
	q.Options = append([]string(nil), q.Options...)
	m.st.questions[q.ID] = q
	return nil
}

// PutGift inserts or replaces gift content. An existing winner is kept.
func (m *Memory) PutGift(_ context.Context, g models.Gift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.st.gifts[g.ID]; ok {
		if cur.WinnerID != nil {
			g.WinnerID = cur.WinnerID
		}
	} else {
		m.st.giftOrder = append(m.st.giftOrder, g.ID)
	}
	m.st.gifts[g.ID] = g
	return nil
}

// PutAvatar inserts or replaces an avatar. An existing claim is kept.
func (m *Memory) PutAvatar(_ context.Context, a models.Avatar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.st.avatars[a.ID]; ok {
		if cur.ClaimedBy != nil {
			a.ClaimedBy = cur.ClaimedBy
		}
	} else {
		m.st.avatarOrder = append(m.st.avatarOrder, a.ID)
	}
	m.st.avatars[a.ID] = a
	return nil
}

// PutProfile inserts or updates a player's pseudo. The avatar is only set
// through a claim.
func (m *Memory) PutProfile(_ context.Context, p models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.st.profiles[p.ID]; ok {
		cur.Pseudo = p.Pseudo
		p = cur
	} else {
		p.AvatarID = nil
	}
	m.st.profiles[p.ID] = p
	return nil
}

// state is the full data set. Its methods implement arena.Tx without locking;
// callers hold Memory.mu.
type state struct {
	activeRoom uuid.UUID

	rooms         map[uuid.UUID]models.Room
	participants  map[uuid.UUID][]models.Participant // by room, join order
	rounds        map[uuid.UUID]models.Round
	answers       map[uuid.UUID][]models.Answer // by round, submission order
	usage         map[uuid.UUID]map[uuid.UUID]bool
	questions     map[uuid.UUID]models.Question
	questionOrder []uuid.UUID
	gifts         map[uuid.UUID]models.Gift
	giftOrder     []uuid.UUID
	avatars       map[uuid.UUID]models.Avatar
	avatarOrder   []uuid.UUID
	profiles      map[uuid.UUID]models.Profile
}

func newState() *state {
	return &state{
		rooms:        make(map[uuid.UUID]models.Room),
		participants: make(map[uuid.UUID][]models.Participant),
		rounds:       make(map[uuid.UUID]models.Round),
		answers:      make(map[uuid.UUID][]models.Answer),
		usage:        make(map[uuid.UUID]map[uuid.UUID]bool),
		questions:    make(map[uuid.UUID]models.Question),
		gifts:        make(map[uuid.UUID]models.Gift),
		avatars:      make(map[uuid.UUID]models.Avatar),
		profiles:     make(map[uuid.UUID]models.Profile),
	}
}

// clone copies everything a transaction can write. Row values hold only
// pointers that are replaced, never mutated, so a shallow map copy suffices;
// questions are read-only inside transactions and are shared.
func (s *state) clone() *state {
	c := &state{
		activeRoom:    s.activeRoom,
		rooms:         make(map[uuid.UUID]models.Room, len(s.rooms)),
		participants:  make(map[uuid.UUID][]models.Participant, len(s.participants)),
		rounds:        make(map[uuid.UUID]models.Round, len(s.rounds)),
		answers:       make(map[uuid.UUID][]models.Answer, len(s.answers)),
		usage:         make(map[uuid.UUID]map[uuid.UUID]bool, len(s.usage)),
		questions:     s.questions,
		questionOrder: s.questionOrder,
		gifts:         make(map[uuid.UUID]models.Gift, len(s.gifts)),
		giftOrder:     s.giftOrder,
		avatars:       make(map[uuid.UUID]models.Avatar, len(s.avatars)),
		avatarOrder:   s.avatarOrder,
		profiles:      make(map[uuid.UUID]models.Profile, len(s.profiles)),
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = append([]models.Participant(nil), v...)
	}
	for k, v := range s.rounds {
		c.rounds[k] = v
	}
	for k, v := range s.answers {
		c.answers[k] = append([]models.Answer(nil), v...)
	}
	for k, v := range s.usage {
		used := make(map[uuid.UUID]bool, len(v))
		for q := range v {
			used[q] = true
		}
		c.usage[k] = used
	}
	for k, v := range s.gifts {
		c.gifts[k] = v
	}
	for k, v := range s.avatars {
		c.avatars[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	return c
}

func notFound(kind string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", kind, id, arena.ErrNotFound)
}

func (s *state) ActiveRoomID(context.Context) (uuid.UUID, error) {
	if s.activeRoom == uuid.Nil {
		return uuid.Nil, arena.ErrNoActiveRoom
	}
	return s.activeRoom, nil
}

func (s *state) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	r, ok := s.rooms[id]
	if !ok {
		return nil, notFound("room", id)
	}
	return &r, nil
}

func (s *state) GetRound(_ context.Context, id uuid.UUID) (*models.Round, error) {
	r, ok := s.rounds[id]
	if !ok {
		return nil, notFound("round", id)
	}
	return &r, nil
}

func (s *state) GetQuestion(_ context.Context, id uuid.UUID) (*models.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return nil, notFound("question", id)
	}
	q.Options = append([]string(nil), q.Options...)
	return &q, nil
}

func (s *state) GetGift(_ context.Context, id uuid.UUID) (*models.Gift, error) {
	g, ok := s.gifts[id]
	if !ok {
		return nil, notFound("gift", id)
	}
	return &g, nil
}

func (s *state) GetAvatar(_ context.Context, id uuid.UUID) (*models.Avatar, error) {
	a, ok := s.avatars[id]
	if !ok {
		return nil, notFound("avatar", id)
	}
	return &a, nil
}

func (s *state) GetParticipant(_ context.Context, roomID, playerID uuid.UUID) (*models.Participant, error) {
	for _, p := range s.participants[roomID] {
		if p.PlayerID == playerID {
			return &p, nil
		}
	}
	return nil, notFound("participant", playerID)
}

func (s *state) GetProfile(_ context.Context, playerID uuid.UUID) (*models.Profile, error) {
	p, ok := s.profiles[playerID]
	if !ok {
		return nil, notFound("profile", playerID)
	}
	return &p, nil
}

func (s *state) ListParticipants(_ context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	return append([]models.Participant{}, s.participants[roomID]...), nil
}

func (s *state) ListAvailableGifts(context.Context) ([]models.Gift, error) {
	out := []models.Gift{}
	for _, id := range s.giftOrder {
		if g := s.gifts[id]; g.Available() {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *state) ListUnusedQuestions(_ context.Context, roomID uuid.UUID) ([]models.Question, error) {
	used := s.usage[roomID]
	out := []models.Question{}
	for _, id := range s.questionOrder {
		if used[id] {
			continue
		}
		q := s.questions[id]
		q.Options = append([]string(nil), q.Options...)
		out = append(out, q)
	}
	return out, nil
}

func (s *state) ListAnswers(_ context.Context, roundID uuid.UUID) ([]models.Answer, error) {
	out := append([]models.Answer{}, s.answers[roundID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AnsweredAt.Before(out[j].AnsweredAt) })
	return out, nil
}

func (s *state) ListAvatars(context.Context) ([]models.Avatar, error) {
	out := make([]models.Avatar, 0, len(s.avatarOrder))
	for _, id := range s.avatarOrder {
		out = append(out, s.avatars[id])
	}
	return out, nil
}

func (s *state) LockRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return s.GetRoom(ctx, id)
}

func (s *state) LockRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return s.GetRound(ctx, id)
}

func (s *state) LockProfile(_ context.Context, playerID uuid.UUID) (*models.Profile, error) {
	p, ok := s.profiles[playerID]
	if !ok {
		p = models.Profile{ID: playerID}
		s.profiles[playerID] = p
	}
	return &p, nil
}

func (s *state) InsertRoom(_ context.Context, room *models.Room) error {
	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("room %s already exists", room.ID)
	}
	s.rooms[room.ID] = *room
	return nil
}

func (s *state) SetActiveRoom(_ context.Context, roomID uuid.UUID) error {
	if _, ok := s.rooms[roomID]; !ok {
		return notFound("room", roomID)
	}
	s.activeRoom = roomID
	return nil
}

func (s *state) UpdateRoom(_ context.Context, roomID uuid.UUID, status models.RoomStatus, currentRound *uuid.UUID) error {
	r, ok := s.rooms[roomID]
	if !ok {
		return notFound("room", roomID)
	}
	r.Status = status
	r.CurrentRoundID = nil
	if currentRound != nil {
		id := *currentRound
		r.CurrentRoundID = &id
	}
	s.rooms[roomID] = r
	return nil
}

func (s *state) InsertParticipant(_ context.Context, p *models.Participant) (bool, error) {
	if _, ok := s.rooms[p.RoomID]; !ok {
		return false, notFound("room", p.RoomID)
	}
	for _, existing := range s.participants[p.RoomID] {
		if existing.PlayerID == p.PlayerID {
			return false, nil
		}
	}
	s.participants[p.RoomID] = append(s.participants[p.RoomID], *p)
	return true, nil
}

func (s *state) MarkParticipantWon(_ context.Context, roomID, playerID uuid.UUID) (bool, error) {
	ps := s.participants[roomID]
	for i := range ps {
		if ps[i].PlayerID != playerID {
			continue
		}
		if ps[i].HasWonGift {
			return false, nil
		}
		ps[i].HasWonGift = true
		return true, nil
	}
	return false, notFound("participant", playerID)
}

func (s *state) UseQuestion(_ context.Context, roomID, questionID uuid.UUID) (bool, error) {
	used, ok := s.usage[roomID]
	if !ok {
		used = make(map[uuid.UUID]bool)
		s.usage[roomID] = used
	}
	if used[questionID] {
		return false, nil
	}
	used[questionID] = true
	return true, nil
}

func (s *state) InsertRound(_ context.Context, r *models.Round) error {
	if _, ok := s.rounds[r.ID]; ok {
		return fmt.Errorf("round %s already exists", r.ID)
	}
	s.rounds[r.ID] = *r
	return nil
}

func (s *state) FinishRound(_ context.Context, r *models.Round) (bool, error) {
	cur, ok := s.rounds[r.ID]
	if !ok {
		return false, notFound("round", r.ID)
	}
	if !cur.Active() {
		return false, nil
	}
	cur.Status = models.RoundFinished
	cur.WinnerID = r.WinnerID
	cur.EndedAt = r.EndedAt
	s.rounds[r.ID] = cur
	return true, nil
}

func (s *state) InsertAnswer(_ context.Context, a *models.Answer) (bool, error) {
	for _, existing := range s.answers[a.RoundID] {
		if existing.PlayerID == a.PlayerID {
			return false, nil
		}
	}
	s.answers[a.RoundID] = append(s.answers[a.RoundID], *a)
	return true, nil
}

func (s *state) ClaimGift(_ context.Context, giftID, playerID uuid.UUID) (bool, error) {
	g, ok := s.gifts[giftID]
	if !ok {
		return false, notFound("gift", giftID)
	}
	if g.WinnerID != nil {
		return false, nil
	}
	winner := playerID
	g.WinnerID = &winner
	s.gifts[giftID] = g
	return true, nil
}

func (s *state) ClaimAvatar(_ context.Context, avatarID, playerID uuid.UUID) (bool, error) {
	a, ok := s.avatars[avatarID]
	if !ok {
		return false, notFound("avatar", avatarID)
	}
	if a.ClaimedBy != nil {
		return false, nil
	}
	holder := playerID
	a.ClaimedBy = &holder
	s.avatars[avatarID] = a
	return true, nil
}

func (s *state) SetProfileAvatar(_ context.Context, playerID, avatarID uuid.UUID) error {
	p, ok := s.profiles[playerID]
	if !ok {
		p = models.Profile{ID: playerID}
	}
	id := avatarID
	p.AvatarID = &id
	s.profiles[playerID] = p
	return nil
}

var _ arena.Store = (*Memory)(nil)
var _ arena.Tx = (*state)(nil)
