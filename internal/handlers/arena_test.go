package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/feed"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/store"
	"github.com/jason-s-yu/arena/internal/views"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t       *testing.T
	clock   *clockwork.FakeClock
	mem     *store.Memory
	srv     *ArenaServer
	handler http.Handler
	admin   string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	require.NoError(t, auth.Init(time.Hour))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 12, 19, 20, 0, 0, 0, time.UTC))
	mem := store.NewMemory()
	hub := feed.NewHub(logger)

	hash, err := auth.HashPassphrase("sapin", &auth.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	srv := &ArenaServer{
		Coordinator: arena.NewCoordinator(arena.Config{
			Store:  mem,
			Feed:   hub,
			Clock:  clock,
			Logger: logger,
		}),
		Hub:                 hub,
		Profiles:            mem,
		Logger:              logger,
		AdminPassphraseHash: hash,
		TokenMaxAge:         time.Hour,
	}
	admin, err := auth.CreateToken(auth.Identity{PlayerID: uuid.New(), Admin: true})
	require.NoError(t, err)
	return &testEnv{t: t, clock: clock, mem: mem, srv: srv, handler: srv.Routes(), admin: admin}
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) guest(pseudo string) (uuid.UUID, string) {
	e.t.Helper()
	w := e.do("POST", "/players/guest", "", map[string]string{"pseudo": pseudo})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	var resp sessionResponse
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.PlayerID, resp.Token
}

func (e *testEnv) seedRound() (models.Gift, models.Question) {
	e.t.Helper()
	ctx := context.Background()
	g := models.Gift{ID: uuid.New(), OwnerID: uuid.New(), Title: "Mug"}
	q := models.Question{ID: uuid.New(), Prompt: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 1, TimeLimitSec: 20}
	require.NoError(e.t, e.mem.PutGift(ctx, g))
	require.NoError(e.t, e.mem.PutQuestion(ctx, q))
	return g, q
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHeartbeat(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusOK, e.do("GET", "/ping", "", nil).Code)
}

func TestAdminLogin(t *testing.T) {
	e := newEnv(t)

	w := e.do("POST", "/admin/login", "", map[string]string{"passphrase": "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do("POST", "/admin/login", "", map[string]string{"passphrase": "sapin"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[sessionResponse](t, w)
	assert.True(t, resp.Admin)

	id, err := auth.Authenticate(resp.Token)
	require.NoError(t, err)
	assert.True(t, id.Admin)
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	e := newEnv(t)
	_, player := e.guest("Camille")

	assert.Equal(t, http.StatusUnauthorized, e.do("POST", "/arena/rooms", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do("POST", "/arena/rooms", player, nil).Code)
	assert.Equal(t, http.StatusCreated, e.do("POST", "/arena/rooms", e.admin, nil).Code)
}

func TestNoActiveRoomIs404(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/arena/room", "", nil).Code)
	_, player := e.guest("Camille")
	assert.Equal(t, http.StatusNotFound, e.do("POST", "/arena/join", player, nil).Code)
}

func TestRoundOverHTTP(t *testing.T) {
	e := newEnv(t)
	gift, q := e.seedRound()
	aliceID, alice := e.guest("Alice")
	_, bob := e.guest("Bob")

	require.Equal(t, http.StatusCreated, e.do("POST", "/arena/rooms", e.admin, nil).Code)
	assert.Equal(t, http.StatusCreated, e.do("POST", "/arena/join", alice, nil).Code)
	assert.Equal(t, http.StatusOK, e.do("POST", "/arena/join", alice, nil).Code, "second join is idempotent")
	assert.Equal(t, http.StatusCreated, e.do("POST", "/arena/join", bob, nil).Code)

	// nil gift is a precondition failure
	w := e.do("POST", "/arena/rounds", e.admin, map[string]interface{}{"question_id": q.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// a second gift so this is not the last-gift direct award
	require.NoError(t, e.mem.PutGift(context.Background(), models.Gift{ID: uuid.New(), OwnerID: uuid.New(), Title: "Socks"}))

	w = e.do("POST", "/arena/rounds", e.admin, startRoundRequest{GiftID: &gift.ID, QuestionID: &q.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	start := decode[arena.StartResult](t, w)
	require.NotNil(t, start.Round)
	roundID := start.Round.ID

	// the public room snapshot hides the correct index
	w = e.do("GET", "/arena/room", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "correct_index")

	one, wrong := 1, 0
	w = e.do("POST", "/arena/answers", alice, submitAnswerRequest{RoundID: roundID, OptionIndex: &one})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, decode[submitAnswerResponse](t, w).Accepted)

	// duplicate is swallowed
	w = e.do("POST", "/arena/answers", alice, submitAnswerRequest{RoundID: roundID, OptionIndex: &wrong})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[submitAnswerResponse](t, w).Accepted)

	// out-of-range option
	bad := 7
	w = e.do("POST", "/arena/answers", bob, submitAnswerRequest{RoundID: roundID, OptionIndex: &bad})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	e.clock.Advance(5 * time.Second)
	w = e.do("POST", "/arena/rounds/end", e.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[arena.Outcome](t, w)
	require.NotNil(t, out.Winner)
	assert.Equal(t, aliceID, *out.Winner)
	assert.True(t, out.GiftAwarded)

	// late answer after resolution is swallowed too
	w = e.do("POST", "/arena/answers", bob, submitAnswerRequest{RoundID: roundID, OptionIndex: &one})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[submitAnswerResponse](t, w).Accepted)

	w = e.do("GET", "/arena/rounds/"+roundID.String()+"/winner", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice", decode[map[string]string](t, w)["winner_pseudo"])

	w = e.do("GET", "/arena/rounds/"+roundID.String()+"/answers", e.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Answer](t, w), 1)

	w = e.do("GET", "/arena/gifts/available", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Gift](t, w), 1)

	w = e.do("GET", "/arena/questions/available", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.PublicQuestion](t, w))

	// advancing twice: second is a precondition failure
	assert.Equal(t, http.StatusOK, e.do("POST", "/arena/rooms/advance", e.admin, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do("POST", "/arena/rooms/advance", e.admin, nil).Code)
}

func TestAvatarClaimConflict(t *testing.T) {
	e := newEnv(t)
	avatar := models.Avatar{ID: uuid.New(), Name: "Renne"}
	require.NoError(t, e.mem.PutAvatar(context.Background(), avatar))
	aliceID, alice := e.guest("Alice")
	_, bob := e.guest("Bob")

	w := e.do("POST", "/avatars/claim", alice, map[string]uuid.UUID{"avatar_id": avatar.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do("POST", "/avatars/claim", bob, map[string]uuid.UUID{"avatar_id": avatar.ID})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[conflictBody](t, w)
	assert.Equal(t, arena.ResourceAvatar, body.Kind)
	assert.Equal(t, aliceID.String(), body.Holder)

	w = e.do("GET", "/avatars", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	avatars := decode[[]models.Avatar](t, w)
	require.Len(t, avatars, 1)
	assert.Equal(t, aliceID, *avatars[0].ClaimedBy)
}

func TestBadRequests(t *testing.T) {
	e := newEnv(t)
	_, player := e.guest("Alice")

	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/arena/answers", player, map[string]string{"round_id": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do("POST", "/avatars/claim", player, nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do("GET", "/arena/rounds/nope/winner", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/arena/rounds/"+uuid.NewString()+"/winner", "", nil).Code)
}

func TestScreenStreamFollowsActiveRoom(t *testing.T) {
	e := newEnv(t)
	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/arena/ws/screen"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	var view views.ScreenView
	require.NoError(t, wsjson.Read(ctx, c, &view))
	assert.Equal(t, views.PhaseNoRoom, view.Phase)

	require.Equal(t, http.StatusCreated, e.do("POST", "/arena/rooms", e.admin, nil).Code)

	for view.Phase == views.PhaseNoRoom {
		require.NoError(t, wsjson.Read(ctx, c, &view))
	}
	assert.Equal(t, views.PhaseLobby, view.Phase)
	assert.NotEqual(t, uuid.Nil, view.RoomID)
}

func TestPlayerStreamRequiresToken(t *testing.T) {
	e := newEnv(t)
	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/arena/ws/player"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	defer c.CloseNow()

	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(InvalidAuthTokenError), websocket.CloseStatus(err))
}
