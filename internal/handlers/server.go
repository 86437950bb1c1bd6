// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/feed"
	"github.com/jason-s-yu/arena/internal/middleware"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/sirupsen/logrus"
)

// Profiles creates guest profiles. store.Memory and database.Store implement it.
type Profiles interface {
	PutProfile(ctx context.Context, p models.Profile) error
}

// ArenaServer holds everything the HTTP and websocket handlers share.
type ArenaServer struct {
	Coordinator *arena.Coordinator
	Hub         *feed.Hub
	Profiles    Profiles
	Logger      *logrus.Logger

	// AdminPassphraseHash is the argon2id hash checked by /admin/login. Empty
	// disables admin login.
	AdminPassphraseHash string
	// TokenMaxAge is the cookie lifetime; 0 makes a session cookie.
	TokenMaxAge time.Duration
	// ObserverExpiry makes every view stream run CheckExpiry on its tick.
	ObserverExpiry bool
	Tick           time.Duration
	OriginPatterns []string
}

// Routes builds the router: admin commands behind RequireAdmin, player
// commands behind RequirePlayer, queries and view streams open.
func (s *ArenaServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(middleware.LogMiddleware(s.Logger))

	// session
	r.Post("/admin/login", s.AdminLoginHandler)
	r.Post("/players/guest", s.GuestHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(s.Logger))
		r.Post("/arena/rooms", s.CreateRoomHandler)
		r.Post("/arena/rounds", s.StartRoundHandler)
		r.Post("/arena/rounds/end", s.EndRoundHandler)
		r.Post("/arena/rooms/advance", s.AdvanceHandler)
		r.Post("/arena/gifts/claim", s.ClaimGiftSlotHandler)
		r.Get("/arena/rounds/{id}/answers", s.AnswersHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePlayer(s.Logger))
		r.Post("/arena/join", s.JoinHandler)
		r.Post("/arena/answers", s.SubmitAnswerHandler)
		r.Post("/avatars/claim", s.ClaimAvatarHandler)
	})

	r.Get("/arena/room", s.RoomHandler)
	r.Get("/arena/participants", s.ParticipantsHandler)
	r.Get("/arena/gifts/available", s.AvailableGiftsHandler)
	r.Get("/arena/questions/available", s.AvailableQuestionsHandler)
	r.Get("/arena/rounds/{id}/winner", s.WinnerHandler)
	r.Get("/avatars", s.AvatarsHandler)

	r.Get("/arena/ws/{role}", s.ViewStreamHandler)
	return r
}
