package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/transport/http/handlers"
	"github.com/vedran77/partsmarket/internal/transport/http/middleware"
)

type Deps struct {
	JWTSecret      string
	AllowedOrigins []string
	SendLimiter    *middleware.SendLimiter
	// RequestTimeout bounds /api/v1 handlers. The WebSocket route is exempt.
	RequestTimeout time.Duration

	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Conversations *handlers.ConversationHandler
	Listings      *handlers.ListingHandler
	Files         *handlers.FileHandler
	WebSocket     http.Handler
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "file_name", "file_type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	r.Get("/files/download", d.Files.Download)
	if d.WebSocket != nil {
		r.Handle("/ws", d.WebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(chimw.Timeout(d.RequestTimeout))
		}

		r.Post("/auth/register", d.Auth.Register)
		r.Post("/auth/login", d.Auth.Login)

		// Protected
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.JWTSecret))

			r.Get("/users/me", d.Auth.Me)
			r.Patch("/users/me", d.Auth.UpdateProfile)
			r.Get("/users/{id}/name", d.Users.Name)

			r.Post("/conversations", d.Conversations.Resolve)
			r.Get("/conversations", d.Conversations.List)
			r.Get("/conversations/with/{userID}", d.Conversations.With)
			r.Get("/conversations/{id}/messages", d.Conversations.ListMessages)

			r.Group(func(r chi.Router) {
				if d.SendLimiter != nil {
					r.Use(d.SendLimiter.Limit)
				}
				r.Post("/conversations/{id}/messages", d.Conversations.SendMessage)
				r.Post("/messages", d.Conversations.SendTo)
			})

			r.Post("/vehicles", d.Listings.CreateVehicle)
			r.Patch("/vehicles/{id}", d.Listings.UpdateVehicle)
			r.Delete("/vehicles/{id}", d.Listings.DeleteVehicle)
			r.Post("/vehicles/{id}/abandon", d.Listings.Abandon(domain.KindVehicle))

			r.Post("/parts", d.Listings.CreatePart)
			r.Patch("/parts/{id}", d.Listings.UpdatePart)
			r.Delete("/parts/{id}", d.Listings.DeletePart)
			r.Post("/parts/{id}/abandon", d.Listings.Abandon(domain.KindPart))

			r.Post("/wheels", d.Listings.CreateWheel)
			r.Patch("/wheels/{id}", d.Listings.UpdateWheel)
			r.Delete("/wheels/{id}", d.Listings.DeleteWheel)
			r.Post("/wheels/{id}/abandon", d.Listings.Abandon(domain.KindWheel))

			r.Post("/files/upload", d.Files.Upload)
		})

		// Browsing listings does not need an account.
		r.Get("/vehicles", d.Listings.ListVehicles)
		r.Get("/vehicles/{id}", d.Listings.GetVehicle)
		r.Get("/parts", d.Listings.ListParts)
		r.Get("/parts/{id}", d.Listings.GetPart)
		r.Get("/parts/{id}/similar", d.Listings.SimilarParts)
		r.Get("/wheels", d.Listings.ListWheels)
		r.Get("/wheels/{id}", d.Listings.GetWheel)
		r.Get("/wheels/{id}/similar", d.Listings.SimilarWheels)
	})

	return r
}
