package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"opal-rag/internal/handlers"
	"opal-rag/internal/service"
	"opal-rag/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	QueryService service.QueryService
	ChatService  service.ChatService
	VectorStore  vectorstore.VectorStore
	// CollectionName is the vector store collection checked by /health.
	CollectionName string
	// APIKey, when non-empty, is required in the X-API-Key header for all
	// /api routes except the health check.
	APIKey string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	queryHandler := handlers.NewQueryHandler(deps.QueryService)
	chatsHandler := handlers.NewChatsHandler(deps.ChatService)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.CollectionName)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(deps.APIKey))

			r.Method(http.MethodPost, "/query", queryHandler)

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", chatsHandler.List)
				r.Post("/", chatsHandler.Create)
				r.Get("/{chatID}", chatsHandler.Get)
				r.Patch("/{chatID}", chatsHandler.Update)
				r.Delete("/{chatID}", chatsHandler.Delete)
				r.Get("/{chatID}/messages", chatsHandler.Messages)
				r.Post("/{chatID}/messages", chatsHandler.AppendMessage)
			})
		})
	})

	return r
}
