package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"stemboard/core/apperr"
	"stemboard/core/auth"
	"stemboard/core/board"
	"stemboard/core/media"
	"stemboard/core/workspace"
	"stemboard/logger"
	"stemboard/repository"
	"stemboard/storage"

	"github.com/gorilla/mux"
)

// BlobStore is the object storage the handlers need: uploads go through
// media.Service, downloads are streamed back by key.
type BlobStore interface {
	media.BlobStore
	KeyFromURL(raw string) (string, bool)
	Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

// Deps wires an APIHandler.
type Deps struct {
	Users      repository.UserRepository
	Tokens     *auth.TokenManager
	Workspaces *workspace.Service
	Media      *media.Service
	Blobs      BlobStore
	Hub        *board.Hub
	Uploads    *UploadLimiter // nil disables rate limiting
}

// APIHandler holds the dependencies of every route.
type APIHandler struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	workspaces *workspace.Service
	media      *media.Service
	blobs      BlobStore
	hub        *board.Hub
	uploads    *UploadLimiter
}

// NewAPIHandler creates a handler from its dependencies.
func NewAPIHandler(d Deps) *APIHandler {
	return &APIHandler{
		users:      d.Users,
		tokens:     d.Tokens,
		workspaces: d.Workspaces,
		media:      d.Media,
		blobs:      d.Blobs,
		hub:        d.Hub,
		uploads:    d.Uploads,
	}
}

// RegisterRoutes mounts every endpoint on router.
func (h *APIHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/projects", h.AuthMiddleware(h.ListProjectsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects", h.AuthMiddleware(h.CreateProjectHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/add-collaborator", h.AuthMiddleware(h.AddCollaboratorHandler)).Methods(http.MethodPost)

	router.HandleFunc("/api/snapshot", h.AuthMiddleware(h.GetSnapshotHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/snapshot/update", h.AuthMiddleware(h.UpdateSnapshotHandler)).Methods(http.MethodPatch)

	router.HandleFunc("/api/demos", h.AuthMiddleware(h.ListDemosHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/demos", h.AuthMiddleware(h.RateLimit(h.UploadDemoHandler))).Methods(http.MethodPost)
	router.HandleFunc("/api/demos/{id}/stems", h.AuthMiddleware(h.RateLimit(h.UploadStemHandler))).Methods(http.MethodPost)

	router.HandleFunc("/api/download", h.DownloadHandler).Methods(http.MethodGet)

	router.HandleFunc("/ws/projects/{id}", h.BoardSocketHandler).Methods(http.MethodGet)
}

// NewRouter builds the full handler tree with CORS.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	h.RegisterRoutes(router)
	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", logger.ErrorField(err))
	}
}

// writeError maps err to its status and a {"message"} body.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", logger.ErrorField(err))
	}
	writeJSON(w, status, messageResponse{Message: apperr.Message(err)})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}
