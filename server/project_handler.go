package server

import (
	"encoding/json"
	"net/http"

	"stemboard/core/apperr"

	"github.com/gorilla/mux"
)

// ListProjectsHandler returns every project the caller belongs to.
func (h *APIHandler) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	projects, err := h.workspaces.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// CreateProjectHandler creates a project with the caller as first member.
func (h *APIHandler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	project, err := h.workspaces.Create(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// AddCollaboratorHandler grants another registered user access.
func (h *APIHandler) AddCollaboratorHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	projectID := mux.Vars(r)["id"]

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.workspaces.AddCollaborator(r.Context(), userID, projectID, req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Collaborator added successfully!")
}

type snapshotResponse struct {
	Snapshot json.RawMessage `json:"snapshot"`
}

// GetSnapshotHandler returns the stored board snapshot, or null.
func (h *APIHandler) GetSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		writeError(w, apperr.Validation("get snapshot", "projectId is required"))
		return
	}

	snapshot, err := h.workspaces.LoadSnapshot(r.Context(), userID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if snapshot == nil {
		snapshot = []byte("null")
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Snapshot: snapshot})
}

// UpdateSnapshotHandler overwrites the stored snapshot.
func (h *APIHandler) UpdateSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req struct {
		ProjectID string          `json:"projectId"`
		Snapshot  json.RawMessage `json:"snapshot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProjectID == "" || len(req.Snapshot) == 0 || string(req.Snapshot) == "null" {
		writeMessage(w, http.StatusBadRequest, "projectId and snapshot are required")
		return
	}

	if err := h.workspaces.SaveSnapshot(r.Context(), userID, req.ProjectID, req.Snapshot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
