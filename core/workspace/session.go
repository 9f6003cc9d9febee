package workspace

import (
	"context"
	"sync"

	"stemboard/core/apperr"
	"stemboard/logger"
	"stemboard/model"
)

// Backend is what a Session needs from the server. The HTTP client and
// Service.ForUser both implement it.
type Backend interface {
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)
	CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error)
	AddCollaborator(ctx context.Context, workspaceID, email string) error
	SaveSnapshot(ctx context.Context, workspaceID string, snapshot []byte) error
	LoadSnapshot(ctx context.Context, workspaceID string) ([]byte, error)
}

// ActiveListener is told about every change of the active workspace. The id
// is empty when no workspace is active.
type ActiveListener func(ctx context.Context, workspaceID string)

// Session tracks the workspaces visible to one signed-in user and which one
// is active. It is safe for concurrent use; listeners run on the caller's
// goroutine after the state change is visible.
type Session struct {
	backend Backend

	mu         sync.Mutex
	workspaces []model.Workspace
	activeID   string
	listeners  []ActiveListener
}

// NewSession returns an empty session.
func NewSession(backend Backend) *Session {
	return &Session{backend: backend}
}

// OnActiveChange registers a listener.
func (s *Session) OnActiveChange(fn ActiveListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// ListWorkspaces reloads the list. The first workspace becomes active when
// none is. On failure the local list is cleared.
func (s *Session) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	workspaces, err := s.backend.ListWorkspaces(ctx)
	if err != nil {
		logger.Error("Error fetching projects", logger.ErrorField(err))
		s.mu.Lock()
		s.workspaces = nil
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.workspaces = append([]model.Workspace(nil), workspaces...)
	activate := ""
	if len(workspaces) > 0 && s.activeID == "" {
		activate = workspaces[0].ID
	}
	s.mu.Unlock()

	if activate != "" {
		s.SetActiveWorkspace(ctx, activate)
	}
	return workspaces, nil
}

// CreateWorkspace rejects names already present in the local list (exact,
// case-sensitive match) without calling the backend. The new workspace
// becomes active.
func (s *Session) CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error) {
	if name == "" {
		return nil, apperr.Validation("create workspace", "Project name is required")
	}
	s.mu.Lock()
	for _, ws := range s.workspaces {
		if ws.Name == name {
			s.mu.Unlock()
			return nil, apperr.Validation("create workspace", `Project with name "`+name+`" already exists.`)
		}
	}
	s.mu.Unlock()

	ws, err := s.backend.CreateWorkspace(ctx, name)
	if err != nil {
		logger.Error("Error creating project", logger.String("name", name), logger.ErrorField(err))
		return nil, err
	}

	s.mu.Lock()
	s.workspaces = append(s.workspaces, *ws)
	s.mu.Unlock()

	s.SetActiveWorkspace(ctx, ws.ID)
	return ws, nil
}

// SetActiveWorkspace is a local change. Listeners fire only when the id
// actually changes, so repeating the same id is a no-op.
func (s *Session) SetActiveWorkspace(ctx context.Context, workspaceID string) {
	s.mu.Lock()
	if s.activeID == workspaceID {
		s.mu.Unlock()
		return
	}
	s.activeID = workspaceID
	listeners := append([]ActiveListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, workspaceID)
	}
}

// AddCollaborator asks the backend to add the account behind email.
func (s *Session) AddCollaborator(ctx context.Context, workspaceID, email string) error {
	if workspaceID == "" || email == "" {
		return apperr.Validation("add collaborator", "Please enter an email and select a project.")
	}
	return s.backend.AddCollaborator(ctx, workspaceID, email)
}

// SaveSnapshot overwrites the stored snapshot and the local copy.
func (s *Session) SaveSnapshot(ctx context.Context, workspaceID string, snapshot []byte) error {
	if err := s.backend.SaveSnapshot(ctx, workspaceID, snapshot); err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.workspaces {
		if s.workspaces[i].ID == workspaceID {
			s.workspaces[i].Snapshot = append([]byte(nil), snapshot...)
		}
	}
	s.mu.Unlock()
	return nil
}

// LoadSnapshot fetches the stored snapshot of a workspace.
func (s *Session) LoadSnapshot(ctx context.Context, workspaceID string) ([]byte, error) {
	return s.backend.LoadSnapshot(ctx, workspaceID)
}

// Workspaces returns a copy of the local list.
func (s *Session) Workspaces() []model.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Workspace(nil), s.workspaces...)
}

// ActiveID returns the active workspace id, or "".
func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Clear forgets everything, e.g. on sign-out. Listeners see "".
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	s.workspaces = nil
	s.mu.Unlock()
	s.SetActiveWorkspace(ctx, "")
}
