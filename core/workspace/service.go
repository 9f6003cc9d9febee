package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"stemboard/core/apperr"
	"stemboard/logger"
	"stemboard/model"
	"stemboard/repository"

	"github.com/google/uuid"
)

// UserDirectory resolves collaborator emails to accounts.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// SnapshotCache is a read-through cache for stored snapshots.
type SnapshotCache interface {
	Get(ctx context.Context, workspaceID string) ([]byte, bool, error)
	Set(ctx context.Context, workspaceID string, snapshot []byte) error
}

// Notifier fans board events out to connected collaborators.
type Notifier interface {
	Publish(ctx context.Context, event model.BoardEvent) error
}

// Service implements the server side of workspace management. It is
// stateless; every call names the acting user.
type Service struct {
	repo     repository.WorkspaceRepository
	users    UserDirectory
	cache    SnapshotCache
	notifier Notifier
}

// NewService wires the service. cache and notifier may be nil.
func NewService(repo repository.WorkspaceRepository, users UserDirectory, cache SnapshotCache, notifier Notifier) *Service {
	return &Service{repo: repo, users: users, cache: cache, notifier: notifier}
}

// List returns every workspace the user is a member of.
func (s *Service) List(ctx context.Context, userID int64) ([]model.Workspace, error) {
	workspaces, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		logger.Error("Failed to list workspaces", logger.User(userID), logger.ErrorField(err))
		return nil, apperr.Store("list workspaces", err)
	}
	if workspaces == nil {
		workspaces = []model.Workspace{}
	}
	return workspaces, nil
}

// Create makes a workspace with no snapshot and a membership for the creator.
// If the membership insert fails the workspace row is deleted again.
func (s *Service) Create(ctx context.Context, userID int64, name string) (*model.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("create workspace", "Project name is required")
	}

	ws := &model.Workspace{ID: uuid.NewString(), Name: name}
	if err := s.repo.Create(ctx, ws); err != nil {
		logger.Error("Failed to create workspace", logger.User(userID), logger.ErrorField(err))
		return nil, apperr.Store("create workspace", err)
	}

	member := &model.Membership{WorkspaceID: ws.ID, UserID: userID}
	if err := s.repo.AddMember(ctx, member); err != nil {
		logger.Error("Failed to associate creator with workspace, rolling back",
			logger.Workspace(ws.ID), logger.User(userID), logger.ErrorField(err))
		if derr := s.repo.Delete(ctx, ws.ID); derr != nil {
			logger.Error("Failed to delete orphaned workspace", logger.Workspace(ws.ID), logger.ErrorField(derr))
		}
		return nil, apperr.Store("create workspace membership", err)
	}

	logger.Info("Workspace created", logger.Workspace(ws.ID), logger.User(userID), logger.String("name", ws.Name))
	return ws, nil
}

// RequireMember fails with ErrForbidden unless userID belongs to the workspace.
func (s *Service) RequireMember(ctx context.Context, workspaceID string, userID int64) error {
	if workspaceID == "" {
		return apperr.Validation("check membership", "projectId is required")
	}
	ok, err := s.repo.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return apperr.Store("check membership", err)
	}
	if !ok {
		return apperr.Forbidden("check membership", "You are not a member of this project")
	}
	return nil
}

// AddCollaborator grants the account registered under email access to the
// workspace. The caller must already be a member.
func (s *Service) AddCollaborator(ctx context.Context, callerID int64, workspaceID, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("add collaborator", "Collaborator email is required")
	}
	if err := s.RequireMember(ctx, workspaceID, callerID); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return apperr.Store("look up collaborator", err)
	}
	if user == nil {
		return apperr.NotFound("add collaborator", "Collaborator user not found. Please ensure they have signed up.")
	}

	err = s.repo.AddMember(ctx, &model.Membership{WorkspaceID: workspaceID, UserID: user.ID})
	if errors.Is(err, repository.ErrDuplicateMembership) {
		return apperr.Conflict("add collaborator", "User is already a collaborator on this project.")
	}
	if err != nil {
		return apperr.Store("add collaborator", err)
	}

	logger.Info("Collaborator added", logger.Workspace(workspaceID), logger.User(callerID), logger.Int64("collaboratorId", user.ID))
	s.publish(ctx, model.EventCollaboratorAdded, workspaceID, callerID, map[string]any{"userId": user.ID, "email": user.Email})
	return nil
}

// SaveSnapshot overwrites the stored snapshot; the last writer wins.
func (s *Service) SaveSnapshot(ctx context.Context, callerID int64, workspaceID string, snapshot []byte) error {
	if workspaceID == "" || len(snapshot) == 0 {
		return apperr.Validation("save snapshot", "projectId and snapshot are required")
	}
	if !json.Valid(snapshot) {
		return apperr.Validation("save snapshot", "snapshot must be JSON")
	}
	if err := s.RequireMember(ctx, workspaceID, callerID); err != nil {
		return err
	}

	if err := s.repo.UpdateSnapshot(ctx, workspaceID, snapshot); err != nil {
		logger.Error("Failed to update snapshot", logger.Workspace(workspaceID), logger.ErrorField(err))
		return apperr.Store("save snapshot", err)
	}
	s.cacheSet(ctx, workspaceID, snapshot)
	s.publish(ctx, model.EventSnapshotUpdated, workspaceID, callerID, nil)
	return nil
}

// LoadSnapshot returns the stored snapshot verbatim, or nil if none was saved.
func (s *Service) LoadSnapshot(ctx context.Context, callerID int64, workspaceID string) ([]byte, error) {
	if err := s.RequireMember(ctx, workspaceID, callerID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if snap, ok, err := s.cache.Get(ctx, workspaceID); err != nil {
			logger.Warn("Snapshot cache read failed", logger.Workspace(workspaceID), logger.ErrorField(err))
		} else if ok {
			return snap, nil
		}
	}

	ws, err := s.repo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, apperr.Store("load snapshot", err)
	}
	if ws == nil {
		return nil, apperr.NotFound("load snapshot", "project not found")
	}
	if !ws.HasSnapshot() {
		return nil, nil
	}
	s.cacheSet(ctx, workspaceID, ws.Snapshot)
	return []byte(ws.Snapshot), nil
}

// ForUser binds the service to one account so it satisfies Backend.
func (s *Service) ForUser(userID int64) Backend {
	return &boundService{svc: s, userID: userID}
}

func (s *Service) cacheSet(ctx context.Context, workspaceID string, snapshot []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, workspaceID, snapshot); err != nil {
		logger.Warn("Snapshot cache write failed", logger.Workspace(workspaceID), logger.ErrorField(err))
	}
}

func (s *Service) publish(ctx context.Context, typ model.EventType, workspaceID string, userID int64, data any) {
	if s.notifier == nil {
		return
	}
	event := model.BoardEvent{Type: typ, WorkspaceID: workspaceID, UserID: userID, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			logger.Warn("Failed to encode board event", logger.ErrorField(err))
			return
		}
		event.Data = raw
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish board event", logger.String("type", string(typ)), logger.Workspace(workspaceID), logger.ErrorField(err))
	}
}

type boundService struct {
	svc    *Service
	userID int64
}

func (b *boundService) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	return b.svc.List(ctx, b.userID)
}

func (b *boundService) CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error) {
	return b.svc.Create(ctx, b.userID, name)
}

func (b *boundService) AddCollaborator(ctx context.Context, workspaceID, email string) error {
	return b.svc.AddCollaborator(ctx, b.userID, workspaceID, email)
}

func (b *boundService) SaveSnapshot(ctx context.Context, workspaceID string, snapshot []byte) error {
	return b.svc.SaveSnapshot(ctx, b.userID, workspaceID, snapshot)
}

func (b *boundService) LoadSnapshot(ctx context.Context, workspaceID string) ([]byte, error) {
	return b.svc.LoadSnapshot(ctx, b.userID, workspaceID)
}
