package media

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"stemboard/core/apperr"
	"stemboard/logger"
	"stemboard/model"
	"stemboard/repository"
	"stemboard/storage"

	"github.com/google/uuid"
)

// BlobStore holds the raw audio bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PublicURL(key string) string
	Remove(ctx context.Context, key string) error
}

// MembershipChecker is satisfied by workspace.Service.
type MembershipChecker interface {
	RequireMember(ctx context.Context, workspaceID string, userID int64) error
}

// Notifier publishes board events; see workspace.Notifier.
type Notifier interface {
	Publish(ctx context.Context, event model.BoardEvent) error
}

// Service is the server side of the media registry.
type Service struct {
	assets   repository.AssetRepository
	blobs    BlobStore
	members  MembershipChecker
	notifier Notifier
	maxBytes int64
}

// NewService wires the service. notifier may be nil; maxBytes <= 0 means
// MaxUploadBytes.
func NewService(assets repository.AssetRepository, blobs BlobStore, members MembershipChecker, notifier Notifier, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	return &Service{assets: assets, blobs: blobs, members: members, notifier: notifier, maxBytes: maxBytes}
}

// MaxBytes is the configured primary upload limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// ListWithStems returns the workspace's assets with their stems joined in.
func (s *Service) ListWithStems(ctx context.Context, userID int64, workspaceID string) ([]model.Asset, error) {
	if err := s.members.RequireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	assets, err := s.assets.ListAssets(ctx, workspaceID)
	if err != nil {
		logger.Error("Failed to list demos", logger.Workspace(workspaceID), logger.ErrorField(err))
		return nil, apperr.Store("list demos", err)
	}
	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	stems, err := s.assets.ListStems(ctx, ids)
	if err != nil {
		logger.Error("Failed to list stems", logger.Workspace(workspaceID), logger.ErrorField(err))
		return nil, apperr.Store("list stems", err)
	}
	return model.JoinStems(assets, stems), nil
}

// UploadAsset stores a primary recording under <workspace>/<asset>/<name>
// and records it.
func (s *Service) UploadAsset(ctx context.Context, userID int64, workspaceID string, f File) (*model.Asset, error) {
	if workspaceID == "" {
		return nil, apperr.Validation("upload demo", "projectId is required")
	}
	if err := Validate(f, s.maxBytes); err != nil {
		return nil, err
	}
	if err := s.members.RequireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	asset := &model.Asset{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        f.Name,
	}
	asset.ObjectKey = storage.AssetKey(workspaceID, asset.ID, f.Name)
	if err := s.blobs.Put(ctx, asset.ObjectKey, f.Body, f.Size, f.ContentType); err != nil {
		logger.Error("Failed to upload demo", logger.Workspace(workspaceID), logger.String("key", asset.ObjectKey), logger.ErrorField(err))
		return nil, apperr.Store("upload demo", err)
	}
	asset.MasterURL = s.blobs.PublicURL(asset.ObjectKey)

	if err := s.assets.CreateAsset(ctx, asset); err != nil {
		logger.Error("Failed to save demo record", logger.Workspace(workspaceID), logger.ErrorField(err))
		s.removeBlob(ctx, asset.ObjectKey)
		return nil, apperr.Store("save demo", err)
	}
	asset.Stems = []model.Stem{}

	logger.Info("Demo uploaded", logger.Workspace(workspaceID), logger.User(userID),
		logger.String("assetId", asset.ID), logger.Int64("size", f.Size))
	s.publish(ctx, model.EventAssetAdded, workspaceID, userID, asset)
	return asset, nil
}

// UploadStem stores a derived track under <parent>/stems/<stem>-<name>.
// Size and type are not re-checked here.
func (s *Service) UploadStem(ctx context.Context, userID int64, parentID string, f File) (*model.Stem, error) {
	if parentID == "" {
		return nil, apperr.Validation("upload stem", "Parent demo ID is required.")
	}
	parent, err := s.assets.GetAsset(ctx, parentID)
	if err != nil {
		return nil, apperr.Store("load parent demo", err)
	}
	if parent == nil {
		return nil, apperr.NotFound("upload stem", "demo not found")
	}
	if err := s.members.RequireMember(ctx, parent.WorkspaceID, userID); err != nil {
		return nil, err
	}

	stem := &model.Stem{
		ID:      uuid.NewString(),
		AssetID: parentID,
		Name:    f.Name,
	}
	stem.ObjectKey = storage.StemKey(parentID, stem.ID, f.Name)
	if err := s.blobs.Put(ctx, stem.ObjectKey, f.Body, f.Size, f.ContentType); err != nil {
		logger.Error("Failed to upload stem", logger.String("demoId", parentID), logger.ErrorField(err))
		return nil, apperr.Store("upload stem", err)
	}
	stem.URL = s.blobs.PublicURL(stem.ObjectKey)

	if err := s.assets.CreateStem(ctx, stem); err != nil {
		logger.Error("Failed to save stem record", logger.String("demoId", parentID), logger.ErrorField(err))
		s.removeBlob(ctx, stem.ObjectKey)
		return nil, apperr.Store("save stem", err)
	}

	logger.Info("Stem uploaded", logger.Workspace(parent.WorkspaceID), logger.User(userID),
		logger.String("demoId", parentID), logger.String("stemId", stem.ID))
	s.publish(ctx, model.EventStemAdded, parent.WorkspaceID, userID, stem)
	return stem, nil
}

// ForUser binds the service to one account so it satisfies Backend.
func (s *Service) ForUser(userID int64) Backend {
	return &boundService{svc: s, userID: userID}
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if err := s.blobs.Remove(ctx, key); err != nil {
		logger.Warn("Failed to remove orphaned object", logger.String("key", key), logger.ErrorField(err))
	}
}

func (s *Service) publish(ctx context.Context, typ model.EventType, workspaceID string, userID int64, data any) {
	if s.notifier == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Warn("Failed to encode board event", logger.ErrorField(err))
		return
	}
	event := model.BoardEvent{Type: typ, WorkspaceID: workspaceID, UserID: userID, Data: raw, Timestamp: time.Now().UnixMilli()}
	if err := s.notifier.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish board event", logger.String("type", string(typ)), logger.Workspace(workspaceID), logger.ErrorField(err))
	}
}

type boundService struct {
	svc    *Service
	userID int64
}

func (b *boundService) ListAssets(ctx context.Context, workspaceID string) ([]model.Asset, error) {
	return b.svc.ListWithStems(ctx, b.userID, workspaceID)
}

func (b *boundService) UploadAsset(ctx context.Context, workspaceID string, f File) (*model.Asset, error) {
	return b.svc.UploadAsset(ctx, b.userID, workspaceID, f)
}

func (b *boundService) UploadStem(ctx context.Context, parentID string, f File) (*model.Stem, error) {
	return b.svc.UploadStem(ctx, b.userID, parentID, f)
}
