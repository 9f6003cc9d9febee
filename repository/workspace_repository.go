package repository

import (
	"context"
	"errors"

	"stemboard/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkspaceRepository covers workspaces and their memberships.
type WorkspaceRepository interface {
	Create(ctx context.Context, ws *model.Workspace) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.Workspace, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Workspace, error)
	UpdateSnapshot(ctx context.Context, id string, snapshot []byte) error

	AddMember(ctx context.Context, member *model.Membership) error
	IsMember(ctx context.Context, workspaceID string, userID int64) (bool, error)
}

type gormWorkspaceRepository struct {
	db *gorm.DB
}

// NewGormWorkspaceRepository 创建 GORM 工作区仓库
func NewGormWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &gormWorkspaceRepository{db: db}
}

func (r *gormWorkspaceRepository) Create(ctx context.Context, ws *model.Workspace) error {
	return r.db.WithContext(ctx).Create(ws).Error
}

// Delete removes a workspace row. Only used to undo a half-finished create.
func (r *gormWorkspaceRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Workspace{}).Error
}

// GetByID returns (nil, nil) when the workspace does not exist.
func (r *gormWorkspaceRepository) GetByID(ctx context.Context, id string) (*model.Workspace, error) {
	var ws model.Workspace
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ws).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ws, nil
}

// ListByUser returns every workspace the user is a member of, oldest first.
func (r *gormWorkspaceRepository) ListByUser(ctx context.Context, userID int64) ([]model.Workspace, error) {
	var workspaces []model.Workspace
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&model.Membership{}).Select("project_id").Where("user_id = ?", userID)).
		Order("created_at ASC").
		Find(&workspaces).Error
	return workspaces, err
}

// UpdateSnapshot overwrites the stored document unconditionally.
func (r *gormWorkspaceRepository) UpdateSnapshot(ctx context.Context, id string, snapshot []byte) error {
	return r.db.WithContext(ctx).Model(&model.Workspace{}).
		Where("id = ?", id).
		Update("tldraw_snapshot", datatypes.JSON(snapshot)).Error
}

func (r *gormWorkspaceRepository) AddMember(ctx context.Context, member *model.Membership) error {
	err := r.db.WithContext(ctx).Create(member).Error
	if isDuplicateKey(err) {
		return ErrDuplicateMembership
	}
	return err
}

func (r *gormWorkspaceRepository) IsMember(ctx context.Context, workspaceID string, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("project_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count).Error
	return count > 0, err
}
