package repository

import (
	"context"
	"errors"

	"stemboard/model"

	"gorm.io/gorm"
)

// AssetRepository covers demos and their stems.
type AssetRepository interface {
	CreateAsset(ctx context.Context, asset *model.Asset) error
	GetAsset(ctx context.Context, id string) (*model.Asset, error)
	ListAssets(ctx context.Context, workspaceID string) ([]model.Asset, error)

	CreateStem(ctx context.Context, stem *model.Stem) error
	ListStems(ctx context.Context, assetIDs []string) ([]model.Stem, error)
}

type gormAssetRepository struct {
	db *gorm.DB
}

// NewGormAssetRepository 创建 GORM 音频资源仓库
func NewGormAssetRepository(db *gorm.DB) AssetRepository {
	return &gormAssetRepository{db: db}
}

func (r *gormAssetRepository) CreateAsset(ctx context.Context, asset *model.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// GetAsset returns (nil, nil) when the asset does not exist.
func (r *gormAssetRepository) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	var asset model.Asset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &asset, nil
}

// ListAssets returns the workspace's assets in upload order.
func (r *gormAssetRepository) ListAssets(ctx context.Context, workspaceID string) ([]model.Asset, error) {
	var assets []model.Asset
	err := r.db.WithContext(ctx).
		Where("project_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&assets).Error
	return assets, err
}

func (r *gormAssetRepository) CreateStem(ctx context.Context, stem *model.Stem) error {
	return r.db.WithContext(ctx).Create(stem).Error
}

// ListStems returns the stems owned by any of assetIDs, in upload order.
func (r *gormAssetRepository) ListStems(ctx context.Context, assetIDs []string) ([]model.Stem, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	var stems []model.Stem
	err := r.db.WithContext(ctx).
		Where("demo_id IN ?", assetIDs).
		Order("created_at ASC").
		Find(&stems).Error
	return stems, err
}
