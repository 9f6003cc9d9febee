package media

import (
	"context"
	"sync"

	"stemboard/core/apperr"
	"stemboard/logger"
	"stemboard/model"
)

// Backend is what a Registry needs from the server. ListAssets returns assets
// with their stems already attached.
type Backend interface {
	ListAssets(ctx context.Context, workspaceID string) ([]model.Asset, error)
	UploadAsset(ctx context.Context, workspaceID string, f File) (*model.Asset, error)
	UploadStem(ctx context.Context, parentID string, f File) (*model.Stem, error)
}

// Registry is the local view of the active workspace's audio assets.
//
// Uploads are not queued; concurrent calls race. IsUploading is a plain flag,
// not a counter: with overlapping uploads it turns false as soon as the first
// one finishes.
type Registry struct {
	backend  Backend
	maxBytes int64

	mu          sync.Mutex
	workspaceID string
	assets      []model.Asset
	uploading   bool
}

// NewRegistry returns an empty registry with no active workspace.
func NewRegistry(backend Backend) *Registry {
	return &Registry{backend: backend, maxBytes: MaxUploadBytes}
}

// Refresh makes workspaceID the registry's scope and reloads its assets. Any
// failure leaves the registry empty rather than showing the previous
// workspace's assets. An empty id just clears it.
func (r *Registry) Refresh(ctx context.Context, workspaceID string) ([]model.Asset, error) {
	r.mu.Lock()
	r.workspaceID = workspaceID
	r.assets = nil
	r.mu.Unlock()

	if workspaceID == "" {
		return nil, nil
	}

	assets, err := r.backend.ListAssets(ctx, workspaceID)
	if err != nil {
		logger.Error("Error fetching demos", logger.Workspace(workspaceID), logger.ErrorField(err))
		return nil, err
	}

	scoped := make([]model.Asset, 0, len(assets))
	for _, a := range assets {
		if a.WorkspaceID != workspaceID {
			continue
		}
		scoped = append(scoped, cloneAsset(a))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a later Refresh for another workspace wins
	if r.workspaceID != workspaceID {
		return nil, nil
	}
	r.assets = scoped
	return cloneAssets(scoped), nil
}

// OnActiveChange adapts Refresh to a workspace session listener.
func (r *Registry) OnActiveChange(ctx context.Context, workspaceID string) {
	_, _ = r.Refresh(ctx, workspaceID)
}

// UploadAsset validates f before any backend call, uploads it into the active
// workspace and appends the new asset locally.
func (r *Registry) UploadAsset(ctx context.Context, f File) (*model.Asset, error) {
	r.mu.Lock()
	workspaceID := r.workspaceID
	r.mu.Unlock()

	if workspaceID == "" {
		return nil, apperr.Validation("upload demo", "Please select a project first.")
	}
	if err := Validate(f, r.maxBytes); err != nil {
		return nil, err
	}

	r.setUploading(true)
	defer r.setUploading(false)

	asset, err := r.backend.UploadAsset(ctx, workspaceID, f)
	if err != nil {
		logger.Error("Error uploading demo", logger.Workspace(workspaceID), logger.String("file", f.Name), logger.ErrorField(err))
		return nil, err
	}
	added := cloneAsset(*asset)

	r.mu.Lock()
	if r.workspaceID == added.WorkspaceID {
		r.assets = append(r.assets, added)
	}
	r.mu.Unlock()
	return &added, nil
}

// UploadDerivedAsset uploads a stem of parentID and appends it to the parent's
// local stem list. Only the parent id is checked.
func (r *Registry) UploadDerivedAsset(ctx context.Context, f File, parentID string) (*model.Stem, error) {
	if parentID == "" {
		return nil, apperr.Validation("upload stem", "Parent demo ID is required.")
	}

	r.setUploading(true)
	defer r.setUploading(false)

	stem, err := r.backend.UploadStem(ctx, parentID, f)
	if err != nil {
		logger.Error("Error uploading stem", logger.String("demoId", parentID), logger.String("file", f.Name), logger.ErrorField(err))
		return nil, err
	}

	r.mu.Lock()
	for i := range r.assets {
		if r.assets[i].ID == parentID {
			r.assets[i].Stems = append(r.assets[i].Stems, *stem)
			break
		}
	}
	r.mu.Unlock()
	return stem, nil
}

// IsUploading reports whether an upload is in progress.
func (r *Registry) IsUploading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uploading
}

// WorkspaceID is the workspace the registry is scoped to.
func (r *Registry) WorkspaceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workspaceID
}

// Assets returns a copy of the local asset list.
func (r *Registry) Assets() []model.Asset {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAssets(r.assets)
}

// Find looks an asset up by id.
func (r *Registry) Find(id string) (model.Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		if a.ID == id {
			return cloneAsset(a), true
		}
	}
	return model.Asset{}, false
}

func (r *Registry) setUploading(v bool) {
	r.mu.Lock()
	r.uploading = v
	r.mu.Unlock()
}

func cloneAsset(a model.Asset) model.Asset {
	stems := make([]model.Stem, len(a.Stems))
	copy(stems, a.Stems)
	a.Stems = stems
	return a
}

func cloneAssets(assets []model.Asset) []model.Asset {
	if assets == nil {
		return nil
	}
	out := make([]model.Asset, len(assets))
	for i, a := range assets {
		out[i] = cloneAsset(a)
	}
	return out
}
