package media

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"stemboard/core/apperr"
	"stemboard/model"
	"stemboard/storage"
)

type memAssets struct {
	mu        sync.Mutex
	assets    []model.Asset
	stems     []model.Stem
	createErr error
}

func (m *memAssets) CreateAsset(_ context.Context, a *model.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	a.CreatedAt = time.Now()
	cp := *a
	cp.Stems = nil
	m.assets = append(m.assets, cp)
	return nil
}

func (m *memAssets) GetAsset(_ context.Context, id string) (*model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assets {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAssets) ListAssets(_ context.Context, workspaceID string) ([]model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Asset
	for _, a := range m.assets {
		if a.WorkspaceID == workspaceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAssets) CreateStem(_ context.Context, s *model.Stem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	s.CreatedAt = time.Now()
	m.stems = append(m.stems, *s)
	return nil
}

func (m *memAssets) ListStems(_ context.Context, ids []string) ([]model.Stem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Stem
	for _, s := range m.stems {
		if want[s.AssetID] {
			out = append(out, s)
		}
	}
	return out, nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	removed []string
	puts    int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memBlobs) PublicURL(key string) string {
	return storage.PublicURL("https://cdn.example.com/audio", key)
}

func (b *memBlobs) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.removed = append(b.removed, key)
	return nil
}

type memberKey struct {
	workspaceID string
	userID      int64
}

type memberSet map[memberKey]bool

func (m memberSet) RequireMember(_ context.Context, workspaceID string, userID int64) error {
	if workspaceID == "" {
		return apperr.Validation("check membership", "projectId is required")
	}
	if !m[memberKey{workspaceID, userID}] {
		return apperr.Forbidden("check membership", "You are not a member of this project")
	}
	return nil
}

// stubBackend records calls and replays canned results.
type stubBackend struct {
	mu      sync.Mutex
	calls   int
	assets  []model.Asset
	listErr error

	// block, when set, holds uploads until it is closed
	block   chan struct{}
	started chan struct{}
}

func (s *stubBackend) ListAssets(_ context.Context, _ string) ([]model.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.assets, s.listErr
}

func (s *stubBackend) UploadAsset(_ context.Context, workspaceID string, f File) (*model.Asset, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	s.wait()
	return &model.Asset{ID: "asset-" + f.Name, WorkspaceID: workspaceID, Name: f.Name}, nil
}

func (s *stubBackend) UploadStem(_ context.Context, parentID string, f File) (*model.Stem, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	s.wait()
	if parentID == "missing" {
		return nil, errors.New("upstream failure")
	}
	return &model.Stem{ID: "stem-" + f.Name, AssetID: parentID, Name: f.Name}, nil
}

func (s *stubBackend) wait() {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
}

func (s *stubBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
