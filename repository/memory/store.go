// Package memory keeps every repository in process memory. It backs
// handler tests and single-process demos where MySQL is not available.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"stemboard/model"
	"stemboard/repository"
)

type memberKey struct {
	workspaceID string
	userID      int64
}

// Store implements repository.UserRepository, WorkspaceRepository and
// AssetRepository.
type Store struct {
	mu sync.RWMutex

	nextUserID int64
	users      []model.User

	workspaces []model.Workspace
	members    map[memberKey]bool

	assets []model.Asset
	stems  []model.Stem

	now func() time.Time
}

var (
	_ repository.UserRepository      = (*Store)(nil)
	_ repository.WorkspaceRepository = (*Store)(nil)
	_ repository.AssetRepository     = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{members: make(map[memberKey]bool), now: time.Now}
}

func (s *Store) CreateUser(_ context.Context, user *model.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return 0, repository.ErrDuplicateUser
		}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = s.now()
	user.UpdatedAt = user.CreatedAt
	s.users = append(s.users, *user)
	return user.ID, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) Create(_ context.Context, ws *model.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws.CreatedAt = s.now()
	ws.UpdatedAt = ws.CreatedAt
	s.workspaces = append(s.workspaces, *ws)
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ws := range s.workspaces {
		if ws.ID == id {
			s.workspaces = append(s.workspaces[:i], s.workspaces[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*model.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ws := range s.workspaces {
		if ws.ID == id {
			cp := ws
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListByUser(_ context.Context, userID int64) ([]model.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Workspace
	for _, ws := range s.workspaces {
		if s.members[memberKey{ws.ID, userID}] {
			out = append(out, ws)
		}
	}
	return out, nil
}

func (s *Store) UpdateSnapshot(_ context.Context, id string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.workspaces {
		if s.workspaces[i].ID == id {
			s.workspaces[i].Snapshot = append([]byte(nil), snapshot...)
			s.workspaces[i].UpdatedAt = s.now()
			return nil
		}
	}
	return fmt.Errorf("workspace %s not found", id)
}

func (s *Store) AddMember(_ context.Context, member *model.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{member.WorkspaceID, member.UserID}
	if s.members[key] {
		return repository.ErrDuplicateMembership
	}
	s.members[key] = true
	member.CreatedAt = s.now()
	return nil
}

func (s *Store) IsMember(_ context.Context, workspaceID string, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[memberKey{workspaceID, userID}], nil
}

func (s *Store) CreateAsset(_ context.Context, asset *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset.CreatedAt = s.now()
	cp := *asset
	cp.Stems = nil
	s.assets = append(s.assets, cp)
	return nil
}

func (s *Store) GetAsset(_ context.Context, id string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assets {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListAssets(_ context.Context, workspaceID string) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Asset
	for _, a := range s.assets {
		if a.WorkspaceID == workspaceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CreateStem(_ context.Context, stem *model.Stem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stem.CreatedAt = s.now()
	s.stems = append(s.stems, *stem)
	return nil
}

func (s *Store) ListStems(_ context.Context, assetIDs []string) ([]model.Stem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]bool, len(assetIDs))
	for _, id := range assetIDs {
		want[id] = true
	}
	var out []model.Stem
	for _, st := range s.stems {
		if want[st.AssetID] {
			out = append(out, st)
		}
	}
	return out, nil
}
