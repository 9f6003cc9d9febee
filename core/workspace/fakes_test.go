package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"stemboard/model"
	"stemboard/repository"
)

type memberKey struct {
	workspaceID string
	userID      int64
}

// memRepo is an in-memory WorkspaceRepository that enforces membership
// uniqueness the way the unique index does.
type memRepo struct {
	mu          sync.Mutex
	workspaces  map[string]*model.Workspace
	members     map[memberKey]bool
	addMemberFn func(*model.Membership) error
	order       []string
	deleted     []string
	listErr     error
}

func newMemRepo() *memRepo {
	return &memRepo{workspaces: map[string]*model.Workspace{}, members: map[memberKey]bool{}}
}

func (r *memRepo) Create(_ context.Context, ws *model.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws.CreatedAt = time.Now()
	cp := *ws
	r.workspaces[ws.ID] = &cp
	r.order = append(r.order, ws.ID)
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*model.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return nil, nil
	}
	cp := *ws
	return &cp, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID int64) ([]model.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []model.Workspace
	for _, id := range r.order {
		ws, ok := r.workspaces[id]
		if ok && r.members[memberKey{id, userID}] {
			out = append(out, *ws)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateSnapshot(_ context.Context, id string, snapshot []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return errors.New("no such workspace")
	}
	ws.Snapshot = append([]byte(nil), snapshot...)
	return nil
}

func (r *memRepo) AddMember(_ context.Context, m *model.Membership) error {
	if r.addMemberFn != nil {
		if err := r.addMemberFn(m); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memberKey{m.WorkspaceID, m.UserID}
	if r.members[key] {
		return repository.ErrDuplicateMembership
	}
	r.members[key] = true
	return nil
}

func (r *memRepo) IsMember(_ context.Context, workspaceID string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[memberKey{workspaceID, userID}], nil
}

type userDir map[string]*model.User

func (d userDir) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return d[email], nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func (c *memCache) Get(_ context.Context, id string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[id]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, id string, snap []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[id] = snap
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.BoardEvent
}

func (n *recordingNotifier) Publish(_ context.Context, e model.BoardEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

// countingBackend wraps a Backend and counts calls per method.
type countingBackend struct {
	Backend
	calls map[string]int
}

func newCountingBackend(b Backend) *countingBackend {
	return &countingBackend{Backend: b, calls: map[string]int{}}
}

func (c *countingBackend) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	c.calls["list"]++
	return c.Backend.ListWorkspaces(ctx)
}

func (c *countingBackend) CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error) {
	c.calls["create"]++
	return c.Backend.CreateWorkspace(ctx, name)
}
