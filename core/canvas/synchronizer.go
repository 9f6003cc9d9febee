// Package canvas persists the board document of the active workspace.
package canvas

import (
	"context"
	"sync"
	"time"

	"stemboard/logger"

	"github.com/jonboulle/clockwork"
)

// DefaultDebounce is how long edits must pause before a save.
const DefaultDebounce = time.Second

// State of the synchronizer.
type State int

const (
	Idle State = iota
	Dirty
	Saving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	default:
		return "unknown"
	}
}

// Store persists snapshots. workspace.Session and the API client satisfy it.
type Store interface {
	SaveSnapshot(ctx context.Context, workspaceID string, snapshot []byte) error
	LoadSnapshot(ctx context.Context, workspaceID string) ([]byte, error)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithClock replaces the wall clock, e.g. with a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Synchronizer) { s.clock = c }
}

// WithDebounce sets the quiet period before a save.
func WithDebounce(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithSaveTimeout bounds each save call.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.saveTimeout = d
		}
	}
}

// WithSaveHook is called after every save attempt with its result.
func WithSaveHook(fn func(workspaceID string, err error)) Option {
	return func(s *Synchronizer) { s.onSave = fn }
}

// Synchronizer coalesces bursts of edits into one save per quiet period.
//
// MarkDirty moves Idle or Dirty to Dirty and restarts the timer. When the
// timer fires in Dirty the engine is snapshotted and saved (Saving), then the
// state returns to Idle whatever the outcome. Save errors are logged, never
// returned. An edit during Saving schedules another save.
//
// While SwitchWorkspace is loading the new snapshot, edits are dropped: the
// engine still shows the previous workspace and must not be saved under the
// new id.
type Synchronizer struct {
	engine      Engine
	store       Store
	clock       clockwork.Clock
	debounce    time.Duration
	saveTimeout time.Duration
	onSave      func(string, error)

	mu          sync.Mutex
	state       State
	workspaceID string
	timer       clockwork.Timer
	gen         uint64 // bumped by every edit and switch; stale timers compare against it
	loadGen     uint64 // bumped by every switch only
	loading     bool
}

// NewSynchronizer returns an idle synchronizer with no workspace.
func NewSynchronizer(engine Engine, store Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		engine:      engine,
		store:       store,
		clock:       clockwork.NewRealClock(),
		debounce:    DefaultDebounce,
		saveTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WorkspaceID returns the workspace being synchronized.
func (s *Synchronizer) WorkspaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaceID
}

// Loading reports whether a workspace switch is still fetching its snapshot.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// MarkDirty records an edit. Without a workspace, or while one is loading, it
// does nothing.
func (s *Synchronizer) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workspaceID == "" {
		return
	}
	if s.loading {
		logger.Debug("Edit dropped while snapshot loads", logger.Workspace(s.workspaceID))
		return
	}
	s.stopTimerLocked()
	s.gen++
	gen := s.gen
	s.state = Dirty
	s.timer = s.clock.AfterFunc(s.debounce, func() { s.flush(gen) })
}

// SwitchWorkspace drops any pending save, then loads the stored snapshot of
// workspaceID into the engine. An empty id detaches the synchronizer. If the
// load fails the synchronizer is detached as well, so the previous document
// is never saved under the new id.
func (s *Synchronizer) SwitchWorkspace(ctx context.Context, workspaceID string) error {
	s.mu.Lock()
	s.stopTimerLocked()
	s.gen++
	s.loadGen++
	load := s.loadGen
	s.state = Idle
	s.workspaceID = workspaceID
	s.loading = workspaceID != ""
	s.mu.Unlock()

	if workspaceID == "" {
		return nil
	}

	snapshot, err := s.store.LoadSnapshot(ctx, workspaceID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadGen != load {
		// a later switch owns the engine now
		return err
	}
	s.loading = false
	if err != nil {
		logger.Error("Failed to load snapshot", logger.Workspace(workspaceID), logger.ErrorField(err))
		s.workspaceID = ""
		return err
	}
	if err := s.engine.LoadSnapshot(snapshot); err != nil {
		logger.Error("Failed to apply snapshot", logger.Workspace(workspaceID), logger.ErrorField(err))
		s.workspaceID = ""
		return err
	}
	return nil
}

// OnActiveChange adapts SwitchWorkspace to a workspace session listener.
func (s *Synchronizer) OnActiveChange(ctx context.Context, workspaceID string) {
	_ = s.SwitchWorkspace(ctx, workspaceID)
}

// Flush saves immediately if an edit is pending, e.g. before shutdown.
func (s *Synchronizer) Flush() {
	s.mu.Lock()
	if s.state != Dirty {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	gen := s.gen
	s.mu.Unlock()
	s.flush(gen)
}

func (s *Synchronizer) flush(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != Dirty {
		s.mu.Unlock()
		return
	}
	s.state = Saving
	s.timer = nil
	workspaceID := s.workspaceID
	// the document and its id are captured together
	snapshot, err := s.engine.Snapshot()
	s.mu.Unlock()

	if err == nil {
		err = s.save(workspaceID, snapshot)
	}
	if err != nil {
		logger.Error("Failed to save snapshot", logger.Workspace(workspaceID), logger.ErrorField(err))
	} else {
		logger.Debug("Snapshot saved", logger.Workspace(workspaceID))
	}

	s.mu.Lock()
	if s.state == Saving {
		s.state = Idle
	}
	s.mu.Unlock()

	if s.onSave != nil {
		s.onSave(workspaceID, err)
	}
}

func (s *Synchronizer) save(workspaceID string, snapshot []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	return s.store.SaveSnapshot(ctx, workspaceID, snapshot)
}

func (s *Synchronizer) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
