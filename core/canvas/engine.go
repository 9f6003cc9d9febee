package canvas

import "sync"

// Engine is the canvas document the synchronizer persists. The snapshot is
// opaque: it is saved and restored byte for byte. Loading nil resets the
// engine to an empty document.
type Engine interface {
	Snapshot() ([]byte, error)
	LoadSnapshot(snapshot []byte) error
}

// MemoryEngine keeps the document in memory. Headless clients and tests use
// it in place of a rendering engine.
type MemoryEngine struct {
	mu    sync.Mutex
	doc   []byte
	loads int
}

// Snapshot returns a copy of the current document.
func (e *MemoryEngine) Snapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.doc...), nil
}

// LoadSnapshot replaces the document.
func (e *MemoryEngine) LoadSnapshot(snapshot []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc = append([]byte(nil), snapshot...)
	e.loads++
	return nil
}

// Set edits the document in place, as a user action would.
func (e *MemoryEngine) Set(doc []byte) {
	e.mu.Lock()
	e.doc = append([]byte(nil), doc...)
	e.mu.Unlock()
}

// Loads counts LoadSnapshot calls.
func (e *MemoryEngine) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}
