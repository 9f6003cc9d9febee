package playback

import (
	"sync"
	"testing"
)

type fakeHandle struct {
	name   string
	pauses int
	onStop func()
}

func (f *fakeHandle) Pause() {
	f.pauses++
	if f.onStop != nil {
		f.onStop()
	}
}

func TestAcquirePausesPrevious(t *testing.T) {
	c := New()
	h1 := &fakeHandle{name: "h1"}
	h2 := &fakeHandle{name: "h2"}

	c.Acquire(h1)
	if c.Current() != h1 {
		t.Fatal("h1 should hold the slot")
	}
	c.Acquire(h2)
	if h1.pauses != 1 {
		t.Fatalf("h1 paused %d times, want 1", h1.pauses)
	}
	if h2.pauses != 0 {
		t.Fatal("h2 must not be paused")
	}
	if c.Current() != h2 {
		t.Fatal("h2 should hold the slot")
	}
}

func TestAcquireSameHandleDoesNotPause(t *testing.T) {
	c := New()
	h := &fakeHandle{}
	c.Acquire(h)
	c.Acquire(h)
	if h.pauses != 0 {
		t.Fatalf("re-acquiring must not pause, got %d", h.pauses)
	}
}

func TestReleaseOnlyClearsHolder(t *testing.T) {
	c := New()
	h1 := &fakeHandle{}
	h2 := &fakeHandle{}
	c.Acquire(h1)
	c.Acquire(h2)

	c.Release(h1)
	if c.Current() != h2 {
		t.Fatal("stale release must not clear the new holder")
	}
	c.Release(h2)
	if c.Current() != nil {
		t.Fatal("holder release should clear the slot")
	}
}

func TestPreviousIsPausedBeforeHandover(t *testing.T) {
	c := New()
	h1 := &fakeHandle{}
	h2 := &fakeHandle{}
	var seen Handle
	h1.onStop = func() { seen = c.Current() }

	c.Acquire(h1)
	c.Acquire(h2)
	if h1.pauses != 1 {
		t.Fatalf("h1 paused %d times, want 1", h1.pauses)
	}
	if seen != h1 {
		t.Fatalf("holder during h1.Pause = %v, want h1", seen)
	}
	if c.Current() != h2 {
		t.Fatal("h2 should hold the slot")
	}
}

func TestPauseMayReleaseReentrantly(t *testing.T) {
	c := New()
	h1 := &fakeHandle{}
	h2 := &fakeHandle{}
	var seen Handle = h2
	h1.onStop = func() {
		c.Release(h1)
		seen = c.Current()
	}

	c.Acquire(h1)
	c.Acquire(h2)
	if seen != nil {
		t.Fatal("releasing inside Pause should empty the slot before h2 is recorded")
	}
	if c.Current() != h2 {
		t.Fatal("h2 should hold the slot after h1 released itself")
	}
}

type countingHandle struct {
	mu     sync.Mutex
	pauses int
}

func (h *countingHandle) Pause() {
	h.mu.Lock()
	h.pauses++
	h.mu.Unlock()
}

func TestConcurrentAcquireKeepsSingleHolder(t *testing.T) {
	c := New()
	handles := make([]*countingHandle, 32)
	for i := range handles {
		handles[i] = &countingHandle{}
	}

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *countingHandle) {
			defer wg.Done()
			c.Acquire(h)
		}(h)
	}
	wg.Wait()

	holder := c.Current()
	paused := 0
	for _, h := range handles {
		if Handle(h) == holder {
			if h.pauses != 0 {
				t.Fatal("final holder must not be paused")
			}
			continue
		}
		paused += h.pauses
	}
	if paused != len(handles)-1 {
		t.Fatalf("expected %d pauses, got %d", len(handles)-1, paused)
	}
}
