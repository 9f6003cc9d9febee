// Package playback makes sure only one audio element plays at a time.
package playback

import "sync"

// Handle is anything that can be told to stop playing.
type Handle interface {
	Pause()
}

// Coordinator holds the currently playing handle, if any.
type Coordinator struct {
	acquire sync.Mutex // serializes Acquire calls
	mu      sync.Mutex
	current Handle
}

// New returns a coordinator with nothing playing.
func New() *Coordinator {
	return &Coordinator{}
}

// Acquire makes h the playing handle. Whichever other handle held the slot
// is paused first, and only then is h recorded. Pause runs without the state
// lock so a handle may call Release from inside it, but it must not call
// Acquire.
func (c *Coordinator) Acquire(h Handle) {
	if h == nil {
		return
	}
	c.acquire.Lock()
	defer c.acquire.Unlock()

	c.mu.Lock()
	prev := c.current
	c.mu.Unlock()

	if prev == h {
		return
	}
	if prev != nil {
		prev.Pause()
	}

	c.mu.Lock()
	c.current = h
	c.mu.Unlock()
}

// Release clears the slot if h still holds it. Handles call this when they
// pause or reach the end on their own.
func (c *Coordinator) Release(h Handle) {
	c.mu.Lock()
	if c.current == h {
		c.current = nil
	}
	c.mu.Unlock()
}

// Current returns the playing handle or nil.
func (c *Coordinator) Current() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
