package view

import (
	"context"
	"net/url"
	"sync"
)

// History is an in-memory browser location: a stack of query strings with a
// cursor, plus listeners notified on every location change.
type History struct {
	mu      sync.Mutex
	entries []url.Values
	index   int

	listeners map[int]func(url.Values)
	nextID    int
}

// NewHistory creates a history whose only entry is initial.
func NewHistory(initial url.Values) *History {
	return &History{
		entries:   []url.Values{cloneValues(initial)},
		listeners: make(map[int]func(url.Values)),
	}
}

// Location returns a copy of the current entry.
func (h *History) Location() url.Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneValues(h.entries[h.index])
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Index returns the cursor position.
func (h *History) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

// Listen registers fn for location changes. The returned func unregisters it.
func (h *History) Listen(fn func(url.Values)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Navigate pushes or replaces an entry. Implements paramsync.Navigator.
func (h *History) Navigate(ctx context.Context, v url.Values, replace bool) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context error as is
	}
	if replace {
		h.Replace(v)
	} else {
		h.Push(v)
	}
	return nil
}

// Push adds an entry after the cursor, dropping any forward entries.
func (h *History) Push(v url.Values) {
	h.mu.Lock()
	h.entries = append(h.entries[:h.index+1], cloneValues(v))
	h.index++
	loc, fns := h.snapshot()
	h.mu.Unlock()
	notify(fns, loc)
}

// Replace overwrites the current entry.
func (h *History) Replace(v url.Values) {
	h.mu.Lock()
	h.entries[h.index] = cloneValues(v)
	loc, fns := h.snapshot()
	h.mu.Unlock()
	notify(fns, loc)
}

// Back moves the cursor one entry back. Reports false at the first entry.
func (h *History) Back() bool { return h.move(-1) }

// Forward moves the cursor one entry forward. Reports false at the last entry.
func (h *History) Forward() bool { return h.move(1) }

func (h *History) move(delta int) bool {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = next
	loc, fns := h.snapshot()
	h.mu.Unlock()
	notify(fns, loc)
	return true
}

// snapshot copies the current location and listeners. Caller holds the lock.
func (h *History) snapshot() (url.Values, []func(url.Values)) {
	fns := make([]func(url.Values), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	return cloneValues(h.entries[h.index]), fns
}

func notify(fns []func(url.Values), loc url.Values) {
	for _, fn := range fns {
		fn(loc)
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
