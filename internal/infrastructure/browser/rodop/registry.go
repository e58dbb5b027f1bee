package rodop

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
)

// ErrNotResolved means an element identifier has no live handle and its
// locator no longer matches anything on the page.
var ErrNotResolved = errors.New("element not resolved")

type regEntry struct {
	locator string
	el      *rod.Element
}

// Registry maps stable element identifiers to live DOM handles. Handles go
// stale whenever the page rerenders, so Resolve re-queries by locator before
// giving up.
type Registry struct {
	page    *rod.Page
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*regEntry
}

func NewRegistry(page *rod.Page, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Registry{
		page:    page,
		timeout: timeout,
		entries: make(map[string]*regEntry),
	}
}

// Register stores or refreshes an entry. A nil element is allowed; the
// locator alone can still resolve it later.
func (r *Registry) Register(id, locator string, el *rod.Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &regEntry{locator: locator, el: el}
}

func (r *Registry) Resolve(id string) (*rod.Element, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown id %s", ErrNotResolved, id)
	}

	if e.el != nil && isConnected(e.el) {
		return e.el, nil
	}

	if e.locator != "" {
		el, err := r.page.Timeout(r.timeout).Element(e.locator)
		if err == nil {
			r.mu.Lock()
			e.el = el
			r.mu.Unlock()
			return el, nil
		}
	}
	return nil, fmt.Errorf("%w: stale entry for %s", ErrNotResolved, id)
}

func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*regEntry)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func isConnected(el *rod.Element) bool {
	res, err := el.Eval(`() => this.isConnected`)
	return err == nil && res.Value.Bool()
}
