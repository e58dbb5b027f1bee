package pageagent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"browser-operator/internal/domain/entity"
)

// rowTolerance groups actions whose vertical positions differ by less than
// this many pixels onto the same visual row.
const rowTolerance = 20.0

// ClickFunc performs the click when a scanned action is selected.
type ClickFunc func(ctx context.Context, actionID string) error

// AnnounceFunc voices scanner state to the user.
type AnnounceFunc func(text string)

// RefreshFunc re-reads the page's current actions.
type RefreshFunc func(ctx context.Context) ([]entity.Action, error)

// SwitchScanner steps through the page's actions one at a time for users on
// single-switch input. Movement wraps at both ends, and risky actions take
// two selects: the first warns, the second clicks.
type SwitchScanner struct {
	click    ClickFunc
	announce AnnounceFunc
	refresh  RefreshFunc

	mu      sync.Mutex
	active  bool
	actions []entity.Action
	idx     int
	armed   string // risky action id awaiting the confirming select
}

func NewSwitchScanner(click ClickFunc, announce AnnounceFunc, refresh RefreshFunc) *SwitchScanner {
	return &SwitchScanner{click: click, announce: announce, refresh: refresh, idx: -1}
}

// Start loads the actions in visual reading order and lands on the first one.
func (s *SwitchScanner) Start(ctx context.Context) error {
	actions, err := s.refresh(ctx)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		s.announce("Nothing to scan on this page.")
		return nil
	}

	sortReadingOrder(actions)

	s.mu.Lock()
	s.active = true
	s.actions = actions
	s.idx = 0
	s.armed = ""
	cur := s.actions[0]
	n := len(s.actions)
	s.mu.Unlock()

	s.announce(fmt.Sprintf("Scanning %d items. %s", n, describe(cur)))
	return nil
}

func (s *SwitchScanner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Next moves forward, wrapping from the last item to the first.
func (s *SwitchScanner) Next() {
	s.step(1)
}

// Previous moves backward, wrapping from the first item to the last.
func (s *SwitchScanner) Previous() {
	s.step(-1)
}

func (s *SwitchScanner) step(delta int) {
	s.mu.Lock()
	if !s.active || len(s.actions) == 0 {
		s.mu.Unlock()
		return
	}
	s.idx = (s.idx + delta + len(s.actions)) % len(s.actions)
	s.armed = ""
	cur := s.actions[s.idx]
	s.mu.Unlock()

	s.announce(describe(cur))
}

// Select activates the current item. A risky item announces a warning and
// arms itself; the next Select on the same item performs the click. Moving
// away disarms it.
func (s *SwitchScanner) Select(ctx context.Context) error {
	s.mu.Lock()
	if !s.active || s.idx < 0 || s.idx >= len(s.actions) {
		s.mu.Unlock()
		return nil
	}
	cur := s.actions[s.idx]
	if cur.Risky && s.armed != cur.ID {
		s.armed = cur.ID
		s.mu.Unlock()
		s.announce(fmt.Sprintf("%s looks like an important action. Select again to confirm.", cur.Label))
		return nil
	}
	s.armed = ""
	s.mu.Unlock()

	if err := s.click(ctx, cur.ID); err != nil {
		s.announce(fmt.Sprintf("Could not activate %s.", cur.Label))
		return err
	}
	s.announce(fmt.Sprintf("Activated %s.", cur.Label))

	// The click usually changes the page; rescan so positions stay honest.
	return s.Start(ctx)
}

func (s *SwitchScanner) Stop() {
	s.mu.Lock()
	s.active = false
	s.actions = nil
	s.idx = -1
	s.armed = ""
	s.mu.Unlock()
	s.announce("Scanning stopped.")
}

// Current returns the highlighted action, if any.
func (s *SwitchScanner) Current() (entity.Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.idx < 0 || s.idx >= len(s.actions) {
		return entity.Action{}, false
	}
	return s.actions[s.idx], true
}

// sortReadingOrder orders top-to-bottom with a row tolerance, then left to
// right within a row.
func sortReadingOrder(actions []entity.Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		yi, yj := actions[i].Box.Y, actions[j].Box.Y
		if diff := yi - yj; diff > rowTolerance || diff < -rowTolerance {
			return yi < yj
		}
		return actions[i].Box.X < actions[j].Box.X
	})
}

func describe(a entity.Action) string {
	switch a.Role {
	case "link":
		return fmt.Sprintf("Link: %s.", a.Label)
	case "button":
		return fmt.Sprintf("Button: %s.", a.Label)
	default:
		return fmt.Sprintf("%s: %s.", a.Role, a.Label)
	}
}
