package pageagent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-operator/internal/domain/entity"
)

func scanActions() []entity.Action {
	// laid out as two rows: Logo | Search on top, then Buy below
	return []entity.Action{
		{ID: "a-search", Role: "button", Label: "Search", Box: entity.Rect{X: 300, Y: 12}},
		{ID: "a-buy", Role: "button", Label: "Buy now", Risky: true, Box: entity.Rect{X: 20, Y: 200}},
		{ID: "a-logo", Role: "link", Label: "Home", Box: entity.Rect{X: 10, Y: 18}},
	}
}

type scanHarness struct {
	clicked   []string
	announced []string
	actions   []entity.Action
	clickErr  error
}

func newHarness(actions []entity.Action) (*scanHarness, *SwitchScanner) {
	h := &scanHarness{actions: actions}
	s := NewSwitchScanner(
		func(_ context.Context, id string) error {
			h.clicked = append(h.clicked, id)
			return h.clickErr
		},
		func(text string) { h.announced = append(h.announced, text) },
		func(_ context.Context) ([]entity.Action, error) {
			out := make([]entity.Action, len(h.actions))
			copy(out, h.actions)
			return out, nil
		},
	)
	return h, s
}

func TestSwitchScannerReadingOrder(t *testing.T) {
	h, s := newHarness(scanActions())
	require.NoError(t, s.Start(context.Background()))

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "a-logo", cur.ID, "top row, leftmost first despite y jitter")

	s.Next()
	cur, _ = s.Current()
	assert.Equal(t, "a-search", cur.ID)

	s.Next()
	cur, _ = s.Current()
	assert.Equal(t, "a-buy", cur.ID)

	require.NotEmpty(t, h.announced)
	assert.Contains(t, h.announced[0], "3 items")
}

func TestSwitchScannerWrapsBothWays(t *testing.T) {
	_, s := newHarness(scanActions())
	require.NoError(t, s.Start(context.Background()))

	s.Next()
	s.Next()
	s.Next() // past the end
	cur, _ := s.Current()
	assert.Equal(t, "a-logo", cur.ID, "forward wraps to the first item")

	s.Previous()
	cur, _ = s.Current()
	assert.Equal(t, "a-buy", cur.ID, "backward wraps to the last item")
}

func TestSwitchScannerSelectClicks(t *testing.T) {
	h, s := newHarness(scanActions())
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Select(context.Background()))
	assert.Equal(t, []string{"a-logo"}, h.clicked)
}

func TestSwitchScannerRiskyNeedsSecondSelect(t *testing.T) {
	h, s := newHarness(scanActions())
	require.NoError(t, s.Start(context.Background()))
	s.Next()
	s.Next() // on Buy now

	require.NoError(t, s.Select(context.Background()))
	assert.Empty(t, h.clicked, "first select only warns")
	assert.Contains(t, h.announced[len(h.announced)-1], "Select again to confirm")

	require.NoError(t, s.Select(context.Background()))
	assert.Equal(t, []string{"a-buy"}, h.clicked)
}

func TestSwitchScannerMovingDisarmsRisky(t *testing.T) {
	h, s := newHarness(scanActions())
	require.NoError(t, s.Start(context.Background()))
	s.Next()
	s.Next() // Buy now

	require.NoError(t, s.Select(context.Background())) // warn
	s.Next()                                           // move away
	s.Previous()                                       // come back

	require.NoError(t, s.Select(context.Background()))
	assert.Empty(t, h.clicked, "arming does not survive movement")
}

func TestSwitchScannerRescansAfterSelect(t *testing.T) {
	h, s := newHarness(scanActions())
	require.NoError(t, s.Start(context.Background()))

	// the click swaps in a new page with a single action
	h.actions = []entity.Action{{ID: "a-new", Role: "button", Label: "Continue", Box: entity.Rect{X: 5, Y: 5}}}
	require.NoError(t, s.Select(context.Background()))

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "a-new", cur.ID)
}

func TestSwitchScannerClickFailureAnnounced(t *testing.T) {
	h, s := newHarness(scanActions())
	h.clickErr = errors.New("stale element")
	require.NoError(t, s.Start(context.Background()))

	err := s.Select(context.Background())
	assert.Error(t, err)
	assert.Contains(t, h.announced[len(h.announced)-1], "Could not activate")
}

func TestSwitchScannerStop(t *testing.T) {
	_, s := newHarness(scanActions())
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	assert.False(t, s.Active())
	_, ok := s.Current()
	assert.False(t, ok)

	// movement after stop is a no-op
	s.Next()
	_, ok = s.Current()
	assert.False(t, ok)
}

func TestSwitchScannerEmptyPage(t *testing.T) {
	h, s := newHarness(nil)
	require.NoError(t, s.Start(context.Background()))

	assert.False(t, s.Active())
	require.NotEmpty(t, h.announced)
	assert.Contains(t, h.announced[0], "Nothing to scan")
}
