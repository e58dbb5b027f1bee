package rodop

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"browser-operator/internal/application/port/output"
)

var (
	// ErrDisabledTarget means the element refuses input in its current state.
	ErrDisabledTarget = errors.New("target element is disabled")
	// ErrReadOnlyTarget means the field cannot be edited.
	ErrReadOnlyTarget = errors.New("target field is read-only")
	// ErrBadURL means a navigation target could not be resolved to http(s).
	ErrBadURL = errors.New("unusable navigation target")
)

const (
	minWait = 100 * time.Millisecond
	maxWait = 5 * time.Second
)

// Executor performs page actions against registry-resolved elements. A
// resolution miss triggers one re-extraction before the action fails, since
// the common cause is a rerender between snapshot and command.
type Executor struct {
	page    *rod.Page
	reg     *Registry
	extract *Extractor
	settle  time.Duration
	log     output.LoggerPort
}

func NewExecutor(page *rod.Page, reg *Registry, extract *Extractor, settle time.Duration, log output.LoggerPort) *Executor {
	if settle <= 0 {
		settle = 100 * time.Millisecond
	}
	return &Executor{page: page, reg: reg, extract: extract, settle: settle, log: log}
}

func (x *Executor) resolve(ctx context.Context, id string) (*rod.Element, error) {
	el, err := x.reg.Resolve(id)
	if err == nil {
		return el, nil
	}
	if _, exErr := x.extract.Extract(ctx); exErr != nil {
		return nil, fmt.Errorf("could not refresh page map after miss: %w", exErr)
	}
	return x.reg.Resolve(id)
}

func (x *Executor) prepare(ctx context.Context, el *rod.Element) error {
	if err := el.Context(ctx).ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll into view failed: %w", err)
	}
	time.Sleep(x.settle)
	return nil
}

func (x *Executor) guardEnabled(el *rod.Element) error {
	res, err := el.Eval(`() => this.disabled === true || this.getAttribute("aria-disabled") === "true"`)
	if err == nil && res.Value.Bool() {
		return ErrDisabledTarget
	}
	return nil
}

// Click runs the full pointer sequence on the element's center so pages
// listening for individual mouse events all fire.
func (x *Executor) Click(ctx context.Context, actionID string) error {
	el, err := x.resolve(ctx, actionID)
	if err != nil {
		return err
	}
	if err := x.guardEnabled(el); err != nil {
		return err
	}
	if err := x.prepare(ctx, el); err != nil {
		return err
	}
	if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	x.page.WaitIdle(2 * time.Second)
	return nil
}

// TypeText types into a field with real key events. clearFirst wipes the
// current value in place rather than appending.
func (x *Executor) TypeText(ctx context.Context, fieldID, text string, clearFirst bool) error {
	el, err := x.resolve(ctx, fieldID)
	if err != nil {
		return err
	}
	if err := x.guardEnabled(el); err != nil {
		return err
	}
	if res, rErr := el.Eval(`() => this.readOnly === true`); rErr == nil && res.Value.Bool() {
		return ErrReadOnlyTarget
	}
	if err := x.prepare(ctx, el); err != nil {
		return err
	}
	if err := el.Context(ctx).Focus(); err != nil {
		return fmt.Errorf("focus failed: %w", err)
	}
	if clearFirst {
		if err := el.SelectAllText(); err == nil {
			_ = el.Input("")
		}
	}
	if err := el.Context(ctx).Input(text); err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	return nil
}

// SelectOption picks a native select option whose label matches value, case
// insensitively, preferring exact matches over substring ones. The value is
// set through the element's own setter and change/input events are fired so
// framework bindings notice.
func (x *Executor) SelectOption(ctx context.Context, fieldID, value string) error {
	el, err := x.resolve(ctx, fieldID)
	if err != nil {
		return err
	}
	if err := x.guardEnabled(el); err != nil {
		return err
	}
	if err := x.prepare(ctx, el); err != nil {
		return err
	}

	res, err := el.Context(ctx).Eval(`(wanted) => {
		if (this.tagName.toLowerCase() !== 'select') return {ok: false, labels: []};
		const w = wanted.trim().toLowerCase();
		const opts = Array.from(this.options);
		let hit = opts.find(o => (o.label || o.text).trim().toLowerCase() === w);
		if (!hit) hit = opts.find(o => (o.label || o.text).trim().toLowerCase().includes(w));
		if (!hit) return {ok: false, labels: opts.map(o => (o.label || o.text).trim()).slice(0, 20)};
		this.value = hit.value;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
		return {ok: true, labels: []};
	}`, value)
	if err != nil {
		return fmt.Errorf("select failed: %w", err)
	}
	if !res.Value.Get("ok").Bool() {
		labels := make([]string, 0, 20)
		for _, l := range res.Value.Get("labels").Arr() {
			labels = append(labels, l.Str())
		}
		if len(labels) == 0 {
			return fmt.Errorf("element %s is not a select control", fieldID)
		}
		return fmt.Errorf("no option matching %q; available: %s", value, strings.Join(labels, ", "))
	}
	return nil
}

// Scroll moves the viewport. Amounts are fractions of the viewport height;
// top and bottom jump to the document edges.
func (x *Executor) Scroll(ctx context.Context, direction, amount string) error {
	factor := 1.0
	switch amount {
	case "little":
		factor = 0.4
	case "lot":
		factor = 2.5
	case "", "page":
	default:
		return fmt.Errorf("unknown scroll amount %q", amount)
	}

	var js string
	switch direction {
	case "down":
		js = fmt.Sprintf(`() => window.scrollBy({top: window.innerHeight * %f, behavior: "instant"})`, factor)
	case "up":
		js = fmt.Sprintf(`() => window.scrollBy({top: -window.innerHeight * %f, behavior: "instant"})`, factor)
	case "top":
		js = `() => window.scrollTo({top: 0, behavior: "instant"})`
	case "bottom":
		js = `() => window.scrollTo({top: document.body.scrollHeight, behavior: "instant"})`
	default:
		return fmt.Errorf("unknown scroll direction %q", direction)
	}
	if _, err := x.page.Context(ctx).Eval(js); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	time.Sleep(x.settle)
	return nil
}

// Focus moves keyboard focus without clicking, so screen-reader style
// navigation can continue from the element.
func (x *Executor) Focus(ctx context.Context, actionID string) error {
	el, err := x.resolve(ctx, actionID)
	if err != nil {
		return err
	}
	if err := x.prepare(ctx, el); err != nil {
		return err
	}
	if _, err := el.Context(ctx).Eval(`() => this.focus()`); err != nil {
		return fmt.Errorf("focus failed: %w", err)
	}
	return nil
}

func (x *Executor) GoBack(ctx context.Context) error {
	if err := x.page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("history back failed: %w", err)
	}
	if err := x.page.Context(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("page load failed: %w", err)
	}
	x.reg.Clear()
	return nil
}

// NavigateTo resolves raw against the current page URL and rejects anything
// that is not http or https after resolution.
func (x *Executor) NavigateTo(ctx context.Context, raw string) error {
	target, err := x.resolveURL(raw)
	if err != nil {
		return err
	}
	if err := x.page.Context(ctx).Navigate(target); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := x.page.Context(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("page load failed: %w", err)
	}
	x.page.WaitIdle(5 * time.Second)
	x.reg.Clear()
	return nil
}

func (x *Executor) resolveURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrBadURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	if !u.IsAbs() {
		info, infoErr := x.page.Info()
		if infoErr != nil {
			return "", fmt.Errorf("%w: cannot resolve relative url", ErrBadURL)
		}
		base, baseErr := url.Parse(info.URL)
		if baseErr != nil {
			return "", fmt.Errorf("%w: cannot resolve relative url", ErrBadURL)
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrBadURL, u.Scheme)
	}
	return u.String(), nil
}

// Wait pauses between actions, clamped so neither the page nor the user is
// left hanging.
func (x *Executor) Wait(ctx context.Context, d time.Duration) error {
	if d < minWait {
		d = minWait
	}
	if d > maxWait {
		d = maxWait
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Highlight draws (or clears, for an empty id) the attention outline used
// while awaiting confirmation of a risky action.
func (x *Executor) Highlight(ctx context.Context, actionID string) error {
	if actionID == "" {
		_, err := x.page.Context(ctx).Eval(`() => {
			const prev = document.getElementById('__operator-highlight');
			if (prev) prev.remove();
		}`)
		return err
	}
	el, err := x.resolve(ctx, actionID)
	if err != nil {
		return err
	}
	if err := x.prepare(ctx, el); err != nil {
		return err
	}
	_, err = el.Context(ctx).Eval(`() => {
		const prev = document.getElementById('__operator-highlight');
		if (prev) prev.remove();
		const r = this.getBoundingClientRect();
		const box = document.createElement('div');
		box.id = '__operator-highlight';
		box.style.cssText = 'position:fixed;pointer-events:none;z-index:2147483647;' +
			'border:3px solid #ff9800;border-radius:4px;box-shadow:0 0 0 3px rgba(255,152,0,.35);' +
			'left:' + (r.x - 4) + 'px;top:' + (r.y - 4) + 'px;' +
			'width:' + (r.width + 8) + 'px;height:' + (r.height + 8) + 'px;';
		document.body.appendChild(box);
	}`)
	return err
}
