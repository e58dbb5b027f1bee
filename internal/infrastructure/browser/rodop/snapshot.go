package rodop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/config"
	"browser-operator/internal/domain/entity"
	"browser-operator/internal/pagemap"
)

// snapshotJS walks the document once and describes every structural or
// interactive element. It also parks the matched nodes on
// window.__operatorNodes so Go can pull live handles in the same order.
const snapshotJS = `() => {
	const SELECTOR = 'h1,h2,h3,h4,h5,h6,a[href],button,input,select,textarea,summary,' +
		'[role="button"],[role="link"],[role="checkbox"],[role="radio"],[role="tab"],' +
		'[role="menuitem"],[role="switch"],[role="combobox"],[role="listbox"],' +
		'[role="textbox"],[role="searchbox"],[role="option"],[contenteditable="true"],[onclick]';

	const all = Array.from(document.querySelectorAll(SELECTOR));
	window.__operatorNodes = all;

	const cssPath = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const parts = [];
		let cur = el;
		while (cur && cur.nodeType === Node.ELEMENT_NODE && cur !== document.body) {
			let part = cur.tagName.toLowerCase();
			const parent = cur.parentElement;
			if (parent) {
				const same = Array.from(parent.children).filter(c => c.tagName === cur.tagName);
				if (same.length > 1) part += ':nth-of-type(' + (same.indexOf(cur) + 1) + ')';
			}
			parts.unshift(part);
			cur = parent;
		}
		return 'body > ' + parts.join(' > ');
	};

	const isVisible = (el) => {
		const style = getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		const r = el.getBoundingClientRect();
		if (r.width < 1 || r.height < 1) return false;
		const margin = window.innerHeight * 2;
		return r.bottom > -margin && r.top < window.innerHeight + margin;
	};

	const trimText = (s, cap) => (s || '').replace(/\s+/g, ' ').trim().slice(0, cap || 160);

	const labelFor = (el) => {
		if (el.id) {
			const lab = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			if (lab) return trimText(lab.innerText);
		}
		const wrap = el.closest('label');
		return wrap ? trimText(wrap.innerText) : '';
	};

	const labelledByText = (el) => {
		const ids = (el.getAttribute('aria-labelledby') || '').split(/\s+/).filter(Boolean);
		return trimText(ids.map(id => {
			const ref = document.getElementById(id);
			return ref ? ref.innerText : '';
		}).join(' '));
	};

	const groupOf = (el) => el.closest('fieldset,[role="group"],[role="radiogroup"],[data-block-id],[data-question-id],.form-group,li');

	const promptOf = (el) => {
		const block = el.closest('[data-block-id],[data-question-id]');
		if (!block) return '';
		const heading = block.querySelector('[data-block-title],[role="heading"],h1,h2,h3,h4,legend');
		return heading ? trimText(heading.innerText) : '';
	};

	const describe = (el, index) => {
		const tag = el.tagName.toLowerCase();
		const rect = el.getBoundingClientRect();
		const group = groupOf(el);
		const fieldset = el.closest('fieldset');
		const legend = fieldset ? fieldset.querySelector('legend') : null;
		const rec = {
			index,
			tag,
			role: el.getAttribute('role') || '',
			type: (el.getAttribute('type') || '').toLowerCase(),
			name: el.getAttribute('name') || '',
			domId: el.id || '',
			className: typeof el.className === 'string' ? el.className.slice(0, 80) : '',
			href: tag === 'a' ? (el.getAttribute('href') || '') : '',
			ariaLabel: trimText(el.getAttribute('aria-label')),
			labelledBy: labelledByText(el),
			labelText: (tag === 'input' || tag === 'select' || tag === 'textarea') ? labelFor(el) : '',
			title: trimText(el.getAttribute('title')),
			placeholder: trimText(el.getAttribute('placeholder')),
			alt: el.querySelector('img[alt]') ? trimText(el.querySelector('img[alt]').getAttribute('alt')) : trimText(el.getAttribute('alt')),
			text: trimText(el.innerText || el.value || ''),
			value: (tag === 'input' || tag === 'textarea' || tag === 'select') ? String(el.value || '').slice(0, 160) : '',
			rect: {x: rect.x, y: rect.y, width: rect.width, height: rect.height},
			visible: isVisible(el),
			disabled: el.disabled === true || el.getAttribute('aria-disabled') === 'true',
			readOnly: el.readOnly === true,
			required: el.required === true || el.getAttribute('aria-required') === 'true',
			checked: el.checked === true || el.getAttribute('aria-checked') === 'true',
			selected: el.selected === true || el.getAttribute('aria-selected') === 'true',
			expanded: el.getAttribute('aria-expanded') || '',
			focused: document.activeElement === el,
			editable: el.isContentEditable === true,
			locator: cssPath(el),
			groupKey: group ? cssPath(group) : '',
			legend: legend ? trimText(legend.innerText) : '',
			prompt: promptOf(el),
		};
		if (tag === 'select') {
			rec.options = Array.from(el.options).slice(0, 60).map(o => ({
				label: trimText(o.label || o.text),
				value: o.value,
				selected: o.selected,
			}));
		}
		return rec;
	};

	const alerts = Array.from(document.querySelectorAll('[role="alert"],[aria-live="assertive"],.error,.alert'))
		.filter(isVisible)
		.map(el => trimText(el.innerText, 240))
		.filter(Boolean)
		.slice(0, 5);

	return {
		url: location.href,
		title: document.title,
		nodes: all.map(describe),
		alerts,
		bodyHTML: document.body ? document.body.innerHTML.slice(0, 200000) : '',
	};
}`

// Extractor captures a Snapshot from the live page and feeds it through the
// pagemap builder, registering every surfaced element on the way.
type Extractor struct {
	page *rod.Page
	reg  *Registry
	pol  *config.Policy
	log  output.LoggerPort
}

func NewExtractor(page *rod.Page, reg *Registry, pol *config.Policy, log output.LoggerPort) *Extractor {
	return &Extractor{page: page, reg: reg, pol: pol, log: log}
}

// Capture runs the snapshot script and collects the matched handles. The
// handle slice is index-aligned with Snapshot.Nodes.
func (e *Extractor) Capture(ctx context.Context) (pagemap.Snapshot, rod.Elements, error) {
	var snap pagemap.Snapshot

	res, err := e.page.Context(ctx).Eval(snapshotJS)
	if err != nil {
		return snap, nil, fmt.Errorf("snapshot script failed: %w", err)
	}
	raw, err := json.Marshal(res.Value.Val())
	if err != nil {
		return snap, nil, fmt.Errorf("snapshot encode failed: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, nil, fmt.Errorf("snapshot decode failed: %w", err)
	}

	els, err := e.page.Context(ctx).ElementsByJS(rod.Eval(`() => window.__operatorNodes || []`))
	if err != nil {
		// Locator-only registrations still work without handles.
		e.log.Warn("could not collect element handles", "error", err)
		els = nil
	}
	return snap, els, nil
}

// Extract builds a fresh page map and replaces the registry contents.
func (e *Extractor) Extract(ctx context.Context) (*entity.PageMap, error) {
	snap, els, err := e.Capture(ctx)
	if err != nil {
		return nil, err
	}

	pm, regs := pagemap.Build(snap, e.pol)
	e.reg.Clear()
	for _, r := range regs {
		var el *rod.Element
		if r.NodeIndex >= 0 && r.NodeIndex < len(els) {
			el = els[r.NodeIndex]
		}
		e.reg.Register(r.ID, r.Locator, el)
	}

	e.log.Debug("page map extracted",
		"url", pm.URL,
		"actions", len(pm.Actions),
		"fields", len(pm.Fields),
		"headings", len(pm.Headings))
	return pm, nil
}

// WaitSettled gives the page a moment to finish rendering before capture.
func (e *Extractor) WaitSettled(d time.Duration) {
	e.page.WaitIdle(d)
}
