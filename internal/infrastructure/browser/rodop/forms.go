package rodop

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/config"
	"browser-operator/internal/domain/entity"
	"browser-operator/internal/pagemap"
)

// ErrUnknownQuestion means an answer referenced a question id that no scan
// of the current page produced.
var ErrUnknownQuestion = errors.New("unknown question")

// FormScanner captures the page's form as semantic questions and dispatches
// answers back onto the underlying controls.
type FormScanner struct {
	page *rod.Page
	reg  *Registry
	exec *Executor
	pol  *config.Policy
	log  output.LoggerPort

	mu   sync.Mutex
	last map[string]entity.Question
}

func NewFormScanner(page *rod.Page, reg *Registry, exec *Executor, pol *config.Policy, log output.LoggerPort) *FormScanner {
	return &FormScanner{
		page: page,
		reg:  reg,
		exec: exec,
		pol:  pol,
		log:  log,
		last: make(map[string]entity.Question),
	}
}

// Scan rebuilds the question list from a fresh snapshot. Questions from
// earlier scans stay answerable as long as their ids still resolve.
func (f *FormScanner) Scan(ctx context.Context) (*entity.FormScan, error) {
	snap, els, err := f.exec.extract.Capture(ctx)
	if err != nil {
		return nil, err
	}

	scan, regs := pagemap.ScanQuestions(snap, f.pol)
	for _, r := range regs {
		var el *rod.Element
		if r.NodeIndex >= 0 && r.NodeIndex < len(els) {
			el = els[r.NodeIndex]
		}
		f.reg.Register(r.ID, r.Locator, el)
	}

	f.mu.Lock()
	for _, q := range scan.Questions {
		f.last[q.ID] = q
	}
	f.mu.Unlock()

	f.log.Debug("form scanned",
		"questions", scan.Total,
		"answered", scan.Answered,
		"title", scan.Title)
	return scan, nil
}

// AnswerQuestion applies value to the question's controls. The returned
// string is a short confirmation suitable for a tool result.
func (f *FormScanner) AnswerQuestion(ctx context.Context, questionID, value string) (string, error) {
	q, ok := f.lookup(questionID)
	if !ok {
		// The id may come from a scan this process never saw.
		if _, err := f.Scan(ctx); err != nil {
			return "", err
		}
		if q, ok = f.lookup(questionID); !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
		}
	}

	value = strings.TrimSpace(value)
	switch q.Type {
	case entity.QuestionShortText, entity.QuestionLongText, entity.QuestionDate:
		if err := f.exec.TypeText(ctx, q.FieldID, value, true); err != nil {
			return "", err
		}
	case entity.QuestionSingleChoice:
		if err := f.answerChoice(ctx, q, value); err != nil {
			return "", err
		}
	case entity.QuestionMultiChoice:
		if err := f.answerMulti(ctx, q, value); err != nil {
			return "", err
		}
	case entity.QuestionDropdown:
		if err := f.answerDropdown(ctx, q, value); err != nil {
			return "", err
		}
	case entity.QuestionFile:
		return "", fmt.Errorf("question %q is a file upload and needs sighted help", q.Prompt)
	default:
		return "", fmt.Errorf("cannot answer question type %q", q.Type)
	}

	return fmt.Sprintf("answered %q with %q", q.Prompt, value), nil
}

func (f *FormScanner) lookup(id string) (entity.Question, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.last[id]
	return q, ok
}

// nativeSelect reports whether the question's options all live on a single
// select control, which is registered under one shared id.
func nativeSelect(q entity.Question) bool {
	if len(q.Options) == 0 {
		return false
	}
	first := q.Options[0].ID
	for _, o := range q.Options[1:] {
		if o.ID != first {
			return false
		}
	}
	return true
}

func (f *FormScanner) answerChoice(ctx context.Context, q entity.Question, value string) error {
	if nativeSelect(q) {
		return f.exec.SelectOption(ctx, q.Options[0].ID, value)
	}
	opt, err := matchOption(q, value, f.pol.Match.MinFieldScore)
	if err != nil {
		return err
	}
	if opt.Selected {
		return nil
	}
	return f.exec.Click(ctx, opt.ID)
}

// answerMulti toggles on every listed option that is not already selected.
// Already-selected options are left alone so repeated answers are idempotent.
func (f *FormScanner) answerMulti(ctx context.Context, q entity.Question, value string) error {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		opt, err := matchOption(q, part, f.pol.Match.MinFieldScore)
		if err != nil {
			return err
		}
		if opt.Selected {
			continue
		}
		if err := f.exec.Click(ctx, opt.ID); err != nil {
			return err
		}
		opt.Selected = true
	}
	return nil
}

func (f *FormScanner) answerDropdown(ctx context.Context, q entity.Question, value string) error {
	if nativeSelect(q) {
		return f.exec.SelectOption(ctx, q.Options[0].ID, value)
	}
	// Custom combobox: open the trigger, then click the option that appears.
	triggerID := q.FieldID
	if triggerID == "" && len(q.Options) > 0 {
		triggerID = q.Options[0].ID
	}
	if triggerID == "" {
		return fmt.Errorf("dropdown %q has no clickable trigger", q.Prompt)
	}
	if err := f.exec.Click(ctx, triggerID); err != nil {
		return err
	}
	time.Sleep(f.exec.settle)

	pattern := "(?i)^\\s*" + regexp.QuoteMeta(value) + "\\s*$"
	el, err := f.page.Context(ctx).Timeout(2 * time.Second).ElementR(`[role="option"], li, option`, pattern)
	if err != nil {
		return fmt.Errorf("no option matching %q appeared after opening %q", value, q.Prompt)
	}
	return el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

// matchOption finds the option whose label best matches wanted: exact match
// first, then a unique substring match covering at least minScore of the
// label. The threshold keeps a short spoken fragment from landing on a much
// longer label it barely overlaps.
func matchOption(q entity.Question, wanted string, minScore float64) (*entity.Option, error) {
	w := strings.ToLower(strings.TrimSpace(wanted))
	for i := range q.Options {
		if strings.ToLower(strings.TrimSpace(q.Options[i].Label)) == w {
			return &q.Options[i], nil
		}
	}
	var hit *entity.Option
	for i := range q.Options {
		label := strings.ToLower(strings.TrimSpace(q.Options[i].Label))
		if !strings.Contains(label, w) || overlapScore(w, label) < minScore {
			continue
		}
		if hit != nil {
			return nil, fmt.Errorf("answer %q matches more than one option of %q", wanted, q.Prompt)
		}
		hit = &q.Options[i]
	}
	if hit == nil {
		labels := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			labels = append(labels, o.Label)
		}
		return nil, fmt.Errorf("no option matching %q; available: %s", wanted, strings.Join(labels, ", "))
	}
	return hit, nil
}

// overlapScore is the share of the label the spoken answer covers, in [0, 1].
func overlapScore(wanted, label string) float64 {
	if label == "" {
		return 0
	}
	return float64(len(wanted)) / float64(len(label))
}
