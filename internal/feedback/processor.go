package feedback

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"salescomposer/internal/domain"
	"salescomposer/internal/scenario"
)

const (
	DefaultOverlapThreshold = 0.3

	// DenominatorStored divides shared words by the stored notes' word count.
	DenominatorStored = "stored"
	// DenominatorShorter divides by whichever of the two texts is shorter.
	DenominatorShorter = "shorter"

	snippetChars = 120
)

var (
	ErrFeedbackNotFound = errors.New("feedback not found")
	ErrOverrideNotFound = errors.New("override not found")
	ErrEmptyFeedback    = errors.New("feedback text is required")
	ErrEmptyRule        = errors.New("override rule is required")
)

// Notifier hears about newly saved feedback. Failures are logged and ignored.
type Notifier interface {
	FeedbackSaved(ctx context.Context, entry domain.FeedbackEntry) error
}

type Options struct {
	OverlapThreshold   float64
	OverlapDenominator string
	Now                func() time.Time
	Notifier           Notifier
	Logger             *zap.Logger
}

type Processor struct {
	store     *Store
	detector  scenario.Detector
	threshold float64
	shorter   bool
	now       func() time.Time
	notifier  Notifier
	log       *zap.Logger
}

func NewProcessor(store *Store, opts Options) *Processor {
	if opts.OverlapThreshold <= 0 {
		opts.OverlapThreshold = DefaultOverlapThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Processor{
		store:     store,
		threshold: opts.OverlapThreshold,
		shorter:   opts.OverlapDenominator == DenominatorShorter,
		now:       opts.Now,
		notifier:  opts.Notifier,
		log:       opts.Logger,
	}
}

func (p *Processor) Load(ctx context.Context) error {
	return p.store.Load(ctx)
}

// Relevant returns active entries that share a scenario tag, a material, or
// enough note vocabulary with sc, highest priority first. Equal priorities
// keep stored order.
func (p *Processor) Relevant(sc domain.ScenarioContext) []domain.FeedbackEntry {
	var out []domain.FeedbackEntry
	for _, e := range p.store.Active() {
		if intersects(e.AppliesToScenarios, sc.DetectedScenarios) ||
			intersects(e.ScenarioContext.Materials, sc.Materials) ||
			p.notesOverlap(e.ScenarioContext.CustomerNotes, sc.CustomerNotes) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.FeedbackEntry) int {
		return b.Priority.Rank() - a.Priority.Rank()
	})
	return out
}

func (p *Processor) Overrides() []domain.GlobalOverride {
	return p.store.Overrides()
}

// List returns stored feedback, optionally including deactivated entries.
func (p *Processor) List(includeInactive bool) []domain.FeedbackEntry {
	if !includeInactive {
		return p.store.Active()
	}
	return p.store.Snapshot().FeedbackEntries
}

func (p *Processor) ListOverrides(includeInactive bool) []domain.GlobalOverride {
	if !includeInactive {
		return p.store.Overrides()
	}
	return p.store.Snapshot().GlobalOverrides
}

// Save records an agent's correction of a generated output. Scenarios are
// detected from the original composition input, not from the feedback text.
func (p *Processor) Save(ctx context.Context, in domain.ComposeInput, out domain.ComposeOutput, text string) (domain.FeedbackEntry, error) {
	if strings.TrimSpace(text) == "" {
		return domain.FeedbackEntry{}, ErrEmptyFeedback
	}

	now := p.now().UTC().Truncate(time.Millisecond)
	detected := p.detector.Detect(in.CustomerNotes, in.CalcSummary)

	var captured []string
	if c := strings.TrimSpace(in.CalcSummary.Materials.Cladding); c != "" {
		captured = []string{c}
	}

	entry := domain.FeedbackEntry{
		Timestamp: now,
		InputHash: domain.InputFingerprint(in),
		ScenarioContext: domain.ScenarioContext{
			CustomerNotes: in.CustomerNotes,
			Materials:     captured,
			Options:       slices.Clone(in.CalcSummary.Options),
		},
		GeneratedOutputSnippet: truncate(out.Preview(), snippetChars) + "...",
		UserFeedback:           text,
		AppliedRules:           ExtractRules(text),
		Priority:               DeterminePriority(text),
		Active:                 true,
		AppliesToScenarios:     detected.DetectedScenarios,
	}

	err := p.store.Update(ctx, func(d *Dataset) error {
		entry.ID = uniqueID(timestampID(now), d)
		d.FeedbackEntries = append(d.FeedbackEntries, entry)
		return nil
	})
	if err != nil {
		return domain.FeedbackEntry{}, err
	}

	p.log.Info("feedback saved",
		zap.String("id", entry.ID),
		zap.String("priority", string(entry.Priority)),
		zap.Strings("rules", entry.AppliedRules),
		zap.Strings("scenarios", entry.AppliesToScenarios),
	)
	if p.notifier != nil {
		if err := p.notifier.FeedbackSaved(ctx, entry); err != nil {
			p.log.Warn("feedback notification failed", zap.String("id", entry.ID), zap.Error(err))
		}
	}
	return entry, nil
}

// Toggle flips an entry's active flag. Entries are never removed.
func (p *Processor) Toggle(ctx context.Context, id string, active bool) error {
	return p.store.Update(ctx, func(d *Dataset) error {
		for i := range d.FeedbackEntries {
			if d.FeedbackEntries[i].ID == id {
				d.FeedbackEntries[i].Active = active
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrFeedbackNotFound, id)
	})
}

// AddOverride appends a standing rule that applies to every request.
func (p *Processor) AddOverride(ctx context.Context, rule string, priority domain.Priority) (domain.GlobalOverride, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return domain.GlobalOverride{}, ErrEmptyRule
	}
	if priority.Rank() == 0 {
		return domain.GlobalOverride{}, fmt.Errorf("invalid priority %q", priority)
	}
	ov := domain.GlobalOverride{Rule: rule, Priority: priority, Active: true}
	err := p.store.Update(ctx, func(d *Dataset) error {
		ov.ID = fmt.Sprintf("GO%03d", len(d.GlobalOverrides)+1)
		d.GlobalOverrides = append(d.GlobalOverrides, ov)
		return nil
	})
	if err != nil {
		return domain.GlobalOverride{}, err
	}
	p.log.Info("global override added", zap.String("id", ov.ID), zap.String("priority", string(priority)))
	return ov, nil
}

func (p *Processor) ToggleOverride(ctx context.Context, id string, active bool) error {
	return p.store.Update(ctx, func(d *Dataset) error {
		for i := range d.GlobalOverrides {
			if d.GlobalOverrides[i].ID == id {
				d.GlobalOverrides[i].Active = active
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrOverrideNotFound, id)
	})
}

func (p *Processor) notesOverlap(stored, current string) bool {
	a := strings.Fields(strings.ToLower(stored))
	b := strings.Fields(strings.ToLower(current))
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(b))
	for _, w := range b {
		seen[w] = struct{}{}
	}
	common := 0
	for _, w := range a {
		if _, ok := seen[w]; ok {
			common++
		}
	}
	denom := len(a)
	if p.shorter && len(b) < denom {
		denom = len(b)
	}
	return float64(common)/float64(denom) > p.threshold
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

// timestampID is "FB" plus the last six digits of the unix-millisecond time.
func timestampID(t time.Time) string {
	ms := strconv.FormatInt(t.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "FB" + ms
}

// uniqueID suffixes base when two saves land on the same millisecond window.
func uniqueID(base string, d *Dataset) string {
	taken := func(id string) bool {
		return slices.ContainsFunc(d.FeedbackEntries, func(e domain.FeedbackEntry) bool { return e.ID == id })
	}
	id := base
	for n := 2; taken(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
