// Package compose runs one composition request end to end: admission,
// scenario detection, feedback and snippet selection, the provider call,
// normalization and the audit record.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"salescomposer/internal/audit"
	"salescomposer/internal/domain"
	"salescomposer/internal/feedback"
	"salescomposer/internal/integrations/llm"
	"salescomposer/internal/knowledge"
	"salescomposer/internal/metrics"
	"salescomposer/internal/prompt"
	"salescomposer/internal/response"
	"salescomposer/internal/scenario"
)

const previewChars = 200

// ErrInvalidInput wraps validation failures. It is checked before admission.
var ErrInvalidInput = errors.New("invalid compose input")

type Admitter interface {
	Admit(callerID string) error
}

type Completer interface {
	Configured() bool
	Complete(ctx context.Context, p llm.Prompt, preferred string) (llm.Reply, error)
}

type Deps struct {
	Limiter  Admitter
	Detector scenario.Detector
	Feedback *feedback.Processor
	Library  *knowledge.Library
	Builder  prompt.Builder
	Gateway  Completer
	Audit    audit.Sink
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	Now   func() time.Time
	NewID func() string
}

type Composer struct {
	limiter  Admitter
	detector scenario.Detector
	feedback *feedback.Processor
	library  *knowledge.Library
	builder  prompt.Builder
	gateway  Completer
	audit    audit.Sink
	metrics  *metrics.Metrics
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

func New(d Deps) *Composer {
	c := &Composer{
		limiter:  d.Limiter,
		detector: d.Detector,
		feedback: d.Feedback,
		library:  d.Library,
		builder:  d.Builder,
		gateway:  d.Gateway,
		audit:    d.Audit,
		metrics:  d.Metrics,
		log:      d.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      d.Now,
		newID:    d.NewID,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = func() string { return uuid.NewString() }
	}
	return c
}

// Validate checks in without consuming a rate-limit token.
func (c *Composer) Validate(in domain.ComposeInput) error {
	if err := c.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// Compose returns ErrInvalidInput, ratelimit.ErrRateLimited, a feedback
// storage error or the ctx error. Provider and parse failures are absorbed
// into default content with Meta.FallbackUsed set.
func (c *Composer) Compose(ctx context.Context, callerID string, in domain.ComposeInput) (domain.ComposeOutput, error) {
	if err := c.Validate(in); err != nil {
		c.metrics.Composition("invalid")
		return domain.ComposeOutput{}, err
	}
	if err := c.limiter.Admit(callerID); err != nil {
		c.metrics.Composition("rate_limited")
		c.log.Info("composition rate limited", zap.String("caller", callerID))
		return domain.ComposeOutput{}, err
	}

	requestID := c.newID()
	log := c.log.With(zap.String("request_id", requestID), zap.String("caller", callerID))

	sc := c.detector.Detect(in.CustomerNotes, in.CalcSummary)
	competitor := c.detector.DetectCompetitor(in.CustomerNotes)

	if err := c.feedback.Load(ctx); err != nil {
		c.metrics.Composition("error")
		return domain.ComposeOutput{}, err
	}
	relevant := c.feedback.Relevant(sc)
	overrides := c.feedback.Overrides()
	snippets := c.library.Select(sc, competitor)

	p := c.builder.Build(prompt.Inputs{
		Feedback:      relevant,
		Overrides:     overrides,
		Snippets:      snippets,
		Calc:          in.CalcSummary,
		CustomerNotes: in.CustomerNotes,
	})

	if !c.gateway.Configured() {
		log.Warn("no llm provider configured, using default content")
	}
	result, reply, fallback, err := c.generate(ctx, log, p, in.PreferredProvider)
	if err != nil {
		c.metrics.Composition("error")
		return domain.ComposeOutput{}, err
	}

	feedbackIDs := make([]string, 0, len(relevant))
	for _, fb := range relevant {
		feedbackIDs = append(feedbackIDs, fb.ID)
	}
	out := domain.ComposeOutput{
		Meta: domain.ComposeMeta{
			RequestID:    requestID,
			SnippetsUsed: knowledge.IDs(snippets),
			FeedbackUsed: len(relevant) > 0,
			FeedbackIDs:  feedbackIDs,
			FallbackUsed: fallback,
			Provider:     reply.Provider,
			Model:        reply.Model,
		},
		Benefits:   result.Benefits,
		Comparison: result.Comparison,
		Objections: result.Objections,
		Variants:   result.Variants,
		Closing:    result.Closing,
	}

	c.record(ctx, log, in, sc, out)

	outcome := "llm"
	if fallback {
		outcome = "fallback"
	}
	c.metrics.Composition(outcome)
	log.Info("composition done",
		zap.Strings("scenarios", sc.DetectedScenarios),
		zap.String("competitor", competitor),
		zap.Int("snippets", len(snippets)),
		zap.Strings("feedback_ids", feedbackIDs),
		zap.Bool("fallback", fallback),
		zap.String("provider", reply.Provider),
	)
	return out, nil
}

// generate only returns an error when ctx ended; every other failure becomes
// default content.
func (c *Composer) generate(ctx context.Context, log *zap.Logger, p prompt.Prompt, preferred string) (response.Result, llm.Reply, bool, error) {
	reply, err := c.gateway.Complete(ctx, p, preferred)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return response.Result{}, llm.Reply{}, false, ctxErr
		}
		if errors.Is(err, llm.ErrNoProviders) {
			log.Warn("composition fallback", zap.String("reason", "no providers"))
		} else {
			log.Warn("composition fallback", zap.String("reason", "providers failed"), zap.Error(err))
		}
		return response.Default(), llm.Reply{}, true, nil
	}

	res, err := response.Normalize(reply.Text)
	if err != nil {
		log.Warn("composition fallback",
			zap.String("reason", "unparseable reply"),
			zap.String("provider", reply.Provider),
			zap.Error(err),
		)
		return res, reply, true, nil
	}
	if res.Defaulted {
		log.Info("reply missing variants or closing, defaults applied", zap.String("provider", reply.Provider))
	}
	return res, reply, res.Defaulted, nil
}

// record writes the audit entry. It outlives a cancelled request so a
// finished composition is never left untraced.
func (c *Composer) record(ctx context.Context, log *zap.Logger, in domain.ComposeInput, sc domain.ScenarioContext, out domain.ComposeOutput) {
	if c.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		ID:            out.Meta.RequestID,
		Timestamp:     c.now().UTC(),
		InputsHash:    domain.InputFingerprint(in),
		CustomerNotes: in.CustomerNotes,
		Materials:     sc.Materials,
		Options:       sc.Options,
		Region:        in.Region.String(),
		SnippetsUsed:  out.Meta.SnippetsUsed,
		FeedbackUsed:  out.Meta.FeedbackUsed,
		FeedbackIDs:   out.Meta.FeedbackIDs,
		FallbackUsed:  out.Meta.FallbackUsed,
		Provider:      out.Meta.Provider,
		OutputPreview: truncate(out.Preview(), previewChars) + "...",
	}
	if err := c.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		log.Error("audit append failed", zap.Error(err))
	}
}

// SubmitFeedback stores an agent's correction of a previous composition.
func (c *Composer) SubmitFeedback(ctx context.Context, in domain.ComposeInput, out domain.ComposeOutput, text string) (domain.FeedbackEntry, error) {
	if err := c.feedback.Load(ctx); err != nil {
		return domain.FeedbackEntry{}, err
	}
	entry, err := c.feedback.Save(ctx, in, out, text)
	if err != nil {
		return domain.FeedbackEntry{}, err
	}
	c.metrics.FeedbackSaved(string(entry.Priority))
	return entry, nil
}

// RecentLog returns up to limit audit entries, newest first.
func (c *Composer) RecentLog(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if c.audit == nil {
		return nil, nil
	}
	return c.audit.Recent(ctx, limit)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
