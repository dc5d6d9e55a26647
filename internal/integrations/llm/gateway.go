package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Observer records one provider attempt. Outcome is "ok", "error" or "skipped".
type Observer interface {
	ObserveProvider(provider, outcome string, elapsed time.Duration)
}

type Gateway struct {
	providers []Provider
	log       *zap.Logger
	observer  Observer
}

// NewGateway keeps providers in the given order; the first is the primary.
func NewGateway(log *zap.Logger, observer Observer, providers ...Provider) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{providers: providers, log: log, observer: observer}
}

// Configured reports whether at least one provider has a credential.
func (g *Gateway) Configured() bool {
	for _, p := range g.providers {
		if p.Configured() {
			return true
		}
	}
	return false
}

// Providers lists provider names in default order.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for _, p := range g.providers {
		names = append(names, p.Name())
	}
	return names
}

// Complete tries each configured provider in order and returns the first
// successful reply. A provider named preferred is tried first. Failures are
// logged and skipped; ctx cancellation stops the loop at once.
func (g *Gateway) Complete(ctx context.Context, p Prompt, preferred string) (Reply, error) {
	var (
		errs      []error
		attempted int
	)
	for _, prov := range g.order(preferred) {
		if err := ctx.Err(); err != nil {
			return Reply{}, err
		}
		if !prov.Configured() {
			g.observe(prov.Name(), "skipped", 0)
			continue
		}
		attempted++

		start := time.Now()
		text, err := prov.Complete(ctx, p)
		elapsed := time.Since(start)
		if err != nil {
			g.observe(prov.Name(), "error", elapsed)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Reply{}, ctxErr
			}
			g.log.Warn("llm provider failed",
				zap.String("provider", prov.Name()),
				zap.String("model", prov.Model()),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", prov.Name(), err))
			continue
		}

		g.observe(prov.Name(), "ok", elapsed)
		g.log.Info("llm provider answered",
			zap.String("provider", prov.Name()),
			zap.String("model", prov.Model()),
			zap.Duration("elapsed", elapsed),
			zap.Int("size", len(text)),
		)
		return Reply{Text: text, Provider: prov.Name(), Model: prov.Model()}, nil
	}

	if attempted == 0 {
		return Reply{}, ErrNoProviders
	}
	return Reply{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func (g *Gateway) order(preferred string) []Provider {
	out := make([]Provider, 0, len(g.providers))
	for _, p := range g.providers {
		if preferred != "" && p.Name() == preferred {
			out = append(out, p)
		}
	}
	for _, p := range g.providers {
		if preferred == "" || p.Name() != preferred {
			out = append(out, p)
		}
	}
	return out
}

func (g *Gateway) observe(provider, outcome string, elapsed time.Duration) {
	if g.observer != nil {
		g.observer.ObserveProvider(provider, outcome, elapsed)
	}
}
