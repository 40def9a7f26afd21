package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Resolver obtains the current reference block height when the caller
// does not supply a cutoff explicitly.
type Resolver interface {
	Resolve(ctx context.Context) (uint64, error)
}

// Aggregator runs platform adapters against a cutoff height and merges
// their outputs. Adapters are a static, explicit list fixed at
// construction; concatenation order always follows that list,
// regardless of which adapter finishes first.
type Aggregator struct {
	resolver Resolver
	adapters []Adapter
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithTimeout sets the per-adapter fetch timeout. A timed-out adapter
// fails alone; the other platforms still contribute results.
func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		a.timeout = d
	}
}

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithMetrics enables per-platform fetch metrics.
func WithMetrics(m *Metrics) AggregatorOption {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// NewAggregator creates an aggregator over the given adapters. The
// adapter slice order defines the output concatenation order.
func NewAggregator(resolver Resolver, adapters []Adapter, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		resolver: resolver,
		adapters: adapters,
		timeout:  20 * time.Second,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// NormalizeFilter lowercases and de-duplicates a platform filter. A
// single name and a collection of names normalize identically. Empty
// input returns nil, meaning "all platforms".
func NormalizeFilter(platforms []string) map[string]struct{} {
	if len(platforms) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(platforms))
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			set[p] = struct{}{}
		}
	}

	if len(set) == 0 {
		return nil
	}
	return set
}

// adapterResult holds one adapter's outcome, slotted by adapter index
// to keep concatenation deterministic.
type adapterResult struct {
	proposals []Proposal
	err       error
}

// Aggregate resolves the cutoff (when nil), selects adapters by the
// optional platform filter, runs them concurrently, and concatenates
// their outputs in fixed platform order.
//
// Cutoff resolution failure is fatal: no adapter runs. An individual
// adapter failure is not: its platform is reported in Result.Failed
// and the remaining platforms' proposals are returned.
func (a *Aggregator) Aggregate(ctx context.Context, cutoff *uint64, platforms []string) (*Result, error) {
	height, err := a.resolveCutoff(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	filter := NormalizeFilter(platforms)

	var selected []Adapter
	for _, adapter := range a.adapters {
		if filter != nil {
			if _, ok := filter[adapter.Name()]; !ok {
				continue
			}
		}
		selected = append(selected, adapter)
	}

	results := make([]adapterResult, len(selected))

	var wg sync.WaitGroup
	for i, adapter := range selected {
		wg.Add(1)
		go func(i int, adapter Adapter) {
			defer wg.Done()
			results[i].proposals, results[i].err = a.fetch(ctx, adapter, height)
		}(i, adapter)
	}
	wg.Wait()

	result := &Result{BlockNumber: height}
	for i, adapter := range selected {
		if results[i].err != nil {
			a.logger.Warn("Platform fetch failed",
				"platform", adapter.Platform(),
				"cutoff", height,
				"error", results[i].err)
			result.Failed = append(result.Failed, adapter.Platform())
			continue
		}
		result.Proposals = append(result.Proposals, results[i].proposals...)
	}

	return result, nil
}

// resolveCutoff returns the explicit cutoff, or asks the resolver for
// the current height. Exactly one resolver call is made, before any
// adapter runs.
func (a *Aggregator) resolveCutoff(ctx context.Context, cutoff *uint64) (uint64, error) {
	if cutoff != nil {
		return *cutoff, nil
	}

	height, err := a.resolver.Resolve(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve block height: %w", err)
	}

	a.logger.Debug("Resolved cutoff height", "height", height)
	return height, nil
}

// fetch runs one adapter under the per-adapter timeout.
func (a *Aggregator) fetch(ctx context.Context, adapter Adapter, cutoff uint64) ([]Proposal, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	proposals, err := adapter.Fetch(ctx, cutoff)
	a.metrics.observeFetch(adapter.Platform(), time.Since(start), err)

	return proposals, err
}
