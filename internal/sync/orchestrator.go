package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vellankikoti/tool-versions/internal/config"
	"github.com/vellankikoti/tool-versions/internal/document"
	"github.com/vellankikoti/tool-versions/internal/logging"
	"github.com/vellankikoti/tool-versions/internal/otel"
	"github.com/vellankikoti/tool-versions/internal/sources"
	"github.com/vellankikoti/tool-versions/internal/status"
	"github.com/vellankikoti/tool-versions/internal/telemetry"
	"github.com/vellankikoti/tool-versions/internal/versions"
)

// Outcome is what one run did for one tool
type Outcome struct {
	ToolID string
	Type   config.SourceType

	// Status is Fetched, Retained, Failed or Skipped
	Status status.Phase

	// Kind classifies Err; KindNone when the fetch succeeded
	Kind sources.ErrorKind
	Err  error

	// Info is the entry written for the tool: the fetched value, or the
	// previous one when Status is Retained. Nil otherwise.
	Info *sources.VersionInfo

	// Regression is set when the fetched version is older than the previous one
	Regression bool

	Duration time.Duration
}

// Counts summarizes the outcomes of a run
type Counts struct {
	Fetched  int
	Retained int
	Failed   int
	Skipped  int
}

// Result is the product of a run: the document to persist and one outcome
// per registry entry, in registry order
type Result struct {
	Document document.VersionDocument
	Outcomes []Outcome
}

// Counts returns how many tools ended in each status
func (r *Result) Counts() Counts {
	var c Counts
	for _, o := range r.Outcomes {
		switch o.Status {
		case status.PhaseFetched:
			c.Fetched++
		case status.PhaseRetained:
			c.Retained++
		case status.PhaseFailed:
			c.Failed++
		case status.PhaseSkipped:
			c.Skipped++
		}
	}
	return c
}

// Observations converts the outcomes for status tracking
func (r *Result) Observations() []status.Observation {
	obs := make([]status.Observation, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		ob := status.Observation{ToolID: o.ToolID, Phase: o.Status}
		if o.Info != nil {
			ob.Version = o.Info.Version
		}
		if o.Err != nil {
			ob.Message = o.Err.Error()
		}
		obs = append(obs, ob)
	}
	return obs
}

// Orchestrator fetches every registry entry through its adapter and folds the
// results into a version document. A failing tool never affects the others.
type Orchestrator struct {
	registry    sources.AdapterRegistry
	concurrency int
	timeout     time.Duration
	policy      config.FailurePolicy
	previous    document.VersionDocument
	tracer      trace.Tracer
	metrics     *telemetry.FetchMetrics
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithConcurrency caps simultaneous fetches. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.concurrency = max(n, 1)
	}
}

// WithTimeout bounds each adapter invocation
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithFailurePolicy selects what happens to a failed tool's entry
func WithFailurePolicy(policy config.FailurePolicy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

// WithPreviousDocument supplies the last persisted document, used for the
// keep-previous policy and regression warnings
func WithPreviousDocument(doc document.VersionDocument) Option {
	return func(o *Orchestrator) {
		o.previous = doc.Clone()
	}
}

// WithTracer sets the tracer for run and fetch spans
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithMetrics sets the fetch instruments
func WithMetrics(metrics *telemetry.FetchMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// NewOrchestrator creates an orchestrator resolving adapters from registry
func NewOrchestrator(registry sources.AdapterRegistry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		concurrency: config.DefaultConcurrency,
		timeout:     config.DefaultTimeout,
		policy:      config.FailurePolicyKeepPrevious,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// fetchResult is written by exactly one task, so no locking is needed
type fetchResult struct {
	info      *sources.VersionInfo
	err       error
	duration  time.Duration
	attempted bool
}

// Run fetches all tools and builds the document. It never fails: every
// per-tool error is reported through the outcomes.
func (o *Orchestrator) Run(ctx context.Context, tools []config.ToolSource) *Result {
	ctx, span := otel.StartSpan(ctx, o.tracer, otel.SpanRun,
		trace.WithAttributes(otel.AttrToolCount.Int(len(tools))))
	defer span.End()

	logger := logging.FromContext(ctx)
	logger.V(1).Info("Starting fetch run", "tools", len(tools), "concurrency", o.concurrency, "timeout", o.timeout)

	results := make([]fetchResult, len(tools))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, tool := range tools {
		adapter, err := o.registry.Lookup(tool.Type)
		if err != nil {
			results[i] = fetchResult{err: err}
			continue
		}
		g.Go(func() error {
			results[i] = o.fetch(ctx, tool, adapter)
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{
		Document: document.VersionDocument{},
		Outcomes: make([]Outcome, 0, len(tools)),
	}
	for i, tool := range tools {
		outcome := o.fold(ctx, tool, results[i], result.Document)
		result.Outcomes = append(result.Outcomes, outcome)
		o.metrics.RecordFetch(ctx, tool.ID, string(outcome.Status), outcome.Duration, results[i].attempted)
	}
	o.metrics.RecordDocumentEntries(ctx, len(result.Document))

	counts := result.Counts()
	span.SetAttributes(otel.AttrEntryCount.Int(len(result.Document)))
	logger.Info("Fetch run complete",
		"fetched", counts.Fetched,
		"retained", counts.Retained,
		"failed", counts.Failed,
		"skipped", counts.Skipped,
		"entries", len(result.Document))

	return result
}

// fetch invokes the adapter once under its own deadline
func (o *Orchestrator) fetch(ctx context.Context, tool config.ToolSource, adapter sources.Adapter) (res fetchResult) {
	ctx, span := otel.StartSpan(ctx, o.tracer, otel.SpanFetchLatest,
		trace.WithAttributes(otel.ToolAttributes(tool.ID, string(tool.Type))...))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	res.attempted = true
	defer func() {
		if r := recover(); r != nil {
			res.info = nil
			res.err = fmt.Errorf("adapter for %s panicked: %v", tool.Type, r)
		}
		res.duration = time.Since(start)
		span.SetAttributes(otel.AttrOutcome.String(string(o.phaseFor(tool, res.err))))
		if res.err != nil {
			span.SetAttributes(otel.AttrErrorKind.String(string(sources.Classify(res.err))))
			otel.RecordError(span, res.err)
		}
	}()

	info, err := adapter.FetchLatest(callCtx, tool.Locator)
	switch {
	case err != nil:
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && sources.Classify(err) == sources.KindUnknown {
			err = fmt.Errorf("%w: no answer within %s: %w", sources.ErrSourceUnavailable, o.timeout, err)
		}
		res.err = err
	case info == nil || info.Version == "":
		res.err = fmt.Errorf("%w: adapter returned no version", sources.ErrMalformedResponse)
	default:
		res.info = info
		span.SetAttributes(otel.AttrToolVersion.String(info.Version))
	}
	return res
}

// fold turns one fetch result into an outcome and applies it to doc. It runs
// sequentially in registry order, so notices come out in that order.
func (o *Orchestrator) fold(
	ctx context.Context, tool config.ToolSource, res fetchResult, doc document.VersionDocument,
) Outcome {
	logger := logging.FromContext(ctx).WithValues("tool", tool.ID, "type", tool.Type)

	outcome := Outcome{
		ToolID:   tool.ID,
		Type:     tool.Type,
		Duration: res.duration,
		Err:      res.err,
		Kind:     sources.Classify(res.err),
	}
	previous, hasPrevious := o.previous[tool.ID]
	outcome.Status = o.phaseFor(tool, res.err)

	switch outcome.Status {
	case status.PhaseFetched:
		outcome.Info = res.info
		doc[tool.ID] = *res.info
		logger.Info("Fetched", "version", res.info.Version)

		if hasPrevious && versions.IsRegression(res.info.Version, previous.Version) {
			outcome.Regression = true
			logger.Info("Fetched version is older than the previous one",
				"version", res.info.Version, "previous", previous.Version)
		}

	case status.PhaseSkipped:
		logger.Info("Skipped", "reason", res.err.Error())

	// A per-tool failure is a notice, not an error: the run still succeeds.
	case status.PhaseRetained:
		outcome.Info = &previous
		doc[tool.ID] = previous
		logger.Info("Failed, keeping previous version",
			"error", res.err.Error(), "kind", outcome.Kind, "version", previous.Version)

	default:
		logger.Info("Failed", "error", res.err.Error(), "kind", outcome.Kind)
	}

	return outcome
}

// phaseFor decides the status a fetch error leads to under the failure policy
func (o *Orchestrator) phaseFor(tool config.ToolSource, err error) status.Phase {
	_, hasPrevious := o.previous[tool.ID]
	switch {
	case err == nil:
		return status.PhaseFetched
	case sources.Classify(err) == sources.KindUnsupportedSourceType:
		return status.PhaseSkipped
	case o.policy == config.FailurePolicyKeepPrevious && hasPrevious:
		return status.PhaseRetained
	default:
		return status.PhaseFailed
	}
}
